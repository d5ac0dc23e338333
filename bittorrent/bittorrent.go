// Package bittorrent implements the abstractions shared by the tracker
// core: info hash text encoding, swarm membership records, torrent
// metadata, and the error types exposed to clients.
package bittorrent

import (
	"fmt"

	"github.com/peerdex/peerdex/pkg/log"
)

// An InfoHash identifies a torrent and its swarm.
//
// It is the text rendering of the 20-byte SHA-1 digest of the bencoded
// info dictionary: printable ASCII bytes appear literally and every other
// byte is rendered as '%' followed by two uppercase hex digits. This is
// the canonical key format stored and compared throughout the tracker.
type InfoHash string

// InfoHashFromDigest renders a raw digest in the tracker's text form.
//
// This is not RFC 3986 percent-encoding: reserved characters such as '%',
// '&' and '+' pass through unescaped because they are printable.
func InfoHashFromDigest(digest []byte) InfoHash {
	buf := make([]byte, 0, len(digest)*3)
	for _, b := range digest {
		if b >= 0x20 && b <= 0x7e {
			buf = append(buf, b)
		} else {
			buf = append(buf, []byte(fmt.Sprintf("%%%02X", b))...)
		}
	}
	return InfoHash(buf)
}

// String implements fmt.Stringer.
func (ih InfoHash) String() string { return string(ih) }

// Peer is a participant in a swarm, keyed by its peer ID.
//
// Re-announcing with the same ID replaces the whole record; fields are
// never merged. IP holds the origin address as observed by the server,
// never a client-supplied value.
type Peer struct {
	ID         string `json:"peer_id"`
	IP         string `json:"ip"`
	Port       uint16 `json:"port"`
	LastSeen   int64  `json:"last_seen"`
	Uploaded   uint64 `json:"uploaded"`
	Downloaded uint64 `json:"downloaded"`
	Left       uint64 `json:"left"`
	Seeder     bool   `json:"is_seeder"`
}

// LogFields renders the peer as a set of log fields.
func (p Peer) LogFields() log.Fields {
	return log.Fields{
		"id":   p.ID,
		"ip":   p.IP,
		"port": p.Port,
	}
}

// TorrentInfo is the descriptive metadata of a tracked torrent.
//
// InfoHash is immutable once set; every other field may be overwritten by
// a later metadata submission.
type TorrentInfo struct {
	InfoHash     InfoHash `json:"info_hash"`
	Name         string   `json:"name"`
	Size         int64    `json:"size"`
	PieceLength  int64    `json:"piece_length"`
	CreationDate int64    `json:"creation_date"`
	Comment      string   `json:"comment"`
	CreatedBy    string   `json:"created_by"`
}

// ClientError is an error caused by a malformed or invalid request. It is
// safe to expose to clients.
type ClientError string

// NotFoundError is an error returned when a request addresses an info hash
// the tracker has no record of.
type NotFoundError string

// Error implements the error interface for ClientError.
func (e ClientError) Error() string { return string(e) }

// Error implements the error interface for NotFoundError.
func (e NotFoundError) Error() string { return string(e) }
