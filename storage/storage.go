// Package storage defines the interface implemented by swarm registries
// and the snapshot document they persist to.
package storage

import (
	"github.com/peerdex/peerdex/bittorrent"
	"github.com/peerdex/peerdex/pkg/stop"
)

// ErrTorrentDNE is returned when an operation requires a torrent the store
// has no record of.
var ErrTorrentDNE = bittorrent.NotFoundError("torrent does not exist")

// PeerStore is the registry of swarms and their descriptive metadata. It
// is the single synchronization boundary of the tracker: implementations
// must be safe for concurrent use by many request handlers.
type PeerStore interface {
	// EnsureTorrent creates a TorrentInfo record and an empty swarm for
	// ih if absent. It never overwrites an existing record.
	EnsureTorrent(ih bittorrent.InfoHash, info bittorrent.TorrentInfo)

	// PutPeer ensures the torrent exists and inserts a fresh record for
	// the peer, replacing any prior record with the same peer ID.
	PutPeer(ih bittorrent.InfoHash, p bittorrent.Peer)

	// ActivePeers evicts peers not seen within the peer lifetime from
	// the swarm, then returns the remainder. A non-empty excluding peer
	// ID is omitted from the result, so an announcing peer never sees
	// itself. An unknown ih yields an empty result, not an error.
	ActivePeers(ih bittorrent.InfoHash, excluding string) []bittorrent.Peer

	// Stats evicts stale peers and aggregates the remainder. An unknown
	// ih yields zero stats.
	Stats(ih bittorrent.InfoHash) bittorrent.Stats

	// Torrent returns the descriptive metadata for ih.
	Torrent(ih bittorrent.InfoHash) (bittorrent.TorrentInfo, bool)

	// UpdateTorrentInfo overwrites the mutable descriptive fields of an
	// existing record. It returns ErrTorrentDNE if ih has no record.
	UpdateTorrentInfo(ih bittorrent.InfoHash, info bittorrent.TorrentInfo) error

	// InfoHashes returns a snapshot of every known info hash.
	InfoHashes() []bittorrent.InfoHash

	// Dump copies the entire store, evicting stale peers and computing
	// per-swarm stats on the way out. The copy is taken under the store
	// lock; serializing and writing it is the caller's business and must
	// happen outside.
	Dump() *Dump

	// Load replaces the store contents with a previously dumped state.
	Load(d *Dump)

	// Stop shuts the store down.
	Stop() stop.Result
}

// TorrentDump is the persisted state of one torrent.
type TorrentDump struct {
	Info  bittorrent.TorrentInfo `json:"info"`
	Peers []bittorrent.Peer      `json:"peers_info"`
	Stats bittorrent.Stats       `json:"stats"`
}

// Dump is the persisted state of a whole PeerStore.
type Dump struct {
	Torrents map[bittorrent.InfoHash]TorrentDump `json:"torrents"`
}

// NewDump allocates an empty Dump.
func NewDump() *Dump {
	return &Dump{Torrents: make(map[bittorrent.InfoHash]TorrentDump)}
}
