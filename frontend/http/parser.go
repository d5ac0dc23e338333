package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/peerdex/peerdex/bittorrent"
)

// announceRequest is the parsed form of an announce query.
type announceRequest struct {
	InfoHash bittorrent.InfoHash
	Peer     bittorrent.Peer
	Event    string
}

// parseAnnounce extracts an announceRequest from the query string.
// info_hash, peer_id and port are required; the byte counters default to
// zero. The peer address always comes from the connection (or the
// configured real-IP header behind a proxy), never from the client.
func parseAnnounce(r *http.Request, realIPHeader string) (*announceRequest, error) {
	q := r.URL.Query()

	ih := q.Get("info_hash")
	if ih == "" {
		return nil, bittorrent.ClientError("no info_hash parameter supplied")
	}

	peerID := q.Get("peer_id")
	if peerID == "" {
		return nil, bittorrent.ClientError("no peer_id parameter supplied")
	}

	portStr := q.Get("port")
	if portStr == "" {
		return nil, bittorrent.ClientError("no port parameter supplied")
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, bittorrent.ClientError("failed to parse parameter: port")
	}

	uploaded, err := parseCounter(q.Get("uploaded"))
	if err != nil {
		return nil, bittorrent.ClientError("failed to parse parameter: uploaded")
	}
	downloaded, err := parseCounter(q.Get("downloaded"))
	if err != nil {
		return nil, bittorrent.ClientError("failed to parse parameter: downloaded")
	}
	left, err := parseCounter(q.Get("left"))
	if err != nil {
		return nil, bittorrent.ClientError("failed to parse parameter: left")
	}

	return &announceRequest{
		InfoHash: bittorrent.InfoHash(ih),
		Peer: bittorrent.Peer{
			ID:         peerID,
			IP:         requestIP(r, realIPHeader),
			Port:       uint16(port),
			Uploaded:   uploaded,
			Downloaded: downloaded,
			Left:       left,
		},
		Event: q.Get("event"),
	}, nil
}

// parseScrape extracts the info_hash from a scrape query.
func parseScrape(r *http.Request) (bittorrent.InfoHash, error) {
	ih := r.URL.Query().Get("info_hash")
	if ih == "" {
		return "", bittorrent.ClientError("no info_hash parameter supplied")
	}
	return bittorrent.InfoHash(ih), nil
}

// parseTorrentInfo decodes the JSON body of a metadata submission.
func parseTorrentInfo(r *http.Request) (bittorrent.TorrentInfo, error) {
	var info bittorrent.TorrentInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		return info, bittorrent.ClientError("failed to parse request body")
	}
	if info.InfoHash == "" {
		return info, bittorrent.ClientError("no info_hash supplied")
	}
	return info, nil
}

// parseCounter parses a non-negative byte counter, treating absence as
// zero.
func parseCounter(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// requestIP determines the peer address as observed by the server.
func requestIP(r *http.Request, realIPHeader string) string {
	if realIPHeader != "" {
		if ip := r.Header.Get(realIPHeader); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
