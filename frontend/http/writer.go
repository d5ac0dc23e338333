package http

import (
	"encoding/json"
	"net/http"

	"github.com/peerdex/peerdex/bittorrent"
	"github.com/peerdex/peerdex/bittorrent/bencode"
	"github.com/peerdex/peerdex/pkg/log"
)

const jsonContentType = "application/json; charset=UTF-8"

// announceInterval is the refresh hint handed to announcing clients, in
// seconds. It matches the staleness window so a client that keeps to the
// schedule is never evicted.
const announceInterval = 1800

// messageResponse is the body of endpoints that only acknowledge.
type messageResponse struct {
	Message string `json:"message"`
}

// errorResponse is the body of every failed request. Note the wire-format
// asymmetry: announce successes are bencoded, failures are JSON like the
// rest of the API.
type errorResponse struct {
	Error string `json:"error"`
}

type scrapeFile struct {
	Complete   int    `json:"complete"`
	Downloaded uint64 `json:"downloaded"`
	Incomplete int    `json:"incomplete"`
	Name       string `json:"name"`
}

type scrapeResponse struct {
	Files map[bittorrent.InfoHash]scrapeFile `json:"files"`
}

type statsEntry struct {
	Name         string           `json:"name"`
	Size         int64            `json:"size"`
	CreationDate int64            `json:"creation_date"`
	Stats        bittorrent.Stats `json:"stats"`
}

// writeAnnounceResponse bencodes a successful announce: the refresh
// interval, the seeder and leecher counts, and the peer list in its
// dictionary (non-compact) form.
//
// The body is marshaled before the status is committed, so an encoding
// failure can still surface as an error response. A failed write after
// that is only logged; the response is already on the wire.
func writeAnnounceResponse(w http.ResponseWriter, peers []bittorrent.Peer, stats bittorrent.Stats) error {
	peerList := make([]bencode.Dict, 0, len(peers))
	for _, p := range peers {
		peerList = append(peerList, bencode.Dict{
			"peer_id": p.ID,
			"ip":      p.IP,
			"port":    p.Port,
		})
	}

	body, err := bencode.Marshal(bencode.Dict{
		"interval":   announceInterval,
		"complete":   stats.Complete,
		"incomplete": stats.Incomplete,
		"peers":      peerList,
	})
	if err != nil {
		return err
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error("http: failed to write announce response", log.Err(err))
	}
	return nil
}

// writeJSON renders v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) (int, error) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return http.StatusInternalServerError, err
	}
	return status, nil
}

// writeError renders an error body. Errors the client caused carry their
// own message; anything else is masked and logged server-side.
func writeError(w http.ResponseWriter, status int, err error) {
	message := "internal server error"
	switch err.(type) {
	case bittorrent.ClientError, bittorrent.NotFoundError:
		message = err.Error()
	default:
		log.Error("http: internal error", log.Err(err))
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(errorResponse{Error: message}); encErr != nil {
		log.Error("http: failed to write error response", log.Err(encErr))
	}
}
