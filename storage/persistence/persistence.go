// Package persistence snapshots a PeerStore to a JSON document on disk
// and restores it at startup.
package persistence

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/peerdex/peerdex/bittorrent"
	"github.com/peerdex/peerdex/pkg/log"
	"github.com/peerdex/peerdex/pkg/timecache"
	"github.com/peerdex/peerdex/storage"
)

// Manager reads and writes the tracker state document. Snapshots replace
// the whole document atomically; they are never appended to.
type Manager struct {
	path     string
	lifetime time.Duration

	// now is swappable so tests can control staleness.
	now func() time.Time
}

// New returns a Manager writing to path. Peers older than lifetime at
// restore time are discarded.
func New(path string, lifetime time.Duration) *Manager {
	return &Manager{
		path:     path,
		lifetime: lifetime,
		now:      timecache.Now,
	}
}

// Save marshals the dump and replaces the state document on disk. The
// write goes to a temporary file first and is renamed into place so a
// crash mid-write never truncates the previous snapshot.
func (m *Manager) Save(d *storage.Dump) error {
	buf, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0600); err != nil {
		return errors.Wrap(err, "failed to write state file")
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return errors.Wrap(err, "failed to replace state file")
	}

	log.Debug("persistence: wrote snapshot", log.Fields{
		"path":     m.path,
		"torrents": len(d.Torrents),
	})
	return nil
}

// Load reads the state document and rebuilds a clean dump from it.
//
// Stale snapshots can carry duplicate peer records; for each torrent the
// stored peers are ordered by last_seen descending and only the first
// occurrence of each peer ID is kept. The usual staleness window is then
// applied, and a torrent left without a single active peer is dropped
// entirely, record included. A missing file yields an empty dump.
func (m *Manager) Load() (*storage.Dump, error) {
	buf, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.NewDump(), nil
		}
		return storage.NewDump(), errors.Wrap(err, "failed to read state file")
	}

	var raw storage.Dump
	if err := json.Unmarshal(buf, &raw); err != nil {
		return storage.NewDump(), errors.Wrap(err, "failed to parse state file")
	}

	cutoff := m.now().Unix() - int64(m.lifetime/time.Second)

	d := storage.NewDump()
	for ih, td := range raw.Torrents {
		peers := dedupePeers(td.Peers)

		active := make([]bittorrent.Peer, 0, len(peers))
		for _, p := range peers {
			if p.LastSeen > cutoff {
				active = append(active, p)
			}
		}
		if len(active) == 0 {
			continue
		}

		d.Torrents[ih] = storage.TorrentDump{
			Info:  td.Info,
			Peers: active,
			Stats: bittorrent.AggregateSwarm(active),
		}
	}

	log.Info("persistence: restored snapshot", log.Fields{
		"path":     m.path,
		"torrents": len(d.Torrents),
		"dropped":  len(raw.Torrents) - len(d.Torrents),
	})
	return d, nil
}

// dedupePeers keeps the most recently seen record per peer ID.
func dedupePeers(peers []bittorrent.Peer) []bittorrent.Peer {
	sorted := make([]bittorrent.Peer, len(peers))
	copy(sorted, peers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastSeen > sorted[j].LastSeen
	})

	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, p := range sorted {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
