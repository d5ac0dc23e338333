// Package memory implements a PeerStore backed by an in-memory map
// guarded by a single mutex.
package memory

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/peerdex/peerdex/bittorrent"
	"github.com/peerdex/peerdex/pkg/stop"
	"github.com/peerdex/peerdex/pkg/timecache"
	"github.com/peerdex/peerdex/storage"
)

func init() {
	prometheus.MustRegister(promInfohashesCount)
	prometheus.MustRegister(promEvictedPeers)
}

var promInfohashesCount = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "peerdex_storage_infohashes_count",
	Help: "The number of infohashes tracked",
})

var promEvictedPeers = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "peerdex_storage_evicted_peers_total",
	Help: "The number of peers evicted for staleness",
})

// defaultPeerLifetime is how long a peer stays announced without being
// heard from again.
const defaultPeerLifetime = 30 * time.Minute

// Config holds the configuration of a memory PeerStore.
type Config struct {
	PeerLifetime time.Duration `yaml:"peer_lifetime"`
}

// New creates a new PeerStore backed by memory.
func New(cfg Config) *Store {
	lifetime := cfg.PeerLifetime
	if lifetime <= 0 {
		lifetime = defaultPeerLifetime
	}

	return &Store{
		lifetime: lifetime,
		swarms:   make(map[bittorrent.InfoHash]*swarm),
		now:      timecache.Now,
	}
}

// swarm is the set of peers announced for one torrent, keyed by peer ID
// so that a re-announce replaces the prior record instead of accumulating
// next to it.
type swarm struct {
	info  bittorrent.TorrentInfo
	peers map[string]bittorrent.Peer
}

// Store is an in-memory PeerStore.
//
// One store-wide mutex serializes every operation. Eviction of stale
// peers happens lazily inside reads, so inserts and evictions appear
// atomic to all observers.
type Store struct {
	lifetime time.Duration

	mu     sync.RWMutex
	swarms map[bittorrent.InfoHash]*swarm

	// now is swappable so tests can control staleness.
	now func() time.Time
}

var _ storage.PeerStore = &Store{}

// EnsureTorrent creates a record and an empty swarm for ih if absent.
func (s *Store) EnsureTorrent(ih bittorrent.InfoHash, info bittorrent.TorrentInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLocked(ih, info)
}

func (s *Store) ensureLocked(ih bittorrent.InfoHash, info bittorrent.TorrentInfo) *swarm {
	sw, ok := s.swarms[ih]
	if ok {
		return sw
	}

	info.InfoHash = ih
	if info.CreationDate == 0 {
		info.CreationDate = s.now().Unix()
	}

	sw = &swarm{
		info:  info,
		peers: make(map[string]bittorrent.Peer),
	}
	s.swarms[ih] = sw
	promInfohashesCount.Set(float64(len(s.swarms)))
	return sw
}

// PutPeer inserts a fresh record for the peer, stamping last_seen and
// deriving seeder status from the reported bytes left.
func (s *Store) PutPeer(ih bittorrent.InfoHash, p bittorrent.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.ensureLocked(ih, bittorrent.TorrentInfo{})

	p.LastSeen = s.now().Unix()
	p.Seeder = p.Left == 0
	sw.peers[p.ID] = p
}

// evictLocked removes peers whose last announce is at or beyond the peer
// lifetime.
func (s *Store) evictLocked(sw *swarm) {
	cutoff := s.now().Unix() - int64(s.lifetime/time.Second)
	for id, p := range sw.peers {
		if p.LastSeen <= cutoff {
			delete(sw.peers, id)
			promEvictedPeers.Inc()
		}
	}
}

// ActivePeers evicts stale peers from the swarm and returns the rest,
// omitting the excluded peer ID if one is given.
func (s *Store) ActivePeers(ih bittorrent.InfoHash, excluding string) []bittorrent.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return nil
	}
	s.evictLocked(sw)

	peers := make([]bittorrent.Peer, 0, len(sw.peers))
	for id, p := range sw.peers {
		if excluding != "" && id == excluding {
			continue
		}
		peers = append(peers, p)
	}
	return peers
}

// Stats evicts stale peers and aggregates the remaining swarm.
func (s *Store) Stats(ih bittorrent.InfoHash) bittorrent.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return bittorrent.Stats{}
	}
	s.evictLocked(sw)

	peers := make([]bittorrent.Peer, 0, len(sw.peers))
	for _, p := range sw.peers {
		peers = append(peers, p)
	}
	return bittorrent.AggregateSwarm(peers)
}

// Torrent returns the descriptive metadata for ih.
func (s *Store) Torrent(ih bittorrent.InfoHash) (bittorrent.TorrentInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return bittorrent.TorrentInfo{}, false
	}
	return sw.info, true
}

// UpdateTorrentInfo overwrites the mutable descriptive fields of an
// existing record. The info hash itself is never rewritten.
func (s *Store) UpdateTorrentInfo(ih bittorrent.InfoHash, info bittorrent.TorrentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.swarms[ih]
	if !ok {
		return storage.ErrTorrentDNE
	}

	sw.info.Name = info.Name
	sw.info.Size = info.Size
	sw.info.PieceLength = info.PieceLength
	sw.info.Comment = info.Comment
	sw.info.CreatedBy = info.CreatedBy
	if info.CreationDate > 0 {
		sw.info.CreationDate = info.CreationDate
	}
	return nil
}

// InfoHashes returns a snapshot of every known info hash, including
// torrents whose swarms are currently empty.
func (s *Store) InfoHashes() []bittorrent.InfoHash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := make([]bittorrent.InfoHash, 0, len(s.swarms))
	for ih := range s.swarms {
		hashes = append(hashes, ih)
	}
	return hashes
}

// Dump copies the whole store. Stale peers are evicted on the way out and
// per-swarm stats are computed from the survivors. The caller serializes
// and writes the copy without holding the store lock.
func (s *Store) Dump() *storage.Dump {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := storage.NewDump()
	for ih, sw := range s.swarms {
		s.evictLocked(sw)

		peers := make([]bittorrent.Peer, 0, len(sw.peers))
		for _, p := range sw.peers {
			peers = append(peers, p)
		}

		d.Torrents[ih] = storage.TorrentDump{
			Info:  sw.info,
			Peers: peers,
			Stats: bittorrent.AggregateSwarm(peers),
		}
	}
	return d
}

// Load replaces the store contents with a dumped state.
func (s *Store) Load(d *storage.Dump) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.swarms = make(map[bittorrent.InfoHash]*swarm, len(d.Torrents))
	for ih, td := range d.Torrents {
		sw := &swarm{
			info:  td.Info,
			peers: make(map[string]bittorrent.Peer, len(td.Peers)),
		}
		sw.info.InfoHash = ih
		for _, p := range td.Peers {
			sw.peers[p.ID] = p
		}
		s.swarms[ih] = sw
	}
	promInfohashesCount.Set(float64(len(s.swarms)))
}

// Stop clears the store.
func (s *Store) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		s.mu.Lock()
		s.swarms = make(map[bittorrent.InfoHash]*swarm)
		s.mu.Unlock()
		promInfohashesCount.Set(0)
		c.Done()
	}()
	return c.Result()
}
