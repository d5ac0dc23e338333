package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerdex/peerdex/bittorrent"
	"github.com/peerdex/peerdex/storage"
)

const testHash = bittorrent.InfoHash("ABCDEFGHIJ%01%02%03%04%05%06%07%08%09%0A")

// newTestStore returns a store with a controllable clock.
func newTestStore() (*Store, *time.Time) {
	s := New(Config{PeerLifetime: 30 * time.Minute})
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestPutPeerReplacesPriorRecord(t *testing.T) {
	s, _ := newTestStore()

	s.PutPeer(testHash, bittorrent.Peer{ID: "peer-1", IP: "10.0.0.1", Port: 6881, Left: 100})
	s.PutPeer(testHash, bittorrent.Peer{ID: "peer-1", IP: "10.0.0.2", Port: 6882, Left: 0})

	peers := s.ActivePeers(testHash, "")
	require.Len(t, peers, 1)
	assert.Equal(t, "10.0.0.2", peers[0].IP)
	assert.Equal(t, uint16(6882), peers[0].Port)
	assert.True(t, peers[0].Seeder)
}

func TestSeederDerivedFromLeft(t *testing.T) {
	s, _ := newTestStore()

	s.PutPeer(testHash, bittorrent.Peer{ID: "peer-1", Left: 0})
	s.PutPeer(testHash, bittorrent.Peer{ID: "peer-2", Left: 42})

	stats := s.Stats(testHash)
	assert.Equal(t, 1, stats.Complete)
	assert.Equal(t, 1, stats.Incomplete)
	assert.Equal(t, 2, stats.Peers)
}

func TestStaleEviction(t *testing.T) {
	s, now := newTestStore()

	s.PutPeer(testHash, bittorrent.Peer{ID: "old-peer", Left: 0})
	*now = now.Add(10 * time.Minute)
	s.PutPeer(testHash, bittorrent.Peer{ID: "fresh-peer", Left: 10})

	// 31 minutes after the first announce, 21 after the second.
	*now = now.Add(21 * time.Minute)

	peers := s.ActivePeers(testHash, "")
	require.Len(t, peers, 1)
	assert.Equal(t, "fresh-peer", peers[0].ID)

	// Eviction mutates the underlying swarm: a later dump must not see
	// the stale peer either.
	d := s.Dump()
	require.Contains(t, d.Torrents, testHash)
	require.Len(t, d.Torrents[testHash].Peers, 1)
	assert.Equal(t, "fresh-peer", d.Torrents[testHash].Peers[0].ID)
}

func TestEvictionAtExactLifetimeBoundary(t *testing.T) {
	s, now := newTestStore()

	s.PutPeer(testHash, bittorrent.Peer{ID: "peer-1"})
	*now = now.Add(30 * time.Minute)

	assert.Empty(t, s.ActivePeers(testHash, ""))
}

func TestActivePeersExcluding(t *testing.T) {
	s, _ := newTestStore()

	s.PutPeer(testHash, bittorrent.Peer{ID: "A1", Left: 0})
	s.PutPeer(testHash, bittorrent.Peer{ID: "B1", Left: 100})

	peers := s.ActivePeers(testHash, "A1")
	require.Len(t, peers, 1)
	assert.Equal(t, "B1", peers[0].ID)

	stats := s.Stats(testHash)
	assert.Equal(t, 1, stats.Complete)
	assert.Equal(t, 1, stats.Incomplete)
}

func TestUnknownInfoHash(t *testing.T) {
	s, _ := newTestStore()

	assert.Empty(t, s.ActivePeers("nope", ""))
	assert.Equal(t, bittorrent.Stats{}, s.Stats("nope"))

	_, ok := s.Torrent("nope")
	assert.False(t, ok)
}

func TestEnsureTorrentIdempotent(t *testing.T) {
	s, _ := newTestStore()

	s.EnsureTorrent(testHash, bittorrent.TorrentInfo{Name: "first"})
	s.EnsureTorrent(testHash, bittorrent.TorrentInfo{Name: "second"})

	info, ok := s.Torrent(testHash)
	require.True(t, ok)
	assert.Equal(t, "first", info.Name)
	assert.Equal(t, testHash, info.InfoHash)
	assert.NotZero(t, info.CreationDate)
}

func TestUpdateTorrentInfo(t *testing.T) {
	s, _ := newTestStore()

	err := s.UpdateTorrentInfo(testHash, bittorrent.TorrentInfo{Name: "x"})
	assert.Equal(t, storage.ErrTorrentDNE, err)

	s.PutPeer(testHash, bittorrent.Peer{ID: "peer-1"})
	err = s.UpdateTorrentInfo(testHash, bittorrent.TorrentInfo{
		InfoHash:    "attacker-controlled",
		Name:        "ubuntu.iso",
		Size:        350,
		PieceLength: 16384,
		Comment:     "example",
		CreatedBy:   "mktorrent",
	})
	require.NoError(t, err)

	info, ok := s.Torrent(testHash)
	require.True(t, ok)
	assert.Equal(t, testHash, info.InfoHash, "info hash is immutable")
	assert.Equal(t, "ubuntu.iso", info.Name)
	assert.Equal(t, int64(350), info.Size)
	assert.Equal(t, int64(16384), info.PieceLength)
}

func TestEmptySwarmIsKept(t *testing.T) {
	s, now := newTestStore()

	s.PutPeer(testHash, bittorrent.Peer{ID: "peer-1"})
	*now = now.Add(time.Hour)

	assert.Empty(t, s.ActivePeers(testHash, ""))

	// The torrent record survives as a tombstone even though the swarm
	// drained.
	_, ok := s.Torrent(testHash)
	assert.True(t, ok)
	assert.Contains(t, s.InfoHashes(), testHash)
}

func TestDumpAndLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore()

	s.PutPeer(testHash, bittorrent.Peer{ID: "A1", IP: "10.0.0.1", Port: 1, Left: 0, Uploaded: 7})
	s.PutPeer(testHash, bittorrent.Peer{ID: "B1", IP: "10.0.0.2", Port: 2, Left: 9})
	require.NoError(t, s.UpdateTorrentInfo(testHash, bittorrent.TorrentInfo{Name: "named"}))

	d := s.Dump()
	require.Contains(t, d.Torrents, testHash)
	assert.Equal(t, 1, d.Torrents[testHash].Stats.Complete)
	assert.Equal(t, 1, d.Torrents[testHash].Stats.Incomplete)

	restored, _ := newTestStore()
	restored.Load(d)

	peers := restored.ActivePeers(testHash, "")
	assert.Len(t, peers, 2)

	info, ok := restored.Torrent(testHash)
	require.True(t, ok)
	assert.Equal(t, "named", info.Name)
}
