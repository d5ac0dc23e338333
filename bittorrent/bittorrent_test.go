package bittorrent

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoHashFromDigest(t *testing.T) {
	var table = []struct {
		name     string
		digest   []byte
		expected InfoHash
	}{
		{"printable ascii passes through", []byte("abcDEF123"), "abcDEF123"},
		{"control bytes escape uppercase", []byte{0x00, 0x1f, 0x7f}, "%00%1F%7F"},
		{"high bytes escape uppercase", []byte{0xde, 0xad, 0xbe, 0xef}, "%DE%AD%BE%EF"},
		{"space is printable", []byte{' '}, " "},
		{"tilde is printable", []byte{0x7e}, "~"},
		{"reserved url characters are not escaped", []byte("%&+?="), "%&+?="},
		{"mixed", []byte{'a', 0x01, 'b'}, "a%01b"},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InfoHashFromDigest(tt.digest))
		})
	}
}

func TestInfoHashFromDigestSHA1(t *testing.T) {
	digest := sha1.Sum([]byte("d4:spam4:eggse"))
	ih := InfoHashFromDigest(digest[:])

	// Every byte of the rendering must be printable ASCII.
	for i := 0; i < len(ih); i++ {
		require.True(t, ih[i] >= 0x20 && ih[i] <= 0x7e, "byte %d not printable", i)
	}
}

func TestAggregateSwarm(t *testing.T) {
	peers := []Peer{
		{ID: "seeder-1", Left: 0, Seeder: true, Uploaded: 100, Downloaded: 50},
		{ID: "leecher-1", Left: 512, Uploaded: 10, Downloaded: 200},
		{ID: "leecher-2", Left: 1024, Uploaded: 5, Downloaded: 25},
	}

	s := AggregateSwarm(peers)
	assert.Equal(t, 1, s.Complete)
	assert.Equal(t, 2, s.Incomplete)
	assert.Equal(t, uint64(115), s.Uploaded)
	assert.Equal(t, uint64(275), s.Downloaded)
	assert.Equal(t, 3, s.Peers)
}

func TestAggregateSwarmEmpty(t *testing.T) {
	assert.Equal(t, Stats{}, AggregateSwarm(nil))
}
