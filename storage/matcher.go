package storage

import (
	"github.com/peerdex/peerdex/bittorrent"
)

// A Matcher associates a submitted info hash with one of the store's
// known keys. It exists as an interface so the partial-string heuristic
// below can be swapped for exact lookup without touching callers.
type Matcher interface {
	Match(candidate bittorrent.InfoHash, known []bittorrent.InfoHash) (bittorrent.InfoHash, bool)
}

const (
	matchPrefixLen = 10
	matchSuffixLen = 5
	matchMinLen    = matchPrefixLen + matchSuffixLen
)

// PartialMatcher matches a candidate against known keys by comparing only
// the first ten and last five characters. The first key in iteration
// order satisfying both partial equalities wins.
//
// Unrelated hashes sharing those fifteen characters collide, and a
// colliding match decides whose metadata gets overwritten. The threshold
// is accepted for interface stability but plays no part in the algorithm.
type PartialMatcher struct {
	Threshold float64
}

// NewPartialMatcher returns a PartialMatcher with the given threshold.
func NewPartialMatcher(threshold float64) PartialMatcher {
	return PartialMatcher{Threshold: threshold}
}

var _ Matcher = PartialMatcher{}

// Match implements Matcher. Candidates or keys shorter than fifteen
// characters never match.
func (m PartialMatcher) Match(candidate bittorrent.InfoHash, known []bittorrent.InfoHash) (bittorrent.InfoHash, bool) {
	if len(candidate) < matchMinLen {
		return "", false
	}

	prefix := candidate[:matchPrefixLen]
	suffix := candidate[len(candidate)-matchSuffixLen:]

	for _, key := range known {
		if len(key) < matchMinLen {
			continue
		}
		if key[:matchPrefixLen] == prefix && key[len(key)-matchSuffixLen:] == suffix {
			return key, true
		}
	}

	return "", false
}
