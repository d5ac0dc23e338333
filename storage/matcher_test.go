package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peerdex/peerdex/bittorrent"
)

func TestPartialMatcher(t *testing.T) {
	var table = []struct {
		name      string
		candidate bittorrent.InfoHash
		known     []bittorrent.InfoHash
		expected  bittorrent.InfoHash
		ok        bool
	}{
		{
			"exact key matches",
			"ABCDEFGHIJxxxxxxxZZZZZ",
			[]bittorrent.InfoHash{"ABCDEFGHIJxxxxxxxZZZZZ"},
			"ABCDEFGHIJxxxxxxxZZZZZ",
			true,
		},
		{
			"differing middle still matches on prefix and suffix",
			"ABCDEFGHIJxxxxxxxZZZZZ",
			[]bittorrent.InfoHash{"ABCDEFGHIJyyyyyyyZZZZZ"},
			"ABCDEFGHIJyyyyyyyZZZZZ",
			true,
		},
		{
			"prefix mismatch",
			"ABCDEFGHIJxxxxxxxZZZZZ",
			[]bittorrent.InfoHash{"0BCDEFGHIJxxxxxxxZZZZZ"},
			"",
			false,
		},
		{
			"suffix mismatch",
			"ABCDEFGHIJxxxxxxxZZZZZ",
			[]bittorrent.InfoHash{"ABCDEFGHIJxxxxxxxZZZZ0"},
			"",
			false,
		},
		{
			"short candidate never matches",
			"short",
			[]bittorrent.InfoHash{"short", "ABCDEFGHIJyyyyyyyZZZZZ"},
			"",
			false,
		},
		{
			"short keys are skipped",
			"ABCDEFGHIJZZZZZ",
			[]bittorrent.InfoHash{"ABCDEFGHIJ", "ABCDEFGHIJZZZZZ"},
			"ABCDEFGHIJZZZZZ",
			true,
		},
		{
			"no candidates",
			"ABCDEFGHIJxxxxxxxZZZZZ",
			nil,
			"",
			false,
		},
	}

	m := NewPartialMatcher(0.8)
	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.candidate, tt.known)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
