package timecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowTracksWallClock(t *testing.T) {
	tc := New()
	go tc.Run(10 * time.Millisecond)
	defer tc.Stop()

	time.Sleep(50 * time.Millisecond)
	drift := time.Since(tc.Now())
	require.Less(t, drift, time.Second)
}

func TestStoppedCacheStillReadable(t *testing.T) {
	tc := New()
	go tc.Run(10 * time.Millisecond)
	tc.Stop()

	require.NotZero(t, tc.NowUnix())
}

func TestGlobalNowUnix(t *testing.T) {
	require.InDelta(t, time.Now().Unix(), NowUnix(), 2)
}
