// Package timecache caches the system clock so that hot paths can read the
// current time without a syscall. The cached value is stored as nanoseconds
// since the Unix epoch and accessed atomically.
//
// The package runs a global singleton cache updated once per second, which
// is plenty of precision for announce timestamps and staleness cutoffs.
package timecache

import (
	"sync/atomic"
	"time"
)

var global *TimeCache

func init() {
	global = New()
	go global.Run(time.Second)
}

// A TimeCache is a cache for the current system time.
type TimeCache struct {
	clock  int64
	closed chan struct{}
}

// New returns a TimeCache initialized to the current time. It must be
// started with Run to keep updating.
func New() *TimeCache {
	return &TimeCache{
		clock:  time.Now().UnixNano(),
		closed: make(chan struct{}),
	}
}

// Run updates the cached clock once every interval and blocks until Stop
// is called.
func (t *TimeCache) Run(interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-t.closed:
			return
		case now := <-tick.C:
			atomic.StoreInt64(&t.clock, now.UnixNano())
		}
	}
}

// Stop stops the TimeCache. The cached time remains readable but will no
// longer advance. Stopping twice panics, as does closing any channel twice.
func (t *TimeCache) Stop() {
	close(t.closed)
}

// Now returns the cached time.
func (t *TimeCache) Now() time.Time {
	return time.Unix(0, atomic.LoadInt64(&t.clock))
}

// NowUnix returns the cached time as seconds since the Unix epoch.
func (t *TimeCache) NowUnix() int64 {
	return atomic.LoadInt64(&t.clock) / int64(time.Second)
}

// Now returns the cached time of the global instance.
func Now() time.Time {
	return global.Now()
}

// NowUnix returns the cached time of the global instance as seconds since
// the Unix epoch.
func NowUnix() int64 {
	return global.NowUnix()
}
