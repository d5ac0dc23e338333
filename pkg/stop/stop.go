// Package stop implements a pattern for shutting down a group of long-lived
// processes and collecting their errors.
package stop

import (
	"sync"
)

// Channel is used to return zero or more errors asynchronously. Call Done
// exactly once to pass errors to the Channel.
type Channel chan []error

// Result is the receive-only side of a Channel. Call Wait exactly once to
// receive any returned errors.
type Result <-chan []error

// Done passes any non-nil errors to the Channel and closes it, indicating
// the caller has finished stopping.
func (ch Channel) Done(errs ...error) {
	if len(errs) > 0 && errs[0] != nil {
		ch <- errs
	}
	close(ch)
}

// Result converts a Channel to a Result.
func (ch Channel) Result() Result {
	return (<-chan []error)(ch)
}

// Wait blocks until Done is called on the underlying Channel and returns
// any errors.
func (r Result) Wait() []error {
	return <-r
}

// AlreadyStopped is a closed Result for use by Stoppers that have already
// shut down.
var AlreadyStopped Result

func init() {
	ch := make(Channel)
	close(ch)
	AlreadyStopped = ch.Result()
}

// Stopper is anything that can be shut down cleanly.
//
// Stop should return immediately and perform the actual shutdown in a
// separate goroutine. Closing the returned channel without sending signals
// a clean shutdown.
type Stopper interface {
	Stop() Result
}

// Func is a function usable as a Stopper.
type Func func() Result

// Group is a collection of Stoppers that are stopped together.
type Group struct {
	stoppables []Func
	sync.Mutex
}

// NewGroup allocates a new Group.
func NewGroup() *Group {
	return &Group{}
}

// Add appends a Stopper to the Group.
func (g *Group) Add(s Stopper) {
	g.Lock()
	defer g.Unlock()

	g.stoppables = append(g.stoppables, s.Stop)
}

// AddFunc appends a Func to the Group.
func (g *Group) AddFunc(f Func) {
	g.Lock()
	defer g.Unlock()

	g.stoppables = append(g.stoppables, f)
}

// Stop stops all members of the Group concurrently and collects their
// errors into the returned Result.
func (g *Group) Stop() Result {
	g.Lock()
	defer g.Unlock()

	done := make(Channel)

	results := make([]Result, 0, len(g.stoppables))
	for _, f := range g.stoppables {
		r := f()
		if r == nil {
			panic("stop: Stopper returned a nil Result")
		}
		results = append(results, r)
	}

	go func() {
		var errs []error
		for _, r := range results {
			errs = append(errs, r.Wait()...)
		}
		done.Done(errs...)
	}()

	return done.Result()
}
