// Package display drives what a single place image element shows: a loading
// placeholder, the place photo once resolved, or a fallback image when the
// photo cannot be shown after a bounded number of attempts.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/channelqueue"
	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/fallback"
	"github.com/tripsage/go-placephoto/resolver"
	"github.com/tripsage/go-placephoto/retry"
)

var log = logging.Logger("display")

var (
	ErrMounted   = errors.New("adapter already mounted")
	ErrUnmounted = errors.New("adapter unmounted")
)

// State is what an adapter is currently showing.
type State int

const (
	// Loading shows a placeholder while the photo is resolved.
	Loading State = iota
	// Resolved shows the place photo.
	Resolved
	// Fallback shows a fallback image. It is terminal.
	Fallback
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Resolved:
		return "resolved"
	case Fallback:
		return "fallback"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is the observable state of an adapter.
type Snapshot struct {
	Key      string
	State    State
	Ref      string
	Attempts int
	Failure  *resolver.Failure
}

// Resolver resolves place keys. *photocache.Cache is a Resolver.
type Resolver interface {
	Resolve(ctx context.Context, key string) (resolver.Result, error)
}

type forgetter interface {
	Forget(key string) bool
}

// Adapter is the state of one image element showing a place photo.
type Adapter struct {
	r          Resolver
	key        string
	pool       *fallback.Pool
	retryDelay time.Duration

	mu        sync.Mutex
	snap      Snapshot
	counter   *retry.Counter
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	mounted   bool
	unmounted bool
	settled   chan struct{}
	changes   *channelqueue.ChannelQueue[Snapshot]
	closed    bool // changes is closed

	wg sync.WaitGroup
}

// New creates an Adapter that shows the photo of the place identified by key.
func New(r Resolver, key string, options ...Option) (*Adapter, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.New("nil resolver")
	}
	return &Adapter{
		r:          r,
		key:        key,
		pool:       opts.pool,
		retryDelay: opts.retryDelay,
		snap: Snapshot{
			Key:   key,
			State: Loading,
		},
		counter: retry.NewCounter(opts.maxAttempts),
		settled: make(chan struct{}),
	}, nil
}

// Mount starts resolving the photo. Resolution stops when ctx is canceled or
// the adapter is unmounted.
func (a *Adapter) Mount(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unmounted {
		return ErrUnmounted
	}
	if a.mounted {
		return ErrMounted
	}
	a.mounted = true
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.publish()
	a.attempt()
	return nil
}

// ImageError reports that the shown photo failed to load. The cached
// reference is dropped and the photo is resolved again, unless no attempts
// remain, in which case a fallback image is shown. It has no effect unless a
// resolved photo is being shown.
func (a *Adapter) ImageError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unmounted || a.snap.State != Resolved {
		return
	}
	if f, ok := a.r.(forgetter); ok {
		f.Forget(a.key)
	}

	failure := &resolver.Failure{
		Kind: resolver.TransportFailure,
		Key:  a.key,
		Err:  errors.New("image failed to load"),
	}
	if !a.counter.Fail() {
		a.giveUp(a.pool.Random(), failure)
		return
	}
	log.Debugw("Image failed to load, retrying", "place", a.key, "attempts", a.counter.Attempts())
	a.setLoading(failure)
	a.attempt()
}

// Unmount stops the adapter. Results arriving afterwards are discarded. Unmount
// waits for in-progress work to stop and closes the Changes channel.
func (a *Adapter) Unmount() {
	a.mu.Lock()
	if a.unmounted {
		a.mu.Unlock()
		return
	}
	a.unmounted = true
	a.gen++
	if a.cancel != nil {
		a.cancel()
	}
	if a.snap.State == Loading {
		close(a.settled)
	}
	a.mu.Unlock()

	a.wg.Wait()

	a.mu.Lock()
	a.closeChanges()
	a.mu.Unlock()
}

// Snapshot returns the current state.
func (a *Adapter) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Changes returns a channel that receives every state change from the next
// change on. The channel is unbounded so a slow reader never delays
// resolution, and is closed by Unmount. All calls return the same channel.
func (a *Adapter) Changes() <-chan Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.changes == nil {
		a.changes = channelqueue.New[Snapshot](-1)
		// No state change is published once unmounted.
		if a.unmounted {
			a.closeChanges()
		}
	}
	return a.changes.Out()
}

// Wait waits until the adapter is no longer Loading, and returns the state it
// settled in. ErrUnmounted is returned if the adapter is unmounted while
// waiting.
func (a *Adapter) Wait(ctx context.Context) (Snapshot, error) {
	for {
		a.mu.Lock()
		if a.unmounted {
			a.mu.Unlock()
			return Snapshot{}, ErrUnmounted
		}
		if a.snap.State != Loading {
			snap := a.snap
			a.mu.Unlock()
			return snap, nil
		}
		settled := a.settled
		a.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// attempt starts a resolution. Must be called with mu held.
func (a *Adapter) attempt() {
	a.gen++
	gen := a.gen
	ctx := a.ctx
	var delay time.Duration
	if a.counter.Attempts() != 0 {
		delay = a.retryDelay
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if delay != 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				a.apply(gen, resolver.Result{}, ctx.Err())
				return
			}
		}
		res, err := a.r.Resolve(ctx, a.key)
		a.apply(gen, res, err)
	}()
}

// apply applies the outcome of the resolution started as generation gen.
func (a *Adapter) apply(gen uint64, res resolver.Result, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unmounted || gen != a.gen {
		log.Debugw("Discarding stale photo result", "place", a.key)
		return
	}
	if err != nil {
		// Only the adapter's context ends a resolution with an error.
		a.settle(a.pool.Random(), &resolver.Failure{Kind: resolver.TransportFailure, Key: a.key, Err: err})
		return
	}

	if !res.Fallback {
		a.snap.State = Resolved
		a.snap.Ref = res.Ref
		a.snap.Failure = nil
		a.snap.Attempts = a.counter.Attempts() + 1
		close(a.settled)
		a.publish()
		return
	}

	if res.Failure == nil || !res.Failure.Retryable() {
		// Retrying cannot change the outcome.
		a.settle(res.Ref, res.Failure)
		return
	}
	if !a.counter.Fail() {
		a.giveUp(res.Ref, res.Failure)
		return
	}
	log.Debugw("Photo resolution failed, retrying", "place", a.key, "attempts", a.counter.Attempts(), "err", res.Failure)
	a.setLoading(res.Failure)
	a.attempt()
}

// giveUp settles on ref after the retry budget is spent. Must be called with
// mu held.
func (a *Adapter) giveUp(ref string, cause *resolver.Failure) {
	log.Infow("Giving up on place photo", "place", a.key, "attempts", a.counter.Attempts(), "max", a.counter.Max())
	var err error
	if cause != nil {
		err = cause
	}
	a.settle(ref, &resolver.Failure{
		Kind: resolver.RetryExhausted,
		Key:  a.key,
		Err:  err,
	})
}

// settle moves to the terminal Fallback state. Must be called with mu held.
func (a *Adapter) settle(ref string, failure *resolver.Failure) {
	wasLoading := a.snap.State == Loading
	a.snap.State = Fallback
	a.snap.Ref = ref
	a.snap.Failure = failure
	a.snap.Attempts = a.counter.Attempts()
	if failure != nil && failure.Kind != resolver.RetryExhausted {
		a.snap.Attempts++
	}
	if wasLoading {
		close(a.settled)
	}
	a.publish()
}

// setLoading re-enters Loading. Must be called with mu held.
func (a *Adapter) setLoading(failure *resolver.Failure) {
	if a.snap.State != Loading {
		a.settled = make(chan struct{})
	}
	a.snap.State = Loading
	a.snap.Ref = ""
	a.snap.Failure = failure
	a.snap.Attempts = a.counter.Attempts()
	a.publish()
}

// closeChanges closes the Changes channel unless it is already closed. Must
// be called with mu held.
func (a *Adapter) closeChanges() {
	if a.changes == nil || a.closed {
		return
	}
	a.closed = true
	close(a.changes.In())
}

// publish sends the current state to the Changes channel, if there is one.
// Must be called with mu held.
func (a *Adapter) publish() {
	if a.changes != nil && !a.closed {
		a.changes.In() <- a.snap
	}
}
