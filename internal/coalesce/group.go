// Package coalesce runs at most one computation per key at a time and keeps
// successful results in a bounded insertion-order cache.
//
// Callers arriving while a computation for their key is in flight wait for
// that computation instead of starting another. Results rejected by the
// group's Keep predicate, and errors, are handed to every waiter but never
// cached, so the next call for the same key computes again.
package coalesce

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// Outcome tells a caller how its result was produced.
type Outcome int

const (
	// Miss means this caller ran the computation.
	Miss Outcome = iota
	// Hit means the result came from the cache.
	Hit
	// Joined means the caller waited on another caller's computation.
	Joined
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Joined:
		return "joined"
	default:
		return "miss"
	}
}

// Options configures a Group.
type Options[V any] struct {
	// Capacity is the maximum number of cached entries. Zero disables
	// caching; the group then only coalesces in-flight calls.
	Capacity int
	// Keep reports whether a successful result may be cached.
	// Nil keeps every successful result.
	Keep func(V) bool
}

// Stats is a point-in-time snapshot of a Group.
type Stats struct {
	Entries    int    `json:"entries"`
	Capacity   int    `json:"capacity"`
	InFlight   int    `json:"inFlight"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Coalesced  uint64 `json:"coalesced"`
	Evictions  uint64 `json:"evictions"`
	Executions uint64 `json:"extractions"`
}

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// Group is safe for concurrent use. The zero value is not usable; call New.
type Group[K comparable, V any] struct {
	capacity int
	keep     func(V) bool

	mu       sync.Mutex
	entries  map[K]*list.Element // element value is *entry[K, V]
	order    *list.List          // front = oldest insertion
	inflight map[K]*call[V]
	stats    Stats
}

// New creates a Group.
func New[K comparable, V any](opts Options[V]) *Group[K, V] {
	capacity := opts.Capacity
	if capacity < 0 {
		capacity = 0
	}
	return &Group[K, V]{
		capacity: capacity,
		keep:     opts.Keep,
		entries:  make(map[K]*list.Element),
		order:    list.New(),
		inflight: make(map[K]*call[V]),
	}
}

// Do returns the cached value for key, or joins the in-flight computation
// for key, or runs fn. fn runs at most once per key at any moment.
//
// ctx only bounds how long this caller waits on someone else's computation;
// it never cancels fn, so other waiters still receive the result.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, Outcome, error) {
	g.mu.Lock()
	if el, ok := g.entries[key]; ok {
		g.stats.Hits++
		v := el.Value.(*entry[K, V]).val
		g.mu.Unlock()
		return v, Hit, nil
	}
	if c, ok := g.inflight[key]; ok {
		g.stats.Coalesced++
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, Joined, c.err
		case <-ctx.Done():
			var zero V
			return zero, Joined, ctx.Err()
		}
	}
	c := &call[V]{done: make(chan struct{})}
	g.inflight[key] = c
	g.stats.Misses++
	g.stats.Executions++
	g.mu.Unlock()

	g.run(c, fn)

	g.mu.Lock()
	delete(g.inflight, key)
	if c.err == nil && (g.keep == nil || g.keep(c.val)) {
		g.store(key, c.val)
	}
	g.mu.Unlock()
	close(c.done)

	return c.val, Miss, c.err
}

// run executes fn, turning a panic into an error so waiters are released.
func (g *Group[K, V]) run(c *call[V], fn func() (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("coalesce: computation panicked: %v", r)
		}
	}()
	c.val, c.err = fn()
}

// store must be called with g.mu held.
func (g *Group[K, V]) store(key K, val V) {
	if g.capacity == 0 {
		return
	}
	if el, ok := g.entries[key]; ok {
		el.Value.(*entry[K, V]).val = val
		return
	}
	for g.order.Len() >= g.capacity {
		oldest := g.order.Front()
		g.order.Remove(oldest)
		delete(g.entries, oldest.Value.(*entry[K, V]).key)
		g.stats.Evictions++
	}
	g.entries[key] = g.order.PushBack(&entry[K, V]{key: key, val: val})
}

// Get returns the cached value for key without computing anything.
func (g *Group[K, V]) Get(key K) (V, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if el, ok := g.entries[key]; ok {
		return el.Value.(*entry[K, V]).val, true
	}
	var zero V
	return zero, false
}

// Clear drops every cached entry. In-flight computations are unaffected.
func (g *Group[K, V]) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = make(map[K]*list.Element)
	g.order.Init()
}

// Stats returns a snapshot of the group's counters.
func (g *Group[K, V]) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stats
	s.Entries = len(g.entries)
	s.Capacity = g.capacity
	s.InFlight = len(g.inflight)
	return s
}
