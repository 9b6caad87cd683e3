package fleetstore

import (
	"context"
	"slices"
	"sync"

	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/metrics"
)

type settings struct {
	log        *logger.Logger
	staleGuard bool
}

type Option func(*settings)

func WithLogger(l *logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStaleFetchGuard toggles discarding of superseded fetch responses.
// With the guard off, overlapping fetches resolve last-writer-wins.
func WithStaleFetchGuard(on bool) Option {
	return func(s *settings) { s.staleGuard = on }
}

// Collection is an ordered in-memory cache of entities with at most one
// entry per key. Entries enter only through FetchAll and the typed stores'
// create path; push updates can only refresh existing entries.
type Collection[K comparable, T any] struct {
	name  string
	keyOf func(T) K
	log   *logger.Logger
	guard bool

	mu       sync.RWMutex
	items    []T
	issued   uint64 // generation of the latest issued fetch
	inflight int
	lastErr  string
}

func NewCollection[K comparable, T any](name string, keyOf func(T) K, opts ...Option) *Collection[K, T] {
	s := settings{log: logger.Discard(), staleGuard: true}
	for _, opt := range opts {
		opt(&s)
	}
	return &Collection[K, T]{name: name, keyOf: keyOf, log: s.log, guard: s.staleGuard}
}

// FetchAll loads a full snapshot and overwrites the collection with it.
// On failure the contents stay as they were and the error is recorded.
func (c *Collection[K, T]) FetchAll(ctx context.Context, load func(context.Context) ([]T, error)) error {
	c.mu.Lock()
	c.issued++
	gen := c.issued
	c.inflight++
	c.lastErr = ""
	c.mu.Unlock()

	items, err := load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	superseded := c.guard && gen != c.issued
	if superseded {
		metrics.Fetches.WithLabelValues(c.name, metrics.OutcomeSuperseded).Inc()
		c.log.Info(ctx, "fetch_superseded", "discarding response of an older fetch", map[string]any{
			"collection": c.name, "generation": gen, "latest": c.issued, "failed": err != nil,
		})
		return err
	}

	if err != nil {
		c.lastErr = err.Error()
		metrics.Fetches.WithLabelValues(c.name, metrics.OutcomeError).Inc()
		c.log.Error(ctx, "fetch_failed", "failed to fetch "+c.name, err, nil)
		return err
	}

	c.items = slices.Clone(items)
	metrics.Fetches.WithLabelValues(c.name, metrics.OutcomeOK).Inc()
	c.log.Debug(ctx, "fetch_applied", "snapshot replaced "+c.name, map[string]any{
		"count": len(items), "generation": gen,
	})
	return nil
}

// ApplyUpdate replaces the entry with the same key in place. An update for
// an unknown key is dropped. It reports whether the update was applied.
func (c *Collection[K, T]) ApplyUpdate(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(c.keyOf(item))
	if i < 0 {
		metrics.UpdatesDropped.WithLabelValues(c.name).Inc()
		return false
	}
	c.items[i] = item
	metrics.UpdatesApplied.WithLabelValues(c.name).Inc()
	return true
}

// Snapshot returns a copy of the current sequence.
func (c *Collection[K, T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

func (c *Collection[K, T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Count returns how many entries satisfy pred.
func (c *Collection[K, T]) Count(pred func(T) bool) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		if pred(it) {
			n++
		}
	}
	return n
}

func (c *Collection[K, T]) Get(key K) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(key); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Busy reports whether a fetch is in flight.
func (c *Collection[K, T]) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// LastError returns the message of the most recent failure, or "".
func (c *Collection[K, T]) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Generation returns the number of fetches issued so far.
func (c *Collection[K, T]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.issued
}

func (c *Collection[K, T]) indexLocked(key K) int {
	return slices.IndexFunc(c.items, func(it T) bool { return c.keyOf(it) == key })
}

// insert appends item, or replaces the entry with the same key.
func (c *Collection[K, T]) insert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(c.keyOf(item)); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

func (c *Collection[K, T]) replace(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(c.keyOf(item)); i >= 0 {
		c.items[i] = item
		return true
	}
	return false
}

func (c *Collection[K, T]) remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(key)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

func (c *Collection[K, T]) patch(key K, fn func(*T)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(key)
	if i < 0 {
		return false
	}
	fn(&c.items[i])
	return true
}

// fail records err in the last-error slot and returns it.
func (c *Collection[K, T]) fail(ctx context.Context, action string, err error) error {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.log.Error(ctx, action, c.name+" operation failed", err, nil)
	return err
}
