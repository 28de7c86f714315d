package client

import (
	"sync"

	"github.com/google/uuid"
)

// entityCache holds the last applied copy of each entity of one type.
type entityCache[T any] struct {
	mu      sync.RWMutex
	kind    string
	items   map[uuid.UUID]T
	version func(T) int64
	seq     *Sequencer
	subs    []func(uuid.UUID)
	// removed holds the sequence number of the request that deleted an entity.
	removed map[uuid.UUID]uint64
}

func newEntityCache[T any](kind string, version func(T) int64) *entityCache[T] {
	return &entityCache[T]{
		kind:    kind,
		items:   make(map[uuid.UUID]T),
		removed: make(map[uuid.UUID]uint64),
		version: version,
		seq:     NewSequencer(),
	}
}

func (c *entityCache[T]) key(id uuid.UUID) string { return c.kind + ":" + id.String() }

func (c *entityCache[T]) get(id uuid.UUID) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

// begin issues the sequence number for a request about id.
func (c *entityCache[T]) begin(id uuid.UUID) uint64 {
	return c.seq.Next(c.key(id))
}

// apply stores v if seq is still the latest request for id and v is not
// older than the cached copy. A superseded response is still stored when its
// version is strictly newer than what the cache holds, so a committed change
// is not lost when the request that superseded it fails. Responses to
// requests issued before a delete never bring the entity back. It reports
// whether v was stored.
func (c *entityCache[T]) apply(id uuid.UUID, seq uint64, v T) bool {
	c.mu.Lock()
	if !c.accepts(id, seq, v) {
		c.mu.Unlock()
		return false
	}
	c.items[id] = v
	delete(c.removed, id)
	subs := append([]func(uuid.UUID){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(id)
	}
	return true
}

// accepts must be called with mu held.
func (c *entityCache[T]) accepts(id uuid.UUID, seq uint64, v T) bool {
	cur, cached := c.items[id]
	if c.seq.IsLatest(c.key(id), seq) {
		return !cached || c.version(v) >= c.version(cur)
	}
	if cached {
		return c.version(v) > c.version(cur)
	}
	if at, gone := c.removed[id]; gone {
		return seq > at
	}
	return true
}

func (c *entityCache[T]) remove(id uuid.UUID, seq uint64) bool {
	c.mu.Lock()
	if !c.seq.IsLatest(c.key(id), seq) {
		c.mu.Unlock()
		return false
	}
	c.removed[id] = seq
	delete(c.items, id)
	subs := append([]func(uuid.UUID){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(id)
	}
	return true
}

func (c *entityCache[T]) subscribe(fn func(uuid.UUID)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}
