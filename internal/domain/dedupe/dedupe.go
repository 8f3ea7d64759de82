// Package dedupe tracks client request ids so that retried submissions are
// applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records request ids and the result bound to each of them.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Bind attaches the id of the created resource to a recorded request.
	Bind(ctx context.Context, id, result string)

	// Result returns the resource bound to id. ok is false while the request
	// is still in flight or when id is unknown.
	Result(ctx context.Context, id string) (result string, ok bool)

	// Unrecord forgets id so that a failed request can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type record struct {
	id     string
	result string
	bound  bool
}

// inMemoryDeduper keeps ids in insertion order and evicts the oldest once
// maxSize is reached. maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushBack(&record{id: id})
	return false
}

func (d *inMemoryDeduper) Bind(_ context.Context, id, result string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		rec := el.Value.(*record)
		rec.result = result
		rec.bound = true
	}
}

func (d *inMemoryDeduper) Result(_ context.Context, id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.seen[id]
	if !ok {
		return "", false
	}
	rec := el.Value.(*record)
	return rec.result, rec.bound
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(*record).id)
}

// Size returns the number of tracked ids.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
