package bus

import (
	"context"
	"sort"
	"sync"

	"github.com/smartmarks/smartmarks/internal/model"
)

// MemoryHub is an in-process broadcast hub. Each logical instance joins the
// hub and gets its own Bus connection; a publish is delivered to the
// subscribers of every other connection, never back to the publisher's own.
type MemoryHub struct {
	mu    sync.Mutex
	conns map[*MemoryBus]struct{}
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{conns: make(map[*MemoryBus]struct{})}
}

// Join creates a new connection on the hub.
func (h *MemoryHub) Join() *MemoryBus {
	c := &MemoryBus{
		hub:  h,
		subs: make(map[int]func([]model.Bookmark)),
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// broadcast delivers to every connection except the origin, in publish
// order. Delivery runs on the publisher's goroutine, so callbacks must not
// publish back into the hub.
func (h *MemoryHub) broadcast(origin *MemoryBus, bookmarks []model.Bookmark) {
	h.mu.Lock()
	conns := make([]*MemoryBus, 0, len(h.conns))
	for c := range h.conns {
		if c != origin {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.deliver(bookmarks)
	}
}

// MemoryBus is one instance's connection to a MemoryHub.
type MemoryBus struct {
	hub    *MemoryHub
	mu     sync.Mutex
	subs   map[int]func([]model.Bookmark)
	nextID int
}

// Publish broadcasts the collection to every other connection on the hub.
func (b *MemoryBus) Publish(ctx context.Context, bookmarks []model.Bookmark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.hub.broadcast(b, bookmarks)
	return nil
}

// Subscribe registers a callback for broadcasts from other connections.
func (b *MemoryBus) Subscribe(fn func([]model.Bookmark)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Leave removes the connection from the hub.
func (b *MemoryBus) Leave() {
	b.hub.mu.Lock()
	delete(b.hub.conns, b)
	b.hub.mu.Unlock()
}

func (b *MemoryBus) deliver(bookmarks []model.Bookmark) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	// Invoke in registration order
	sort.Ints(ids)
	fns := make([]func([]model.Bookmark), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(bookmarks)
	}
}
