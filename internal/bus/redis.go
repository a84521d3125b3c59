package bus

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartmarks/smartmarks/internal/logger"
	"github.com/smartmarks/smartmarks/internal/model"
)

const syncChannel = "smartmarks:sync:v1"

// RedisBus fans collection updates out across processes via Redis pub/sub.
// Redis delivers a published message back to the publisher's own
// subscription, so every message carries an origin id and the receive loop
// drops the bus's own broadcasts.
type RedisBus struct {
	client *redis.Client
	origin string
	log    logger.Logger

	mu     sync.Mutex
	subs   map[int]func([]model.Bookmark)
	nextID int

	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// NewRedisBus connects to Redis and starts the receive loop.
func NewRedisBus(ctx context.Context, addr string, log logger.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	b := &RedisBus{
		client: client,
		origin: model.GenerateUUID(),
		log:    log,
		subs:   make(map[int]func([]model.Bookmark)),
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	b.cancel = loopCancel
	b.pubsub = client.Subscribe(loopCtx, syncChannel)
	go b.receive(loopCtx)

	log.Info("connected to redis sync channel", logger.String("addr", addr))
	return b, nil
}

// Publish broadcasts the collection on the sync channel.
// No subscribers anywhere is not an error.
func (b *RedisBus) Publish(ctx context.Context, bookmarks []model.Bookmark) error {
	payload, err := json.Marshal(message{
		Type:   messageTypeUpdate,
		Origin: b.origin,
		Data:   bookmarks,
	})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, syncChannel, payload).Err()
}

// Subscribe registers a callback for updates from other instances.
func (b *RedisBus) Subscribe(fn func([]model.Bookmark)) func() {
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

// Close stops the receive loop and releases the Redis connection.
func (b *RedisBus) Close() error {
	b.cancel()
	_ = b.pubsub.Close()
	return b.client.Close()
}

// receive decodes incoming messages and fans them out to local subscribers.
// Malformed payloads and unknown message types are dropped.
func (b *RedisBus) receive(ctx context.Context) {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var m message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.log.Warn("dropping malformed sync message", logger.Error(err))
				continue
			}
			if m.Type != messageTypeUpdate || m.Origin == b.origin {
				continue
			}

			b.mu.Lock()
			ids := make([]int, 0, len(b.subs))
			for id := range b.subs {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			fns := make([]func([]model.Bookmark), 0, len(ids))
			for _, id := range ids {
				fns = append(fns, b.subs[id])
			}
			b.mu.Unlock()

			for _, fn := range fns {
				fn(m.Data)
			}
		}
	}
}
