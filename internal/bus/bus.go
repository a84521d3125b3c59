// Package bus implements the cross-instance sync channel. Every running
// instance publishes its full bookmark collection after a write; all other
// instances receive it and refresh their in-memory view. The channel is
// ephemeral: no replay, no durability, and no delivery to instances that
// are not currently subscribed.
package bus

import (
	"context"

	"github.com/smartmarks/smartmarks/internal/model"
)

const messageTypeUpdate = "UPDATE"

// Bus is the publish/subscribe interface for bookmark-collection updates.
// It is injected into the controller so tests can use an in-process hub and
// production can fan out across processes.
type Bus interface {
	// Publish broadcasts the full collection to every other subscribed
	// instance. No subscribers is a silent no-op, not an error.
	Publish(ctx context.Context, bookmarks []model.Bookmark) error

	// Subscribe registers a callback invoked with the full collection
	// whenever another instance publishes. The returned function
	// deregisters the callback and is safe to call from teardown paths;
	// calling it more than once is harmless.
	Subscribe(fn func([]model.Bookmark)) func()
}

// message is the wire shape of a sync broadcast. Subscribers ignore any
// type other than UPDATE. Origin identifies the publishing instance so a
// broker that loops messages back can drop the publisher's own broadcast.
type message struct {
	Type   string           `json:"type"`
	Origin string           `json:"origin,omitempty"`
	Data   []model.Bookmark `json:"data"`
}
