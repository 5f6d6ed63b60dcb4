// Package events fans committed species changes out to every open catalog
// view so each one re-fetches its list.
//
// Hub is the in-process fan-out. RedisRelay, when configured, carries the
// same changes between server instances over Redis pub/sub.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/species-catalog/internal/model"
)

// subscriberBuffer is per subscriber. A subscriber that falls this far
// behind misses changes, which is harmless: any one change is enough to
// trigger a full re-fetch.
const subscriberBuffer = 8

// Forwarder sends a locally committed change to other instances.
type Forwarder interface {
	Forward(ctx context.Context, change model.Change) error
}

// Hub broadcasts changes to local subscribers and, optionally, forwards
// them to other instances. It implements service.Publisher.
type Hub struct {
	logger *slog.Logger

	mu        sync.Mutex
	subs      map[chan model.Change]struct{}
	forwarder Forwarder
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   map[chan model.Change]struct{}{},
	}
}

// SetForwarder installs the cross-instance relay. Call before serving.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	h.forwarder = f
	h.mu.Unlock()
}

// Subscribe returns a channel of changes and a cancel func that must be
// called when the subscriber goes away. cancel closes the channel.
func (h *Hub) Subscribe() (<-chan model.Change, func()) {
	ch := make(chan model.Change, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish broadcasts a locally committed change and forwards it to other
// instances. Forwarding failures are logged, never returned: the change is
// already committed.
func (h *Hub) Publish(ctx context.Context, change model.Change) {
	h.Broadcast(change)

	h.mu.Lock()
	f := h.forwarder
	h.mu.Unlock()
	if f == nil {
		return
	}
	if err := f.Forward(ctx, change); err != nil {
		h.logger.Warn("failed to forward species change",
			slog.String("action", string(change.Action)),
			slog.String("speciesID", change.SpeciesID),
			slog.String("error", err.Error()),
		)
	}
}

// Broadcast delivers change to local subscribers only. It never blocks.
func (h *Hub) Broadcast(change model.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
