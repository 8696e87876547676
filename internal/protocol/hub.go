// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultSendTimeout bounds how long Broadcast waits for one subscriber.
const DefaultSendTimeout = 5 * time.Second

type (
	// Hub fans engine events out to every subscribed endpoint.
	Hub struct {
		logger      *log.Logger
		sendTimeout time.Duration

		mu          sync.Mutex
		subscribers map[Endpoint]struct{}
	}

	// HubOption configures a Hub.
	HubOption func(*Hub)
)

// WithSendTimeout overrides DefaultSendTimeout. Non-positive values are ignored.
func WithSendTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.sendTimeout = d
		}
	}
}

// NewHub creates an empty Hub. A nil logger discards output.
func NewHub(logger *log.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := &Hub{
		logger:      logger,
		sendTimeout: DefaultSendTimeout,
		subscribers: make(map[Endpoint]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe adds ep to the broadcast set and returns a function removing it.
func (h *Hub) Subscribe(ep Endpoint) (unsubscribe func()) {
	h.mu.Lock()
	h.subscribers[ep] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subscribers, ep)
		h.mu.Unlock()
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast sends msg to every subscriber concurrently and returns once each
// send finished. A subscriber that fails, or does not accept the message
// within the send timeout, is dropped and closed so its session ends.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	h.mu.Lock()
	targets := make([]Endpoint, 0, len(h.subscribers))
	for ep := range h.subscribers {
		targets = append(targets, ep)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, ep := range targets {
		wg.Go(func() {
			sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
			defer cancel()
			if err := ep.Send(sendCtx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				h.logger.Warn("dropping subscriber", "type", msg.Type(), "error", err)
				h.mu.Lock()
				delete(h.subscribers, ep)
				h.mu.Unlock()
				_ = ep.Close()
			}
		})
	}
	wg.Wait()
}
