// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/invowk/hotswap/internal/graph"

	"github.com/google/uuid"
)

const eventBuffer = 64

// ErrClientClosed is returned for requests pending when the client stops.
var ErrClientClosed = errors.New("client closed")

type (
	// RemoteError carries the error text of a failed Reply.
	RemoteError struct {
		Message string
	}

	// UnexpectedReplyError is returned when a request is answered with the
	// wrong message type.
	UnexpectedReplyError struct {
		Want Type
		Got  Type
	}

	// Client is the host or loader side of an engine connection. Run must be
	// active for requests to complete.
	Client struct {
		ep     Endpoint
		events chan Message

		mu      sync.Mutex
		pending map[string]chan Message
		closed  bool
	}
)

// Error implements the error interface for RemoteError.
func (e *RemoteError) Error() string { return e.Message }

// Error implements the error interface for UnexpectedReplyError.
func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("unexpected reply: want %s, got %s", e.Want, e.Got)
}

// NewID returns a fresh request id.
func NewID() string { return uuid.NewString() }

// NewClient creates a Client over ep.
func NewClient(ep Endpoint) *Client {
	return &Client{
		ep:      ep,
		events:  make(chan Message, eventBuffer),
		pending: make(map[string]chan Message),
	}
}

// Events returns engine notifications that are not replies. The channel is
// closed when Run returns.
func (c *Client) Events() <-chan Message { return c.events }

// Run reads from the endpoint until ctx ends or the endpoint fails, routing
// replies to their pending request and everything else to Events.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	defer c.failPending()

	for {
		msg, err := c.ep.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrEndpointClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("client receive: %w", err)
		}

		if id, ok := replyID(msg); ok {
			c.mu.Lock()
			ch, found := c.pending[id]
			delete(c.pending, id)
			c.mu.Unlock()
			if found {
				ch <- msg
				continue
			}
		}

		select {
		case c.events <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

// Request sends req and waits for the reply carrying the same id.
func (c *Client) Request(ctx context.Context, req Request) (Message, error) {
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[req.RequestID()] = ch
	c.mu.Unlock()

	if err := c.ep.Send(ctx, req); err != nil {
		c.forget(req.RequestID())
		return nil, fmt.Errorf("send %s: %w", req.Type(), err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		return msg, nil
	case <-ctx.Done():
		c.forget(req.RequestID())
		return nil, ctx.Err()
	}
}

// Dump requests a graph snapshot.
func (c *Client) Dump(ctx context.Context) ([]graph.DumpNode, error) {
	msg, err := c.Request(ctx, DumpRequest{ID: NewID()})
	if err != nil {
		return nil, err
	}
	dump, ok := msg.(Dump)
	if !ok {
		return nil, &UnexpectedReplyError{Want: TypeDump, Got: msg.Type()}
	}
	return dump.Dump, nil
}

// AddRoot registers the host entry point.
func (c *Client) AddRoot(ctx context.Context, path string) error {
	_, err := c.reply(ctx, AddRoot{ID: NewID(), Path: path})
	return err
}

// AddDependency records an import edge.
func (c *Client) AddDependency(ctx context.Context, parent, child, specifier string, boundary bool) error {
	_, err := c.reply(ctx, AddDependency{
		ID:        NewID(),
		Parent:    parent,
		Child:     child,
		Specifier: specifier,
		Boundary:  boundary,
	})
	return err
}

// Version returns the current version of path.
func (c *Client) Version(ctx context.Context, path string) (int, error) {
	r, err := c.reply(ctx, GetVersion{ID: NewID(), Path: path})
	if err != nil {
		return 0, err
	}
	if r.Version == nil {
		return 0, &UnexpectedReplyError{Want: TypeReply, Got: r.Type()}
	}
	return *r.Version, nil
}

// IsInsideGraph reports whether path is tracked by the engine.
func (c *Client) IsInsideGraph(ctx context.Context, path string) (bool, error) {
	r, err := c.reply(ctx, IsInsideGraph{ID: NewID(), Path: path})
	if err != nil {
		return false, err
	}
	return r.InsideGraph != nil && *r.InsideGraph, nil
}

// Decline marks path as non-swappable.
func (c *Client) Decline(ctx context.Context, path string) error {
	_, err := c.reply(ctx, Decline{ID: NewID(), Path: path})
	return err
}

// Close closes the endpoint and fails pending requests.
func (c *Client) Close() error {
	c.failPending()
	return c.ep.Close()
}

func (c *Client) reply(ctx context.Context, req Request) (Reply, error) {
	msg, err := c.Request(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	r, ok := msg.(Reply)
	if !ok {
		return Reply{}, &UnexpectedReplyError{Want: TypeReply, Got: msg.Type()}
	}
	if r.Error != "" {
		return r, &RemoteError{Message: r.Error}
	}
	return r, nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
