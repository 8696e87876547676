// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"errors"
	"sync"
)

// pipeBuffer is the number of in-flight messages per direction of a Pipe.
const pipeBuffer = 64

// ErrEndpointClosed is returned by operations on a closed endpoint.
var ErrEndpointClosed = errors.New("endpoint closed")

type (
	// Endpoint is one side of a duplex message channel.
	Endpoint interface {
		// Send delivers msg to the peer.
		Send(ctx context.Context, msg Message) error
		// Receive blocks until the peer sends a message.
		Receive(ctx context.Context) (Message, error)
		// Close releases the endpoint. Both sides observe ErrEndpointClosed.
		Close() error
	}

	pipeEndpoint struct {
		in   <-chan Message
		out  chan<- Message
		done chan struct{}
		once *sync.Once
	}
)

// Pipe returns two connected in-process endpoints. Messages sent on one are
// received on the other, in order.
func Pipe() (Endpoint, Endpoint) {
	ab := make(chan Message, pipeBuffer)
	ba := make(chan Message, pipeBuffer)
	done := make(chan struct{})
	once := &sync.Once{}

	a := &pipeEndpoint{in: ba, out: ab, done: done, once: once}
	b := &pipeEndpoint{in: ab, out: ba, done: done, once: once}
	return a, b
}

func (p *pipeEndpoint) Send(ctx context.Context, msg Message) error {
	select {
	case <-p.done:
		return ErrEndpointClosed
	default:
	}

	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrEndpointClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEndpoint) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		// Drain what the peer sent before closing.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return nil, ErrEndpointClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEndpoint) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
