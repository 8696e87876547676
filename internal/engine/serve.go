// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/invowk/hotswap/internal/protocol"
)

// Serve subscribes ep to engine events and answers its requests until ctx
// ends or the peer goes away. Requests from one endpoint are handled in
// arrival order.
func (e *Engine) Serve(ctx context.Context, ep protocol.Endpoint) error {
	unsubscribe := e.hub.Subscribe(ep)
	defer unsubscribe()

	for {
		msg, err := ep.Receive(ctx)
		if err != nil {
			if errors.Is(err, protocol.ErrEndpointClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("engine: receive: %w", err)
		}

		reply, ok := e.answer(ctx, msg)
		if !ok {
			e.logger.Debug("ignoring message", "type", msg.Type())
			continue
		}
		if err := ep.Send(ctx, reply); err != nil {
			if errors.Is(err, protocol.ErrEndpointClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("engine: reply to %s: %w", msg.Type(), err)
		}
	}
}

// answer builds the reply to a request message.
func (e *Engine) answer(ctx context.Context, msg protocol.Message) (protocol.Message, bool) {
	switch m := msg.(type) {
	case protocol.DumpRequest:
		return protocol.Dump{ID: m.ID, Dump: e.Dump()}, true

	case protocol.AddRoot:
		return errorReply(m.ID, e.AddRoot(ctx, m.Path)), true

	case protocol.AddDependency:
		err := e.AddDependency(ctx, Dependency{
			Parent:    m.Parent,
			Child:     m.Child,
			Specifier: m.Specifier,
			Boundary:  m.Boundary,
		})
		return errorReply(m.ID, err), true

	case protocol.GetVersion:
		v, err := e.Version(m.Path)
		if err != nil {
			return errorReply(m.ID, err), true
		}
		return protocol.Reply{ID: m.ID, Version: &v}, true

	case protocol.IsInsideGraph:
		inside := e.IsInsideGraph(m.Path)
		return protocol.Reply{ID: m.ID, InsideGraph: &inside}, true

	case protocol.Decline:
		return errorReply(m.ID, e.Decline(m.Path)), true

	default:
		return nil, false
	}
}

func errorReply(id string, err error) protocol.Reply {
	if err != nil {
		return protocol.Reply{ID: id, Error: err.Error()}
	}
	return protocol.Reply{ID: id}
}
