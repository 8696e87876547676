// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteTimeout = time.Second

type wsEndpoint struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  sync.Once
}

// NewWebSocketEndpoint wraps an established websocket connection. Messages
// travel as JSON text frames. Concurrent Sends are serialized; Receive must
// be called from a single goroutine.
func NewWebSocketEndpoint(conn *websocket.Conn) Endpoint {
	return &wsEndpoint{conn: conn}
}

func (w *wsEndpoint) Send(ctx context.Context, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = w.conn.SetWriteDeadline(deadline)
		defer func() { _ = w.conn.SetWriteDeadline(time.Time{}) }()
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return w.translate(err)
	}
	return nil
}

func (w *wsEndpoint) Receive(ctx context.Context) (Message, error) {
	// Unblock the pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = w.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, w.translate(err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		return Decode(data)
	}
}

func (w *wsEndpoint) Close() error {
	var err error
	w.closed.Do(func() {
		w.writeMu.Lock()
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout),
		)
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

func (w *wsEndpoint) translate(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrEndpointClosed, err)
	}
	return err
}
