package channel

import (
	"context"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

const defaultReadLimit = 1 << 20

// WebSocketDialer opens ws:// and wss:// links.
type WebSocketDialer struct {
	// Header is sent with the handshake, e.g. Authorization.
	Header http.Header
	// ReadLimit caps a single inbound frame. Zero means 1 MiB.
	ReadLimit int64
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: d.Header})
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck
	}
	if err != nil {
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	c.SetReadLimit(limit)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

// Read returns the next text frame. A binary frame yields an ErrDecode error
// and leaves the link usable.
func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	typ, data, err := w.c.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("%w: %s frame of %d bytes", ErrDecode, typ, len(data))
	}
	return data, nil
}

func (w *wsConn) Write(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
