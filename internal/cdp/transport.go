package cdp

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport carries raw protocol frames over a duplex channel. WriteFrame
// is safe for concurrent use; ReadFrame must be called from a single
// goroutine. Close unblocks any pending ReadFrame.
type Transport interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// maxFrameSize bounds inbound frames. DOM snapshots of heavy pages run to
// tens of megabytes.
const maxFrameSize = 64 << 20

type wsTransport struct {
	conn *websocket.Conn

	// gorilla/websocket permits at most one concurrent writer.
	writeMu sync.Mutex
}

// Dial opens a websocket transport to a debugger endpoint.
func Dial(ctx context.Context, wsURL string) (Transport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cdp: dial %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	conn.SetReadLimit(maxFrameSize)
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) WriteFrame(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
