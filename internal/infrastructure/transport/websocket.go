package transport

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/pkg/config"
)

// wsTransport is the primary bidirectional transport over a websocket
type wsTransport struct {
	conn      *websocket.Conn
	events    chan widget.Event
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// DialWebSocket opens the primary transport for a session
func DialWebSocket(ctx context.Context, rawURL, sessionID string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: config.TransportDialTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	t := &wsTransport{
		conn:   conn,
		events: make(chan widget.Event, 16),
	}
	go t.readPump()
	return t, nil
}

func (t *wsTransport) readPump() {
	defer close(t.events)
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		event, err := widget.DecodeEvent(raw)
		if err != nil {
			continue
		}
		t.events <- event
	}
}

func (t *wsTransport) Events() <-chan widget.Event { return t.events }

func (t *wsTransport) Bidirectional() bool { return true }

func (t *wsTransport) Send(event widget.Event) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(config.TransportWriteTimeout))
	return t.conn.WriteJSON(event)
}

func (t *wsTransport) Close(normal bool) {
	t.closeOnce.Do(func() {
		if normal {
			t.writeMu.Lock()
			t.conn.SetWriteDeadline(time.Now().Add(time.Second))
			t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			t.writeMu.Unlock()
		}
		t.conn.Close()
	})
}
