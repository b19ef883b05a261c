package sandbox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/pkg/config"
)

// Broadcaster manages session-scoped realtime clients over both the
// websocket and SSE surfaces. Sends are non-blocking; a slow client
// drops events rather than stalling the broadcaster.
type Broadcaster struct {
	sessions map[string][]chan widget.Event
	mu       sync.Mutex
	logger   *logging.ChanneledLogger
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster(logger *logging.ChanneledLogger) *Broadcaster {
	return &Broadcaster{
		sessions: make(map[string][]chan widget.Event),
		logger:   logger,
	}
}

// AddClient registers a realtime client for a session
func (b *Broadcaster) AddClient(sessionID string) chan widget.Event {
	ch := make(chan widget.Event, 10)
	b.mu.Lock()
	b.sessions[sessionID] = append(b.sessions[sessionID], ch)
	b.mu.Unlock()
	if b.logger != nil {
		b.logger.Transport().Debug("Realtime client registered",
			"sessionId", logging.SanitizeSessionID(sessionID))
	}
	return ch
}

// RemoveClient unregisters a realtime client
func (b *Broadcaster) RemoveClient(sessionID string, ch chan widget.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	clients := b.sessions[sessionID]
	next := make([]chan widget.Event, 0, len(clients))
	for _, client := range clients {
		if client != ch {
			next = append(next, client)
		}
	}
	if len(next) == 0 {
		delete(b.sessions, sessionID)
	} else {
		b.sessions[sessionID] = next
	}
}

// BroadcastMerchantMessage pushes a merchant reply to every client of a
// session, double-wrapped the way the production event bus emits it, and
// reports how many clients received it.
func (b *Broadcaster) BroadcastMerchantMessage(sessionID string, msg widget.Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0
	}
	inner, err := json.Marshal(widget.Event{Type: widget.EventMerchantMessage, Data: payload})
	if err != nil {
		return 0
	}
	event := widget.Event{Type: widget.EventMerchantMessage, Data: inner}

	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for _, ch := range b.sessions[sessionID] {
		select {
		case ch <- event:
			delivered++
		default:
			if b.logger != nil {
				b.logger.Transport().Warn("Realtime channel full, event dropped",
					"sessionId", logging.SanitizeSessionID(sessionID))
			}
		}
	}
	return delivered
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// HandleWebSocket serves the primary realtime transport. The server
// sends periodic application-level pings; clients are expected to reply
// with pongs and to send their own pings, which get ponged back.
func (b *Broadcaster) HandleWebSocket(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("sessionId")
		if _, ok := store.GetSession(sessionID); !ok {
			c.Status(http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ch := b.AddClient(sessionID)
		defer b.RemoveClient(sessionID, ch)

		if err := conn.WriteJSON(widget.Event{Type: widget.EventConnected}); err != nil {
			return
		}

		done := make(chan struct{})
		pings := make(chan struct{}, 4)

		// Reader: surface client pings to the writer loop, exit on close.
		// All writes happen on the select loop below; gorilla connections
		// allow only one concurrent writer.
		go func() {
			defer close(done)
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				event, err := widget.DecodeEvent(raw)
				if err != nil {
					continue
				}
				if event.Type == widget.EventPing {
					select {
					case pings <- struct{}{}:
					default:
					}
				}
			}
		}()

		ticker := time.NewTicker(time.Duration(config.SSEHeartbeatSeconds) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-pings:
				if err := conn.WriteJSON(widget.Event{Type: widget.EventPong}); err != nil {
					return
				}
			case event := <-ch:
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteJSON(widget.Event{Type: widget.EventPing}); err != nil {
					return
				}
			}
		}
	}
}

// HandleSSE serves the fallback one-directional transport
func (b *Broadcaster) HandleSSE(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("sessionId")
		if _, ok := store.GetSession(sessionID); !ok {
			c.Status(http.StatusUnauthorized)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}

		ch := b.AddClient(sessionID)
		defer b.RemoveClient(sessionID, ch)

		writeEvent := func(event widget.Event) bool {
			data, err := json.Marshal(event)
			if err != nil {
				return true
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}

		if !writeEvent(widget.Event{Type: widget.EventConnected}) {
			return
		}

		ticker := time.NewTicker(time.Duration(config.SSEHeartbeatSeconds) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case event := <-ch:
				if !writeEvent(event) {
					return
				}
			case <-ticker.C:
				// Comment line keeps intermediaries from timing the
				// stream out; clients ignore it.
				if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
