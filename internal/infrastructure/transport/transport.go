// Package transport maintains the widget's realtime connection to the
// backend. A Manager owns at most one live transport per session,
// reports status transitions, and delivers normalized events to the
// engine regardless of which transport produced them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
)

// Kind selects the realtime delivery channel
type Kind string

const (
	// KindWebSocket is the primary bidirectional transport
	KindWebSocket Kind = "websocket"
	// KindSSE is the unidirectional fallback transport
	KindSSE Kind = "sse"
)

// ErrSendUnsupported is returned by one-directional transports
var ErrSendUnsupported = errors.New("transport does not support client sends")

// Transport is one live realtime channel. Events is closed when the
// connection dies for any reason; Close tears it down deliberately.
type Transport interface {
	// Events delivers inbound events already normalized to the widget
	// event shape, nested envelopes unwrapped.
	Events() <-chan widget.Event
	// Send writes an event to the server. One-directional transports
	// return ErrSendUnsupported.
	Send(event widget.Event) error
	// Bidirectional reports whether Send works; heartbeat runs only on
	// bidirectional transports.
	Bidirectional() bool
	// Close shuts the transport. normal selects a clean closure code.
	Close(normal bool)
}

// Dialer opens a transport for a session. Implementations must not
// retain ctx beyond the dial itself.
type Dialer func(ctx context.Context, rawURL, sessionID string) (Transport, error)

// EndpointURL derives the concrete endpoint for a transport kind from
// the configured realtime URL. The configured URL names the websocket
// route; the SSE fallback lives under its /sse sub-path and speaks
// plain HTTP, so selecting the fallback rewrites both scheme and path.
// An unparseable URL is returned as given and left for the dialer to
// reject.
func EndpointURL(kind Kind, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	switch kind {
	case KindSSE:
		switch u.Scheme {
		case "ws":
			u.Scheme = "http"
		case "wss":
			u.Scheme = "https"
		}
		if !strings.HasSuffix(u.Path, "/sse") {
			u.Path = strings.TrimSuffix(u.Path, "/") + "/sse"
		}
	case KindWebSocket:
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	}
	return u.String()
}

// DialerFor returns the dialer for a transport kind. An unsupported
// kind is the one construction failure callers must catch; the Manager
// treats it as an immediate terminal error status.
func DialerFor(kind Kind) (Dialer, error) {
	switch kind {
	case KindWebSocket:
		return DialWebSocket, nil
	case KindSSE:
		return DialSSE, nil
	default:
		return nil, fmt.Errorf("unsupported transport kind %q", kind)
	}
}
