package transport

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
)

// sseTransport is the fallback one-directional transport over a
// server-sent event stream. Same reconnect contract as the websocket
// transport, no heartbeat requirement.
type sseTransport struct {
	cancel    context.CancelFunc
	events    chan widget.Event
	closeOnce sync.Once
}

// DialSSE opens the fallback transport for a session
func DialSSE(ctx context.Context, rawURL, sessionID string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()

	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("event stream refused: status %d", resp.StatusCode)
	}

	t := &sseTransport{
		cancel: cancel,
		events: make(chan widget.Event, 16),
	}
	go t.readPump(resp)
	return t, nil
}

func (t *sseTransport) readPump(resp *http.Response) {
	defer close(t.events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			// Frame boundary: dispatch accumulated data.
			if data.Len() > 0 {
				if event, err := widget.DecodeEvent([]byte(data.String())); err == nil {
					t.events <- event
				}
				data.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// event:/id:/retry: fields and comments are ignored; the payload
		// itself carries the typed envelope.
	}
}

func (t *sseTransport) Events() <-chan widget.Event { return t.events }

func (t *sseTransport) Bidirectional() bool { return false }

func (t *sseTransport) Send(widget.Event) error { return ErrSendUnsupported }

func (t *sseTransport) Close(bool) {
	t.closeOnce.Do(t.cancel)
}
