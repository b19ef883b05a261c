// Package cartsync mirrors the bot's authoritative cart into the host
// storefront's native cart. The sync is best-effort and one-way: it adds
// missing variants, never removes or decrements, and swallows every
// host-side error. The bot-side cart remains the transaction of record.
package cartsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
)

// HostCartItem is one line in the host storefront's native cart
type HostCartItem struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// HostCartSnapshot is the host cart's current contents
type HostCartSnapshot struct {
	Items []HostCartItem `json:"items"`
}

// VariantIDs returns the set of variants already present host-side
func (s *HostCartSnapshot) VariantIDs() map[string]bool {
	ids := make(map[string]bool)
	if s == nil {
		return ids
	}
	for _, item := range s.Items {
		ids[item.VariantID] = true
	}
	return ids
}

// HostCart accesses a host storefront's native cart endpoints
type HostCart interface {
	Fetch(ctx context.Context) (*HostCartSnapshot, error)
	Add(ctx context.Context, variantID string, quantity int) error
	Clear(ctx context.Context) error
}

// httpHostCart talks to the storefront cart endpoints
// (/cart.js, /cart/add.js, /cart/clear.js).
type httpHostCart struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.ChanneledLogger
}

// NewHostCart creates a host cart client rooted at the storefront origin
func NewHostCart(baseURL string, logger *logging.ChanneledLogger) HostCart {
	return &httpHostCart{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (h *httpHostCart) Fetch(ctx context.Context) (*HostCartSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/cart.js", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("host cart fetch: status %d", resp.StatusCode)
	}

	var snapshot HostCartSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("host cart fetch: %w", err)
	}
	return &snapshot, nil
}

func (h *httpHostCart) Add(ctx context.Context, variantID string, quantity int) error {
	payload, err := json.Marshal(map[string]interface{}{
		"id":       variantID,
		"quantity": quantity,
	})
	if err != nil {
		return err
	}
	return h.post(ctx, "/cart/add.js", payload)
}

func (h *httpHostCart) Clear(ctx context.Context) error {
	return h.post(ctx, "/cart/clear.js", nil)
}

func (h *httpHostCart) post(ctx context.Context, path string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("host cart %s: status %d", path, resp.StatusCode)
	}
	return nil
}
