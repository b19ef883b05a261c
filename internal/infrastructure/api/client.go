package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cenkalti/backoff/v4"
	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/pkg/config"
)

// Client talks to the collaborator backend API. It is safe for
// concurrent use; one instance serves a widget engine.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	logger        *logging.ChanneledLogger
	retryAttempts uint64
}

// NewClient creates a backend API client rooted at baseURL
func NewClient(baseURL string, logger *logging.ChanneledLogger) *Client {
	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{},
		logger:        logger,
		retryAttempts: uint64(config.APIRequestRetries),
	}
}

// WithHTTPClient overrides the underlying HTTP client. Tests use this to
// point at httptest servers or inject failing transports.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// GetWidgetConfig fetches the merchant's widget configuration
func (c *Client) GetWidgetConfig(ctx context.Context, merchantID string) (*widget.WidgetConfig, error) {
	var cfg widget.WidgetConfig
	path := "/widget/config?merchantId=" + url.QueryEscape(merchantID)
	if err := c.get(ctx, path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateSession requests a fresh session for the merchant
func (c *Client) CreateSession(ctx context.Context, merchantID, visitorID string) (*widget.Session, error) {
	var session widget.Session
	req := CreateSessionRequest{MerchantID: merchantID, VisitorID: visitorID}
	if err := c.do(ctx, http.MethodPost, "/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession validates a stored session id against the backend. A nil
// error means the session is still live and resumable.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*widget.Session, error) {
	var session widget.Session
	if err := c.get(ctx, "/sessions/"+url.PathEscape(sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// EndSession destroys a session server-side
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// SendMessage submits a visitor message and returns the bot reply
func (c *Client) SendMessage(ctx context.Context, sessionID, content string) (*SendMessageResult, error) {
	var result SendMessageResult
	req := SendMessageRequest{SessionID: sessionID, Content: content}
	if err := c.do(ctx, http.MethodPost, "/messages", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddCartItem adds a variant to the bot-side cart
func (c *Client) AddCartItem(ctx context.Context, sessionID, variantID string, quantity int) (*widget.Cart, error) {
	var cart widget.Cart
	req := CartItemRequest{SessionID: sessionID, VariantID: variantID, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, "/cart/items", req, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// RemoveCartItem removes a variant from the bot-side cart
func (c *Client) RemoveCartItem(ctx context.Context, sessionID, variantID string) (*widget.Cart, error) {
	var cart widget.Cart
	req := CartItemRequest{SessionID: sessionID, VariantID: variantID}
	if err := c.do(ctx, http.MethodDelete, "/cart/items", req, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// Checkout starts checkout with the authoritative bot cart total
func (c *Client) Checkout(ctx context.Context, sessionID string, total float64) (*CheckoutResult, error) {
	var result CheckoutResult
	req := CheckoutRequest{SessionID: sessionID, Total: total}
	if err := c.do(ctx, http.MethodPost, "/checkout", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RecordConsent transmits the visitor's persistence decision
func (c *Client) RecordConsent(ctx context.Context, sessionID, visitorID string, optIn bool) (*ConsentResult, error) {
	var result ConsentResult
	req := ConsentRequest{SessionID: sessionID, VisitorID: visitorID, OptIn: optIn}
	if err := c.do(ctx, http.MethodPost, "/consent", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ForgetPreferences wipes server-side preferences for a visitor
func (c *Client) ForgetPreferences(ctx context.Context, sessionID, visitorID string) error {
	req := ForgetRequest{SessionID: sessionID, VisitorID: visitorID}
	return c.do(ctx, http.MethodPost, "/consent/forget", req, nil)
}

// get performs an idempotent GET with bounded retry of transport-level
// failures. Application-level errors (any HTTP response) never retry
// here; retry of those is user-triggered through the engine.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	operation := func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if apiErr, ok := err.(*APIError); ok && apiErr.Status != 0 {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(config.APIRetryInterval), c.retryAttempts),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.API().Warn("Request transport failure", "method", method, "path", path, "error", err)
		}
		return &APIError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: 0, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb errorBody
		if err := json.Unmarshal(data, &eb); err == nil && eb.Message != "" {
			apiErr.Code = eb.ErrorCode
			apiErr.Message = eb.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
				apiErr.RetryAfter = secs
			}
		}
		if c.logger != nil {
			c.logger.API().Warn("Request failed", "method", method, "path", path,
				"status", resp.StatusCode, "code", apiErr.Code)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}

	wrapped := envelope{Data: out}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response envelope: %v", err)}
	}
	return nil
}
