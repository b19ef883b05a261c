// Package api implements the backend REST client consumed by the widget
// engine. Every successful response arrives in a {data: T} envelope;
// error responses carry {error_code, message}.
package api

import (
	"fmt"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
)

// APIError is a failed backend outcome. Status 0 means the request never
// produced an HTTP response (connectivity, DNS, CORS analogs); Code is
// the application error code when the backend supplied one. RetryAfter
// carries the Retry-After header in seconds when the backend rate
// limited the request.
type APIError struct {
	Status     int
	Code       int
	Message    string
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api error: status=%d code=%d %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d %s", e.Status, e.Message)
}

// Classify maps this error through the widget error classifier
func (e *APIError) Classify() widget.Classification {
	return widget.Classify(e.Status, e.Code)
}

type envelope struct {
	Data interface{} `json:"data"`
}

type errorBody struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// CreateSessionRequest is the payload for session creation. VisitorID is
// optional and correlates consent and personalization across sessions.
type CreateSessionRequest struct {
	MerchantID string `json:"merchantId"`
	VisitorID  string `json:"visitorId,omitempty"`
}

// SendMessageRequest is the payload for a visitor message
type SendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// SendMessageResult is the bot's reply plus the consent signal
type SendMessageResult struct {
	Message         widget.Message `json:"message"`
	ConsentRequired bool           `json:"consentRequired,omitempty"`
}

// CartItemRequest mutates one cart line
type CartItemRequest struct {
	SessionID string `json:"sessionId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity,omitempty"`
}

// CheckoutRequest starts checkout from the authoritative bot cart
type CheckoutRequest struct {
	SessionID string  `json:"sessionId"`
	Total     float64 `json:"total"`
}

// CheckoutResult carries the hosted checkout URL
type CheckoutResult struct {
	CheckoutURL string  `json:"checkoutUrl"`
	Total       float64 `json:"total"`
}

// ConsentRequest records the visitor's persistence decision
type ConsentRequest struct {
	SessionID string `json:"sessionId"`
	VisitorID string `json:"visitorId,omitempty"`
	OptIn     bool   `json:"optIn"`
}

// ConsentResult echoes the recorded state
type ConsentResult struct {
	Status widget.ConsentStatus `json:"status"`
}

// ForgetRequest wipes stored preferences for a visitor
type ForgetRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	VisitorID string `json:"visitorId"`
}
