// Package widget provides domain entities and the state reducer for the
// embeddable chat widget engine. The reducer is the single source of UI
// truth; everything else in the engine dispatches actions into it.
package widget

import "time"

// Sender identifies who authored a transcript message
type Sender string

const (
	SenderUser     Sender = "user"
	SenderBot      Sender = "bot"
	SenderMerchant Sender = "merchant"
)

// DeliveryState tracks the lifecycle of an optimistic local message.
// Pending entries were appended before the backend confirmed them.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// Product represents a product card attached to a bot message
type Product struct {
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// Message is a single transcript entry. Messages are appended in local
// receipt order and never mutated or removed; server timestamps are
// informational only and must not reorder the transcript.
type Message struct {
	MessageID   string        `json:"messageId"`
	Content     string        `json:"content"`
	Sender      Sender        `json:"sender"`
	CreatedAt   time.Time     `json:"createdAt"`
	Products    []Product     `json:"products,omitempty"`
	Cart        *Cart         `json:"cart,omitempty"`
	CheckoutURL string        `json:"checkoutUrl,omitempty"`
	Intent      string        `json:"intent,omitempty"`
	Confidence  float64       `json:"confidence,omitempty"`
	Delivery    DeliveryState `json:"delivery,omitempty"`
}
