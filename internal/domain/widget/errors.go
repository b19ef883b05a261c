package widget

import "time"

// Category classifies what went wrong at the transport or domain level
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryTimeout    Category = "timeout"
	CategoryRateLimit  Category = "rate_limit"
	CategoryServer     Category = "server"
	CategoryAuth       Category = "auth"
	CategoryNotFound   Category = "not_found"
	CategoryValidation Category = "validation"
	CategoryCart       Category = "cart"
	CategoryCheckout   Category = "checkout"
	CategorySession    Category = "session"
	CategoryConfig     Category = "config"
	CategoryUnknown    Category = "unknown"
)

// Severity grades a widget error for UI presentation
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// WidgetError is a classified, user-surfaceable failure. Multiple may
// coexist; each is independently dismissible. Dismissing flips a flag
// rather than removing the entry so UI exit animations can complete.
type WidgetError struct {
	ID         string    `json:"id"`
	Category   Category  `json:"category"`
	Code       int       `json:"code,omitempty"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	Retryable  bool      `json:"retryable"`
	RetryAfter int       `json:"retryAfter,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Dismissed  bool      `json:"dismissed"`
}
