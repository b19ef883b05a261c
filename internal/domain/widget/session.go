package widget

import "time"

// Session is the server-tracked conversation context. Exactly one is
// active per widget instance; it is destroyed when the visitor explicitly
// ends the conversation or the widget unmounts.
type Session struct {
	SessionID      string    `json:"sessionId"`
	MerchantID     string    `json:"merchantId"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// Expired reports whether the session is past its server-issued expiry
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// WidgetConfig is the merchant-scoped configuration fetched on first
// activation. Theme values are passed through to the UI untouched.
type WidgetConfig struct {
	MerchantID     string            `json:"merchantId"`
	MerchantName   string            `json:"merchantName"`
	WelcomeMessage string            `json:"welcomeMessage"`
	Theme          map[string]string `json:"theme,omitempty"`
	ConsentPrompt  string            `json:"consentPrompt,omitempty"`
}
