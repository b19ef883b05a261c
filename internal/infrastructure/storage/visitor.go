package storage

import (
	"encoding/json"
	"time"

	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/security"
)

// visitorEnvelope is the durable-scope JSON layout for the visitor id
type visitorEnvelope struct {
	VisitorID string    `json:"visitorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// VisitorStore manages the long-lived anonymous visitor identifier used
// to correlate consent and personalization across sessions. Ids older
// than maxAge are treated as absent and regenerated on next use.
type VisitorStore struct {
	scope  Scope
	maxAge time.Duration
	now    func() time.Time
	logger *logging.ChanneledLogger
}

// NewVisitorStore creates a visitor store over the durable scope
func NewVisitorStore(scope Scope, maxAge time.Duration, logger *logging.ChanneledLogger) *VisitorStore {
	return &VisitorStore{scope: scope, maxAge: maxAge, now: time.Now, logger: logger}
}

// WithClock overrides the time source. Tests use this to age the id.
func (v *VisitorStore) WithClock(now func() time.Time) *VisitorStore {
	v.now = now
	return v
}

// Get returns the stored visitor id, or "" if absent, expired, or
// unreadable.
func (v *VisitorStore) Get() string {
	raw, ok := v.scope.Get(KeyVisitor)
	if !ok || raw == "" {
		return ""
	}
	var envelope visitorEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return ""
	}
	if envelope.VisitorID == "" {
		return ""
	}
	if v.now().Sub(envelope.CreatedAt) >= v.maxAge {
		if v.logger != nil {
			v.logger.Storage().Debug("Visitor id expired",
				"visitorId", logging.SanitizeVisitorID(envelope.VisitorID),
				"age", v.now().Sub(envelope.CreatedAt))
		}
		return ""
	}
	return envelope.VisitorID
}

// GetOrCreate returns the stored visitor id, generating and persisting a
// fresh one when absent or expired. Persistence is best-effort: when the
// durable scope is unavailable the id still serves the current instance.
func (v *VisitorStore) GetOrCreate() string {
	if id := v.Get(); id != "" {
		return id
	}
	id := security.GenerateVisitorID()
	v.put(id)
	return id
}

// Forget removes the visitor id so the next use regenerates it. Called
// on explicit "forget me".
func (v *VisitorStore) Forget() {
	v.scope.Remove(KeyVisitor)
}

func (v *VisitorStore) put(id string) {
	data, err := json.Marshal(visitorEnvelope{VisitorID: id, CreatedAt: v.now()})
	if err != nil {
		return
	}
	v.scope.Set(KeyVisitor, string(data))
}
