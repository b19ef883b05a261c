// Package storage provides fail-soft key/value scopes for widget state.
// Two independent scopes exist: a session-lifetime scope holding the
// session and merchant ids, and a durable scope holding the visitor id
// envelope. A storage failure must never crash the rest of the engine,
// so every operation degrades to a zero value instead of erroring.
package storage

import (
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
)

// Persisted key layout. Each key has exactly one logical writer.
const (
	KeySessionID  = "chat_session_id"
	KeyMerchantID = "chat_merchant_id"
	KeyVisitor    = "chat_visitor"
)

// Scope is the contract every storage scope satisfies. Get reports
// (value, present); Set and Remove report success. Implementations never
// panic or return errors to callers.
type Scope interface {
	Get(key string) (string, bool)
	Set(key, value string) bool
	Remove(key string) bool
}

// failsoft wraps a backend scope so that a panicking or failing backend
// (privacy mode, quota, cross-origin restriction analogs) degrades to
// no-op results.
type failsoft struct {
	backend Scope
	logger  *logging.ChanneledLogger
}

// NewFailsoft wraps backend so its failures never propagate
func NewFailsoft(backend Scope, logger *logging.ChanneledLogger) Scope {
	return &failsoft{backend: backend, logger: logger}
}

func (f *failsoft) Get(key string) (value string, ok bool) {
	defer f.recover("get", key)
	return f.backend.Get(key)
}

func (f *failsoft) Set(key, value string) (ok bool) {
	defer f.recover("set", key)
	return f.backend.Set(key, value)
}

func (f *failsoft) Remove(key string) (ok bool) {
	defer f.recover("remove", key)
	return f.backend.Remove(key)
}

func (f *failsoft) recover(operation, key string) {
	if r := recover(); r != nil && f.logger != nil {
		f.logger.Storage().Debug("Storage backend failure degraded to no-op",
			"operation", operation, "key", key, "cause", r)
	}
}
