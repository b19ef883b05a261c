// Package shopwidget is the embeddable entry point for the merchant
// conversational commerce widget. A host embeds exactly one widget per
// page; Mount wires the runtime, Init runs the session protocol, and the
// returned Widget exposes the conversational operations.
package shopwidget

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/hazlamahedich/shop-widget-go/internal/application/container"
	"github.com/hazlamahedich/shop-widget-go/internal/application/engine"
	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/transport"
)

// Version is the widget runtime version reported to hosts
const Version = "1.4.2"

// merchantIDPattern bounds accepted merchant identifiers
var merchantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Options configures a widget mount
type Options struct {
	// MerchantID identifies the storefront; required.
	MerchantID string

	// HostName is the embedding page's domain, used for storefront
	// cart compatibility detection. Optional.
	HostName string

	// APIBaseURL, RealtimeURL and StorefrontURL override the
	// environment-driven endpoints. Optional.
	APIBaseURL    string
	RealtimeURL   string
	StorefrontURL string

	// UseFallbackTransport forces the one-directional transport instead
	// of the default bidirectional one.
	UseFallbackTransport bool
}

// Widget is one mounted widget instance
type Widget struct {
	container *container.Container
	engine    *engine.Engine

	mu      sync.Mutex
	mounted bool
}

// Mount validates options and wires a widget instance. The instance is
// inert until Init.
func Mount(opts Options) (*Widget, error) {
	if !merchantIDPattern.MatchString(opts.MerchantID) {
		return nil, fmt.Errorf("invalid merchant id %q", opts.MerchantID)
	}

	kind := transport.KindWebSocket
	if opts.UseFallbackTransport {
		kind = transport.KindSSE
	}

	c := container.NewContainer(container.Options{
		MerchantID:    opts.MerchantID,
		HostName:      opts.HostName,
		APIBaseURL:    opts.APIBaseURL,
		RealtimeURL:   opts.RealtimeURL,
		StorefrontURL: opts.StorefrontURL,
		TransportKind: kind,
	})

	w := &Widget{container: c, engine: c.Engine, mounted: true}
	c.Logger.Startup().Info("Widget mounted",
		"merchantId", opts.MerchantID, "version", Version)
	return w, nil
}

// IsMounted reports whether the widget is still live
func (w *Widget) IsMounted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mounted
}

// Init runs the initialization protocol: configuration fetch, session
// resume-or-create, realtime connect.
func (w *Widget) Init(ctx context.Context) error {
	return w.engine.Init(ctx)
}

// Unmount tears the widget down. Safe to call more than once.
func (w *Widget) Unmount() {
	w.mu.Lock()
	if !w.mounted {
		w.mu.Unlock()
		return
	}
	w.mounted = false
	w.mu.Unlock()

	w.engine.Unmount()
	w.container.Shutdown()
}

// State returns a snapshot of the widget state
func (w *Widget) State() widget.State { return w.engine.State() }

// OnChange registers a state subscriber; it fires with a snapshot after
// every state transition.
func (w *Widget) OnChange(fn func(widget.State)) { w.engine.OnChange(fn) }

// Open shows the widget panel
func (w *Widget) Open() { w.engine.Open() }

// Close hides the widget panel
func (w *Widget) Close() { w.engine.Close() }

// SendMessage submits a visitor message
func (w *Widget) SendMessage(ctx context.Context, content string) error {
	return w.engine.SendMessage(ctx, content)
}

// AddToCart adds a product variant to the cart
func (w *Widget) AddToCart(ctx context.Context, variantID string, quantity int) error {
	return w.engine.AddToCart(ctx, variantID, quantity)
}

// RemoveFromCart removes a product variant from the cart
func (w *Widget) RemoveFromCart(ctx context.Context, variantID string) error {
	return w.engine.RemoveFromCart(ctx, variantID)
}

// Checkout starts checkout and returns the hosted checkout URL
func (w *Widget) Checkout(ctx context.Context) (string, error) {
	return w.engine.Checkout(ctx)
}

// RecordConsent submits the visitor's conversation persistence decision
func (w *Widget) RecordConsent(ctx context.Context, optIn bool) error {
	return w.engine.RecordConsent(ctx, optIn)
}

// ForgetPreferences wipes the visitor's stored preferences
func (w *Widget) ForgetPreferences(ctx context.Context) error {
	return w.engine.ForgetPreferences(ctx)
}

// RetryLastAction replays the most recent failed operation
func (w *Widget) RetryLastAction(ctx context.Context) error {
	return w.engine.RetryLastAction(ctx)
}

// DismissError marks one surfaced error dismissed
func (w *Widget) DismissError(id string) { w.engine.DismissError(id) }

// End terminates the conversation and destroys the session server-side
func (w *Widget) End(ctx context.Context) error {
	return w.engine.End(ctx)
}
