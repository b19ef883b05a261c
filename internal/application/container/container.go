// Package container provides dependency injection for the widget runtime
package container

import (
	"github.com/hazlamahedich/shop-widget-go/internal/application/engine"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/api"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/cartsync"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/storage"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/transport"
	"github.com/hazlamahedich/shop-widget-go/pkg/config"
)

// Options selects the collaborators a widget instance binds to. Zero
// values fall back to the environment-driven defaults.
type Options struct {
	MerchantID string
	HostName   string

	APIBaseURL    string
	RealtimeURL   string
	StorefrontURL string
	TransportKind transport.Kind
}

// Container holds the wired singletons behind one widget instance
type Container struct {
	Logger *logging.ChanneledLogger

	// SessionScope lives for one widget instance; DurableScope survives
	// across instances on the same machine.
	SessionScope storage.Scope
	DurableScope storage.Scope
	VisitorStore *storage.VisitorStore

	APIClient *api.Client
	Bridge    *cartsync.Bridge
	Engine    *engine.Engine
}

// NewContainer creates and wires all widget runtime dependencies
func NewContainer(opts Options) *Container {
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = config.APIBaseURL
	}
	if opts.RealtimeURL == "" {
		opts.RealtimeURL = config.RealtimeURL
	}
	if opts.StorefrontURL == "" {
		opts.StorefrontURL = config.StorefrontHost
	}

	logger, err := logging.NewChanneledLogger(nil)
	if err != nil {
		// Logging must never block mounting the widget.
		logger = logging.NewDiscardLogger()
	}

	sessionScope := storage.NewFailsoft(storage.NewMemoryScope(), logger)
	durableScope := storage.NewFailsoft(storage.NewFileScope(config.StateDirectory, logger), logger)
	visitorStore := storage.NewVisitorStore(durableScope, config.VisitorMaxAge, logger)

	apiClient := api.NewClient(opts.APIBaseURL, logger)

	hostCart := cartsync.NewHostCart(opts.StorefrontURL, logger)
	detector := cartsync.NewDetector(opts.HostName)
	bridge := cartsync.NewBridge(hostCart, detector, opts.HostName, config.CartSyncQueueDepth, logger)

	eng := engine.New(engine.Options{
		MerchantID:    opts.MerchantID,
		HostName:      opts.HostName,
		RealtimeURL:   opts.RealtimeURL,
		TransportKind: opts.TransportKind,
	}, apiClient, sessionScope, visitorStore, bridge, logger)

	return &Container{
		Logger:       logger,
		SessionScope: sessionScope,
		DurableScope: durableScope,
		VisitorStore: visitorStore,
		APIClient:    apiClient,
		Bridge:       bridge,
		Engine:       eng,
	}
}

// Shutdown releases background workers. The engine's own teardown is
// driven separately through Unmount or End.
func (c *Container) Shutdown() {
	if c.Bridge != nil {
		c.Bridge.Close()
	}
}
