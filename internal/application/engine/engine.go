// Package engine hosts the session and event orchestrator: the single
// owner of widget state, the initialization protocol, and the glue
// between the backend API, the realtime transport, the cart sync bridge,
// and the consent machine. The UI layer talks to this package only.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/api"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/cartsync"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/security"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/storage"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/transport"
	"github.com/hazlamahedich/shop-widget-go/pkg/config"
)

// ConnManager is the slice of the connection manager the engine drives.
// Tests substitute fakes.
type ConnManager interface {
	Connect(ctx context.Context)
	Close()
	Status() widget.ConnectionStatus
}

// ConnFactory builds a connection manager for a session. The engine
// constructs one per active session, never sharing across instances.
type ConnFactory func(sessionID string, onEvent func(widget.Event), onStatus func(widget.ConnectionStatus)) ConnManager

// Options configures an engine instance
type Options struct {
	MerchantID string
	HostName   string

	RealtimeURL   string
	TransportKind transport.Kind

	// ConnFactory overrides realtime manager construction (tests)
	ConnFactory ConnFactory
}

// Engine owns the widget session lifecycle and the authoritative state.
// All state mutation goes through dispatch; collaborators never touch
// the state directly.
type Engine struct {
	opts    Options
	client  *api.Client
	scope   storage.Scope
	visitor *storage.VisitorStore
	bridge  *cartsync.Bridge
	logger  *logging.ChanneledLogger

	connFactory ConnFactory

	mu          sync.Mutex
	state       widget.State
	conn        ConnManager
	lastAction  *retainedAction
	subscribers []func(widget.State)

	// promptLatch survives "forget preferences": the consent prompt is
	// never re-shown within the same session once displayed.
	promptLatch     bool
	consentInFlight bool
}

// retainedAction is the last mutating operation, replayable with its
// original arguments via RetryLastAction.
type retainedAction struct {
	name string
	run  func(ctx context.Context) error
}

// New creates an engine. The engine is inert until Init.
func New(opts Options, client *api.Client, scope storage.Scope, visitor *storage.VisitorStore, bridge *cartsync.Bridge, logger *logging.ChanneledLogger) *Engine {
	if opts.RealtimeURL == "" {
		opts.RealtimeURL = config.RealtimeURL
	}
	if opts.TransportKind == "" {
		opts.TransportKind = transport.KindWebSocket
		if config.PreferFallbackTransport {
			opts.TransportKind = transport.KindSSE
		}
	}

	e := &Engine{
		opts:    opts,
		client:  client,
		scope:   scope,
		visitor: visitor,
		bridge:  bridge,
		logger:  logger,
		state:   widget.InitialState(),
	}
	e.connFactory = opts.ConnFactory
	if e.connFactory == nil {
		e.connFactory = e.defaultConnFactory
	}
	return e
}

func (e *Engine) defaultConnFactory(sessionID string, onEvent func(widget.Event), onStatus func(widget.ConnectionStatus)) ConnManager {
	return transport.NewManager(transport.ManagerOptions{
		URL:       transport.EndpointURL(e.opts.TransportKind, e.opts.RealtimeURL),
		SessionID: sessionID,
		Kind:      e.opts.TransportKind,
		OnEvent:   onEvent,
		OnStatus:  onStatus,
	}, e.logger)
}

// State returns a snapshot of the current widget state
func (e *Engine) State() widget.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// OnChange registers a subscriber notified with a state snapshot after
// every dispatch. The UI boundary.
func (e *Engine) OnChange(fn func(widget.State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// dispatch applies an action through the reducer and notifies
// subscribers with the resulting snapshot.
func (e *Engine) dispatch(action widget.Action) {
	e.mu.Lock()
	e.state = widget.Reduce(e.state, action)
	snapshot := e.state
	subscribers := make([]func(widget.State), len(e.subscribers))
	copy(subscribers, e.subscribers)
	e.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

// Init runs the initialization protocol: fetch widget configuration,
// resume-or-create the session (exactly one of the two), persist the
// session id, and start the realtime connection.
func (e *Engine) Init(ctx context.Context) error {
	e.retain("init", func(ctx context.Context) error { return e.Init(ctx) })

	e.dispatch(widget.SetLoading{Loading: true})
	defer e.dispatch(widget.SetLoading{Loading: false})

	cfg, err := e.client.GetWidgetConfig(ctx, e.opts.MerchantID)
	if err != nil {
		e.surfaceError("init", err)
		return err
	}
	e.dispatch(widget.SetConfig{Config: cfg})

	session, err := e.resumeOrCreate(ctx)
	if err != nil {
		e.surfaceError("init", err)
		return err
	}
	e.installSession(ctx, session)

	if cfg.WelcomeMessage != "" && len(e.State().Messages) == 0 {
		e.dispatch(widget.AddMessage{Message: widget.Message{
			MessageID: security.GenerateLocalMessageID(),
			Content:   cfg.WelcomeMessage,
			Sender:    widget.SenderBot,
			CreatedAt: time.Now(),
			Delivery:  widget.DeliveryConfirmed,
		}})
	}

	if e.logger != nil {
		e.logger.Session().Info("Widget engine initialized",
			"merchantId", e.opts.MerchantID,
			"sessionId", logging.SanitizeSessionID(session.SessionID))
	}
	return nil
}

// resumeOrCreate validates a stored session id against the backend and
// falls back to creating a fresh session. Only the path actually taken
// executes; a successful resume never also creates.
func (e *Engine) resumeOrCreate(ctx context.Context) (*widget.Session, error) {
	storedID, _ := e.scope.Get(storage.KeySessionID)
	storedMerchant, _ := e.scope.Get(storage.KeyMerchantID)

	if storedID != "" && storedMerchant == e.opts.MerchantID {
		if session, err := e.client.GetSession(ctx, storedID); err == nil {
			if e.logger != nil {
				e.logger.Session().Info("Session resumed",
					"sessionId", logging.SanitizeSessionID(storedID))
			}
			return session, nil
		}
		// Stored id rejected by the backend: discard and create fresh.
		e.scope.Remove(storage.KeySessionID)
	}

	visitorID := ""
	if e.visitor != nil {
		visitorID = e.visitor.GetOrCreate()
	}
	session, err := e.client.CreateSession(ctx, e.opts.MerchantID, visitorID)
	if err != nil {
		return nil, err
	}

	e.scope.Set(storage.KeySessionID, session.SessionID)
	e.scope.Set(storage.KeyMerchantID, e.opts.MerchantID)
	return session, nil
}

// installSession records the session and starts its realtime connection,
// replacing any previous manager.
func (e *Engine) installSession(ctx context.Context, session *widget.Session) {
	e.dispatch(widget.SetSession{Session: session})

	e.mu.Lock()
	if e.conn != nil {
		e.conn.Close()
	}
	conn := e.connFactory(session.SessionID, e.handleEvent, e.handleStatus)
	e.conn = conn
	e.mu.Unlock()

	go conn.Connect(ctx)
}

func (e *Engine) handleStatus(status widget.ConnectionStatus) {
	e.dispatch(widget.SetConnectionStatus{Status: status})
}

// handleEvent receives normalized realtime events. Heartbeat frames are
// already filtered by the connection manager.
func (e *Engine) handleEvent(event widget.Event) {
	switch event.Type {
	case widget.EventConnected:
		if e.logger != nil {
			e.logger.Transport().Debug("Realtime channel acknowledged")
		}
	case widget.EventMerchantMessage:
		msg, err := event.MerchantMessage()
		if err != nil {
			if e.logger != nil {
				e.logger.Transport().Warn("Dropping malformed merchant message", "error", err)
			}
			return
		}
		if msg.MessageID == "" {
			msg.MessageID = security.GenerateLocalMessageID()
		}
		msg.Delivery = widget.DeliveryConfirmed
		e.dispatch(widget.AddMessage{Message: msg})
		if msg.Cart != nil {
			e.applyCart(msg.Cart)
		}
	default:
		if e.logger != nil {
			e.logger.Transport().Debug("Ignoring unhandled realtime event", "type", string(event.Type))
		}
	}
}

// applyCart replaces the bot-side cart wholesale and hands the snapshot
// to the sync bridge. Bridge outcome never flows back.
func (e *Engine) applyCart(cart *widget.Cart) {
	e.dispatch(widget.SetCart{Cart: cart})
	if e.bridge != nil {
		e.bridge.Sync(cart)
	}
}

// End explicitly terminates the conversation: the session is destroyed
// server-side, session-scope storage is cleared, and state resets.
func (e *Engine) End(ctx context.Context) error {
	var endErr error
	if session := e.State().Session; session != nil {
		if err := e.client.EndSession(ctx, session.SessionID); err != nil {
			// The local teardown proceeds regardless; the server will
			// expire the session on its own.
			if e.logger != nil {
				e.logger.Session().Warn("End session call failed", "error", err)
			}
			endErr = err
		}
	}
	e.teardown()
	return endErr
}

// Unmount tears the engine down without a server round-trip
func (e *Engine) Unmount() {
	e.teardown()
	if e.logger != nil {
		e.logger.Shutdown().Info("Widget engine unmounted")
	}
}

func (e *Engine) teardown() {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.lastAction = nil
	e.promptLatch = false
	e.consentInFlight = false
	e.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	e.scope.Remove(storage.KeySessionID)
	e.scope.Remove(storage.KeyMerchantID)
	e.dispatch(widget.Reset{})
}

// Open marks the widget panel open
func (e *Engine) Open() { e.dispatch(widget.OpenWidget{}) }

// Close marks the widget panel closed
func (e *Engine) Close() { e.dispatch(widget.CloseWidget{}) }

// DismissError flips one widget error's dismissed flag
func (e *Engine) DismissError(id string) {
	e.dispatch(widget.DismissWidgetError{ID: id})
}

// ClearErrors empties the error list
func (e *Engine) ClearErrors() {
	e.dispatch(widget.ClearWidgetErrors{})
}

func (e *Engine) retain(name string, run func(ctx context.Context) error) {
	e.mu.Lock()
	e.lastAction = &retainedAction{name: name, run: run}
	e.mu.Unlock()
}

// surfaceError classifies a failure and appends it to the error list
// alongside the short-lived error string. Both are independently
// dismissible by the UI.
func (e *Engine) surfaceError(operation string, err error) {
	cls := classifyError(err)
	widgetErr := widget.WidgetError{
		ID:        security.GenerateULID(),
		Category:  cls.Category,
		Severity:  cls.Severity,
		Message:   cls.UserMessage(),
		Detail:    err.Error(),
		Retryable: cls.Retryable,
		Timestamp: time.Now(),
	}
	if apiErr, ok := err.(*api.APIError); ok {
		widgetErr.Code = apiErr.Code
		widgetErr.RetryAfter = apiErr.RetryAfter
	}

	e.dispatch(widget.AddWidgetError{Error: widgetErr})
	e.dispatch(widget.SetError{Err: widgetErr.Message})

	if e.logger != nil {
		e.logger.LogError(logging.ChannelSession, operation, err, map[string]any{
			"category":  string(cls.Category),
			"retryable": cls.Retryable,
		})
	}
}

func classifyError(err error) widget.Classification {
	if apiErr, ok := err.(*api.APIError); ok {
		return apiErr.Classify()
	}
	// Anything that never produced an HTTP response is a network-class
	// failure (connectivity, cancellation, DNS).
	return widget.Classify(0, 0)
}
