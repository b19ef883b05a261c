package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/api"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/sandbox"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/storage"
)

// fakeConn satisfies ConnManager without any real transport. When hold
// is non-nil Connect blocks in the connecting state until released.
type fakeConn struct {
	mu       sync.Mutex
	status   widget.ConnectionStatus
	closed   bool
	hold     chan struct{}
	onEvent  func(widget.Event)
	onStatus func(widget.ConnectionStatus)
}

func (f *fakeConn) Connect(context.Context) {
	f.mu.Lock()
	f.status = widget.StatusConnecting
	hold := f.hold
	onStatus := f.onStatus
	f.mu.Unlock()
	if onStatus != nil {
		onStatus(widget.StatusConnecting)
	}
	if hold != nil {
		<-hold
	}

	f.mu.Lock()
	f.status = widget.StatusConnected
	f.mu.Unlock()
	if onStatus != nil {
		onStatus(widget.StatusConnected)
	}
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.status = widget.StatusDisconnected
}

func (f *fakeConn) Status() widget.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeConn) push(event widget.Event) {
	f.mu.Lock()
	onEvent := f.onEvent
	f.mu.Unlock()
	if onEvent != nil {
		onEvent(event)
	}
}

type testRig struct {
	engine *Engine
	scope  storage.Scope
	client *api.Client
	hold   chan struct{}
	conns  []*fakeConn
	mu     sync.Mutex
}

func (r *testRig) lastConn() *fakeConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.conns) == 0 {
		return nil
	}
	return r.conns[len(r.conns)-1]
}

// newTestRig wires an engine against a live sandbox backend
func newTestRig(t *testing.T) *testRig {
	t.Helper()
	logger := logging.NewDiscardLogger()

	app := sandbox.NewApp("test-secret", time.Hour, logger)
	server := httptest.NewServer(app.Router())
	t.Cleanup(server.Close)

	return newTestRigWithURL(t, server.URL+"/api/v1")
}

func newTestRigWithURL(t *testing.T, baseURL string) *testRig {
	t.Helper()
	logger := logging.NewDiscardLogger()

	rig := &testRig{
		scope:  storage.NewMemoryScope(),
		client: api.NewClient(baseURL, logger),
	}
	visitor := storage.NewVisitorStore(storage.NewMemoryScope(), 13*30*24*time.Hour, logger)

	rig.engine = New(Options{
		MerchantID: "shop-1",
		HostName:   "shop-1.myshopify.com",
		ConnFactory: func(sessionID string, onEvent func(widget.Event), onStatus func(widget.ConnectionStatus)) ConnManager {
			conn := &fakeConn{hold: rig.hold, onEvent: onEvent, onStatus: onStatus}
			rig.mu.Lock()
			rig.conns = append(rig.conns, conn)
			rig.mu.Unlock()
			return conn
		},
	}, rig.client, rig.scope, visitor, nil, logger)
	t.Cleanup(rig.engine.Unmount)
	return rig
}

func waitForStatus(t *testing.T, e *Engine, want widget.ConnectionStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.State().ConnectionStatus == want
	}, 5*time.Second, 5*time.Millisecond)
}

func TestInitCreatesAndPersistsSession(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.Init(context.Background()))

	state := rig.engine.State()
	require.NotNil(t, state.Session)
	require.NotNil(t, state.Config)
	assert.Equal(t, "shop-1", state.Session.MerchantID)
	assert.False(t, state.IsLoading)

	storedID, ok := rig.scope.Get(storage.KeySessionID)
	assert.True(t, ok)
	assert.Equal(t, state.Session.SessionID, storedID)
	storedMerchant, _ := rig.scope.Get(storage.KeyMerchantID)
	assert.Equal(t, "shop-1", storedMerchant)

	// Welcome message seeds the transcript.
	require.NotEmpty(t, state.Messages)
	assert.Equal(t, widget.SenderBot, state.Messages[0].Sender)

	waitForStatus(t, rig.engine, widget.StatusConnected)
}

func TestInitStaysConnectingUntilTransportReports(t *testing.T) {
	logger := logging.NewDiscardLogger()
	app := sandbox.NewApp("test-secret", time.Hour, logger)
	server := httptest.NewServer(app.Router())
	t.Cleanup(server.Close)

	rig := newTestRigWithURL(t, server.URL+"/api/v1")
	rig.hold = make(chan struct{})

	require.NoError(t, rig.engine.Init(context.Background()))
	waitForStatus(t, rig.engine, widget.StatusConnecting)

	// Still connecting while the dial is in flight.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, widget.StatusConnecting, rig.engine.State().ConnectionStatus)

	close(rig.hold)
	waitForStatus(t, rig.engine, widget.StatusConnected)
}

func TestInitResumesStoredSession(t *testing.T) {
	rig := newTestRig(t)

	existing, err := rig.client.CreateSession(context.Background(), "shop-1", "")
	require.NoError(t, err)
	rig.scope.Set(storage.KeySessionID, existing.SessionID)
	rig.scope.Set(storage.KeyMerchantID, "shop-1")

	require.NoError(t, rig.engine.Init(context.Background()))
	assert.Equal(t, existing.SessionID, rig.engine.State().Session.SessionID)
}

func TestInitDiscardsRejectedStoredSession(t *testing.T) {
	rig := newTestRig(t)
	rig.scope.Set(storage.KeySessionID, "forged-or-expired-id")
	rig.scope.Set(storage.KeyMerchantID, "shop-1")

	require.NoError(t, rig.engine.Init(context.Background()))

	state := rig.engine.State()
	require.NotNil(t, state.Session)
	assert.NotEqual(t, "forged-or-expired-id", state.Session.SessionID)

	storedID, _ := rig.scope.Get(storage.KeySessionID)
	assert.Equal(t, state.Session.SessionID, storedID)
}

func TestInitIgnoresOtherMerchantsSession(t *testing.T) {
	rig := newTestRig(t)
	rig.scope.Set(storage.KeySessionID, "someone-elses-session")
	rig.scope.Set(storage.KeyMerchantID, "other-shop")

	require.NoError(t, rig.engine.Init(context.Background()))
	assert.NotEqual(t, "someone-elses-session", rig.engine.State().Session.SessionID)
}

func TestSendMessageOptimisticFlow(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.Init(context.Background()))
	transcriptBefore := len(rig.engine.State().Messages)

	require.NoError(t, rig.engine.SendMessage(context.Background(), "do you sell tea?"))

	state := rig.engine.State()
	require.Len(t, state.Messages, transcriptBefore+2)

	userMsg := state.Messages[transcriptBefore]
	assert.Equal(t, widget.SenderUser, userMsg.Sender)
	assert.Equal(t, widget.DeliveryConfirmed, userMsg.Delivery)
	assert.Equal(t, "do you sell tea?", userMsg.Content)

	botMsg := state.Messages[transcriptBefore+1]
	assert.Equal(t, widget.SenderBot, botMsg.Sender)
	assert.NotEmpty(t, botMsg.Products)
	assert.False(t, state.IsTyping)

	// First message triggers the one-shot consent prompt.
	assert.True(t, state.Consent.PromptShown)
}

func TestSendMessageFailureKeepsOptimisticEntry(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()
	rig := newTestRigWithURL(t, server.URL+"/api/v1")

	// No session yet and the backend is unreachable.
	err := rig.engine.SendMessage(context.Background(), "hello?")
	require.Error(t, err)

	state := rig.engine.State()
	require.NotEmpty(t, state.Errors)
	last := state.Errors[len(state.Errors)-1]
	assert.Equal(t, widget.CategoryNetwork, last.Category)
	assert.True(t, last.Retryable)
	assert.False(t, state.IsTyping)

	// The user's words are in the transcript even though session
	// creation itself failed, marked as undelivered.
	require.NotEmpty(t, state.Messages)
	entry := state.Messages[len(state.Messages)-1]
	assert.Equal(t, "hello?", entry.Content)
	assert.Equal(t, widget.SenderUser, entry.Sender)
	assert.Equal(t, widget.DeliveryFailed, entry.Delivery)
}

func TestSendMessageFailureAfterSession(t *testing.T) {
	logger := logging.NewDiscardLogger()
	app := sandbox.NewApp("test-secret", time.Hour, logger)
	server := httptest.NewServer(app.Router())
	rig := newTestRigWithURL(t, server.URL+"/api/v1")

	require.NoError(t, rig.engine.Init(context.Background()))
	transcriptBefore := len(rig.engine.State().Messages)

	// Backend goes away mid-conversation.
	server.Close()

	err := rig.engine.SendMessage(context.Background(), "anyone there?")
	require.Error(t, err)

	state := rig.engine.State()
	require.Len(t, state.Messages, transcriptBefore+1)
	failed := state.Messages[transcriptBefore]
	assert.Equal(t, widget.SenderUser, failed.Sender)
	assert.Equal(t, widget.DeliveryFailed, failed.Delivery)
}

func TestConsentPromptShowsAtMostOnce(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.engine.Init(ctx))

	require.NoError(t, rig.engine.SendMessage(ctx, "first"))
	require.True(t, rig.engine.State().Consent.PromptShown)

	require.NoError(t, rig.engine.RecordConsent(ctx, true))
	assert.Equal(t, widget.ConsentOptedIn, rig.engine.State().Consent.Status)

	// Forgetting resets the stored decision but never re-prompts within
	// the same session.
	require.NoError(t, rig.engine.ForgetPreferences(ctx))
	state := rig.engine.State()
	assert.Equal(t, widget.ConsentPending, state.Consent.Status)
	assert.False(t, state.Consent.PromptShown)

	require.NoError(t, rig.engine.SendMessage(ctx, "second"))
	assert.False(t, rig.engine.State().Consent.PromptShown)
}

func TestRecordConsentIsIdempotent(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.engine.Init(ctx))

	require.NoError(t, rig.engine.RecordConsent(ctx, false))
	assert.Equal(t, widget.ConsentOptedOut, rig.engine.State().Consent.Status)

	// A second decision is silently ignored; the transition set is
	// pending to opted_in/opted_out only.
	require.NoError(t, rig.engine.RecordConsent(ctx, true))
	assert.Equal(t, widget.ConsentOptedOut, rig.engine.State().Consent.Status)
}

func TestAddToCartCreatesSessionOnDemand(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// No Init: adding to cart from a product card must self-serve.
	require.NoError(t, rig.engine.AddToCart(ctx, "var-tea-001", 2))

	state := rig.engine.State()
	require.NotNil(t, state.Session)
	require.NotNil(t, state.Cart)
	require.Len(t, state.Cart.Items, 1)
	assert.Equal(t, "var-tea-001", state.Cart.Items[0].VariantID)
	assert.Equal(t, 2, state.Cart.Items[0].Quantity)
	assert.InDelta(t, 37.00, state.Cart.Total, 0.001)
}

func TestCartErrorsClassifyAsCart(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.engine.Init(ctx))

	err := rig.engine.AddToCart(ctx, "var-nonexistent", 1)
	require.Error(t, err)

	state := rig.engine.State()
	require.NotEmpty(t, state.Errors)
	last := state.Errors[len(state.Errors)-1]
	assert.Equal(t, widget.CategoryCart, last.Category)
	assert.False(t, last.Retryable)
}

func TestRemoveFromCart(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.engine.AddToCart(ctx, "var-tea-001", 1))
	require.NoError(t, rig.engine.AddToCart(ctx, "var-mug-001", 1))

	require.NoError(t, rig.engine.RemoveFromCart(ctx, "var-tea-001"))
	state := rig.engine.State()
	require.Len(t, state.Cart.Items, 1)
	assert.Equal(t, "var-mug-001", state.Cart.Items[0].VariantID)
}

func TestCheckout(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	t.Run("empty cart is rejected locally", func(t *testing.T) {
		_, err := rig.engine.Checkout(ctx)
		require.Error(t, err)
		state := rig.engine.State()
		require.NotEmpty(t, state.Errors)
	})

	t.Run("returns hosted checkout URL", func(t *testing.T) {
		require.NoError(t, rig.engine.AddToCart(ctx, "var-kettle-001", 1))

		url, err := rig.engine.Checkout(ctx)
		require.NoError(t, err)
		assert.Contains(t, url, "checkout.sandbox.test")

		state := rig.engine.State()
		last := state.Messages[len(state.Messages)-1]
		assert.Equal(t, url, last.CheckoutURL)
	})
}

func TestRetryLastAction(t *testing.T) {
	t.Run("nothing retained", func(t *testing.T) {
		rig := newTestRig(t)
		assert.ErrorIs(t, rig.engine.RetryLastAction(context.Background()), ErrNoRetryableAction)
	})

	t.Run("retry clears errors then replays", func(t *testing.T) {
		server := httptest.NewServer(nil)
		server.Close()
		rig := newTestRigWithURL(t, server.URL+"/api/v1")
		ctx := context.Background()

		require.Error(t, rig.engine.SendMessage(ctx, "hello"))
		require.Error(t, rig.engine.RetryLastAction(ctx))

		// Old errors were cleared before the replay surfaced its own.
		state := rig.engine.State()
		assert.Len(t, state.Errors, 1)
	})
}

func TestMerchantMessageEvent(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.Init(context.Background()))
	transcriptBefore := len(rig.engine.State().Messages)

	cart := &widget.Cart{
		Items:     []widget.CartItem{{VariantID: "var-tea-001", Quantity: 1, Price: 18.50}},
		ItemCount: 1,
		Total:     18.50,
	}
	payload, err := json.Marshal(widget.Message{
		MessageID: "merchant-1",
		Content:   "I added the sampler for you",
		Sender:    widget.SenderMerchant,
		Cart:      cart,
	})
	require.NoError(t, err)

	rig.lastConn().push(widget.Event{Type: widget.EventMerchantMessage, Data: payload})

	state := rig.engine.State()
	require.Len(t, state.Messages, transcriptBefore+1)
	msg := state.Messages[transcriptBefore]
	assert.Equal(t, widget.SenderMerchant, msg.Sender)
	assert.Equal(t, widget.DeliveryConfirmed, msg.Delivery)
	require.NotNil(t, state.Cart)
	assert.Equal(t, 1, state.Cart.ItemCount)
}

func TestMalformedMerchantMessageIsDropped(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.Init(context.Background()))
	transcriptBefore := len(rig.engine.State().Messages)

	rig.lastConn().push(widget.Event{Type: widget.EventMerchantMessage, Data: json.RawMessage(`"not an object"`)})
	assert.Len(t, rig.engine.State().Messages, transcriptBefore)
}

func TestEndDestroysSessionAndResets(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.engine.Init(ctx))
	sessionID := rig.engine.State().Session.SessionID

	require.NoError(t, rig.engine.End(ctx))

	state := rig.engine.State()
	assert.Nil(t, state.Session)
	assert.Empty(t, state.Messages)
	assert.Equal(t, widget.StatusDisconnected, state.ConnectionStatus)

	_, ok := rig.scope.Get(storage.KeySessionID)
	assert.False(t, ok)

	// The backend no longer recognizes the session.
	_, err := rig.client.GetSession(ctx, sessionID)
	assert.Error(t, err)

	conn := rig.lastConn()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
}

func TestUnmountClosesConnection(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.engine.Init(context.Background()))

	rig.engine.Unmount()
	assert.Equal(t, widget.InitialState(), rig.engine.State())

	conn := rig.lastConn()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
}

func TestDismissErrorKeepsList(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()
	rig := newTestRigWithURL(t, server.URL+"/api/v1")

	require.Error(t, rig.engine.SendMessage(context.Background(), "hi"))
	state := rig.engine.State()
	require.Len(t, state.Errors, 1)

	rig.engine.DismissError(state.Errors[0].ID)
	state = rig.engine.State()
	require.Len(t, state.Errors, 1)
	assert.True(t, state.Errors[0].Dismissed)
}

func TestSubscriberReceivesSnapshots(t *testing.T) {
	rig := newTestRig(t)

	var mu sync.Mutex
	var snapshots []widget.State
	rig.engine.OnChange(func(state widget.State) {
		mu.Lock()
		snapshots = append(snapshots, state)
		mu.Unlock()
	})

	rig.engine.Open()
	rig.engine.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 2)
	assert.True(t, snapshots[0].IsOpen)
	assert.False(t, snapshots[1].IsOpen)
}

func TestRateLimitSurfacesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()
	rig := newTestRigWithURL(t, server.URL+"/api/v1")

	err := rig.engine.SendMessage(context.Background(), "hi")
	require.Error(t, err)

	state := rig.engine.State()
	require.NotEmpty(t, state.Errors)
	last := state.Errors[len(state.Errors)-1]
	assert.Equal(t, widget.CategoryRateLimit, last.Category)
	assert.True(t, last.Retryable)
	assert.Equal(t, 30, last.RetryAfter)
}
