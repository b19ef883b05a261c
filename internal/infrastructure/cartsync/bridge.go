package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
)

// RefreshHook is one theme compatibility hook fired after a host cart
// mutation (the analogs of DOM custom events and known global refresh
// functions). Hooks must tolerate being called concurrently with each
// other and must not block for long.
type RefreshHook func(ctx context.Context)

// Bridge propagates bot cart snapshots into the host storefront cart as
// a bounded task queue decoupled from the reducer. Failures are logged,
// never propagated; the engine never depends on bridge outcome.
type Bridge struct {
	host     HostCart
	detector *Detector
	hostName string
	logger   *logging.ChanneledLogger

	queue chan *widget.Cart
	done  chan struct{}
	wg    sync.WaitGroup

	hookMu    sync.Mutex
	hooks     []RefreshHook
	onRefresh func(*HostCartSnapshot)

	closeOnce sync.Once
}

// NewBridge creates a cart sync bridge. hostName is the host page's
// domain, checked against the detector; an incompatible host makes every
// Sync a logged no-op. queueDepth bounds pending snapshots.
func NewBridge(host HostCart, detector *Detector, hostName string, queueDepth int, logger *logging.ChanneledLogger) *Bridge {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	b := &Bridge{
		host:     host,
		detector: detector,
		hostName: hostName,
		logger:   logger,
		queue:    make(chan *widget.Cart, queueDepth),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.worker()
	return b
}

// RegisterRefreshHook adds a theme compatibility hook. All registered
// hooks fire after any host cart mutation, since themes vary.
func (b *Bridge) RegisterRefreshHook(hook RefreshHook) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.hooks = append(b.hooks, hook)
}

// OnRefresh sets the fallback re-fetch-and-broadcast receiver
func (b *Bridge) OnRefresh(fn func(*HostCartSnapshot)) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.onRefresh = fn
}

// Sync enqueues a bot cart snapshot for propagation. Non-blocking: when
// the queue is full the snapshot is dropped with a warning, since a
// newer authoritative snapshot will follow.
func (b *Bridge) Sync(cart *widget.Cart) {
	if !b.detector.Compatible(b.hostName) {
		if b.logger != nil {
			b.logger.Cart().Debug("Host not a compatible storefront, sync skipped", "host", b.hostName)
		}
		return
	}
	select {
	case b.queue <- cart.Clone():
	default:
		if b.logger != nil {
			b.logger.Cart().Warn("Cart sync queue full, snapshot dropped")
		}
	}
}

// Close stops the worker after draining nothing further. Pending
// snapshots are abandoned; the host cart is a convenience mirror.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
}

func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case cart := <-b.queue:
			b.syncOnce(context.Background(), cart)
		}
	}
}

// syncOnce performs one propagation pass. Idempotent per variant: only
// variants absent host-side are added, nothing is ever removed or
// decremented, because the host cart may hold items the visitor added
// independently of the bot.
func (b *Bridge) syncOnce(ctx context.Context, cart *widget.Cart) {
	start := time.Now()

	if cart.IsEmpty() {
		if err := b.host.Clear(ctx); err != nil {
			if b.logger != nil {
				b.logger.Cart().Warn("Host cart clear failed", "error", err)
			}
			return
		}
		b.fireRefresh(ctx)
		if b.logger != nil {
			b.logger.LogCartSync(0, 0, true, time.Since(start))
		}
		return
	}

	snapshot, err := b.host.Fetch(ctx)
	if err != nil {
		if b.logger != nil {
			b.logger.Cart().Warn("Host cart fetch failed, sync skipped", "error", err)
		}
		return
	}
	present := snapshot.VariantIDs()

	added, skipped := 0, 0
	for _, item := range cart.Items {
		if present[item.VariantID] {
			skipped++
			continue
		}
		if err := b.host.Add(ctx, item.VariantID, item.Quantity); err != nil {
			if b.logger != nil {
				b.logger.Cart().Warn("Host cart add failed", "variantId", item.VariantID, "error", err)
			}
			continue
		}
		added++
	}

	if added > 0 {
		b.fireRefresh(ctx)
	}
	if b.logger != nil {
		b.logger.LogCartSync(added, skipped, false, time.Since(start))
	}
}

// fireRefresh triggers every known theme refresh path: all registered
// hooks, then the fallback re-fetch-and-broadcast.
func (b *Bridge) fireRefresh(ctx context.Context) {
	b.hookMu.Lock()
	hooks := make([]RefreshHook, len(b.hooks))
	copy(hooks, b.hooks)
	onRefresh := b.onRefresh
	b.hookMu.Unlock()

	for _, hook := range hooks {
		hook(ctx)
	}

	if onRefresh != nil {
		snapshot, err := b.host.Fetch(ctx)
		if err != nil {
			if b.logger != nil {
				b.logger.Cart().Debug("Refresh re-fetch failed", "error", err)
			}
			return
		}
		onRefresh(snapshot)
	}
}
