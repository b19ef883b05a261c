package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/security"
)

// ErrConsentInFlight is returned when a consent decision is already
// being transmitted; the UI must not submit concurrently.
var ErrConsentInFlight = errors.New("consent decision already in flight")

// ErrNoRetryableAction is returned by RetryLastAction when nothing has
// been attempted yet.
var ErrNoRetryableAction = errors.New("no action to retry")

// SendMessage synthesizes an optimistic local user message, submits it,
// and appends the bot reply. The optimistic entry lands in the
// transcript before any network work, so a failure at any stage leaves
// it there marked failed; only the bot response is missing.
func (e *Engine) SendMessage(ctx context.Context, content string) error {
	e.retain("send_message", func(ctx context.Context) error {
		return e.SendMessage(ctx, content)
	})

	localID := security.GenerateLocalMessageID()
	e.dispatch(widget.AddMessage{Message: widget.Message{
		MessageID: localID,
		Content:   content,
		Sender:    widget.SenderUser,
		CreatedAt: time.Now(),
		Delivery:  widget.DeliveryPending,
	}})

	session, err := e.ensureSession(ctx)
	if err != nil {
		e.dispatch(widget.FailMessage{MessageID: localID})
		e.surfaceError("send_message", err)
		return err
	}

	e.dispatch(widget.SetTyping{Typing: true})
	defer e.dispatch(widget.SetTyping{Typing: false})

	result, err := e.client.SendMessage(ctx, session.SessionID, content)
	if err != nil {
		e.dispatch(widget.FailMessage{MessageID: localID})
		e.surfaceError("send_message", err)
		return err
	}

	e.dispatch(widget.ConfirmMessage{MessageID: localID})

	reply := result.Message
	if reply.MessageID == "" {
		reply.MessageID = security.GenerateLocalMessageID()
	}
	reply.Sender = widget.SenderBot
	reply.Delivery = widget.DeliveryConfirmed
	e.dispatch(widget.AddMessage{Message: reply})

	if reply.Cart != nil {
		e.applyCart(reply.Cart)
	}
	if result.ConsentRequired {
		e.maybeShowConsentPrompt()
	}
	return nil
}

// AddToCart adds a variant to the bot-side cart, transparently creating
// a session first when none exists: a visitor must be able to add to
// cart before a conversation has started.
func (e *Engine) AddToCart(ctx context.Context, variantID string, quantity int) error {
	e.retain("add_to_cart", func(ctx context.Context) error {
		return e.AddToCart(ctx, variantID, quantity)
	})
	return e.mutateCart(ctx, "add_to_cart", func(ctx context.Context, sessionID string) (*widget.Cart, error) {
		return e.client.AddCartItem(ctx, sessionID, variantID, quantity)
	})
}

// RemoveFromCart removes a variant from the bot-side cart
func (e *Engine) RemoveFromCart(ctx context.Context, variantID string) error {
	e.retain("remove_from_cart", func(ctx context.Context) error {
		return e.RemoveFromCart(ctx, variantID)
	})
	return e.mutateCart(ctx, "remove_from_cart", func(ctx context.Context, sessionID string) (*widget.Cart, error) {
		return e.client.RemoveCartItem(ctx, sessionID, variantID)
	})
}

func (e *Engine) mutateCart(ctx context.Context, operation string, mutate func(ctx context.Context, sessionID string) (*widget.Cart, error)) error {
	session, err := e.ensureSession(ctx)
	if err != nil {
		e.surfaceError(operation, err)
		return err
	}

	cart, err := mutate(ctx, session.SessionID)
	if err != nil {
		e.surfaceError(operation, err)
		return err
	}
	e.applyCart(cart)
	return nil
}

// Checkout starts checkout from the authoritative bot cart. The total
// is forwarded as given by the backend; recomputation is for display
// only. Returns the hosted checkout URL.
func (e *Engine) Checkout(ctx context.Context) (string, error) {
	e.retain("checkout", func(ctx context.Context) error {
		_, err := e.Checkout(ctx)
		return err
	})

	state := e.State()
	if state.Cart.IsEmpty() {
		err := fmt.Errorf("checkout requires a non-empty cart")
		e.surfaceError("checkout", err)
		return "", err
	}
	session, err := e.ensureSession(ctx)
	if err != nil {
		e.surfaceError("checkout", err)
		return "", err
	}

	result, err := e.client.Checkout(ctx, session.SessionID, state.Cart.Total)
	if err != nil {
		e.surfaceError("checkout", err)
		return "", err
	}

	e.dispatch(widget.AddMessage{Message: widget.Message{
		MessageID:   security.GenerateLocalMessageID(),
		Content:     "Your checkout is ready.",
		Sender:      widget.SenderBot,
		CreatedAt:   time.Now(),
		CheckoutURL: result.CheckoutURL,
		Delivery:    widget.DeliveryConfirmed,
	}})
	return result.CheckoutURL, nil
}

// RecordConsent transmits the visitor's persistence decision. Until the
// round-trip completes further submissions are rejected.
func (e *Engine) RecordConsent(ctx context.Context, optIn bool) error {
	e.mu.Lock()
	if e.consentInFlight {
		e.mu.Unlock()
		return ErrConsentInFlight
	}
	if e.state.Consent.Decided() {
		e.mu.Unlock()
		return nil
	}
	e.consentInFlight = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.consentInFlight = false
		e.mu.Unlock()
	}()

	session, err := e.ensureSession(ctx)
	if err != nil {
		e.surfaceError("record_consent", err)
		return err
	}

	visitorID := ""
	if e.visitor != nil {
		visitorID = e.visitor.Get()
	}
	result, err := e.client.RecordConsent(ctx, session.SessionID, visitorID, optIn)
	if err != nil {
		e.surfaceError("record_consent", err)
		return err
	}

	e.dispatch(widget.SetConsentState{Consent: widget.ConsentState{Status: result.Status}})
	if e.logger != nil {
		e.logger.Consent().Info("Consent recorded", "status", string(result.Status))
	}
	return nil
}

// ForgetPreferences wipes the visitor's stored preferences: consent
// returns to pending, the visitor id is invalidated, and the prompt may
// reappear in a future session. The prompt does not re-show in this one.
func (e *Engine) ForgetPreferences(ctx context.Context) error {
	visitorID := ""
	if e.visitor != nil {
		visitorID = e.visitor.Get()
	}
	sessionID := ""
	if session := e.State().Session; session != nil {
		sessionID = session.SessionID
	}

	if err := e.client.ForgetPreferences(ctx, sessionID, visitorID); err != nil {
		e.surfaceError("forget_preferences", err)
		return err
	}

	if e.visitor != nil {
		e.visitor.Forget()
	}
	e.dispatch(widget.SetConsentState{Consent: widget.ConsentState{Status: widget.ConsentPending}})
	e.dispatch(widget.SetConsentPromptShown{Shown: false})
	if e.logger != nil {
		e.logger.Consent().Info("Visitor preferences forgotten")
	}
	return nil
}

// maybeShowConsentPrompt latches the one-shot prompt. The in-session
// latch survives "forget preferences", so no server signal re-triggers
// the prompt within the same session.
func (e *Engine) maybeShowConsentPrompt() {
	e.mu.Lock()
	if e.promptLatch {
		e.mu.Unlock()
		return
	}
	e.promptLatch = true
	e.mu.Unlock()

	e.dispatch(widget.SetConsentPromptShown{Shown: true})
	if e.logger != nil {
		e.logger.Consent().Info("Consent prompt surfaced")
	}
}

// RetryLastAction re-invokes the last mutating operation with its
// original arguments. Retry is user- or caller-triggered; the engine
// never retries on a timer.
func (e *Engine) RetryLastAction(ctx context.Context) error {
	e.mu.Lock()
	action := e.lastAction
	e.mu.Unlock()

	if action == nil {
		return ErrNoRetryableAction
	}
	if e.logger != nil {
		e.logger.Session().Info("Retrying last action", "action", action.name)
	}
	e.dispatch(widget.ClearWidgetErrors{})
	return action.run(ctx)
}

// ensureSession returns the active session, transparently running the
// resume-or-create protocol when none exists yet.
func (e *Engine) ensureSession(ctx context.Context) (*widget.Session, error) {
	if session := e.State().Session; session != nil {
		return session, nil
	}
	session, err := e.resumeOrCreate(ctx)
	if err != nil {
		return nil, err
	}
	e.installSession(ctx, session)
	return session, nil
}
