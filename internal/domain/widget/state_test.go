package widget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceTranscript(t *testing.T) {
	t.Run("messages append in receipt order", func(t *testing.T) {
		state := InitialState()
		state = Reduce(state, AddMessage{Message: Message{MessageID: "m1", Content: "first"}})
		state = Reduce(state, AddMessage{Message: Message{MessageID: "m2", Content: "second"}})
		state = Reduce(state, AddMessage{Message: Message{MessageID: "m3", Content: "third"}})

		require.Len(t, state.Messages, 3)
		assert.Equal(t, "m1", state.Messages[0].MessageID)
		assert.Equal(t, "m2", state.Messages[1].MessageID)
		assert.Equal(t, "m3", state.Messages[2].MessageID)
	})

	t.Run("server timestamps never reorder the transcript", func(t *testing.T) {
		later := time.Now()
		earlier := later.Add(-time.Hour)

		state := InitialState()
		state = Reduce(state, AddMessage{Message: Message{MessageID: "m1", CreatedAt: later}})
		state = Reduce(state, AddMessage{Message: Message{MessageID: "m2", CreatedAt: earlier}})

		assert.Equal(t, "m1", state.Messages[0].MessageID)
		assert.Equal(t, "m2", state.Messages[1].MessageID)
	})

	t.Run("confirm and fail only touch the targeted message", func(t *testing.T) {
		state := InitialState()
		state = Reduce(state, AddMessage{Message: Message{MessageID: "m1", Delivery: DeliveryPending}})
		state = Reduce(state, AddMessage{Message: Message{MessageID: "m2", Delivery: DeliveryPending}})

		state = Reduce(state, ConfirmMessage{MessageID: "m1"})
		assert.Equal(t, DeliveryConfirmed, state.Messages[0].Delivery)
		assert.Equal(t, DeliveryPending, state.Messages[1].Delivery)

		state = Reduce(state, FailMessage{MessageID: "m2"})
		assert.Equal(t, DeliveryFailed, state.Messages[1].Delivery)
		require.Len(t, state.Messages, 2)
	})

	t.Run("reduce never mutates its input", func(t *testing.T) {
		before := InitialState()
		before = Reduce(before, AddMessage{Message: Message{MessageID: "m1", Delivery: DeliveryPending}})

		after := Reduce(before, ConfirmMessage{MessageID: "m1"})
		assert.Equal(t, DeliveryPending, before.Messages[0].Delivery)
		assert.Equal(t, DeliveryConfirmed, after.Messages[0].Delivery)

		after = Reduce(before, AddMessage{Message: Message{MessageID: "m2"}})
		assert.Len(t, before.Messages, 1)
		assert.Len(t, after.Messages, 2)
	})
}

func TestReduceErrors(t *testing.T) {
	t.Run("dismiss flips the flag without removal", func(t *testing.T) {
		state := InitialState()
		state = Reduce(state, AddWidgetError{Error: WidgetError{ID: "e1"}})
		state = Reduce(state, AddWidgetError{Error: WidgetError{ID: "e2"}})

		state = Reduce(state, DismissWidgetError{ID: "e1"})
		require.Len(t, state.Errors, 2)
		assert.True(t, state.Errors[0].Dismissed)
		assert.False(t, state.Errors[1].Dismissed)
	})

	t.Run("dismissing an unknown id is a no-op", func(t *testing.T) {
		state := InitialState()
		state = Reduce(state, AddWidgetError{Error: WidgetError{ID: "e1"}})
		state = Reduce(state, DismissWidgetError{ID: "missing"})
		require.Len(t, state.Errors, 1)
		assert.False(t, state.Errors[0].Dismissed)
	})

	t.Run("clear empties both error slots", func(t *testing.T) {
		state := InitialState()
		state = Reduce(state, AddWidgetError{Error: WidgetError{ID: "e1"}})
		state = Reduce(state, SetError{Err: "boom"})

		state = Reduce(state, ClearWidgetErrors{})
		assert.Empty(t, state.Errors)
		assert.Empty(t, state.Err)
	})
}

func TestReduceConsent(t *testing.T) {
	t.Run("a decision does not unlatch the prompt", func(t *testing.T) {
		state := InitialState()
		state = Reduce(state, SetConsentPromptShown{Shown: true})
		state = Reduce(state, SetConsentState{Consent: ConsentState{Status: ConsentOptedIn}})

		assert.Equal(t, ConsentOptedIn, state.Consent.Status)
		assert.True(t, state.Consent.PromptShown)
	})

	t.Run("forget resets the prompt flag explicitly", func(t *testing.T) {
		state := InitialState()
		state = Reduce(state, SetConsentPromptShown{Shown: true})
		state = Reduce(state, SetConsentState{Consent: ConsentState{Status: ConsentPending}})
		state = Reduce(state, SetConsentPromptShown{Shown: false})

		assert.Equal(t, ConsentPending, state.Consent.Status)
		assert.False(t, state.Consent.PromptShown)
	})
}

func TestReduceCartAliasing(t *testing.T) {
	cart := &Cart{Items: []CartItem{{VariantID: "v1", Quantity: 1}}, ItemCount: 1}
	state := Reduce(InitialState(), SetCart{Cart: cart})

	cart.Items[0].Quantity = 99
	assert.Equal(t, 1, state.Cart.Items[0].Quantity)
}

func TestReduceReset(t *testing.T) {
	state := InitialState()
	state = Reduce(state, OpenWidget{})
	state = Reduce(state, SetSession{Session: &Session{SessionID: "s1"}})
	state = Reduce(state, AddMessage{Message: Message{MessageID: "m1"}})
	state = Reduce(state, SetConnectionStatus{Status: StatusConnected})
	state = Reduce(state, SetConsentState{Consent: ConsentState{Status: ConsentOptedIn}})

	state = Reduce(state, Reset{})
	assert.Equal(t, InitialState(), state)
}
