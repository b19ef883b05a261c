package widget

// ConnectionStatus reflects the realtime transport. Exactly one value is
// live at a time; transitions are emitted by the connection manager only.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// State is the single authoritative widget state object. It is mutated
// only through Reduce; the engine hands out copies, never the live value.
type State struct {
	IsOpen    bool
	IsLoading bool
	IsTyping  bool

	Session  *Session
	Config   *WidgetConfig
	Messages []Message
	Cart     *Cart

	Err    string
	Errors []WidgetError

	ConnectionStatus ConnectionStatus
	Consent          ConsentState
}

// InitialState returns the exact state a fresh or reset widget holds
func InitialState() State {
	return State{
		ConnectionStatus: StatusDisconnected,
		Consent:          ConsentState{Status: ConsentPending},
	}
}

// Action is a closed set of state transitions. Every mutation of State
// goes through one of these; there is no other writer.
type Action interface {
	isAction()
}

type (
	// OpenWidget marks the widget panel open
	OpenWidget struct{}
	// CloseWidget marks the widget panel closed
	CloseWidget struct{}
	// SetLoading toggles the global loading indicator
	SetLoading struct{ Loading bool }
	// SetTyping toggles the bot typing indicator
	SetTyping struct{ Typing bool }
	// SetSession installs the active session
	SetSession struct{ Session *Session }
	// SetConfig installs the merchant widget configuration
	SetConfig struct{ Config *WidgetConfig }
	// AddMessage appends one transcript entry in local receipt order
	AddMessage struct{ Message Message }
	// SetMessages replaces the transcript wholesale (session resume)
	SetMessages struct{ Messages []Message }
	// ConfirmMessage promotes a pending optimistic message
	ConfirmMessage struct{ MessageID string }
	// FailMessage marks a pending optimistic message as failed
	FailMessage struct{ MessageID string }
	// SetCart replaces the bot-side cart mirror wholesale
	SetCart struct{ Cart *Cart }
	// SetError sets the short-lived error string for simple UI slots
	SetError struct{ Err string }
	// AddWidgetError appends a classified error to the error list
	AddWidgetError struct{ Error WidgetError }
	// DismissWidgetError flips one error's dismissed flag without removal
	DismissWidgetError struct{ ID string }
	// ClearWidgetErrors empties the error list and the short-lived string
	ClearWidgetErrors struct{}
	// SetConnectionStatus records a transport status transition
	SetConnectionStatus struct{ Status ConnectionStatus }
	// SetConsentState installs a consent decision
	SetConsentState struct{ Consent ConsentState }
	// SetConsentPromptShown latches the one-shot consent prompt
	SetConsentPromptShown struct{ Shown bool }
	// Reset restores the exact initial state
	Reset struct{}
)

func (OpenWidget) isAction()            {}
func (CloseWidget) isAction()           {}
func (SetLoading) isAction()            {}
func (SetTyping) isAction()             {}
func (SetSession) isAction()            {}
func (SetConfig) isAction()             {}
func (AddMessage) isAction()            {}
func (SetMessages) isAction()           {}
func (ConfirmMessage) isAction()        {}
func (FailMessage) isAction()           {}
func (SetCart) isAction()               {}
func (SetError) isAction()              {}
func (AddWidgetError) isAction()        {}
func (DismissWidgetError) isAction()    {}
func (ClearWidgetErrors) isAction()     {}
func (SetConnectionStatus) isAction()   {}
func (SetConsentState) isAction()       {}
func (SetConsentPromptShown) isAction() {}
func (Reset) isAction()                 {}

// Reduce applies one action to a state and returns the next state. Pure:
// the input state is never modified, slices are copied on write.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case OpenWidget:
		state.IsOpen = true
	case CloseWidget:
		state.IsOpen = false
	case SetLoading:
		state.IsLoading = a.Loading
	case SetTyping:
		state.IsTyping = a.Typing
	case SetSession:
		state.Session = a.Session
	case SetConfig:
		state.Config = a.Config
	case AddMessage:
		messages := make([]Message, len(state.Messages), len(state.Messages)+1)
		copy(messages, state.Messages)
		state.Messages = append(messages, a.Message)
	case SetMessages:
		messages := make([]Message, len(a.Messages))
		copy(messages, a.Messages)
		state.Messages = messages
	case ConfirmMessage:
		state.Messages = withDelivery(state.Messages, a.MessageID, DeliveryConfirmed)
	case FailMessage:
		state.Messages = withDelivery(state.Messages, a.MessageID, DeliveryFailed)
	case SetCart:
		state.Cart = a.Cart.Clone()
	case SetError:
		state.Err = a.Err
	case AddWidgetError:
		errors := make([]WidgetError, len(state.Errors), len(state.Errors)+1)
		copy(errors, state.Errors)
		state.Errors = append(errors, a.Error)
	case DismissWidgetError:
		errors := make([]WidgetError, len(state.Errors))
		copy(errors, state.Errors)
		for i := range errors {
			if errors[i].ID == a.ID {
				errors[i].Dismissed = true
			}
		}
		state.Errors = errors
	case ClearWidgetErrors:
		state.Errors = nil
		state.Err = ""
	case SetConnectionStatus:
		state.ConnectionStatus = a.Status
	case SetConsentState:
		// PromptShown is managed by its own action; a consent decision
		// must not un-latch the one-shot prompt.
		shown := state.Consent.PromptShown || a.Consent.PromptShown
		state.Consent = a.Consent
		state.Consent.PromptShown = shown
	case SetConsentPromptShown:
		state.Consent.PromptShown = a.Shown
	case Reset:
		return InitialState()
	}
	return state
}

func withDelivery(messages []Message, id string, delivery DeliveryState) []Message {
	next := make([]Message, len(messages))
	copy(next, messages)
	for i := range next {
		if next[i].MessageID == id {
			next[i].Delivery = delivery
		}
	}
	return next
}
