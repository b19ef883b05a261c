package widget

// ConsentStatus is the visitor's decision on conversation persistence
type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "pending"
	ConsentOptedIn  ConsentStatus = "opted_in"
	ConsentOptedOut ConsentStatus = "opted_out"
)

// ConsentState tracks the consent decision and the one-shot prompt latch.
// Transitions are pending -> opted_in or pending -> opted_out only;
// "forget preferences" resets status to pending for future sessions but
// PromptShown stays latched for the remainder of the current session.
type ConsentState struct {
	Status      ConsentStatus `json:"status"`
	PromptShown bool          `json:"promptShown"`
}

// CanStoreConversation is true only when the visitor has opted in.
// Persistence happens server-side; this is surfaced to explain behavior.
func (c ConsentState) CanStoreConversation() bool {
	return c.Status == ConsentOptedIn
}

// Decided reports whether the visitor has made a choice
func (c ConsentState) Decided() bool {
	return c.Status == ConsentOptedIn || c.Status == ConsentOptedOut
}
