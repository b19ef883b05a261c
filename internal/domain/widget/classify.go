package widget

// Application error code sub-ranges reserved for domain categories.
// Codes outside these ranges defer to transport-status classification.
const (
	appCodeSessionLow   = 4000
	appCodeSessionHigh  = 4099
	appCodeCartLow      = 4100
	appCodeCartHigh     = 4199
	appCodeCheckoutLow  = 4200
	appCodeCheckoutHigh = 4299
	appCodeConfigLow    = 4300
	appCodeConfigHigh   = 4399
)

// Classification is the typed description of a failed outcome. It drives
// both UI affordances (whether to show "Try Again") and automatic retry
// eligibility, so the mapping below is exhaustive and fixed.
type Classification struct {
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Retryable bool     `json:"retryable"`
}

// Classify maps a transport status and optional application error code
// (0 means absent) into a Classification. It is a pure total function:
// identical inputs always produce identical output.
func Classify(status int, appCode int) Classification {
	category := classifyCategory(status, appCode)
	return Classification{
		Category:  category,
		Severity:  severityFor(category),
		Retryable: retryableFor(category),
	}
}

func classifyCategory(status int, appCode int) Category {
	// Domain codes win over transport status.
	switch {
	case appCode >= appCodeSessionLow && appCode <= appCodeSessionHigh:
		return CategorySession
	case appCode >= appCodeCartLow && appCode <= appCodeCartHigh:
		return CategoryCart
	case appCode >= appCodeCheckoutLow && appCode <= appCodeCheckoutHigh:
		return CategoryCheckout
	case appCode >= appCodeConfigLow && appCode <= appCodeConfigHigh:
		return CategoryConfig
	}

	switch {
	case status == 0:
		return CategoryNetwork
	case status == 401 || status == 403:
		return CategoryAuth
	case status == 404:
		return CategoryNotFound
	case status == 429:
		return CategoryRateLimit
	case status == 504 || status == 524:
		return CategoryTimeout
	case status == 502 || status == 503:
		return CategoryServer
	case status >= 500:
		return CategoryServer
	case status >= 400:
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}

func severityFor(category Category) Severity {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryRateLimit:
		return SeverityWarning
	case CategoryAuth, CategorySession:
		return SeverityError
	case CategoryServer:
		return SeverityCritical
	default:
		return SeverityError
	}
}

func retryableFor(category Category) bool {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryRateLimit, CategoryServer:
		return true
	default:
		return false
	}
}

// UserMessage returns display copy appropriate to the category. Retryable
// categories pair with a retry affordance; the rest give guidance only.
func (c Classification) UserMessage() string {
	switch c.Category {
	case CategoryNetwork:
		return "Connection problem. Check your network and try again."
	case CategoryTimeout:
		return "The request took too long. Please try again."
	case CategoryRateLimit:
		return "Too many requests. Please wait a moment and try again."
	case CategoryServer:
		return "Something went wrong on our side. Please try again."
	case CategoryAuth:
		return "This chat is not authorized for this store."
	case CategoryNotFound:
		return "We couldn't find what you were looking for."
	case CategorySession:
		return "Your conversation expired. Please refresh the page."
	case CategoryCart:
		return "We couldn't update your cart."
	case CategoryCheckout:
		return "Checkout couldn't be started."
	case CategoryConfig:
		return "The chat widget is misconfigured for this store."
	case CategoryValidation:
		return "That request couldn't be processed."
	default:
		return "An unexpected error occurred."
	}
}
