package widget

// CartItem is one line in the bot-side cart mirror
type CartItem struct {
	VariantID string  `json:"variantId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Cart is the bot-side view of the visitor's cart. It is always replaced
// wholesale from the latest authoritative message payload, never merged
// field by field; the backend is the source of truth.
type Cart struct {
	Items     []CartItem `json:"items"`
	ItemCount int        `json:"itemCount"`
	Total     float64    `json:"total"`
}

// IsEmpty reports whether the cart carries no items
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// RecomputedTotal sums price*quantity over items. Used for display; the
// Total field as given by the backend is what checkout trusts.
func (c *Cart) RecomputedTotal() float64 {
	if c == nil {
		return 0
	}
	var total float64
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// VariantIDs returns the set of variant ids present in the cart
func (c *Cart) VariantIDs() map[string]bool {
	ids := make(map[string]bool)
	if c == nil {
		return ids
	}
	for _, item := range c.Items {
		ids[item.VariantID] = true
	}
	return ids
}

// Clone returns a deep copy so reducer state never aliases caller slices
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return &Cart{Items: items, ItemCount: c.ItemCount, Total: c.Total}
}
