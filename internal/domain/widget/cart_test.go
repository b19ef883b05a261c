package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartIsEmpty(t *testing.T) {
	var nilCart *Cart
	assert.True(t, nilCart.IsEmpty())
	assert.True(t, (&Cart{}).IsEmpty())
	assert.False(t, (&Cart{Items: []CartItem{{VariantID: "v1"}}}).IsEmpty())
}

func TestCartRecomputedTotal(t *testing.T) {
	cart := &Cart{
		Items: []CartItem{
			{VariantID: "v1", Price: 18.50, Quantity: 2},
			{VariantID: "v2", Price: 14.00, Quantity: 1},
		},
		// Backend total deliberately disagrees: checkout trusts it as given.
		Total: 40.00,
	}
	assert.InDelta(t, 51.00, cart.RecomputedTotal(), 0.001)
	assert.InDelta(t, 40.00, cart.Total, 0.001)
}

func TestCartClone(t *testing.T) {
	cart := &Cart{Items: []CartItem{{VariantID: "v1", Quantity: 1}}, ItemCount: 1, Total: 9.99}
	clone := cart.Clone()

	clone.Items[0].Quantity = 5
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Nil(t, (*Cart)(nil).Clone())
}
