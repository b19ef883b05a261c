package sandbox

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/cartsync"
)

// HostCartApp emulates a host storefront's native cart endpoints
// (/cart.js, /cart/add.js, /cart/update.js, /cart/clear.js) so the cart
// sync bridge has something real to drive in development and tests.
type HostCartApp struct {
	mu    sync.Mutex
	items []cartsync.HostCartItem
}

// NewHostCartApp creates an empty host cart
func NewHostCartApp() *HostCartApp {
	return &HostCartApp{}
}

// Mount attaches the storefront cart routes to a router
func (h *HostCartApp) Mount(router *gin.Engine) {
	router.GET("/cart.js", h.read)
	router.POST("/cart/add.js", h.add)
	router.POST("/cart/update.js", h.update)
	router.POST("/cart/clear.js", h.clear)
}

// Snapshot returns the current host cart contents
func (h *HostCartApp) Snapshot() []cartsync.HostCartItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	items := make([]cartsync.HostCartItem, len(h.items))
	copy(items, h.items)
	return items
}

func (h *HostCartApp) read(c *gin.Context) {
	c.JSON(http.StatusOK, cartsync.HostCartSnapshot{Items: h.Snapshot()})
}

func (h *HostCartApp) add(c *gin.Context) {
	var req struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id is required"})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	h.mu.Lock()
	found := false
	for i := range h.items {
		if h.items[i].VariantID == req.ID {
			h.items[i].Quantity += req.Quantity
			found = true
			break
		}
	}
	if !found {
		h.items = append(h.items, cartsync.HostCartItem{VariantID: req.ID, Quantity: req.Quantity})
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": req.ID, "quantity": req.Quantity})
}

func (h *HostCartApp) update(c *gin.Context) {
	var req struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id is required"})
		return
	}

	h.mu.Lock()
	next := h.items[:0]
	for _, item := range h.items {
		if item.VariantID == req.ID {
			if req.Quantity > 0 {
				item.Quantity = req.Quantity
				next = append(next, item)
			}
			continue
		}
		next = append(next, item)
	}
	h.items = next
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": req.ID, "quantity": req.Quantity})
}

func (h *HostCartApp) clear(c *gin.Context) {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
