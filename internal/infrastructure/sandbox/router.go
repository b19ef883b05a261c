package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/api"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/observability/logging"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/security"
)

var (
	errUnknownSession = errors.New("unknown or expired session")
	errUnknownVariant = errors.New("unknown variant")
)

// Application error codes the sandbox emits, inside the reserved
// domain sub-ranges the classifier recognizes.
const (
	codeSessionExpired = 4001
	codeUnknownVariant = 4101
	codeEmptyCart      = 4201
	codeUnknownConfig  = 4301
)

// App bundles the sandbox router with its stores
type App struct {
	Store       *Store
	Broadcaster *Broadcaster
	HostCart    *HostCartApp
	logger      *logging.ChanneledLogger
}

// NewApp creates a sandbox application
func NewApp(jwtSecret string, sessionTTL time.Duration, logger *logging.ChanneledLogger) *App {
	return &App{
		Store:       NewStore(jwtSecret, sessionTTL),
		Broadcaster: NewBroadcaster(logger),
		HostCart:    NewHostCartApp(),
		logger:      logger,
	}
}

// Router builds the gin engine serving every collaborator surface
func (a *App) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/widget/config", a.getWidgetConfig)
		v1.POST("/sessions", a.createSession)
		v1.GET("/sessions/:id", a.getSession)
		v1.DELETE("/sessions/:id", a.endSession)
		v1.POST("/messages", a.sendMessage)
		v1.POST("/cart/items", a.addCartItem)
		v1.DELETE("/cart/items", a.removeCartItem)
		v1.POST("/checkout", a.checkout)
		v1.POST("/consent", a.recordConsent)
		v1.POST("/consent/forget", a.forgetPreferences)

		v1.GET("/realtime", a.Broadcaster.HandleWebSocket(a.Store))
		v1.GET("/realtime/sse", a.Broadcaster.HandleSSE(a.Store))

		// Dashboard-side injection point: a merchant reply pushed to the
		// visitor over the realtime feed.
		v1.POST("/merchant/messages", a.merchantMessage)
	}

	a.HostCart.Mount(router)
	return router
}

// corsMiddleware allows the cross-origin widget embed
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:4321", "http://127.0.0.1:3000"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control",
		},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Type", "Cache-Control", "Connection"},
	})
}

func respond(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

func respondError(c *gin.Context, status, code int, message string) {
	c.JSON(status, gin.H{"error_code": code, "message": message})
}

func (a *App) getWidgetConfig(c *gin.Context) {
	merchantID := c.Query("merchantId")
	if merchantID == "" {
		respondError(c, http.StatusBadRequest, codeUnknownConfig, "merchantId is required")
		return
	}
	respond(c, widget.WidgetConfig{
		MerchantID:     merchantID,
		MerchantName:   "Sandbox Storefront",
		WelcomeMessage: "Hi! Ask me anything about the store.",
		Theme:          map[string]string{"primaryColor": "#2f6f4f"},
		ConsentPrompt:  "Can we keep this conversation to improve your experience?",
	})
}

func (a *App) createSession(c *gin.Context) {
	var req api.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MerchantID == "" {
		respondError(c, http.StatusBadRequest, 0, "merchantId is required")
		return
	}
	session, err := a.Store.CreateSession(req.MerchantID, req.VisitorID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 0, err.Error())
		return
	}
	if a.logger != nil {
		a.logger.Session().Info("Sandbox session created",
			"merchantId", req.MerchantID,
			"sessionId", logging.SanitizeSessionID(session.SessionID))
	}
	respond(c, session)
}

func (a *App) getSession(c *gin.Context) {
	session, ok := a.Store.GetSession(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, codeSessionExpired, "session not found or expired")
		return
	}
	respond(c, session)
}

func (a *App) endSession(c *gin.Context) {
	if !a.Store.EndSession(c.Param("id")) {
		respondError(c, http.StatusNotFound, codeSessionExpired, "session not found")
		return
	}
	respond(c, gin.H{"ended": true})
}

func (a *App) sendMessage(c *gin.Context) {
	var req api.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		respondError(c, http.StatusBadRequest, 0, "sessionId and content are required")
		return
	}
	first, ok := a.Store.RecordMessage(req.SessionID)
	if !ok {
		respondError(c, http.StatusNotFound, codeSessionExpired, "session not found or expired")
		return
	}

	reply := a.botReply(req.SessionID, req.Content)
	respond(c, api.SendMessageResult{Message: reply, ConsentRequired: first})
}

// botReply is the sandbox's deterministic stand-in for the assistant.
// "show cart" style prompts attach the current cart snapshot.
func (a *App) botReply(sessionID, content string) widget.Message {
	msg := widget.Message{
		MessageID: security.GenerateULID(),
		Sender:    widget.SenderBot,
		CreatedAt: time.Now().UTC(),
		Intent:    "smalltalk",
	}

	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "cart"):
		cart, _ := a.Store.Cart(sessionID)
		msg.Content = fmt.Sprintf("You have %d item(s) in your cart.", cart.ItemCount)
		msg.Cart = cart
		msg.Intent = "cart_view"
		msg.Confidence = 0.92
	case strings.Contains(lower, "tea"):
		msg.Content = "We have a lovely Oolong Sampler and Jasmine Pearls in stock."
		msg.Products = []widget.Product{
			{ProductID: "prod-tea", VariantID: "var-tea-001", Title: "Oolong Sampler", Price: 18.50},
			{ProductID: "prod-tea", VariantID: "var-tea-002", Title: "Jasmine Pearls", Price: 24.00},
		}
		msg.Intent = "product_search"
		msg.Confidence = 0.87
	default:
		msg.Content = "You said: " + content
		msg.Confidence = 0.5
	}
	return msg
}

func (a *App) addCartItem(c *gin.Context) {
	var req api.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.VariantID == "" {
		respondError(c, http.StatusBadRequest, 0, "sessionId and variantId are required")
		return
	}
	cart, err := a.Store.AddCartItem(req.SessionID, req.VariantID, req.Quantity)
	if err != nil {
		a.cartError(c, err)
		return
	}
	respond(c, cart)
}

func (a *App) removeCartItem(c *gin.Context) {
	var req api.CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.VariantID == "" {
		respondError(c, http.StatusBadRequest, 0, "sessionId and variantId are required")
		return
	}
	cart, err := a.Store.RemoveCartItem(req.SessionID, req.VariantID)
	if err != nil {
		a.cartError(c, err)
		return
	}
	respond(c, cart)
}

func (a *App) cartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errUnknownVariant):
		respondError(c, http.StatusUnprocessableEntity, codeUnknownVariant, "variant not in catalog")
	case errors.Is(err, errUnknownSession):
		respondError(c, http.StatusNotFound, codeSessionExpired, "session not found or expired")
	default:
		respondError(c, http.StatusInternalServerError, 0, err.Error())
	}
}

func (a *App) checkout(c *gin.Context) {
	var req api.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		respondError(c, http.StatusBadRequest, 0, "sessionId is required")
		return
	}
	cart, ok := a.Store.Cart(req.SessionID)
	if !ok {
		respondError(c, http.StatusNotFound, codeSessionExpired, "session not found or expired")
		return
	}
	if cart.IsEmpty() {
		respondError(c, http.StatusUnprocessableEntity, codeEmptyCart, "cart is empty")
		return
	}
	respond(c, api.CheckoutResult{
		CheckoutURL: "https://checkout.sandbox.test/" + security.GenerateULID(),
		Total:       req.Total,
	})
}

func (a *App) recordConsent(c *gin.Context) {
	var req api.ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		respondError(c, http.StatusBadRequest, 0, "sessionId is required")
		return
	}
	status := a.Store.RecordConsent(req.VisitorID, req.OptIn)
	respond(c, api.ConsentResult{Status: status})
}

func (a *App) forgetPreferences(c *gin.Context) {
	var req api.ForgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 0, "invalid request")
		return
	}
	a.Store.ForgetVisitor(req.VisitorID)
	respond(c, gin.H{"forgotten": true})
}

func (a *App) merchantMessage(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId"`
		Content   string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		respondError(c, http.StatusBadRequest, 0, "sessionId and content are required")
		return
	}
	if _, ok := a.Store.GetSession(req.SessionID); !ok {
		respondError(c, http.StatusNotFound, codeSessionExpired, "session not found or expired")
		return
	}
	msg := widget.Message{
		MessageID: security.GenerateULID(),
		Content:   req.Content,
		Sender:    widget.SenderMerchant,
		CreatedAt: time.Now().UTC(),
	}
	delivered := a.Broadcaster.BroadcastMerchantMessage(req.SessionID, msg)
	respond(c, gin.H{"delivered": delivered})
}
