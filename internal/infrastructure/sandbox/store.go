// Package sandbox implements the collaborator surfaces the widget engine
// consumes (backend REST API, realtime feed, host storefront cart) as an
// in-memory gin application. It exists for local development and
// integration tests; it is not a production backend.
package sandbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/hazlamahedich/shop-widget-go/internal/domain/widget"
	"github.com/hazlamahedich/shop-widget-go/internal/infrastructure/security"
)

// product is one entry in the sandbox catalog
type product struct {
	Title string
	Price float64
}

// defaultCatalog maps variant ids to purchasable products
var defaultCatalog = map[string]product{
	"var-tea-001":    {Title: "Oolong Sampler", Price: 18.50},
	"var-tea-002":    {Title: "Jasmine Pearls", Price: 24.00},
	"var-mug-001":    {Title: "Stoneware Mug", Price: 14.00},
	"var-kettle-001": {Title: "Gooseneck Kettle", Price: 65.00},
}

type sessionRecord struct {
	session   widget.Session
	visitorID string
	messages  int
	cart      *widget.Cart
}

// Store holds all sandbox state behind one mutex. Volume is tiny; a
// single lock keeps the handlers simple.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*sessionRecord
	consents  map[string]widget.ConsentStatus // by visitor id
	jwtSecret []byte
	ttl       time.Duration
	catalog   map[string]product
}

// NewStore creates an empty sandbox store
func NewStore(jwtSecret string, ttl time.Duration) *Store {
	return &Store{
		sessions:  make(map[string]*sessionRecord),
		consents:  make(map[string]widget.ConsentStatus),
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		catalog:   defaultCatalog,
	}
}

// CreateSession mints a session whose id is a signed token carrying the
// merchant and expiry, so resume validation is stateless.
func (s *Store) CreateSession(merchantID, visitorID string) (*widget.Session, error) {
	now := time.Now().UTC()
	expires := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"sid":        security.GenerateULID(),
		"merchantId": merchantID,
		"iat":        now.Unix(),
		"exp":        expires.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	sessionID, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	record := &sessionRecord{
		session: widget.Session{
			SessionID:      sessionID,
			MerchantID:     merchantID,
			CreatedAt:      now,
			ExpiresAt:      expires,
			LastActivityAt: now,
		},
		visitorID: visitorID,
		cart:      &widget.Cart{Items: []widget.CartItem{}},
	}

	s.mu.Lock()
	s.sessions[sessionID] = record
	s.mu.Unlock()
	return &record.session, nil
}

// GetSession validates the session token and returns the live session
func (s *Store) GetSession(sessionID string) (*widget.Session, bool) {
	token, err := jwt.Parse(sessionID, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	record.session.LastActivityAt = time.Now().UTC()
	session := record.session
	return &session, true
}

// EndSession destroys a session and its cart
func (s *Store) EndSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// touch returns the record for a live session
func (s *Store) touch(sessionID string) (*sessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[sessionID]
	if ok {
		record.session.LastActivityAt = time.Now().UTC()
	}
	return record, ok
}

// RecordMessage counts a visitor message and reports whether this is the
// session's first (which triggers the consent-required signal).
func (s *Store) RecordMessage(sessionID string) (first bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.sessions[sessionID]
	if !exists {
		return false, false
	}
	record.messages++
	return record.messages == 1, true
}

// AddCartItem adds a catalog variant to the session cart
func (s *Store) AddCartItem(sessionID, variantID string, quantity int) (*widget.Cart, error) {
	item, ok := s.catalog[variantID]
	if !ok {
		return nil, errUnknownVariant
	}
	if quantity <= 0 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.sessions[sessionID]
	if !exists {
		return nil, errUnknownSession
	}

	found := false
	for i := range record.cart.Items {
		if record.cart.Items[i].VariantID == variantID {
			record.cart.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		record.cart.Items = append(record.cart.Items, widget.CartItem{
			VariantID: variantID,
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  quantity,
		})
	}
	recomputeCart(record.cart)
	return record.cart.Clone(), nil
}

// RemoveCartItem drops a variant from the session cart
func (s *Store) RemoveCartItem(sessionID, variantID string) (*widget.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.sessions[sessionID]
	if !exists {
		return nil, errUnknownSession
	}

	items := record.cart.Items[:0]
	for _, item := range record.cart.Items {
		if item.VariantID != variantID {
			items = append(items, item)
		}
	}
	record.cart.Items = items
	recomputeCart(record.cart)
	return record.cart.Clone(), nil
}

// Cart returns the session cart
func (s *Store) Cart(sessionID string) (*widget.Cart, bool) {
	record, ok := s.touch(sessionID)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return record.cart.Clone(), true
}

// RecordConsent stores the decision for a visitor
func (s *Store) RecordConsent(visitorID string, optIn bool) widget.ConsentStatus {
	status := widget.ConsentOptedOut
	if optIn {
		status = widget.ConsentOptedIn
	}
	if visitorID == "" {
		return status
	}
	s.mu.Lock()
	s.consents[visitorID] = status
	s.mu.Unlock()
	return status
}

// ForgetVisitor wipes all stored preferences for a visitor
func (s *Store) ForgetVisitor(visitorID string) {
	if visitorID == "" {
		return
	}
	s.mu.Lock()
	delete(s.consents, visitorID)
	s.mu.Unlock()
}

func recomputeCart(cart *widget.Cart) {
	count := 0
	var total float64
	for _, item := range cart.Items {
		count += item.Quantity
		total += item.Price * float64(item.Quantity)
	}
	cart.ItemCount = count
	cart.Total = total
}
