package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"apotekpos/backend/internal/availability"
	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

const (
	DefaultTTL            = 4 * time.Hour
	DefaultAdvisoryWindow = 30 * time.Second
)

// Checker answers the optimistic "can this go in" question.
type Checker interface {
	CanAdd(ctx context.Context, tenantID string, req availability.Request) (domain.Availability, error)
}

// Catalog provides the name and price snapshots taken when a line is added.
type Catalog interface {
	GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error)
	GetBatch(ctx context.Context, tenantID string, batchID string) (*domain.Batch, error)
}

// Manager persists carts in the session store keyed by tenant and session. A
// rejected add leaves the lines untouched and records an advisory instead;
// decrement and remove never consult availability.
type Manager struct {
	checker        Checker
	catalog        Catalog
	sessions       cache.SessionStore
	ttl            time.Duration
	advisoryWindow time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func NewManager(checker Checker, catalog Catalog, sessions cache.SessionStore, logger *zap.Logger) *Manager {
	return &Manager{
		checker:        checker,
		catalog:        catalog,
		sessions:       sessions,
		ttl:            DefaultTTL,
		advisoryWindow: DefaultAdvisoryWindow,
		logger:         logger,
		now:            time.Now,
	}
}

func (m *Manager) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		m.ttl = ttl
	}
}

func (m *Manager) SetAdvisoryWindow(window time.Duration) {
	if window > 0 {
		m.advisoryWindow = window
	}
}

func cartKey(tenantID string, sessionID string) string {
	return "cart:" + tenantID + ":" + sessionID
}

// Load returns the session's cart, or a fresh one when nothing usable is
// stored. An advisory past its window is cleared on the way out.
func (m *Manager) Load(ctx context.Context, tenantID string, sessionID string) (*Cart, error) {
	raw, err := m.sessions.Get(ctx, cartKey(tenantID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if raw == nil {
		return NewCart(), nil
	}

	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		// A corrupt blob is not worth failing a sale over; start clean.
		m.logger.Warn("discarding unreadable cart",
			zap.String("tenant_id", tenantID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return NewCart(), nil
	}
	if c.Lines == nil {
		c.Lines = []domain.CartLine{}
	}
	if c.DiscountType == "" {
		c.DiscountType = domain.DiscountAmount
	}

	now := m.now().UTC()
	if !c.UpdatedAt.IsZero() && now.Sub(c.UpdatedAt) > m.ttl {
		return NewCart(), nil
	}
	if c.StockError != nil && !c.StockError.ExpiresAt.After(now) {
		c.StockError = nil
	}
	return &c, nil
}

func (m *Manager) AddItem(ctx context.Context, tenantID string, sessionID string, productID string, batchID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: qty must be positive", store.ErrInvalidSale)
	}

	c, err := m.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	product, err := m.catalog.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if batchID != "" {
		batch, err := m.catalog.GetBatch(ctx, tenantID, batchID)
		if err != nil {
			return nil, err
		}
		if batch.ProductID != productID {
			return nil, fmt.Errorf("%w: batch %s does not belong to product %s", store.ErrInvalidSale, batchID, productID)
		}
	}

	verdict, err := m.checker.CanAdd(ctx, tenantID, availability.Request{
		ProductID:    productID,
		BatchID:      batchID,
		RequestedQty: qty,
		HeldQty:      c.QtyOf(productID, batchID),
	})
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		c.StockError = &Advisory{
			Message:      verdict.Message,
			ProductID:    productID,
			BatchID:      batchID,
			AvailableQty: verdict.AvailableQty,
			ExpiresAt:    m.now().UTC().Add(m.advisoryWindow),
		}
		if err := m.save(ctx, tenantID, sessionID, c); err != nil {
			return nil, err
		}
		return c, nil
	}

	if i := c.lineIndex(productID, batchID); i >= 0 {
		c.Lines[i].Qty += qty
	} else {
		c.Lines = append(c.Lines, domain.CartLine{
			ProductID:      productID,
			BatchID:        batchID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            qty,
		})
	}
	c.StockError = nil

	if err := m.save(ctx, tenantID, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) IncrementQty(ctx context.Context, tenantID string, sessionID string, productID string, batchID string) (*Cart, error) {
	return m.AddItem(ctx, tenantID, sessionID, productID, batchID, 1)
}

// DecrementQty lowers a line by one and drops the line at zero. Shrinking a
// cart can never oversell, so no availability check runs here.
func (m *Manager) DecrementQty(ctx context.Context, tenantID string, sessionID string, productID string, batchID string) (*Cart, error) {
	c, err := m.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	i := c.lineIndex(productID, batchID)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	c.Lines[i].Qty--
	if c.Lines[i].Qty < 1 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}

	if err := m.save(ctx, tenantID, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) RemoveItem(ctx context.Context, tenantID string, sessionID string, productID string, batchID string) (*Cart, error) {
	c, err := m.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	i := c.lineIndex(productID, batchID)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)

	if err := m.save(ctx, tenantID, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) SetDiscount(ctx context.Context, tenantID string, sessionID string, value float64, discountType string) (*Cart, error) {
	if value < 0 {
		return nil, fmt.Errorf("%w: discount cannot be negative", store.ErrInvalidSale)
	}
	if discountType != domain.DiscountAmount && discountType != domain.DiscountPercent {
		return nil, fmt.Errorf("%w: unknown discount type %q", store.ErrInvalidSale, discountType)
	}
	if discountType == domain.DiscountPercent && value > 100 {
		return nil, fmt.Errorf("%w: percent discount cannot exceed 100", store.ErrInvalidSale)
	}

	c, err := m.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	c.Discount = value
	c.DiscountType = discountType

	if err := m.save(ctx, tenantID, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) SetTaxRate(ctx context.Context, tenantID string, sessionID string, percent float64) (*Cart, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", store.ErrInvalidSale)
	}

	c, err := m.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	c.TaxRatePercent = percent

	if err := m.save(ctx, tenantID, sessionID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) Clear(ctx context.Context, tenantID string, sessionID string) error {
	if err := m.sessions.Delete(ctx, cartKey(tenantID, sessionID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (m *Manager) save(ctx context.Context, tenantID string, sessionID string, c *Cart) error {
	c.UpdatedAt = m.now().UTC()
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := m.sessions.Set(ctx, cartKey(tenantID, sessionID), raw, m.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
