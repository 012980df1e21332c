// Package cart manages the in-progress sale for one terminal session. The
// cart is advisory state: availability is checked optimistically on every
// mutation, but nothing here reserves stock. The commit transaction is the
// only authority, so the cart must survive being wrong.
package cart

import (
	"math"
	"time"

	"apotekpos/backend/internal/domain"
)

// Advisory is a sticky availability warning shown at the terminal after a
// rejected add. It expires on its own so a stale warning never outlives the
// condition that caused it.
type Advisory struct {
	Message      string    `json:"message"`
	ProductID    string    `json:"product_id"`
	BatchID      string    `json:"batch_id,omitempty"`
	AvailableQty int       `json:"available_qty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Cart struct {
	Lines          []domain.CartLine `json:"lines"`
	Discount       float64           `json:"discount"`
	DiscountType   string            `json:"discount_type"`
	TaxRatePercent float64           `json:"tax_rate_percent"`
	StockError     *Advisory         `json:"stock_error,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func NewCart() *Cart {
	return &Cart{
		Lines:        []domain.CartLine{},
		DiscountType: domain.DiscountAmount,
	}
}

// Totals is pure and deterministic for a given cart state. The discount is
// applied to the subtotal before tax; an over-large discount may push the
// taxable base negative, but the grand total never drops below zero.
func (c *Cart) Totals() domain.Totals {
	var subtotal int64
	for _, line := range c.Lines {
		subtotal += line.TotalCents()
	}

	var discount int64
	switch c.DiscountType {
	case domain.DiscountPercent:
		discount = int64(math.Round(float64(subtotal) * c.Discount / 100))
	default:
		discount = int64(math.Round(c.Discount))
	}
	if discount < 0 {
		discount = 0
	}

	afterDiscount := subtotal - discount

	taxBase := afterDiscount
	if taxBase < 0 {
		taxBase = 0
	}
	tax := int64(math.Round(float64(taxBase) * c.TaxRatePercent / 100))

	total := afterDiscount + tax
	if total < 0 {
		total = 0
	}

	return domain.Totals{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TaxCents:      tax,
		TotalCents:    total,
	}
}

// QtyOf reports how many units of (productID, batchID) the cart already holds.
func (c *Cart) QtyOf(productID string, batchID string) int {
	for _, line := range c.Lines {
		if line.ProductID == productID && line.BatchID == batchID {
			return line.Qty
		}
	}
	return 0
}

func (c *Cart) lineIndex(productID string, batchID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID && line.BatchID == batchID {
			return i
		}
	}
	return -1
}
