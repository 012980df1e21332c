// Package checkout turns a session's cart into a finalized sale. It freezes
// the cart into a draft, hands it to the ledger's single commit transaction
// and clears the cart only after the ledger has accepted it.
package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"apotekpos/backend/internal/cart"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

type Committer struct {
	ledger store.Ledger
	carts  *cart.Manager
	logger *zap.Logger
}

func New(ledger store.Ledger, carts *cart.Manager, logger *zap.Logger) *Committer {
	return &Committer{ledger: ledger, carts: carts, logger: logger}
}

type Request struct {
	TenantID       string
	SessionID      string
	IdempotencyKey string
	PaymentMethod  string
	TenderedCents  int64
}

type Result struct {
	Sale   *domain.Sale  `json:"sale"`
	Totals domain.Totals `json:"totals"`
}

// Commit finalizes the session's cart. On a ledger rejection the cart is left
// exactly as it was, so the cashier can adjust lines and retry. The
// idempotency key defaults to a fresh UUID when the terminal supplies none.
func (c *Committer) Commit(ctx context.Context, req Request) (*Result, error) {
	current, err := c.carts.Load(ctx, req.TenantID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if len(current.Lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrInvalidSale)
	}

	totals := current.Totals()
	if req.TenderedCents > 0 && req.TenderedCents < totals.TotalCents {
		return nil, fmt.Errorf("%w: tendered %d below total %d", store.ErrInvalidSale, req.TenderedCents, totals.TotalCents)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	draft := domain.SaleDraft{
		IdempotencyKey: key,
		Lines:          make([]domain.SaleLine, 0, len(current.Lines)),
		SubtotalCents:  totals.SubtotalCents,
		DiscountCents:  totals.DiscountCents,
		TaxCents:       totals.TaxCents,
		TotalCents:     totals.TotalCents,
		PaymentMethod:  req.PaymentMethod,
		TenderedCents:  req.TenderedCents,
	}
	if req.TenderedCents > 0 {
		draft.ChangeCents = req.TenderedCents - totals.TotalCents
	}
	for _, line := range current.Lines {
		draft.Lines = append(draft.Lines, domain.SaleLine{
			ProductID:      line.ProductID,
			BatchID:        line.BatchID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			TotalCents:     line.TotalCents(),
		})
	}

	sale, err := c.ledger.CommitSale(ctx, req.TenantID, draft)
	if err != nil {
		return nil, err
	}

	if err := c.carts.Clear(ctx, req.TenantID, req.SessionID); err != nil {
		// The sale is already on the books; a lingering cart is recoverable.
		c.logger.Warn("sale committed but cart not cleared",
			zap.String("tenant_id", req.TenantID),
			zap.String("session_id", req.SessionID),
			zap.String("sale_id", sale.ID),
			zap.Error(err))
	}

	c.logger.Info("sale committed",
		zap.String("tenant_id", req.TenantID),
		zap.String("sale_id", sale.ID),
		zap.String("bill_number", sale.BillNumber),
		zap.Int64("total_cents", sale.TotalCents),
		zap.Int("lines", len(sale.Lines)))

	return &Result{Sale: sale, Totals: totals}, nil
}
