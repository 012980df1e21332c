// Package store defines the Ledger contract: the authoritative, tenant-scoped
// quantity state for products and batches, with an all-or-nothing sale commit.
// Two implementations exist: postgres (transactional) and memory (test/demo).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apotekpos/backend/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProductNotFound = errors.New("product not found")
	ErrBatchNotFound   = errors.New("batch not found")
	ErrBatchExpired    = errors.New("batch expired")
	ErrInvalidSale     = errors.New("invalid sale")
	// ErrPersistence wraps infrastructural failures (connection loss, store
	// outage). The transaction guarantees mean a wrapped failure is never
	// partially applied.
	ErrPersistence = errors.New("persistence failure")
)

type ViolationReason string

const (
	ReasonInsufficientStock ViolationReason = "insufficient_stock"
	ReasonBatchExpired      ViolationReason = "batch_expired"
	ReasonBatchNotFound     ViolationReason = "batch_not_found"
	ReasonProductNotFound   ViolationReason = "product_not_found"
)

// LineViolation describes one cart line the commit transaction rejected,
// with the authoritative quantity observed inside the transaction.
type LineViolation struct {
	ProductID string          `json:"product_id"`
	BatchID   string          `json:"batch_id,omitempty"`
	Requested int             `json:"requested"`
	Available int             `json:"available"`
	Reason    ViolationReason `json:"reason"`
}

// CommitError aborts a sale commit. It carries every violating line item, not
// just the first, so the terminal can show the full picture at once.
type CommitError struct {
	Violations []LineViolation
}

func (e *CommitError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		switch v.Reason {
		case ReasonInsufficientStock:
			parts = append(parts, fmt.Sprintf("%s: only %d left, %d requested", v.ProductID, v.Available, v.Requested))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", v.ProductID, v.Reason))
		}
	}
	return "commit rejected: " + strings.Join(parts, "; ")
}

// Ledger is the shared stock authority. Reads are unsynchronized snapshots;
// all mutation funnels through CommitSale, ReceiveBatch and AdjustStock.
type Ledger interface {
	GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error)
	GetBatch(ctx context.Context, tenantID string, batchID string) (*domain.Batch, error)
	ListBatches(ctx context.Context, tenantID string, productID string, includeExpired bool) ([]domain.Batch, error)

	// ReceiveBatch records an inbound lot of a batch-tracked product.
	ReceiveBatch(ctx context.Context, tenantID string, batch domain.Batch) (*domain.Batch, error)
	// AdjustStock sets the counter of a tracked, non-batch product.
	AdjustStock(ctx context.Context, tenantID string, productID string, qty int) error

	// CommitSale re-reads every line's authoritative quantity inside one
	// transaction, decrements all of them or none, assigns the bill number
	// and records the finalized sale. A replayed idempotency key returns the
	// already-recorded sale without touching stock.
	CommitSale(ctx context.Context, tenantID string, draft domain.SaleDraft) (*domain.Sale, error)

	GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	// MarkSaleRefunded is the only permitted mutation of a finalized sale: a
	// recorded status transition, never an edit.
	MarkSaleRefunded(ctx context.Context, tenantID string, saleID string, reason string) (*domain.Sale, error)

	// Watch streams ledger changes for a tenant until cancel is called.
	// Cancel is idempotent.
	Watch(tenantID string) (<-chan domain.LedgerChangeEvent, func())
}
