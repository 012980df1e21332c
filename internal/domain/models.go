package domain

import "time"

// Product is the catalog entry. Stock is only meaningful when TracksStock is
// set and the product is not batch tracked; batch-tracked quantity lives in
// the batch catalog.
type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	TracksStock  bool   `json:"tracks_stock"`
	BatchTracked bool   `json:"batch_tracked"`
	Stock        int    `json:"stock"`
	Active       bool   `json:"active"`
}

// Batch is one inbound lot of a batch-tracked product. Qty never goes below
// zero; a drained batch stays queryable but is excluded from allocation.
type Batch struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Qty         int       `json:"qty"`
	Active      bool      `json:"active"`
	SupplierID  string    `json:"supplier_id,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// CartLine identity is (ProductID, BatchID); BatchID is empty for non-batch
// products. Name and price are snapshots taken when the line was added.
type CartLine struct {
	ProductID      string `json:"product_id"`
	BatchID        string `json:"batch_id,omitempty"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
}

func (l CartLine) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Qty)
}

const (
	DiscountAmount  = "amount"
	DiscountPercent = "percent"
)

type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// SaleLine is an immutable snapshot; later product or batch edits never
// rewrite finalized history.
type SaleLine struct {
	ProductID      string `json:"product_id"`
	BatchID        string `json:"batch_id,omitempty"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	TotalCents     int64  `json:"total_cents"`
}

const (
	SaleStatusPaid     = "paid"
	SaleStatusPending  = "pending"
	SaleStatusRefunded = "refunded"
)

// SaleDraft is what the committer hands the ledger: totals and price
// snapshots are already fixed, only quantities get re-validated inside the
// commit transaction.
type SaleDraft struct {
	ID             string
	IdempotencyKey string
	Lines          []SaleLine
	SubtotalCents  int64
	DiscountCents  int64
	TaxCents       int64
	TotalCents     int64
	PaymentMethod  string
	TenderedCents  int64
	ChangeCents    int64
}

type Sale struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	BillNumber    string     `json:"bill_number"`
	Lines         []SaleLine `json:"lines"`
	SubtotalCents int64      `json:"subtotal_cents"`
	DiscountCents int64      `json:"discount_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	TenderedCents int64      `json:"tendered_cents"`
	ChangeCents   int64      `json:"change_cents"`
	Status        string     `json:"status"`
	RefundReason  string     `json:"refund_reason,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Availability is the advisory answer to "can N more units go into a cart".
// It reads a possibly stale snapshot; the commit transaction is authoritative.
type Availability struct {
	Allowed      bool   `json:"allowed"`
	AvailableQty int    `json:"available_qty"`
	Message      string `json:"message,omitempty"`
}

// LedgerChangeEvent is pushed to watchers after stock-affecting writes.
// Delivery order across products is not guaranteed; Available always carries
// the post-write quantity so late events still converge.
type LedgerChangeEvent struct {
	TenantID  string    `json:"tenant_id"`
	ProductID string    `json:"product_id"`
	BatchID   string    `json:"batch_id,omitempty"`
	Available int       `json:"available"`
	At        time.Time `json:"at"`
}

// Expiry classification buckets for UI warnings. Only "expired" affects
// allocation eligibility.
const (
	ExpiryExpired  = "expired"
	ExpiryCritical = "critical"
	ExpiryWarning  = "warning"
	ExpiryOK       = "ok"
)
