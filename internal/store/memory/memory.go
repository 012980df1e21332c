// Package memory is the in-process Ledger used for tests and demo mode. It
// implements the same all-or-nothing commit semantics as the postgres store
// with a single mutex standing in for the transaction boundary.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"apotekpos/backend/internal/allocator"
	"apotekpos/backend/internal/billno"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/xid"
)

type Store struct {
	mu          sync.RWMutex
	hub         *store.Hub
	products    map[string]map[string]domain.Product
	batches     map[string]map[string]domain.Batch
	sales       map[string]map[string]*domain.Sale
	salesByIdem map[string]map[string]string
	billSeq     map[string]int // tenantID|yyyymmdd -> bills issued that day
}

func New() *Store {
	return &Store{
		hub:         store.NewHub(),
		products:    make(map[string]map[string]domain.Product),
		batches:     make(map[string]map[string]domain.Batch),
		sales:       make(map[string]map[string]*domain.Sale),
		salesByIdem: make(map[string]map[string]string),
		billSeq:     make(map[string]int),
	}
}

// NewSeeded returns a store preloaded with a small pharmacy catalog for demo
// mode and handler tests.
func NewSeeded(tenantID string) *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "PRD-PARA-500", Name: "Paracetamol 500mg", PriceCents: 1200, TracksStock: true, BatchTracked: true, Active: true},
		{ID: "PRD-AMOX-250", Name: "Amoxicillin 250mg", PriceCents: 3400, TracksStock: true, BatchTracked: true, Active: true},
		{ID: "PRD-VITC-01", Name: "Vitamin C 1000mg", PriceCents: 2800, TracksStock: true, Stock: 80, Active: true},
		{ID: "PRD-MASK-01", Name: "Surgical Mask 50pc", PriceCents: 4500, TracksStock: true, Stock: 40, Active: true},
		{ID: "PRD-CONSULT", Name: "Pharmacist Consultation", PriceCents: 5000, Active: true},
	}
	batches := []domain.Batch{
		{ID: "BAT-PARA-A", ProductID: "PRD-PARA-500", BatchNumber: "PA2603", ExpiryDate: now.Add(45 * 24 * time.Hour), Qty: 60, Active: true, ReceivedAt: now},
		{ID: "BAT-PARA-B", ProductID: "PRD-PARA-500", BatchNumber: "PA2609", ExpiryDate: now.Add(160 * 24 * time.Hour), Qty: 200, Active: true, ReceivedAt: now},
		{ID: "BAT-AMOX-A", ProductID: "PRD-AMOX-250", BatchNumber: "AM2605", ExpiryDate: now.Add(90 * 24 * time.Hour), Qty: 35, Active: true, ReceivedAt: now},
	}

	s.products[tenantID] = make(map[string]domain.Product, len(products))
	for _, p := range products {
		s.products[tenantID][p.ID] = p
	}
	s.batches[tenantID] = make(map[string]domain.Batch, len(batches))
	for _, b := range batches {
		s.batches[tenantID][b.ID] = b
	}

	return s
}

func (s *Store) GetProduct(_ context.Context, tenantID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[tenantID][productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	out := product
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context, tenantID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products[tenantID]))
	for _, p := range s.products[tenantID] {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

// UpsertProduct exists for seeding and inventory-adjustment flows; sale
// commits never go through it.
func (s *Store) UpsertProduct(_ context.Context, tenantID string, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidSale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.products[tenantID] == nil {
		s.products[tenantID] = make(map[string]domain.Product)
	}
	s.products[tenantID][product.ID] = product
	out := product
	return &out, nil
}

func (s *Store) GetBatch(_ context.Context, tenantID string, batchID string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[tenantID][batchID]
	if !ok {
		return nil, store.ErrBatchNotFound
	}
	out := batch
	return &out, nil
}

func (s *Store) ListBatches(_ context.Context, tenantID string, productID string, includeExpired bool) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	batches := make([]domain.Batch, 0, 8)
	for _, b := range s.batches[tenantID] {
		if b.ProductID != productID {
			continue
		}
		if !includeExpired && allocator.Expired(b, now) {
			continue
		}
		batches = append(batches, b)
	}
	slices.SortFunc(batches, func(a, b domain.Batch) int {
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			if a.ExpiryDate.Before(b.ExpiryDate) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return batches, nil
}

func (s *Store) ReceiveBatch(_ context.Context, tenantID string, batch domain.Batch) (*domain.Batch, error) {
	if batch.ProductID == "" || batch.BatchNumber == "" || batch.Qty < 1 || batch.ExpiryDate.IsZero() {
		return nil, store.ErrInvalidSale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[tenantID][batch.ProductID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	if !product.BatchTracked {
		return nil, fmt.Errorf("%w: product %s is not batch tracked", store.ErrInvalidSale, batch.ProductID)
	}

	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	batch.Active = true

	if s.batches[tenantID] == nil {
		s.batches[tenantID] = make(map[string]domain.Batch)
	}
	s.batches[tenantID][batch.ID] = batch

	s.hub.Publish(domain.LedgerChangeEvent{
		TenantID:  tenantID,
		ProductID: batch.ProductID,
		BatchID:   batch.ID,
		Available: batch.Qty,
		At:        time.Now().UTC(),
	})

	out := batch
	return &out, nil
}

func (s *Store) AdjustStock(_ context.Context, tenantID string, productID string, qty int) error {
	if qty < 0 {
		return store.ErrInvalidSale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[tenantID][productID]
	if !ok {
		return store.ErrProductNotFound
	}
	if !product.TracksStock || product.BatchTracked {
		return fmt.Errorf("%w: product %s has no plain stock counter", store.ErrInvalidSale, productID)
	}

	product.Stock = qty
	s.products[tenantID][productID] = product

	s.hub.Publish(domain.LedgerChangeEvent{
		TenantID:  tenantID,
		ProductID: productID,
		Available: qty,
		At:        time.Now().UTC(),
	})
	return nil
}

func (s *Store) CommitSale(_ context.Context, tenantID string, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.IdempotencyKey != "" {
		if saleID, ok := s.salesByIdem[tenantID][draft.IdempotencyKey]; ok {
			existing := *s.sales[tenantID][saleID]
			return &existing, nil
		}
	}

	now := time.Now().UTC()

	// Stage every decrement against working copies; nothing touches the real
	// maps until all lines validate.
	workingStock := make(map[string]int)
	workingBatches := make(map[string]domain.Batch)
	violations := make([]store.LineViolation, 0, 2)
	finalLines := make([]domain.SaleLine, 0, len(draft.Lines))
	events := make([]domain.LedgerChangeEvent, 0, len(draft.Lines))

	for _, line := range draft.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidSale
		}

		product, ok := s.products[tenantID][line.ProductID]
		if !ok || !product.Active {
			violations = append(violations, store.LineViolation{
				ProductID: line.ProductID,
				BatchID:   line.BatchID,
				Requested: line.Qty,
				Reason:    store.ReasonProductNotFound,
			})
			continue
		}

		if !product.TracksStock {
			finalLines = append(finalLines, line)
			continue
		}

		if !product.BatchTracked {
			available, staged := workingStock[line.ProductID]
			if !staged {
				available = product.Stock
			}
			if available < line.Qty {
				violations = append(violations, store.LineViolation{
					ProductID: line.ProductID,
					Requested: line.Qty,
					Available: available,
					Reason:    store.ReasonInsufficientStock,
				})
				continue
			}
			workingStock[line.ProductID] = available - line.Qty
			events = append(events, domain.LedgerChangeEvent{
				TenantID:  tenantID,
				ProductID: line.ProductID,
				Available: available - line.Qty,
			})
			finalLines = append(finalLines, line)
			continue
		}

		if line.BatchID != "" {
			batch, ok := s.stagedBatch(workingBatches, tenantID, line.BatchID)
			if !ok {
				violations = append(violations, store.LineViolation{
					ProductID: line.ProductID,
					BatchID:   line.BatchID,
					Requested: line.Qty,
					Reason:    store.ReasonBatchNotFound,
				})
				continue
			}
			if allocator.Expired(batch, now) || !batch.Active {
				violations = append(violations, store.LineViolation{
					ProductID: line.ProductID,
					BatchID:   line.BatchID,
					Requested: line.Qty,
					Reason:    store.ReasonBatchExpired,
				})
				continue
			}
			if batch.Qty < line.Qty {
				violations = append(violations, store.LineViolation{
					ProductID: line.ProductID,
					BatchID:   line.BatchID,
					Requested: line.Qty,
					Available: batch.Qty,
					Reason:    store.ReasonInsufficientStock,
				})
				continue
			}
			batch.Qty -= line.Qty
			workingBatches[batch.ID] = batch
			events = append(events, domain.LedgerChangeEvent{
				TenantID:  tenantID,
				ProductID: line.ProductID,
				BatchID:   batch.ID,
				Available: batch.Qty,
			})
			finalLines = append(finalLines, line)
			continue
		}

		// No batch pre-selected: automatic FEFO across the staged view.
		candidates := s.stagedBatchesForProduct(workingBatches, tenantID, line.ProductID)
		allocations, remaining := allocator.Allocate(candidates, line.Qty, now)
		if remaining > 0 {
			violations = append(violations, store.LineViolation{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: allocator.AvailableQty(candidates, now),
				Reason:    store.ReasonInsufficientStock,
			})
			continue
		}
		for _, alloc := range allocations {
			staged := alloc.Batch
			staged.Qty -= alloc.Qty
			workingBatches[staged.ID] = staged
			events = append(events, domain.LedgerChangeEvent{
				TenantID:  tenantID,
				ProductID: line.ProductID,
				BatchID:   staged.ID,
				Available: staged.Qty,
			})
			finalLines = append(finalLines, domain.SaleLine{
				ProductID:      line.ProductID,
				BatchID:        staged.ID,
				Name:           line.Name,
				UnitPriceCents: line.UnitPriceCents,
				Qty:            alloc.Qty,
				TotalCents:     line.UnitPriceCents * int64(alloc.Qty),
			})
		}
	}

	if len(violations) > 0 {
		return nil, &store.CommitError{Violations: violations}
	}

	// All lines validated: apply the staged decrements.
	for productID, qty := range workingStock {
		product := s.products[tenantID][productID]
		product.Stock = qty
		s.products[tenantID][productID] = product
	}
	for batchID, batch := range workingBatches {
		s.batches[tenantID][batchID] = batch
	}

	dayKey := tenantID + "|" + now.Format("20060102")
	s.billSeq[dayKey]++

	sale := &domain.Sale{
		ID:            draft.ID,
		TenantID:      tenantID,
		BillNumber:    billno.Format(now, s.billSeq[dayKey]),
		Lines:         finalLines,
		SubtotalCents: draft.SubtotalCents,
		DiscountCents: draft.DiscountCents,
		TaxCents:      draft.TaxCents,
		TotalCents:    draft.TotalCents,
		PaymentMethod: draft.PaymentMethod,
		TenderedCents: draft.TenderedCents,
		ChangeCents:   draft.ChangeCents,
		Status:        domain.SaleStatusPaid,
		CreatedAt:     now,
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}

	if s.sales[tenantID] == nil {
		s.sales[tenantID] = make(map[string]*domain.Sale)
	}
	s.sales[tenantID][sale.ID] = sale
	if draft.IdempotencyKey != "" {
		if s.salesByIdem[tenantID] == nil {
			s.salesByIdem[tenantID] = make(map[string]string)
		}
		s.salesByIdem[tenantID][draft.IdempotencyKey] = sale.ID
	}

	for _, event := range events {
		event.At = now
		s.hub.Publish(event)
	}

	out := *sale
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[tenantID][saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *sale
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 32)
	for _, sale := range s.sales[tenantID] {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		sales = append(sales, *sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.BillNumber, b.BillNumber)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) MarkSaleRefunded(_ context.Context, tenantID string, saleID string, reason string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[tenantID][saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Status == domain.SaleStatusRefunded {
		return nil, fmt.Errorf("%w: sale already refunded", store.ErrInvalidSale)
	}

	now := time.Now().UTC()
	sale.Status = domain.SaleStatusRefunded
	sale.RefundReason = reason
	sale.RefundedAt = &now

	out := *sale
	return &out, nil
}

func (s *Store) Watch(tenantID string) (<-chan domain.LedgerChangeEvent, func()) {
	return s.hub.Subscribe(tenantID)
}

// stagedBatch reads a batch through the staged overlay so repeated lines in
// one draft see each other's decrements.
func (s *Store) stagedBatch(staged map[string]domain.Batch, tenantID string, batchID string) (domain.Batch, bool) {
	if batch, ok := staged[batchID]; ok {
		return batch, true
	}
	batch, ok := s.batches[tenantID][batchID]
	return batch, ok
}

func (s *Store) stagedBatchesForProduct(staged map[string]domain.Batch, tenantID string, productID string) []domain.Batch {
	batches := make([]domain.Batch, 0, 8)
	for id, batch := range s.batches[tenantID] {
		if batch.ProductID != productID {
			continue
		}
		if overlay, ok := staged[id]; ok {
			batch = overlay
		}
		batches = append(batches, batch)
	}
	return batches
}
