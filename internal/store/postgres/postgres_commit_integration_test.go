package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"apotekpos/backend/internal/billno"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

func integrationStore(t *testing.T) (*Store, string) {
	t.Helper()

	databaseURL := os.Getenv("APOTEKPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set APOTEKPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	tenantID := fmt.Sprintf("tenant-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id IN (SELECT id FROM sales WHERE tenant_id = $1)`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM batches WHERE tenant_id = $1`, tenantID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE tenant_id = $1`, tenantID)
	})

	return s, tenantID
}

func seedProduct(t *testing.T, s *Store, tenantID string, p domain.Product) {
	t.Helper()
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO products (tenant_id, id, name, price_cents, tracks_stock, batch_tracked, stock, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, tenantID, p.ID, p.Name, p.PriceCents, p.TracksStock, p.BatchTracked, p.Stock, p.Active)
	if err != nil {
		t.Fatalf("seed product %s: %v", p.ID, err)
	}
}

func seedBatch(t *testing.T, s *Store, tenantID string, b domain.Batch) {
	t.Helper()
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO batches (tenant_id, id, product_id, batch_number, expiry_date, qty, active, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, tenantID, b.ID, b.ProductID, b.BatchNumber, b.ExpiryDate, b.Qty, b.Active, b.ReceivedAt)
	if err != nil {
		t.Fatalf("seed batch %s: %v", b.ID, err)
	}
}

func draftOf(lines ...domain.SaleLine) domain.SaleDraft {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPriceCents * int64(l.Qty)
	}
	return domain.SaleDraft{
		Lines:         lines,
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
		PaymentMethod: "cash",
	}
}

func TestCommitSaleOversellAbortsCleanly(t *testing.T) {
	s, tenantID := integrationStore(t)
	ctx := context.Background()

	seedProduct(t, s, tenantID, domain.Product{
		ID: "P1", Name: "Vitamin C", PriceCents: 2800, TracksStock: true, Stock: 2, Active: true,
	})

	_, err := s.CommitSale(ctx, tenantID, draftOf(domain.SaleLine{
		ProductID: "P1", Name: "Vitamin C", UnitPriceCents: 2800, Qty: 3, TotalCents: 8400,
	}))

	var commitErr *store.CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if len(commitErr.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(commitErr.Violations))
	}
	v := commitErr.Violations[0]
	if v.Reason != store.ReasonInsufficientStock || v.Available != 2 || v.Requested != 3 {
		t.Fatalf("unexpected violation: %+v", v)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE tenant_id = $1 AND id = 'P1'
	`, tenantID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 2 {
		t.Fatalf("aborted commit must leave stock untouched, got %d", stock)
	}

	var saleCount int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM sales WHERE tenant_id = $1
	`, tenantID).Scan(&saleCount); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if saleCount != 0 {
		t.Fatalf("aborted commit must record no sale, got %d rows", saleCount)
	}
}

func TestCommitSaleFefoDrawsDownAcrossBatches(t *testing.T) {
	s, tenantID := integrationStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedProduct(t, s, tenantID, domain.Product{
		ID: "P1", Name: "Paracetamol", PriceCents: 1200, TracksStock: true, BatchTracked: true, Active: true,
	})
	seedBatch(t, s, tenantID, domain.Batch{
		ID: "B1", ProductID: "P1", BatchNumber: "PA01", ExpiryDate: now.Add(30 * 24 * time.Hour), Qty: 5, Active: true, ReceivedAt: now,
	})
	seedBatch(t, s, tenantID, domain.Batch{
		ID: "B2", ProductID: "P1", BatchNumber: "PA02", ExpiryDate: now.Add(90 * 24 * time.Hour), Qty: 5, Active: true, ReceivedAt: now,
	})

	sale, err := s.CommitSale(ctx, tenantID, draftOf(domain.SaleLine{
		ProductID: "P1", Name: "Paracetamol", UnitPriceCents: 1200, Qty: 7, TotalCents: 8400,
	}))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(sale.Lines) != 2 {
		t.Fatalf("expected the line split across 2 batches, got %d lines", len(sale.Lines))
	}
	if sale.Lines[0].BatchID != "B1" || sale.Lines[0].Qty != 5 {
		t.Fatalf("earliest-expiring batch must be drained first: %+v", sale.Lines[0])
	}
	if sale.Lines[1].BatchID != "B2" || sale.Lines[1].Qty != 2 {
		t.Fatalf("spillover must come from the next batch: %+v", sale.Lines[1])
	}

	var qty1, qty2 int
	if err := s.db.QueryRowContext(ctx, `SELECT qty FROM batches WHERE tenant_id = $1 AND id = 'B1'`, tenantID).Scan(&qty1); err != nil {
		t.Fatalf("query B1: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT qty FROM batches WHERE tenant_id = $1 AND id = 'B2'`, tenantID).Scan(&qty2); err != nil {
		t.Fatalf("query B2: %v", err)
	}
	if qty1 != 0 || qty2 != 3 {
		t.Fatalf("expected batch quantities 0 and 3, got %d and %d", qty1, qty2)
	}
}

func TestCommitSaleBillNumbersStrictlyIncrease(t *testing.T) {
	s, tenantID := integrationStore(t)
	ctx := context.Background()

	seedProduct(t, s, tenantID, domain.Product{
		ID: "P1", Name: "Vitamin C", PriceCents: 2800, TracksStock: true, Stock: 10, Active: true,
	})

	seen := make(map[string]bool)
	lastSeq := 0
	for i := 0; i < 3; i++ {
		sale, err := s.CommitSale(ctx, tenantID, draftOf(domain.SaleLine{
			ProductID: "P1", Name: "Vitamin C", UnitPriceCents: 2800, Qty: 1, TotalCents: 2800,
		}))
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		if seen[sale.BillNumber] {
			t.Fatalf("duplicate bill number %s", sale.BillNumber)
		}
		seen[sale.BillNumber] = true

		seq := billno.Sequence(sale.BillNumber)
		if seq <= lastSeq {
			t.Fatalf("bill sequence must strictly increase, got %d after %d", seq, lastSeq)
		}
		lastSeq = seq
	}
}

func TestCommitSaleIdempotencyReplay(t *testing.T) {
	s, tenantID := integrationStore(t)
	ctx := context.Background()

	seedProduct(t, s, tenantID, domain.Product{
		ID: "P1", Name: "Vitamin C", PriceCents: 2800, TracksStock: true, Stock: 10, Active: true,
	})

	draft := draftOf(domain.SaleLine{
		ProductID: "P1", Name: "Vitamin C", UnitPriceCents: 2800, Qty: 2, TotalCents: 5600,
	})
	draft.IdempotencyKey = fmt.Sprintf("idem-it-%d", time.Now().UnixNano())

	first, err := s.CommitSale(ctx, tenantID, draft)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	second, err := s.CommitSale(ctx, tenantID, draft)
	if err != nil {
		t.Fatalf("replay commit: %v", err)
	}
	if first.ID != second.ID || first.BillNumber != second.BillNumber {
		t.Fatalf("replay must return the recorded sale, got %s/%s then %s/%s",
			first.ID, first.BillNumber, second.ID, second.BillNumber)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE tenant_id = $1 AND id = 'P1'
	`, tenantID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("replay must not decrement stock twice, got %d", stock)
	}
}
