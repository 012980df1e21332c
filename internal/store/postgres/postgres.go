// Package postgres is the transactional Ledger implementation. Sale commits
// run in one serializable transaction with row locks on every touched product
// and batch; the bill-number count read participates in the same transaction.
//
// Expected tables: products, batches, sales, sale_lines. The sales table
// carries unique indexes on (tenant_id, bill_number) and
// (tenant_id, idempotency_key) as backstops for the transactional guarantees.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"apotekpos/backend/internal/allocator"
	"apotekpos/backend/internal/billno"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/xid"
)

type Store struct {
	db  *sql.DB
	hub *store.Hub
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	return &Store{db: db, hub: store.NewHub()}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, tracks_stock, batch_tracked, stock, active
		FROM products
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, productID).Scan(&p.ID, &p.Name, &p.PriceCents, &p.TracksStock, &p.BatchTracked, &p.Stock, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, tracks_stock, batch_tracked, stock, active
		FROM products
		WHERE tenant_id = $1 AND active = true
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.TracksStock, &p.BatchTracked, &p.Stock, &p.Active); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	return products, nil
}

func (s *Store) GetBatch(ctx context.Context, tenantID string, batchID string) (*domain.Batch, error) {
	var b domain.Batch
	var supplier sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, batch_number, expiry_date, qty, active, supplier_id, received_at
		FROM batches
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, batchID).Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Qty, &b.Active, &supplier, &b.ReceivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBatchNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	b.SupplierID = supplier.String
	return &b, nil
}

func (s *Store) ListBatches(ctx context.Context, tenantID string, productID string, includeExpired bool) ([]domain.Batch, error) {
	query := `
		SELECT id, product_id, batch_number, expiry_date, qty, active, supplier_id, received_at
		FROM batches
		WHERE tenant_id = $1 AND product_id = $2
	`
	if !includeExpired {
		query += ` AND expiry_date > now()`
	}
	query += ` ORDER BY expiry_date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0, 8)
	for rows.Next() {
		var b domain.Batch
		var supplier sql.NullString
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Qty, &b.Active, &supplier, &b.ReceivedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		b.SupplierID = supplier.String
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	return batches, nil
}

func (s *Store) ReceiveBatch(ctx context.Context, tenantID string, batch domain.Batch) (*domain.Batch, error) {
	if batch.ProductID == "" || batch.BatchNumber == "" || batch.Qty < 1 || batch.ExpiryDate.IsZero() {
		return nil, store.ErrInvalidSale
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	batch.Active = true

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	var batchTracked bool
	err = tx.QueryRowContext(ctx, `
		SELECT batch_tracked FROM products WHERE tenant_id = $1 AND id = $2
	`, tenantID, batch.ProductID).Scan(&batchTracked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	if !batchTracked {
		return nil, fmt.Errorf("%w: product %s is not batch tracked", store.ErrInvalidSale, batch.ProductID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (tenant_id, id, product_id, batch_number, expiry_date, qty, active, supplier_id, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, tenantID, batch.ID, batch.ProductID, batch.BatchNumber, batch.ExpiryDate, batch.Qty, batch.Active,
		nullIfEmpty(batch.SupplierID), batch.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

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

func (s *Store) AdjustStock(ctx context.Context, tenantID string, productID string, qty int) error {
	if qty < 0 {
		return store.ErrInvalidSale
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = $1
		WHERE tenant_id = $2 AND id = $3 AND tracks_stock = true AND batch_tracked = false
	`, qty, tenantID, productID)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	if affected == 0 {
		return store.ErrProductNotFound
	}

	s.hub.Publish(domain.LedgerChangeEvent{
		TenantID:  tenantID,
		ProductID: productID,
		Available: qty,
		At:        time.Now().UTC(),
	})
	return nil
}

func (s *Store) CommitSale(ctx context.Context, tenantID string, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if draft.IdempotencyKey != "" {
		existing, err := s.findSaleTx(ctx, tx, tenantID, "idempotency_key", draft.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	violations := make([]store.LineViolation, 0, 2)
	finalLines := make([]domain.SaleLine, 0, len(draft.Lines))
	events := make([]domain.LedgerChangeEvent, 0, len(draft.Lines))

	// Staged views so repeated lines for the same product or batch observe
	// each other's decrements before anything is written.
	stagedStock := make(map[string]int)
	stagedBatch := make(map[string]domain.Batch)

	for _, line := range draft.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidSale
		}

		var p domain.Product
		err := tx.QueryRowContext(ctx, `
			SELECT id, tracks_stock, batch_tracked, stock, active
			FROM products
			WHERE tenant_id = $1 AND id = $2
			FOR UPDATE
		`, tenantID, line.ProductID).Scan(&p.ID, &p.TracksStock, &p.BatchTracked, &p.Stock, &p.Active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				violations = append(violations, store.LineViolation{
					ProductID: line.ProductID,
					BatchID:   line.BatchID,
					Requested: line.Qty,
					Reason:    store.ReasonProductNotFound,
				})
				continue
			}
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		if !p.Active {
			violations = append(violations, store.LineViolation{
				ProductID: line.ProductID,
				BatchID:   line.BatchID,
				Requested: line.Qty,
				Reason:    store.ReasonProductNotFound,
			})
			continue
		}

		if !p.TracksStock {
			finalLines = append(finalLines, line)
			continue
		}

		if !p.BatchTracked {
			available, staged := stagedStock[p.ID]
			if !staged {
				available = p.Stock
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
			stagedStock[p.ID] = available - line.Qty
			events = append(events, domain.LedgerChangeEvent{
				TenantID:  tenantID,
				ProductID: p.ID,
				Available: available - line.Qty,
			})
			finalLines = append(finalLines, line)
			continue
		}

		batches, err := s.lockBatchesTx(ctx, tx, tenantID, line.ProductID)
		if err != nil {
			return nil, err
		}
		for i, b := range batches {
			if overlay, ok := stagedBatch[b.ID]; ok {
				batches[i] = overlay
			}
		}

		if line.BatchID != "" {
			batch, ok := findBatch(batches, line.BatchID)
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
			stagedBatch[batch.ID] = batch
			events = append(events, domain.LedgerChangeEvent{
				TenantID:  tenantID,
				ProductID: line.ProductID,
				BatchID:   batch.ID,
				Available: batch.Qty,
			})
			finalLines = append(finalLines, line)
			continue
		}

		allocations, remaining := allocator.Allocate(batches, line.Qty, now)
		if remaining > 0 {
			violations = append(violations, store.LineViolation{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: allocator.AvailableQty(batches, now),
				Reason:    store.ReasonInsufficientStock,
			})
			continue
		}
		for _, alloc := range allocations {
			staged := alloc.Batch
			staged.Qty -= alloc.Qty
			stagedBatch[staged.ID] = staged
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

	for productID, qty := range stagedStock {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = $1 WHERE tenant_id = $2 AND id = $3
		`, qty, tenantID, productID); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
	}
	for batchID, batch := range stagedBatch {
		if _, err := tx.ExecContext(ctx, `
			UPDATE batches SET qty = $1 WHERE tenant_id = $2 AND id = $3
		`, batch.Qty, tenantID, batchID); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
	}

	// Bill number: count of bills already issued for this tenant today, read
	// inside the same transaction as the sale insert. Serializable isolation
	// plus the unique index keep concurrent checkouts from sharing a number.
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var issuedToday int
	err = tx.QueryRowContext(ctx, `
		SELECT count(*) FROM sales
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
	`, tenantID, dayStart, dayStart.Add(24*time.Hour)).Scan(&issuedToday)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	sale := domain.Sale{
		ID:            draft.ID,
		TenantID:      tenantID,
		BillNumber:    billno.Format(now, issuedToday+1),
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			tenant_id, id, bill_number, subtotal_cents, discount_cents, tax_cents,
			total_cents, payment_method, tendered_cents, change_cents, status,
			idempotency_key, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sale.TenantID, sale.ID, sale.BillNumber, sale.SubtotalCents, sale.DiscountCents, sale.TaxCents,
		sale.TotalCents, sale.PaymentMethod, sale.TenderedCents, sale.ChangeCents, sale.Status,
		nullIfEmpty(draft.IdempotencyKey), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) && draft.IdempotencyKey != "" {
			if existing, lookupErr := s.findSale(ctx, tenantID, "idempotency_key", draft.IdempotencyKey); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	for i, l := range sale.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, position, product_id, batch_id, name, unit_price_cents, qty, total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, sale.ID, i, l.ProductID, nullIfEmpty(l.BatchID), l.Name, l.UnitPriceCents, l.Qty, l.TotalCents)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	for _, event := range events {
		event.At = now
		s.hub.Publish(event)
	}

	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	return s.findSale(ctx, tenantID, "id", saleID)
}

func (s *Store) ListSales(ctx context.Context, tenantID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM sales
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, bill_number ASC
		LIMIT $4
	`, tenantID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	sales := make([]domain.Sale, 0, len(ids))
	for _, id := range ids {
		sale, err := s.findSale(ctx, tenantID, "id", id)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, nil
}

func (s *Store) MarkSaleRefunded(ctx context.Context, tenantID string, saleID string, reason string) (*domain.Sale, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET status = $1, refund_reason = $2, refunded_at = $3
		WHERE tenant_id = $4 AND id = $5 AND status <> $1
	`, domain.SaleStatusRefunded, reason, now, tenantID, saleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	if affected == 0 {
		if _, err := s.findSale(ctx, tenantID, "id", saleID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: sale already refunded", store.ErrInvalidSale)
	}
	return s.findSale(ctx, tenantID, "id", saleID)
}

func (s *Store) Watch(tenantID string) (<-chan domain.LedgerChangeEvent, func()) {
	return s.hub.Subscribe(tenantID)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) findSale(ctx context.Context, tenantID string, column string, value string) (*domain.Sale, error) {
	return s.findSaleIn(ctx, s.db, tenantID, column, value)
}

func (s *Store) findSaleTx(ctx context.Context, tx *sql.Tx, tenantID string, column string, value string) (*domain.Sale, error) {
	return s.findSaleIn(ctx, tx, tenantID, column, value)
}

func (s *Store) findSaleIn(ctx context.Context, q rowQuerier, tenantID string, column string, value string) (*domain.Sale, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, store.ErrInvalidSale
	}

	var sale domain.Sale
	var refundReason sql.NullString
	var refundedAt sql.NullTime
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT tenant_id, id, bill_number, subtotal_cents, discount_cents, tax_cents,
		       total_cents, payment_method, tendered_cents, change_cents, status,
		       refund_reason, refunded_at, created_at
		FROM sales
		WHERE tenant_id = $1 AND %s = $2
	`, column), tenantID, value).Scan(
		&sale.TenantID, &sale.ID, &sale.BillNumber, &sale.SubtotalCents, &sale.DiscountCents,
		&sale.TaxCents, &sale.TotalCents, &sale.PaymentMethod, &sale.TenderedCents,
		&sale.ChangeCents, &sale.Status, &refundReason, &refundedAt, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	sale.RefundReason = refundReason.String
	if refundedAt.Valid {
		at := refundedAt.Time
		sale.RefundedAt = &at
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, batch_id, name, unit_price_cents, qty, total_cents
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY position ASC
	`, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.SaleLine
		var batchID sql.NullString
		if err := rows.Scan(&l.ProductID, &batchID, &l.Name, &l.UnitPriceCents, &l.Qty, &l.TotalCents); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		l.BatchID = batchID.String
		sale.Lines = append(sale.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	return &sale, nil
}

func (s *Store) lockBatchesTx(ctx context.Context, tx *sql.Tx, tenantID string, productID string) ([]domain.Batch, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, product_id, batch_number, expiry_date, qty, active, received_at
		FROM batches
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY expiry_date ASC, id ASC
		FOR UPDATE
	`, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0, 8)
	for rows.Next() {
		var b domain.Batch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Qty, &b.Active, &b.ReceivedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	return batches, nil
}

func findBatch(batches []domain.Batch, batchID string) (domain.Batch, bool) {
	for _, b := range batches {
		if b.ID == batchID {
			return b, true
		}
	}
	return domain.Batch{}, false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
