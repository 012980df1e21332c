// Package availability answers the pre-commit question "can N more units of
// this go into a cart". Answers are advisory: they read the ledger without any
// locking, so a concurrent sale can invalidate them. The commit transaction
// re-checks everything and remains the only authority.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apotekpos/backend/internal/allocator"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

// Reader is the ledger subset the checks need.
type Reader interface {
	GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error)
	GetBatch(ctx context.Context, tenantID string, batchID string) (*domain.Batch, error)
	ListBatches(ctx context.Context, tenantID string, productID string, includeExpired bool) ([]domain.Batch, error)
}

type Service struct {
	reader Reader
	now    func() time.Time
}

func New(reader Reader) *Service {
	return &Service{reader: reader, now: time.Now}
}

// Request asks whether RequestedQty more units fit on top of HeldQty units
// already sitting in the same cart. BatchID narrows the check to one batch;
// left empty, batch-tracked products are checked against the pooled
// allocatable quantity.
type Request struct {
	ProductID    string
	BatchID      string
	RequestedQty int
	HeldQty      int
}

func (s *Service) CanAdd(ctx context.Context, tenantID string, req Request) (domain.Availability, error) {
	if req.RequestedQty < 1 {
		return domain.Availability{}, fmt.Errorf("%w: requested qty must be positive", store.ErrInvalidSale)
	}

	product, err := s.reader.GetProduct(ctx, tenantID, req.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return domain.Availability{Message: "product not found"}, nil
		}
		return domain.Availability{}, err
	}
	if !product.Active {
		return domain.Availability{Message: "product is inactive"}, nil
	}

	if !product.TracksStock {
		return domain.Availability{Allowed: true}, nil
	}

	now := s.now().UTC()
	wanted := req.HeldQty + req.RequestedQty

	if req.BatchID != "" {
		batch, err := s.reader.GetBatch(ctx, tenantID, req.BatchID)
		if err != nil {
			if errors.Is(err, store.ErrBatchNotFound) {
				return domain.Availability{Message: "batch not found"}, nil
			}
			return domain.Availability{}, err
		}
		if batch.ProductID != req.ProductID {
			return domain.Availability{Message: "batch does not belong to product"}, nil
		}
		if !batch.Active {
			return domain.Availability{Message: "batch is inactive"}, nil
		}
		if allocator.Expired(*batch, now) {
			return domain.Availability{Message: "batch has expired"}, nil
		}
		return verdict(batch.Qty, wanted, req.HeldQty), nil
	}

	if !product.BatchTracked {
		return verdict(product.Stock, wanted, req.HeldQty), nil
	}

	batches, err := s.reader.ListBatches(ctx, tenantID, req.ProductID, true)
	if err != nil {
		return domain.Availability{}, err
	}
	return verdict(allocator.AvailableQty(batches, now), wanted, req.HeldQty), nil
}

func verdict(available int, wanted int, held int) domain.Availability {
	remaining := available - held
	if remaining < 0 {
		remaining = 0
	}
	if wanted > available {
		return domain.Availability{
			AvailableQty: remaining,
			Message:      fmt.Sprintf("only %d more available", remaining),
		}
	}
	return domain.Availability{Allowed: true, AvailableQty: remaining}
}
