// Package allocator decides which batches of a product supply a requested
// quantity. Allocation is First-Expiry-First-Out: the soonest-to-expire batch
// is drained before the next one is touched.
package allocator

import (
	"slices"
	"strings"
	"time"

	"apotekpos/backend/internal/domain"
)

// Allocation is one batch's contribution to a request.
type Allocation struct {
	Batch domain.Batch
	Qty   int
}

// Expired reports whether a batch is no longer sellable. A batch expiring
// exactly now is expired; eligibility requires an expiry strictly in the
// future.
func Expired(b domain.Batch, now time.Time) bool {
	return !b.ExpiryDate.After(now)
}

// Candidates filters to active, non-expired batches with stock and orders
// them for FEFO: expiry ascending, then quantity descending so large
// low-urgency batches are consumed before small ones fragment, then batch id
// ascending for determinism. The input slice is not modified.
func Candidates(batches []domain.Batch, now time.Time) []domain.Batch {
	candidates := make([]domain.Batch, 0, len(batches))
	for _, b := range batches {
		if !b.Active || b.Qty <= 0 || Expired(b, now) {
			continue
		}
		candidates = append(candidates, b)
	}

	slices.SortFunc(candidates, func(a, b domain.Batch) int {
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			if a.ExpiryDate.Before(b.ExpiryDate) {
				return -1
			}
			return 1
		}
		if a.Qty != b.Qty {
			return b.Qty - a.Qty
		}
		return strings.Compare(a.ID, b.ID)
	})

	return candidates
}

// AvailableQty sums sellable quantity across a product's batches.
func AvailableQty(batches []domain.Batch, now time.Time) int {
	total := 0
	for _, b := range Candidates(batches, now) {
		total += b.Qty
	}
	return total
}

// Allocate walks the candidate set consuming earliest-expiring batches first,
// spilling into the next batch once one is exhausted. The second return value
// is the unsatisfied remainder; zero means the request was fully covered.
func Allocate(batches []domain.Batch, qty int, now time.Time) ([]Allocation, int) {
	remaining := qty
	allocations := make([]Allocation, 0, 2)
	for _, b := range Candidates(batches, now) {
		if remaining == 0 {
			break
		}
		take := remaining
		if take > b.Qty {
			take = b.Qty
		}
		allocations = append(allocations, Allocation{Batch: b, Qty: take})
		remaining -= take
	}
	return allocations, remaining
}

// Validate checks a manually pre-selected batch against a requested quantity.
// It returns the batch's sellable quantity and whether the request fits.
func Validate(b domain.Batch, qty int, now time.Time) (available int, ok bool) {
	if !b.Active || Expired(b, now) {
		return 0, false
	}
	return b.Qty, b.Qty >= qty
}

// Classify buckets an expiry date for UI warnings. Informational only; only
// the expired bucket affects allocation.
func Classify(expiry time.Time, now time.Time) string {
	switch {
	case !expiry.After(now):
		return domain.ExpiryExpired
	case !expiry.After(now.Add(7 * 24 * time.Hour)):
		return domain.ExpiryCritical
	case !expiry.After(now.Add(30 * 24 * time.Hour)):
		return domain.ExpiryWarning
	default:
		return domain.ExpiryOK
	}
}
