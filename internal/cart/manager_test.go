package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apotekpos/backend/internal/availability"
	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store/memory"
)

const (
	tenant  = "apotek-demo"
	session = "term-1"
)

func newManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	ledger := memory.NewSeeded(tenant)
	checker := availability.New(ledger)
	return NewManager(checker, ledger, cache.NewMemorySessionStore(), zap.NewNop()), ledger
}

func TestAddItemSnapshotsNameAndPrice(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	c, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 2)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "Vitamin C 1000mg", c.Lines[0].Name)
	assert.Equal(t, int64(2800), c.Lines[0].UnitPriceCents)
	assert.Equal(t, 2, c.Lines[0].Qty)
	assert.Nil(t, c.StockError)
}

func TestAddItemMergesSameProductAndBatch(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 2)
	require.NoError(t, err)
	c, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 3)
	require.NoError(t, err)

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Qty)
}

func TestAddItemKeepsBatchLinesSeparate(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-PARA-500", "BAT-PARA-A", 2)
	require.NoError(t, err)
	c, err := mgr.AddItem(ctx, tenant, session, "PRD-PARA-500", "BAT-PARA-B", 1)
	require.NoError(t, err)

	assert.Len(t, c.Lines, 2)
}

func TestAddItemRejectionLeavesLinesAndRecordsAdvisory(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	// Seeded stock for PRD-VITC-01 is 80.
	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 80)
	require.NoError(t, err)

	c, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 1)
	require.NoError(t, err, "a rejected add is a state outcome, not an error")
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 80, c.Lines[0].Qty, "rejected add must not change quantities")
	require.NotNil(t, c.StockError)
	assert.Equal(t, "PRD-VITC-01", c.StockError.ProductID)
	assert.Equal(t, 0, c.StockError.AvailableQty)

	// The advisory survives a reload within its window.
	reloaded, err := mgr.Load(ctx, tenant, session)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.StockError)
}

func TestAdvisoryExpiresOnLoad(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	current := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return current }

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 80)
	require.NoError(t, err)
	c, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 1)
	require.NoError(t, err)
	require.NotNil(t, c.StockError)

	current = current.Add(DefaultAdvisoryWindow + time.Second)
	reloaded, err := mgr.Load(ctx, tenant, session)
	require.NoError(t, err)
	assert.Nil(t, reloaded.StockError)
	assert.Len(t, reloaded.Lines, 1, "lines stay when only the advisory lapses")
}

func TestSetAdvisoryWindowControlsExpiry(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	current := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return current }
	mgr.SetAdvisoryWindow(5 * time.Minute)

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 80)
	require.NoError(t, err)
	c, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 1)
	require.NoError(t, err)
	require.NotNil(t, c.StockError)

	// Past the default window but inside the configured one.
	current = current.Add(DefaultAdvisoryWindow + time.Second)
	reloaded, err := mgr.Load(ctx, tenant, session)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.StockError)

	current = current.Add(5 * time.Minute)
	reloaded, err = mgr.Load(ctx, tenant, session)
	require.NoError(t, err)
	assert.Nil(t, reloaded.StockError)
}

func TestStaleCartIsDiscarded(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	current := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return current }

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 2)
	require.NoError(t, err)

	current = current.Add(DefaultTTL + time.Minute)
	c, err := mgr.Load(ctx, tenant, session)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestDecrementDropsLineAtZero(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 1)
	require.NoError(t, err)

	c, err := mgr.DecrementQty(ctx, tenant, session, "PRD-VITC-01", "")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestDecrementSkipsAvailabilityCheck(t *testing.T) {
	mgr, ledger := newManager(t)
	ctx := context.Background()

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 5)
	require.NoError(t, err)

	// Stock vanishes underneath the cart; shrinking must still work.
	require.NoError(t, ledger.AdjustStock(ctx, tenant, "PRD-VITC-01", 0))

	c, err := mgr.DecrementQty(ctx, tenant, session, "PRD-VITC-01", "")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Lines[0].Qty)
}

func TestRemoveItem(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 2)
	require.NoError(t, err)
	_, err = mgr.AddItem(ctx, tenant, session, "PRD-MASK-01", "", 1)
	require.NoError(t, err)

	c, err := mgr.RemoveItem(ctx, tenant, session, "PRD-VITC-01", "")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "PRD-MASK-01", c.Lines[0].ProductID)
}

func TestSetDiscountValidation(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.SetDiscount(ctx, tenant, session, 150, domain.DiscountPercent)
	assert.Error(t, err)

	_, err = mgr.SetDiscount(ctx, tenant, session, -5, domain.DiscountAmount)
	assert.Error(t, err)

	c, err := mgr.SetDiscount(ctx, tenant, session, 10, domain.DiscountPercent)
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.Discount)
	assert.Equal(t, domain.DiscountPercent, c.DiscountType)
}

func TestClearEmptiesSession(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.AddItem(ctx, tenant, session, "PRD-VITC-01", "", 2)
	require.NoError(t, err)
	require.NoError(t, mgr.Clear(ctx, tenant, session))

	c, err := mgr.Load(ctx, tenant, session)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestCartsAreSessionScoped(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.AddItem(ctx, tenant, "term-1", "PRD-VITC-01", "", 2)
	require.NoError(t, err)

	other, err := mgr.Load(ctx, tenant, "term-2")
	require.NoError(t, err)
	assert.Empty(t, other.Lines)
}
