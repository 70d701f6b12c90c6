package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovemage/deepvape/internal/entity"
)

type memMovements struct {
	mu        sync.Mutex
	movements []entity.StockMovement
	failErr   error
}

func (m *memMovements) Append(ctx context.Context, movement entity.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.movements = append(m.movements, movement)
	return nil
}

func (m *memMovements) FindRecent(ctx context.Context, limit int) ([]entity.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]entity.StockMovement(nil), m.movements...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memMovements) all() []entity.StockMovement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.StockMovement(nil), m.movements...)
}

func testProducts() []entity.Product {
	return []entity.Product{
		{
			ID:   "p1",
			Name: "SP2 Device",
			Variants: []entity.Variant{
				{ID: "v1", Type: entity.VariantColor, Value: "black", Stock: 5},
				{ID: "v2", Type: entity.VariantColor, Value: "white", Stock: 3, PriceModifier: 50},
			},
		},
		{
			ID:   "p2",
			Name: "Ilia Pods",
			Variants: []entity.Variant{
				{ID: "v1", Type: entity.VariantFlavor, Value: "mint", Stock: 0},
			},
		},
	}
}

func newTestInventory(t *testing.T, sink *memMovements) *InventoryService {
	t.Helper()
	inv := NewInventoryService(sink, nil, 10)
	require.NoError(t, inv.LoadProducts(testProducts()))
	return inv
}

func TestCheckStock(t *testing.T) {
	inv := newTestInventory(t, &memMovements{})

	check := inv.CheckStock("p1", "v1", 3)
	assert.True(t, check.Available)
	assert.Equal(t, 5, check.Stock)

	check = inv.CheckStock("p1", "v1", 6)
	assert.False(t, check.Available)
	assert.Equal(t, 5, check.Stock)

	check = inv.CheckStock("p1", "nope", 1)
	assert.False(t, check.Available)
	assert.Equal(t, 0, check.Stock)

	check = inv.CheckStock("nope", "v1", 1)
	assert.False(t, check.Available)
	assert.Equal(t, 0, check.Stock)
}

func TestUpdateStockInOutAdjustment(t *testing.T) {
	sink := &memMovements{}
	inv := newTestInventory(t, sink)
	ctx := context.Background()

	oldStock, newStock, err := inv.UpdateStock(ctx, "p1", "v1", 4, entity.MovementIn, "restock", "")
	require.NoError(t, err)
	assert.Equal(t, 5, oldStock)
	assert.Equal(t, 9, newStock)

	oldStock, newStock, err = inv.UpdateStock(ctx, "p1", "v1", 2, entity.MovementOut, "sale", "DV1")
	require.NoError(t, err)
	assert.Equal(t, 9, oldStock)
	assert.Equal(t, 7, newStock)

	oldStock, newStock, err = inv.UpdateStock(ctx, "p1", "v1", 20, entity.MovementAdjustment, "recount", "")
	require.NoError(t, err)
	assert.Equal(t, 7, oldStock)
	assert.Equal(t, 20, newStock)

	movements := sink.all()
	require.Len(t, movements, 3)
	assert.Equal(t, 4, movements[0].Quantity)
	assert.Equal(t, 2, movements[1].Quantity)
	assert.Equal(t, "DV1", movements[1].OrderID)
	// Adjustments record the delta, not the absolute target.
	assert.Equal(t, 13, movements[2].Quantity)
	for _, m := range movements {
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.Timestamp.IsZero())
	}
}

func TestUpdateStockOutRejectsInsufficient(t *testing.T) {
	sink := &memMovements{}
	inv := newTestInventory(t, sink)

	_, _, err := inv.UpdateStock(context.Background(), "p1", "v2", 99, entity.MovementOut, "", "")
	var insufficient *entity.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Stock)
	assert.Equal(t, 99, insufficient.Requested)

	// Rejected mutation leaves no trace: stock and audit log are untouched.
	v, ok := inv.Variant("p1", "v2")
	require.True(t, ok)
	assert.Equal(t, 3, v.Stock)
	assert.Empty(t, sink.all())
}

func TestUpdateStockUnknownVariant(t *testing.T) {
	inv := newTestInventory(t, &memMovements{})

	_, _, err := inv.UpdateStock(context.Background(), "p1", "ghost", 1, entity.MovementIn, "", "")
	var notFound *entity.VariantNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.VariantID)
}

func TestUpdateStockAuditSinkFailureKeepsMutation(t *testing.T) {
	sink := &memMovements{failErr: errors.New("sink down")}
	inv := newTestInventory(t, sink)

	_, newStock, err := inv.UpdateStock(context.Background(), "p1", "v1", 2, entity.MovementOut, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, newStock)

	v, _ := inv.Variant("p1", "v1")
	assert.Equal(t, 3, v.Stock)
}

func TestStockNeverNegative(t *testing.T) {
	inv := newTestInventory(t, &memMovements{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		inv.UpdateStock(ctx, "p1", "v1", 2, entity.MovementOut, "", "")
		v, _ := inv.Variant("p1", "v1")
		assert.GreaterOrEqual(t, v.Stock, 0)
	}
}

func TestTotalStockAndStatus(t *testing.T) {
	inv := newTestInventory(t, &memMovements{})

	assert.Equal(t, 8, inv.TotalStock("p1"))
	assert.Equal(t, entity.StatusLowStock, inv.StockStatus("p1"))
	assert.Equal(t, entity.StatusOutOfStock, inv.StockStatus("p2"))
	assert.Equal(t, 0, inv.TotalStock("nope"))
	assert.Equal(t, entity.StatusOutOfStock, inv.StockStatus("nope"))

	_, _, err := inv.UpdateStock(context.Background(), "p1", "v1", 20, entity.MovementIn, "", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInStock, inv.StockStatus("p1"))
}

func TestVariantsPreserveOrder(t *testing.T) {
	inv := newTestInventory(t, &memMovements{})

	variants := inv.Variants("p1")
	require.Len(t, variants, 2)
	assert.Equal(t, "v1", variants[0].ID)
	assert.Equal(t, "v2", variants[1].ID)
	assert.Empty(t, inv.Variants("nope"))
}

func TestCommitLinesAllOrNothing(t *testing.T) {
	sink := &memMovements{}
	inv := newTestInventory(t, sink)

	lines := []entity.LineItem{
		{ProductID: "p1", VariantID: "v1", Quantity: 2},
		{ProductID: "p1", VariantID: "v2", Quantity: 10},
		{ProductID: "p2", VariantID: "v1", Quantity: 1},
	}
	err := inv.CommitLines(context.Background(), lines, "DV1")
	var rejected *entity.OrderRejectedError
	require.ErrorAs(t, err, &rejected)

	// Every failing line is reported, not just the first.
	require.Len(t, rejected.Failures, 2)
	assert.Equal(t, "v2", rejected.Failures[0].VariantID)
	assert.Equal(t, 3, rejected.Failures[0].Stock)
	assert.Equal(t, "p2", rejected.Failures[1].ProductID)

	// Line 1 was fine but nothing moved.
	v, _ := inv.Variant("p1", "v1")
	assert.Equal(t, 5, v.Stock)
	assert.Empty(t, sink.all())
}

func TestCommitLinesSuccess(t *testing.T) {
	sink := &memMovements{}
	inv := newTestInventory(t, sink)

	lines := []entity.LineItem{
		{ProductID: "p1", VariantID: "v1", Quantity: 2},
		{ProductID: "p1", VariantID: "v2", Quantity: 1},
	}
	require.NoError(t, inv.CommitLines(context.Background(), lines, "DV2"))

	v1, _ := inv.Variant("p1", "v1")
	v2, _ := inv.Variant("p1", "v2")
	assert.Equal(t, 3, v1.Stock)
	assert.Equal(t, 2, v2.Stock)

	movements := sink.all()
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, entity.MovementOut, m.Type)
		assert.Equal(t, "DV2", m.OrderID)
		assert.Equal(t, m.OldStock-m.Quantity, m.NewStock)
	}
}

func TestLoadProductsRejectsDuplicateVariants(t *testing.T) {
	inv := NewInventoryService(&memMovements{}, nil, 10)
	err := inv.LoadProducts([]entity.Product{{
		ID:   "p1",
		Name: "Broken",
		Variants: []entity.Variant{
			{ID: "v1", Stock: 1},
			{ID: "v1", Stock: 2},
		},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate variant id")
}

func TestStatsAndReport(t *testing.T) {
	inv := newTestInventory(t, &memMovements{})

	stats, ok := inv.Stats("p1")
	require.True(t, ok)
	assert.Equal(t, 2, stats.TotalVariants)
	assert.Equal(t, 2, stats.InStockVariants)
	assert.Equal(t, 8, stats.TotalStock)
	assert.Equal(t, 4, stats.AverageStock)

	_, ok = inv.Stats("nope")
	assert.False(t, ok)

	ledger := map[string]entity.PriceEntry{"p1": {ID: "p1", Price: 100}}
	report := inv.Report(ledger)
	assert.Equal(t, 2, report.TotalProducts)
	assert.Equal(t, 800, report.TotalStockValue)
	require.Len(t, report.OutOfStockItems, 1)
	assert.Equal(t, "p2", report.OutOfStockItems[0].ProductID)
	assert.Len(t, report.LowStockItems, 2)
}
