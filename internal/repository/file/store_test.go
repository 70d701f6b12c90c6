package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovemage/deepvape/internal/entity"
)

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProductRepositoryLoad(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "products.json"), `{
		"products": [
			{"id": "sp2", "name": "SP2 Device", "variants": [
				{"id": "black", "type": "color", "value": "Black", "stock": 12}
			]}
		]
	}`)

	products, err := NewProductRepository(dir).LoadProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "sp2", products[0].ID)
	require.Len(t, products[0].Variants, 1)
	assert.Equal(t, 12, products[0].Variants[0].Stock)
}

func TestProductRepositoryMissingFile(t *testing.T) {
	_, err := NewProductRepository(t.TempDir()).LoadProducts(context.Background())
	require.Error(t, err)
}

func TestPriceRepositoryLoadLedger(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "prices.json"), `{
		"products": [
			{"id": "sp2", "price": 650, "originalPrice": 800, "discount": "19% off",
			 "bulkPricing": [{"minQuantity": 2, "price": 600}]},
			{"id": "pods", "price": 300}
		]
	}`)

	ledger, err := NewPriceRepository(dir).LoadLedger(context.Background())
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, 650, ledger["sp2"].Price)
	assert.Equal(t, 800, ledger["sp2"].OriginalPrice)
	require.Len(t, ledger["sp2"].BulkPricing, 1)
	assert.Equal(t, 600, ledger["sp2"].BulkPricing[0].Price)
	assert.Zero(t, ledger["pods"].OriginalPrice)
}

func TestSnapshotRepositorySkipsBrokenSources(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "page_products", "sp2_product.json"),
		`{"pageId": "sp2_product", "price": 650}`)
	writeJSON(t, filepath.Join(dir, "page_products", "broken_product.json"),
		`{not json`)

	catalog := map[string]string{
		"sp2":     "sp2_product",
		"broken":  "broken_product",
		"missing": "missing_product",
	}
	repo := NewSnapshotRepository(dir, catalog)

	snapshots, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	// Broken and absent sources are skipped, the healthy one survives.
	require.Len(t, snapshots, 1)
	assert.Equal(t, 650, snapshots["sp2"].Price)
}

func TestSnapshotRepositoryLoadUnknownProduct(t *testing.T) {
	repo := NewSnapshotRepository(t.TempDir(), map[string]string{"sp2": "sp2_product"})

	_, err := repo.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in catalog")
}

func testOrder(id string, date time.Time) entity.Order {
	return entity.Order{
		OrderID:   id,
		OrderDate: date,
		Status:    entity.OrderPending,
		Customer:  entity.Customer{Name: "Test Buyer", Phone: "0912345678"},
		Items: []entity.OrderItem{
			{ProductID: "sp2", VariantID: "black", Quantity: 1, UnitPrice: 650, TotalPrice: 650},
		},
		Subtotal: 650,
		Shipping: 60,
		Total:    710,
	}
}

func TestOrderRepositoryRoundTrip(t *testing.T) {
	repo := NewOrderRepository(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Append(ctx, testOrder("DV1", now.Add(-time.Hour))))
	require.NoError(t, repo.Append(ctx, testOrder("DV2", now)))

	// Duplicate ids are refused.
	require.Error(t, repo.Append(ctx, testOrder("DV1", now)))

	recent, err := repo.FindRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "DV2", recent[0].OrderID)

	recent, err = repo.FindRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	order, err := repo.FindByID(ctx, "DV1")
	require.NoError(t, err)
	assert.Equal(t, 710, order.Total)

	_, err = repo.FindByID(ctx, "DV99")
	require.Error(t, err)

	byPhone, err := repo.FindByCustomerPhone(ctx, "0912345678")
	require.NoError(t, err)
	assert.Len(t, byPhone, 2)
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	repo := NewOrderRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, testOrder("DV1", time.Now())))
	require.NoError(t, repo.UpdateStatus(ctx, "DV1", entity.OrderShipped, "left warehouse"))
	require.NoError(t, repo.UpdateStatus(ctx, "DV1", entity.OrderDelivered, "signed for"))

	order, err := repo.FindByID(ctx, "DV1")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderDelivered, order.Status)
	assert.Equal(t, "left warehouse\nsigned for", order.Notes)

	require.Error(t, repo.UpdateStatus(ctx, "DV99", entity.OrderShipped, ""))
}

func TestOrderRepositoryEmptyLog(t *testing.T) {
	repo := NewOrderRepository(t.TempDir())

	recent, err := repo.FindRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMovementRepositoryAppend(t *testing.T) {
	repo := NewMovementRepository(t.TempDir())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(ctx, entity.StockMovement{
			ID:        string(rune('a' + i)),
			ProductID: "sp2",
			VariantID: "black",
			Type:      entity.MovementOut,
			Quantity:  1,
			Timestamp: time.Now(),
		}))
	}

	movements, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	// The latest entries win when the log is truncated.
	assert.Equal(t, "b", movements[0].ID)
	assert.Equal(t, "c", movements[1].ID)
}

func TestCouponRepository(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "coupons.json"), `{
		"coupons": [
			{"code": "WELCOME10", "active": true, "discountType": "percentage",
			 "discountValue": 10, "totalCount": 100}
		]
	}`)
	repo := NewCouponRepository(dir)
	ctx := context.Background()

	coupons, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, coupons, 1)

	require.NoError(t, repo.IncrementUsage(ctx, "WELCOME10"))
	require.NoError(t, repo.IncrementUsage(ctx, "WELCOME10"))
	require.Error(t, repo.IncrementUsage(ctx, "NOPE"))

	coupons, err = repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, coupons[0].UsedCount)
}

func TestCouponRepositoryMissingFile(t *testing.T) {
	coupons, err := NewCouponRepository(t.TempDir()).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, coupons)
}
