package repository

import (
	"context"

	"github.com/lovemage/deepvape/internal/entity"
)

// ProductRepository loads the catalog products that seed the variant registry.
type ProductRepository interface {
	LoadProducts(ctx context.Context) ([]entity.Product, error)
}

// PriceRepository loads the global price ledger, the single source of truth
// for pricing.
type PriceRepository interface {
	LoadLedger(ctx context.Context) (map[string]entity.PriceEntry, error)
}

// SnapshotRepository loads the denormalized per-page product snapshots.
type SnapshotRepository interface {
	// LoadAll loads every configured page source. A source that fails to
	// load or parse is logged and absent from the result, never fatal.
	LoadAll(ctx context.Context) (map[string]entity.PageProductSnapshot, error)
	Load(ctx context.Context, productID string) (entity.PageProductSnapshot, error)
}

// OrderRepository handles persistence for Orders. The order log is
// append-only by convention; only status and notes are ever edited.
type OrderRepository interface {
	Append(ctx context.Context, order entity.Order) error
	FindRecent(ctx context.Context, limit int) ([]entity.Order, error)
	FindByID(ctx context.Context, orderID string) (entity.Order, error)
	FindByCustomerPhone(ctx context.Context, phone string) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus, notes string) error
}

// MovementRepository is the append-only audit sink for stock movements.
type MovementRepository interface {
	Append(ctx context.Context, movement entity.StockMovement) error
	FindRecent(ctx context.Context, limit int) ([]entity.StockMovement, error)
}

// CouponRepository handles coupon lookup and usage accounting.
type CouponRepository interface {
	LoadAll(ctx context.Context) ([]entity.Coupon, error)
	IncrementUsage(ctx context.Context, code string) error
}
