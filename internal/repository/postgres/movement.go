package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/repository"
)

type movementRepository struct {
	db *sql.DB
}

// NewMovementRepository creates a stock movement audit sink backed by Postgres.
// Movements are insert-only; nothing ever updates or deletes a row.
func NewMovementRepository(db *sql.DB) repository.MovementRepository {
	return &movementRepository{db: db}
}

func (r *movementRepository) Append(ctx context.Context, m entity.StockMovement) error {
	_, err := psql.Insert("stock_movements").
		Columns("id", "product_id", "variant_id", "type", "quantity",
			"reason", "order_id", "operator", "old_stock", "new_stock", "created_at").
		Values(m.ID, m.ProductID, m.VariantID, string(m.Type), m.Quantity,
			m.Reason, m.OrderID, m.Operator, m.OldStock, m.NewStock, m.Timestamp).
		RunWith(r.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement %s: %w", m.ID, err)
	}
	return nil
}

func (r *movementRepository) FindRecent(ctx context.Context, limit int) ([]entity.StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := psql.Select("id", "product_id", "variant_id", "type", "quantity",
		"reason", "order_id", "operator", "old_stock", "new_stock", "created_at").
		From("stock_movements").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []entity.StockMovement
	for rows.Next() {
		var m entity.StockMovement
		var mtype string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.VariantID, &mtype, &m.Quantity,
			&m.Reason, &m.OrderID, &m.Operator, &m.OldStock, &m.NewStock, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		m.Type = entity.MovementType(mtype)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
