package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/repository"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Append(ctx context.Context, order entity.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = psql.Insert("orders").
		Columns("order_id", "order_date", "status",
			"customer_name", "customer_phone", "customer_email", "customer_address",
			"subtotal", "discount", "coupon_code", "shipping", "total",
			"payment_method", "shipping_method", "notes", "last_updated").
		Values(order.OrderID, order.OrderDate, string(order.Status),
			order.Customer.Name, order.Customer.Phone, order.Customer.Email, order.Customer.Address,
			order.Subtotal, order.Discount, order.CouponCode, order.Shipping, order.Total,
			order.PaymentMethod, order.ShippingMethod, order.Notes, order.LastUpdated).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.OrderID, err)
	}

	for _, item := range order.Items {
		_, err = psql.Insert("order_items").
			Columns("order_id", "product_id", "product_name", "variant_id", "variant_name",
				"quantity", "unit_price", "total_price").
			Values(order.OrderID, item.ProductID, item.ProductName, item.VariantID, item.VariantName,
				item.Quantity, item.UnitPrice, item.TotalPrice).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert order item for %s: %w", order.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *orderRepository) scanOrders(ctx context.Context, pred any, args ...any) ([]entity.Order, error) {
	builder := psql.Select("order_id", "order_date", "status",
		"customer_name", "customer_phone", "customer_email", "customer_address",
		"subtotal", "discount", "coupon_code", "shipping", "total",
		"payment_method", "shipping_method", "notes", "last_updated").
		From("orders").
		OrderBy("order_date DESC")
	if pred != nil {
		builder = builder.Where(pred, args...)
	}

	rows, err := builder.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		var o entity.Order
		var status string
		if err := rows.Scan(&o.OrderID, &o.OrderDate, &status,
			&o.Customer.Name, &o.Customer.Phone, &o.Customer.Email, &o.Customer.Address,
			&o.Subtotal, &o.Discount, &o.CouponCode, &o.Shipping, &o.Total,
			&o.PaymentMethod, &o.ShippingMethod, &o.Notes, &o.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = entity.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].OrderID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]entity.OrderItem, error) {
	rows, err := psql.Select("product_id", "product_name", "variant_id", "variant_name",
		"quantity", "unit_price", "total_price").
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id").
		RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []entity.OrderItem
	for rows.Next() {
		var item entity.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.VariantID, &item.VariantName,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	orders, err := r.scanOrders(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (entity.Order, error) {
	orders, err := r.scanOrders(ctx, sq.Eq{"order_id": orderID})
	if err != nil {
		return entity.Order{}, err
	}
	if len(orders) == 0 {
		return entity.Order{}, fmt.Errorf("order %s not found", orderID)
	}
	return orders[0], nil
}

func (r *orderRepository) FindByCustomerPhone(ctx context.Context, phone string) ([]entity.Order, error) {
	return r.scanOrders(ctx, sq.Eq{"customer_phone": phone})
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus, notes string) error {
	builder := psql.Update("orders").
		Set("status", string(status)).
		Set("last_updated", time.Now()).
		Where(sq.Eq{"order_id": orderID})
	if notes != "" {
		builder = builder.Set("notes", sq.Expr("CASE WHEN notes = '' THEN ? ELSE notes || E'\\n' || ? END", notes, notes))
	}

	res, err := builder.RunWith(r.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("order %s not found", orderID)
	}
	return nil
}
