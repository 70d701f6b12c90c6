// Package postgres offers an alternative persistence backend for the order
// log and the stock movement audit trail, for deployments that have outgrown
// the JSON documents.
package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

// psql builds queries with $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			order_date TIMESTAMP NOT NULL DEFAULT NOW(),
			status TEXT NOT NULL DEFAULT 'pending',
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			customer_email TEXT NOT NULL DEFAULT '',
			customer_address TEXT NOT NULL DEFAULT '',
			subtotal INT NOT NULL DEFAULT 0,
			discount INT NOT NULL DEFAULT 0,
			coupon_code TEXT NOT NULL DEFAULT '',
			shipping INT NOT NULL DEFAULT 0,
			total INT NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL DEFAULT '',
			shipping_method TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			last_updated TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(order_id),
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL DEFAULT '',
			variant_id TEXT NOT NULL,
			variant_name TEXT NOT NULL DEFAULT '',
			quantity INT NOT NULL DEFAULT 1,
			unit_price INT NOT NULL DEFAULT 0,
			total_price INT NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS stock_movements (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			variant_id TEXT NOT NULL,
			type TEXT NOT NULL,
			quantity INT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			order_id TEXT NOT NULL DEFAULT '',
			operator TEXT NOT NULL DEFAULT '',
			old_stock INT NOT NULL,
			new_stock INT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	return err
}
