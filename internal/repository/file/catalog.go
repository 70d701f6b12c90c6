package file

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/repository"
)

type productsDoc struct {
	Products []entity.Product `json:"products"`
}

type pricesDoc struct {
	Products []entity.PriceEntry `json:"products"`
}

type productRepository struct {
	path string
}

// NewProductRepository reads the catalog products from products.json.
func NewProductRepository(dataDir string) repository.ProductRepository {
	return &productRepository{path: filepath.Join(dataDir, "products.json")}
}

func (r *productRepository) LoadProducts(ctx context.Context) ([]entity.Product, error) {
	var doc productsDoc
	if err := readDoc(r.path, &doc); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return doc.Products, nil
}

type priceRepository struct {
	path string
}

// NewPriceRepository reads the price ledger from prices.json.
func NewPriceRepository(dataDir string) repository.PriceRepository {
	return &priceRepository{path: filepath.Join(dataDir, "prices.json")}
}

func (r *priceRepository) LoadLedger(ctx context.Context) (map[string]entity.PriceEntry, error) {
	var doc pricesDoc
	if err := readDoc(r.path, &doc); err != nil {
		return nil, fmt.Errorf("failed to load price ledger: %w", err)
	}
	ledger := make(map[string]entity.PriceEntry, len(doc.Products))
	for _, entry := range doc.Products {
		ledger[entry.ID] = entry
	}
	return ledger, nil
}

type snapshotRepository struct {
	dir     string
	catalog map[string]string
}

// NewSnapshotRepository reads page product snapshots from
// page_products/<slug>.json, resolving product ids through the catalog table.
func NewSnapshotRepository(dataDir string, catalog map[string]string) repository.SnapshotRepository {
	return &snapshotRepository{
		dir:     filepath.Join(dataDir, "page_products"),
		catalog: catalog,
	}
}

func (r *snapshotRepository) Load(ctx context.Context, productID string) (entity.PageProductSnapshot, error) {
	slug, ok := r.catalog[productID]
	if !ok {
		return entity.PageProductSnapshot{}, fmt.Errorf("unknown product id %q: not in catalog table", productID)
	}
	var snap entity.PageProductSnapshot
	if err := readDoc(filepath.Join(r.dir, slug+".json"), &snap); err != nil {
		return entity.PageProductSnapshot{}, fmt.Errorf("failed to load snapshot for %s: %w", productID, err)
	}
	return snap, nil
}

// LoadAll loads every configured page source. A single broken source is
// logged and skipped: it must never take down the shopper-facing read path.
func (r *snapshotRepository) LoadAll(ctx context.Context) (map[string]entity.PageProductSnapshot, error) {
	snapshots := make(map[string]entity.PageProductSnapshot, len(r.catalog))
	for productID, slug := range r.catalog {
		var snap entity.PageProductSnapshot
		if err := readDoc(filepath.Join(r.dir, slug+".json"), &snap); err != nil {
			slog.Warn("Skipping unreadable page snapshot", "product_id", productID, "slug", slug, "err", err)
			continue
		}
		if snap.PageID == "" {
			snap.PageID = productID
		}
		snapshots[productID] = snap
	}
	return snapshots, nil
}
