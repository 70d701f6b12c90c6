package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/repository"
)

type couponsDoc struct {
	Coupons []entity.Coupon `json:"coupons"`
}

type couponRepository struct {
	mu   sync.Mutex
	path string
}

// NewCouponRepository reads coupon codes from coupons.json. A missing file
// just means no coupons are configured.
func NewCouponRepository(dataDir string) repository.CouponRepository {
	return &couponRepository{path: filepath.Join(dataDir, "coupons.json")}
}

func (r *couponRepository) load() (couponsDoc, error) {
	var doc couponsDoc
	if err := readDoc(r.path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return couponsDoc{}, nil
		}
		return couponsDoc{}, err
	}
	return doc, nil
}

func (r *couponRepository) LoadAll(ctx context.Context) ([]entity.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load coupons: %w", err)
	}
	return doc.Coupons, nil
}

func (r *couponRepository) IncrementUsage(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return fmt.Errorf("failed to load coupons: %w", err)
	}
	for i := range doc.Coupons {
		if doc.Coupons[i].Code != code {
			continue
		}
		doc.Coupons[i].UsedCount++
		if err := writeDoc(r.path, doc); err != nil {
			return fmt.Errorf("failed to record usage of coupon %s: %w", code, err)
		}
		return nil
	}
	return fmt.Errorf("coupon %s not found", code)
}
