package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/repository"
)

// CouponService validates coupon codes and computes their discounts. A
// successful Validate reserves one use against the budget until the order
// either redeems or releases it, so concurrent orders cannot overshoot
// TotalCount between validation and commit.
type CouponService struct {
	repo repository.CouponRepository

	mu       sync.Mutex
	reserved map[string]int
}

func NewCouponService(repo repository.CouponRepository) *CouponService {
	return &CouponService{
		repo:     repo,
		reserved: make(map[string]int),
	}
}

// Validate resolves a code to a usable coupon for the given cart total and
// reserves one use of it.
func (s *CouponService) Validate(ctx context.Context, code string, cartTotal int) (entity.Coupon, error) {
	if code == "" {
		return entity.Coupon{}, &entity.CouponError{Code: code, Reason: "no code supplied"}
	}

	coupons, err := s.repo.LoadAll(ctx)
	if err != nil {
		return entity.Coupon{}, fmt.Errorf("failed to load coupons: %w", err)
	}

	var coupon entity.Coupon
	found := false
	for _, c := range coupons {
		if strings.EqualFold(c.Code, code) && c.Active {
			coupon = c
			found = true
			break
		}
	}
	if !found {
		return entity.Coupon{}, &entity.CouponError{Code: code, Reason: "invalid code"}
	}

	now := time.Now()
	if now.Before(coupon.StartDate) {
		return entity.Coupon{}, &entity.CouponError{Code: code, Reason: "not yet active"}
	}
	if now.After(coupon.EndDate) {
		return entity.Coupon{}, &entity.CouponError{Code: code, Reason: "expired"}
	}
	if coupon.MinAmount > 0 && cartTotal < coupon.MinAmount {
		return entity.Coupon{}, &entity.CouponError{
			Code:   code,
			Reason: fmt.Sprintf("minimum spend %d not reached", coupon.MinAmount),
		}
	}

	key := strings.ToUpper(coupon.Code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if coupon.UsedCount+s.reserved[key] >= coupon.TotalCount {
		return entity.Coupon{}, &entity.CouponError{Code: code, Reason: "usage limit reached"}
	}
	s.reserved[key]++
	return coupon, nil
}

// Release returns a reserved use, for orders that validated a coupon but
// never committed.
func (s *CouponService) Release(code string) {
	if code == "" {
		return
	}
	key := strings.ToUpper(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved[key] > 0 {
		s.reserved[key]--
	}
}

// Discount computes the discount a coupon grants on a cart total, capped at
// the total itself.
func (s *CouponService) Discount(coupon entity.Coupon, cartTotal int) int {
	if cartTotal <= 0 {
		return 0
	}
	var discount int
	switch coupon.DiscountType {
	case entity.DiscountPercentage:
		discount = (cartTotal*coupon.DiscountValue + 50) / 100
	case entity.DiscountFixed:
		discount = coupon.DiscountValue
	}
	if discount > cartTotal {
		discount = cartTotal
	}
	return discount
}

// Redeem converts a reservation into a recorded use after commit. The
// persisted increment is best effort: a failed write is logged, the order
// stands.
func (s *CouponService) Redeem(ctx context.Context, code string) {
	s.Release(code)
	if err := s.repo.IncrementUsage(ctx, code); err != nil {
		slog.Warn("Failed to record coupon usage", "code", code, "err", err)
	}
}
