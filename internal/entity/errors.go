package entity

import (
	"errors"
	"fmt"
)

// ErrEmptyCart rejects an order attempt before any validation work.
var ErrEmptyCart = errors.New("cart is empty")

// VariantNotFoundError signals that a (product, variant) pair does not resolve.
type VariantNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s/%s not found", e.ProductID, e.VariantID)
}

// InsufficientStockError carries the current stock alongside the request so
// the shopper can correct the cart in one pass.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Stock     int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s/%s: requested %d, available %d",
		e.ProductID, e.VariantID, e.Requested, e.Stock)
}

// LineFailure is one cart line's reason for blocking an order.
type LineFailure struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Requested int    `json:"requested"`
	Stock     int    `json:"stock"`
	Message   string `json:"message"`
}

// OrderRejectedError aggregates every failing line of a rejected order
// attempt. Validation never fails one line at a time.
type OrderRejectedError struct {
	Failures []LineFailure
	Err      error
}

func (e *OrderRejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order rejected: %v", e.Err)
	}
	return fmt.Sprintf("order rejected: %d line(s) failed validation", len(e.Failures))
}

func (e *OrderRejectedError) Unwrap() error { return e.Err }

// CouponError explains why a coupon code cannot be applied.
type CouponError struct {
	Code   string
	Reason string
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q: %s", e.Code, e.Reason)
}
