package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lovemage/deepvape/internal/config"
)

func TestShippingFeeTable(t *testing.T) {
	calc := NewShippingCalculator(config.Default().Shipping)

	cases := []struct {
		method   string
		subtotal int
		want     int
	}{
		{"store_pickup", 100, 0},
		{"pickup", 5000, 0},
		{"home_delivery", 1499, 100},
		{"home_delivery", 1500, 0},
		{"home_delivery", 2000, 0},
		{"convenience_store", 999, 60},
		{"convenience_store", 1000, 0},
		{"express_delivery", 100, 120},
		{"express_delivery", 9999, 120},
		{"carrier_pigeon", 100, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, calc.Fee(tc.method, tc.subtotal),
			"%s at %d", tc.method, tc.subtotal)
	}
}

func TestRemainingForFree(t *testing.T) {
	calc := NewShippingCalculator(config.Default().Shipping)

	assert.Equal(t, 500, calc.RemainingForFree(1000))
	assert.Equal(t, 0, calc.RemainingForFree(1500))
	assert.Equal(t, 0, calc.RemainingForFree(2000))
}
