package service

import (
	"github.com/lovemage/deepvape/internal/config"
)

// ShippingCalculator reproduces the storefront's fee table.
type ShippingCalculator struct {
	settings config.ShippingSettings
}

func NewShippingCalculator(settings config.ShippingSettings) *ShippingCalculator {
	return &ShippingCalculator{settings: settings}
}

// Fee returns the shipping cost for a method at a given subtotal. Unknown
// methods charge the default fee rather than failing an order over a label.
func (c *ShippingCalculator) Fee(method string, subtotal int) int {
	switch method {
	case "store_pickup", "pickup":
		return 0
	case "home_delivery":
		if subtotal >= c.settings.HomeDeliveryFreeThreshold {
			return 0
		}
		return c.settings.HomeDeliveryFee
	case "convenience_store":
		if subtotal >= c.settings.ConvenienceFreeThreshold {
			return 0
		}
		return c.settings.ConvenienceFee
	case "express_delivery":
		return c.settings.ExpressFee
	default:
		return c.settings.DefaultFee
	}
}

// RemainingForFree tells the shopper how much more spend earns free home
// delivery; zero once the threshold is met.
func (c *ShippingCalculator) RemainingForFree(subtotal int) int {
	if subtotal >= c.settings.HomeDeliveryFreeThreshold {
		return 0
	}
	return c.settings.HomeDeliveryFreeThreshold - subtotal
}
