package entity

import (
	"time"
)

// VariantType classifies how a variant is presented to the shopper.
type VariantType string

const (
	VariantColor   VariantType = "color"
	VariantFlavor  VariantType = "flavor"
	VariantSize    VariantType = "size"
	VariantDefault VariantType = "default"
)

// Variant is a purchasable option of a product with its own stock count.
// PriceModifier is added to the product's base price when the variant is sold.
type Variant struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Type          VariantType `json:"type"`
	Value         string      `json:"value"`
	Stock         int         `json:"stock"`
	PriceModifier int         `json:"priceModifier"`
	SKU           string      `json:"sku"`
}

// BulkTier grants a reduced unit price at a quantity threshold.
type BulkTier struct {
	MinQuantity int `json:"minQuantity"`
	Price       int `json:"price"`
}

// Product holds the catalog identity and variant list of one product.
// Prices are whole currency units.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         int       `json:"price"`
	OriginalPrice int       `json:"originalPrice,omitempty"`
	Discount      string    `json:"discount,omitempty"`
	Variants      []Variant `json:"variants"`
}

// PriceEntry is one row of the global price ledger, the single source of
// truth for pricing. OriginalPrice of zero means no strike-through price.
type PriceEntry struct {
	ID            string     `json:"id"`
	Price         int        `json:"price"`
	OriginalPrice int        `json:"originalPrice,omitempty"`
	Discount      string     `json:"discount,omitempty"`
	BulkPricing   []BulkTier `json:"bulkPricing,omitempty"`
}

// PageProductSnapshot is the denormalized per-page copy of a product.
// It is edited through a separate channel and may drift from the ledger;
// it must never authorize a commit decision on its own.
type PageProductSnapshot struct {
	PageID        string    `json:"pageId"`
	ProductName   string    `json:"productName"`
	Price         int       `json:"price"`
	OriginalPrice int       `json:"originalPrice,omitempty"`
	Discount      string    `json:"discount,omitempty"`
	Variants      []Variant `json:"variants"`
}

// Divergence records one field where a page snapshot disagrees with the ledger.
type Divergence struct {
	ProductID string `json:"productId"`
	Field     string `json:"field"`
	OldValue  string `json:"oldValue"`
	NewValue  string `json:"newValue"`
}

// MovementType is the kind of stock mutation behind a StockMovement.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// StockMovement is the immutable audit record of a single stock change.
// For adjustments Quantity stores the signed delta, not the absolute value.
type StockMovement struct {
	ID        string       `json:"id"`
	ProductID string       `json:"productId"`
	VariantID string       `json:"variantId"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`
	Reason    string       `json:"reason,omitempty"`
	OrderID   string       `json:"orderId,omitempty"`
	Operator  string       `json:"operator,omitempty"`
	OldStock  int          `json:"oldStock"`
	NewStock  int          `json:"newStock"`
	Timestamp time.Time    `json:"timestamp"`
}

// StockCheck is the answer to "is quantity Q of variant V available".
type StockCheck struct {
	Available bool   `json:"available"`
	Stock     int    `json:"stock"`
	Message   string `json:"message"`
}

// StockStatus summarises a product's total stock across variants.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "out-of-stock"
	StatusLowStock   StockStatus = "low-stock"
	StatusInStock    StockStatus = "in-stock"
)

// LineItem is one cart line as supplied by the (external) cart.
type LineItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unitPrice,omitempty"`
}

// BulkDiscount describes the tier that produced a reduced unit price.
type BulkDiscount struct {
	OriginalPrice   int `json:"originalPrice"`
	DiscountedPrice int `json:"discountedPrice"`
	MinQuantity     int `json:"minQuantity"`
}

// OrderItem is a cart line after price resolution.
type OrderItem struct {
	ProductID   string        `json:"productId"`
	ProductName string        `json:"productName,omitempty"`
	VariantID   string        `json:"variantId"`
	VariantName string        `json:"variant,omitempty"`
	Quantity    int           `json:"quantity"`
	UnitPrice   int           `json:"unitPrice"`
	TotalPrice  int           `json:"totalPrice"`
	Discount    *BulkDiscount `json:"discount,omitempty"`
}

// Customer carries the contact and delivery details attached to an order.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// OrderStatus is the fulfillment state of an order. Transitions after
// creation are driven externally.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Order is created atomically once every stock check has passed. After
// creation only Status, Notes and LastUpdated may change.
type Order struct {
	OrderID        string      `json:"orderId"`
	OrderDate      time.Time   `json:"orderDate"`
	Status         OrderStatus `json:"status"`
	Customer       Customer    `json:"customer"`
	Items          []OrderItem `json:"items"`
	Subtotal       int         `json:"subtotal"`
	Discount       int         `json:"discount,omitempty"`
	CouponCode     string      `json:"couponCode,omitempty"`
	Shipping       int         `json:"shipping"`
	Total          int         `json:"total"`
	PaymentMethod  string      `json:"paymentMethod"`
	ShippingMethod string      `json:"shippingMethod"`
	Notes          string      `json:"notes,omitempty"`
	LastUpdated    time.Time   `json:"lastUpdated"`
}

// DiscountType selects how a coupon's value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a redeemable discount code with a validity window and a
// usage budget.
type Coupon struct {
	Code          string       `json:"code"`
	Active        bool         `json:"active"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int          `json:"discountValue"`
	MinAmount     int          `json:"minAmount,omitempty"`
	StartDate     time.Time    `json:"startDate"`
	EndDate       time.Time    `json:"endDate"`
	UsedCount     int          `json:"usedCount"`
	TotalCount    int          `json:"totalCount"`
}

// StockReportItem identifies a variant flagged by the stock report.
type StockReportItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	VariantID   string `json:"variantId"`
	VariantName string `json:"variantName"`
	Stock       int    `json:"stock"`
}

// StockReport is an operator-facing summary of inventory health.
type StockReport struct {
	TotalProducts   int               `json:"totalProducts"`
	LowStockItems   []StockReportItem `json:"lowStockItems"`
	OutOfStockItems []StockReportItem `json:"outOfStockItems"`
	TotalStockValue int               `json:"totalStockValue"`
}

// ProductStats summarises one product's variant and stock situation.
type ProductStats struct {
	ProductName        string      `json:"productName"`
	TotalVariants      int         `json:"totalVariants"`
	InStockVariants    int         `json:"inStockVariants"`
	OutOfStockVariants int         `json:"outOfStockVariants"`
	TotalStock         int         `json:"totalStock"`
	AverageStock       int         `json:"averageStock"`
	Status             StockStatus `json:"status"`
}

// SyncStatus reports whether the page snapshots currently agree with the
// ledger.
type SyncStatus struct {
	InSync      bool         `json:"inSync"`
	Divergences []Divergence `json:"divergences"`
	LastCheck   time.Time    `json:"lastCheck"`
}
