package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/messaging"
	"github.com/lovemage/deepvape/internal/repository"
)

// OrderRequest is one order attempt: the cart lines in insertion order plus
// customer, shipping and payment metadata.
type OrderRequest struct {
	Customer       entity.Customer   `json:"customer"`
	Items          []entity.LineItem `json:"items"`
	ShippingMethod string            `json:"shippingMethod"`
	PaymentMethod  string            `json:"paymentMethod"`
	CouponCode     string            `json:"couponCode,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

// orderIDGenerator allocates ids in the storefront's DV<date><serial>
// format. The serial is a per-day counter seeded from the clock at the
// first order of the day and strictly incremented afterwards, so ids never
// repeat within the process no matter how the wall clock lines up.
type orderIDGenerator struct {
	mu     sync.Mutex
	day    string
	serial int64
}

func (g *orderIDGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	day := now.Format("20060102")
	if day != g.day {
		g.day = day
		g.serial = now.UnixMilli() % 1000000
	} else {
		g.serial = (g.serial + 1) % 1000000
	}
	return fmt.Sprintf("DV%s%06d", day, g.serial)
}

// OrderService is the order application engine. An attempt moves
// Validating -> Committing -> Committed, or stops at Rejected with every
// blocking line reported at once.
type OrderService struct {
	inventory *InventoryService
	orders    repository.OrderRepository
	prices    repository.PriceRepository
	coupons   *CouponService
	shipping  *ShippingCalculator
	queue     *SyncQueue
	publisher messaging.Publisher

	// external pushes a committed order to the remote system. Failures are
	// retried by the queue and never invalidate the order.
	external func(ctx context.Context, order entity.Order) error

	idGen orderIDGenerator

	mu     sync.RWMutex
	ledger map[string]entity.PriceEntry
}

func NewOrderService(
	inventory *InventoryService,
	orders repository.OrderRepository,
	prices repository.PriceRepository,
	coupons *CouponService,
	shipping *ShippingCalculator,
	queue *SyncQueue,
	publisher messaging.Publisher,
) *OrderService {
	return &OrderService{
		inventory: inventory,
		orders:    orders,
		prices:    prices,
		coupons:   coupons,
		shipping:  shipping,
		queue:     queue,
		publisher: publisher,
		ledger:    make(map[string]entity.PriceEntry),
	}
}

// SetExternalSync installs the post-commit sync target.
func (s *OrderService) SetExternalSync(fn func(ctx context.Context, order entity.Order) error) {
	s.external = fn
}

// ReloadPrices refreshes the in-memory ledger used for unit price resolution.
func (s *OrderService) ReloadPrices(ctx context.Context) error {
	ledger, err := s.prices.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload price ledger: %w", err)
	}
	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()
	slog.Info("Price ledger reloaded", "products", len(ledger))
	return nil
}

// UnitPrice resolves the per-unit price for a quantity of a product: the
// bulk tier with the largest minQuantity not exceeding the quantity, or the
// base price when no tier qualifies. A product missing from the ledger is
// an error; the ledger is the only pricing authority, nothing sells without
// a row in it.
func (s *OrderService) UnitPrice(productID string, quantity int) (int, *entity.BulkDiscount, error) {
	s.mu.RLock()
	entry, ok := s.ledger[productID]
	s.mu.RUnlock()
	if !ok {
		return 0, nil, fmt.Errorf("product %s is not in the price ledger", productID)
	}

	price := entry.Price
	var best *entity.BulkTier
	for i := range entry.BulkPricing {
		tier := entry.BulkPricing[i]
		if tier.MinQuantity > quantity {
			continue
		}
		if best == nil || tier.MinQuantity > best.MinQuantity {
			best = &entry.BulkPricing[i]
		}
	}
	if best == nil {
		return price, nil, nil
	}
	return best.Price, &entity.BulkDiscount{
		OriginalPrice:   entry.Price,
		DiscountedPrice: best.Price,
		MinQuantity:     best.MinQuantity,
	}, nil
}

var phonePattern = regexp.MustCompile(`^09\d{8}$`)
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateCustomer(c entity.Customer) error {
	var err *multierror.Error
	if len(strings.TrimSpace(c.Name)) < 2 {
		err = multierror.Append(err, fmt.Errorf("customer name is required"))
	}
	if !phonePattern.MatchString(c.Phone) {
		err = multierror.Append(err, fmt.Errorf("customer phone must be a valid mobile number"))
	}
	if c.Email != "" && !emailPattern.MatchString(c.Email) {
		err = multierror.Append(err, fmt.Errorf("customer email is malformed"))
	}
	return err.ErrorOrNil()
}

func validateShipping(req OrderRequest) error {
	var err *multierror.Error
	if req.ShippingMethod == "" {
		err = multierror.Append(err, fmt.Errorf("shipping method is required"))
	}
	if req.ShippingMethod == "home_delivery" && strings.TrimSpace(req.Customer.Address) == "" {
		err = multierror.Append(err, fmt.Errorf("home delivery requires an address"))
	}
	if req.PaymentMethod == "" {
		err = multierror.Append(err, fmt.Errorf("payment method is required"))
	}
	return err.ErrorOrNil()
}

// PlaceOrder runs one order attempt end to end. Stock is checked and
// decremented as one atomic step inside the inventory service, so two
// concurrent attempts can never both take the last unit.
func (s *OrderService) PlaceOrder(ctx context.Context, req OrderRequest) (entity.Order, error) {
	if len(req.Items) == 0 {
		return entity.Order{}, entity.ErrEmptyCart
	}
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return entity.Order{}, fmt.Errorf("line %s/%s has quantity %d, must be at least 1",
				line.ProductID, line.VariantID, line.Quantity)
		}
	}
	if err := validateCustomer(req.Customer); err != nil {
		return entity.Order{}, fmt.Errorf("invalid customer info: %w", err)
	}
	if err := validateShipping(req); err != nil {
		return entity.Order{}, fmt.Errorf("invalid shipping info: %w", err)
	}

	slog.Info("Service: Placing order", "items", len(req.Items), "customer", req.Customer.Phone)

	// Price resolution is independent of stock and happens before the
	// commit window to keep the locked section minimal.
	items := make([]entity.OrderItem, 0, len(req.Items))
	subtotal := 0
	for _, line := range req.Items {
		unit, bulk, err := s.UnitPrice(line.ProductID, line.Quantity)
		if err != nil {
			return entity.Order{}, fmt.Errorf("cannot price line %s/%s: %w", line.ProductID, line.VariantID, err)
		}
		item := entity.OrderItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Discount:  bulk,
		}
		if variant, ok := s.inventory.Variant(line.ProductID, line.VariantID); ok {
			item.UnitPrice += variant.PriceModifier
			item.VariantName = variant.Value
			if bulk != nil {
				item.Discount.OriginalPrice += variant.PriceModifier
				item.Discount.DiscountedPrice += variant.PriceModifier
			}
		}
		item.TotalPrice = item.UnitPrice * line.Quantity
		items = append(items, item)
		subtotal += item.TotalPrice
	}

	discount := 0
	var coupon entity.Coupon
	if req.CouponCode != "" {
		var err error
		coupon, err = s.coupons.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return entity.Order{}, err
		}
		discount = s.coupons.Discount(coupon, subtotal)
	}

	shippingFee := s.shipping.Fee(req.ShippingMethod, subtotal)
	now := time.Now()
	orderID := s.idGen.Next(now)

	// Committing: all stock checks and all decrements happen atomically.
	if err := s.inventory.CommitLines(ctx, req.Items, orderID); err != nil {
		if coupon.Code != "" {
			s.coupons.Release(coupon.Code)
		}
		slog.Info("Order rejected", "order_id", orderID, "err", err)
		return entity.Order{}, err
	}

	order := entity.Order{
		OrderID:        orderID,
		OrderDate:      now,
		Status:         entity.OrderPending,
		Customer:       req.Customer,
		Items:          items,
		Subtotal:       subtotal,
		Discount:       discount,
		CouponCode:     coupon.Code,
		Shipping:       shippingFee,
		Total:          subtotal - discount + shippingFee,
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
		Notes:          req.Notes,
		LastUpdated:    now,
	}

	// Stock is already decremented; a failing order log append must not
	// unwind it. Retry the append out of band instead.
	if err := s.orders.Append(ctx, order); err != nil {
		slog.Error("Failed to append order, queueing retry", "order_id", orderID, "err", err)
		s.queue.Enqueue(SyncJob{
			Name: "persist-order " + orderID,
			Run: func(ctx context.Context) error {
				return s.orders.Append(ctx, order)
			},
		})
	}

	if coupon.Code != "" {
		s.coupons.Redeem(ctx, coupon.Code)
	}

	if s.publisher != nil {
		event := entity.OrderPlaced{
			OrderID:  orderID,
			Items:    order.Items,
			Subtotal: order.Subtotal,
			Total:    order.Total,
			PlacedAt: now,
		}
		if err := s.publisher.PublishEvent(ctx, "orders.placed", orderID, event); err != nil {
			slog.Warn("Failed to publish OrderPlaced", "order_id", orderID, "err", err)
		}
	}

	if s.external != nil {
		s.queue.Enqueue(SyncJob{
			Name: "sync-order " + orderID,
			Run: func(ctx context.Context) error {
				return s.external(ctx, order)
			},
		})
	}

	slog.Info("Order committed", "order_id", orderID, "total", order.Total)
	return order, nil
}

// RecentOrders returns the latest orders.
func (s *OrderService) RecentOrders(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.orders.FindRecent(ctx, limit)
}

// Order returns a single order by id.
func (s *OrderService) Order(ctx context.Context, orderID string) (entity.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

// CustomerOrders returns a customer's order history by phone number.
func (s *OrderService) CustomerOrders(ctx context.Context, phone string) ([]entity.Order, error) {
	return s.orders.FindByCustomerPhone(ctx, phone)
}

// UpdateStatus applies an external fulfillment transition.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus, notes string) error {
	switch status {
	case entity.OrderPending, entity.OrderProcessing, entity.OrderShipped, entity.OrderDelivered, entity.OrderCancelled:
	default:
		return fmt.Errorf("invalid order status %q", status)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, status, notes); err != nil {
		return err
	}
	if s.publisher != nil {
		event := entity.OrderStatusChanged{OrderID: orderID, Status: status, ChangedAt: time.Now()}
		if err := s.publisher.PublishEvent(ctx, "orders.status", orderID, event); err != nil {
			slog.Warn("Failed to publish OrderStatusChanged", "order_id", orderID, "err", err)
		}
	}
	return nil
}
