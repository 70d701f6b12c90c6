package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/messaging"
	"github.com/lovemage/deepvape/internal/repository"
)

// InventoryService owns all variant stock state. It is the variant registry
// (read-only lookups) and the stock consistency engine (the only authority
// allowed to mutate stock). One mutex guards the whole state so that
// "check all lines, then decrement all lines" is a single atomic step with
// respect to concurrent order commits.
type InventoryService struct {
	mu       sync.Mutex
	products map[string]*productState

	movements         repository.MovementRepository
	publisher         messaging.Publisher
	lowStockThreshold int
}

type productState struct {
	id       string
	name     string
	variants []*entity.Variant
	index    map[string]*entity.Variant
}

func NewInventoryService(movements repository.MovementRepository, publisher messaging.Publisher, lowStockThreshold int) *InventoryService {
	return &InventoryService{
		products:          make(map[string]*productState),
		movements:         movements,
		publisher:         publisher,
		lowStockThreshold: lowStockThreshold,
	}
}

// LoadProducts seeds the registry from the catalog. Each product is
// integrity-checked first; a broken product fails the load rather than
// surfacing later as a runtime lookup miss.
func (s *InventoryService) LoadProducts(products []entity.Product) error {
	states := make(map[string]*productState, len(products))
	for _, p := range products {
		if err := validateProduct(p); err != nil {
			return fmt.Errorf("invalid product %s: %w", p.ID, err)
		}
		state := &productState{
			id:       p.ID,
			name:     p.Name,
			variants: make([]*entity.Variant, 0, len(p.Variants)),
			index:    make(map[string]*entity.Variant, len(p.Variants)),
		}
		for _, v := range p.Variants {
			variant := v
			state.variants = append(state.variants, &variant)
			state.index[v.ID] = &variant
		}
		states[p.ID] = state
	}

	s.mu.Lock()
	s.products = states
	s.mu.Unlock()

	slog.Info("Variant registry loaded", "products", len(states))
	return nil
}

func validateProduct(p entity.Product) error {
	if p.ID == "" {
		return fmt.Errorf("missing product id")
	}
	if p.Name == "" {
		return fmt.Errorf("missing product name")
	}
	seen := make(map[string]struct{}, len(p.Variants))
	for i, v := range p.Variants {
		if v.ID == "" {
			return fmt.Errorf("variant %d has no id", i+1)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("duplicate variant id %s", v.ID)
		}
		seen[v.ID] = struct{}{}
		if v.Stock < 0 {
			return fmt.Errorf("variant %s has negative stock", v.ID)
		}
	}
	return nil
}

// Variants returns the product's variants in their catalog order. Unknown
// products yield an empty slice, never an error.
func (s *InventoryService) Variants(productID string) []entity.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.products[productID]
	if !ok {
		return nil
	}
	variants := make([]entity.Variant, 0, len(state.variants))
	for _, v := range state.variants {
		variants = append(variants, *v)
	}
	return variants
}

// Variant looks up a single variant by id.
func (s *InventoryService) Variant(productID, variantID string) (entity.Variant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.lookup(productID, variantID)
	if v == nil {
		return entity.Variant{}, false
	}
	return *v, true
}

// lookup must be called with s.mu held.
func (s *InventoryService) lookup(productID, variantID string) *entity.Variant {
	state, ok := s.products[productID]
	if !ok {
		return nil
	}
	return state.index[variantID]
}

// TotalStock sums the stock of all variants of a product.
func (s *InventoryService) TotalStock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalStockLocked(productID)
}

func (s *InventoryService) totalStockLocked(productID string) int {
	state, ok := s.products[productID]
	if !ok {
		return 0
	}
	total := 0
	for _, v := range state.variants {
		total += v.Stock
	}
	return total
}

// StockStatus classifies a product's total stock as out-of-stock, low-stock
// or in-stock.
func (s *InventoryService) StockStatus(productID string) entity.StockStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusFor(s.totalStockLocked(productID))
}

func (s *InventoryService) statusFor(totalStock int) entity.StockStatus {
	switch {
	case totalStock == 0:
		return entity.StatusOutOfStock
	case totalStock <= s.lowStockThreshold:
		return entity.StatusLowStock
	default:
		return entity.StatusInStock
	}
}

// CheckStock answers whether quantity units of a variant are available.
// Pure read: an unknown variant reports unavailable with stock 0.
func (s *InventoryService) CheckStock(productID, variantID string, quantity int) entity.StockCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkStockLocked(productID, variantID, quantity)
}

func (s *InventoryService) checkStockLocked(productID, variantID string, quantity int) entity.StockCheck {
	v := s.lookup(productID, variantID)
	if v == nil {
		return entity.StockCheck{Available: false, Stock: 0, Message: "variant not found"}
	}
	if v.Stock < quantity {
		return entity.StockCheck{
			Available: false,
			Stock:     v.Stock,
			Message:   fmt.Sprintf("insufficient stock, currently %d", v.Stock),
		}
	}
	return entity.StockCheck{Available: true, Stock: v.Stock, Message: "in stock"}
}

// UpdateStock applies one stock mutation and appends exactly one movement
// record before returning. An "out" larger than the current stock is
// rejected, never clamped: every caller sees the same policy the order
// engine enforces.
func (s *InventoryService) UpdateStock(ctx context.Context, productID, variantID string, quantity int, mtype entity.MovementType, reason, orderID string) (oldStock, newStock int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateStockLocked(ctx, productID, variantID, quantity, mtype, reason, orderID)
}

func (s *InventoryService) updateStockLocked(ctx context.Context, productID, variantID string, quantity int, mtype entity.MovementType, reason, orderID string) (int, int, error) {
	v := s.lookup(productID, variantID)
	if v == nil {
		return 0, 0, &entity.VariantNotFoundError{ProductID: productID, VariantID: variantID}
	}

	oldStock := v.Stock
	var newStock int
	switch mtype {
	case entity.MovementIn:
		newStock = oldStock + quantity
	case entity.MovementOut:
		if quantity > oldStock {
			return 0, 0, &entity.InsufficientStockError{
				ProductID: productID,
				VariantID: variantID,
				Stock:     oldStock,
				Requested: quantity,
			}
		}
		newStock = oldStock - quantity
	case entity.MovementAdjustment:
		if quantity < 0 {
			return 0, 0, fmt.Errorf("adjustment target must not be negative, got %d", quantity)
		}
		newStock = quantity
	default:
		return 0, 0, fmt.Errorf("invalid movement type %q", mtype)
	}

	v.Stock = newStock
	s.recordMovement(ctx, productID, variantID, quantity, mtype, reason, orderID, oldStock, newStock)

	slog.Info("Stock updated", "product_id", productID, "variant_id", variantID,
		"type", mtype, "old", oldStock, "new", newStock)
	return oldStock, newStock, nil
}

// recordMovement appends the audit record for a mutation that has already
// happened. The audit trail is advisory: a failing sink is logged, the
// mutation stands.
func (s *InventoryService) recordMovement(ctx context.Context, productID, variantID string, quantity int, mtype entity.MovementType, reason, orderID string, oldStock, newStock int) {
	recorded := quantity
	if mtype == entity.MovementAdjustment {
		recorded = newStock - oldStock
	}
	movement := entity.StockMovement{
		ID:        uuid.NewString(),
		ProductID: productID,
		VariantID: variantID,
		Type:      mtype,
		Quantity:  recorded,
		Reason:    reason,
		OrderID:   orderID,
		Operator:  "system",
		OldStock:  oldStock,
		NewStock:  newStock,
		Timestamp: time.Now(),
	}

	if err := s.movements.Append(ctx, movement); err != nil {
		slog.Warn("Failed to append stock movement, mutation stands", "movement_id", movement.ID, "err", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, "stock.movements", movement.ID, entity.StockMovementRecorded{Movement: movement}); err != nil {
			slog.Warn("Failed to publish stock movement event", "movement_id", movement.ID, "err", err)
		}
	}
}

// CommitLines validates every line and, only if all pass, decrements them
// all, holding the inventory lock for the whole window. On rejection no
// stock has changed and the error names every failing line.
func (s *InventoryService) CommitLines(ctx context.Context, lines []entity.LineItem, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []entity.LineFailure
	var agg *multierror.Error
	for _, line := range lines {
		check := s.checkStockLocked(line.ProductID, line.VariantID, line.Quantity)
		if check.Available {
			continue
		}
		failures = append(failures, entity.LineFailure{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Requested: line.Quantity,
			Stock:     check.Stock,
			Message:   check.Message,
		})
		agg = multierror.Append(agg, fmt.Errorf("%s/%s: %s (requested %d)",
			line.ProductID, line.VariantID, check.Message, line.Quantity))
	}
	if len(failures) > 0 {
		return &entity.OrderRejectedError{Failures: failures, Err: agg}
	}

	for _, line := range lines {
		reason := fmt.Sprintf("order %s", orderID)
		if _, _, err := s.updateStockLocked(ctx, line.ProductID, line.VariantID, line.Quantity, entity.MovementOut, reason, orderID); err != nil {
			// Unreachable while the lock is held: every line was just
			// checked under the same lock.
			return fmt.Errorf("stock decrement failed after validation for %s/%s: %w", line.ProductID, line.VariantID, err)
		}
	}
	return nil
}

// Report summarises inventory health for the operator, pricing stock value
// from the ledger.
func (s *InventoryService) Report(ledger map[string]entity.PriceEntry) entity.StockReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := entity.StockReport{TotalProducts: len(s.products)}
	for _, state := range s.products {
		unitPrice := 0
		if entry, ok := ledger[state.id]; ok {
			unitPrice = entry.Price
		}
		for _, v := range state.variants {
			report.TotalStockValue += v.Stock * unitPrice
			item := entity.StockReportItem{
				ProductID:   state.id,
				ProductName: state.name,
				VariantID:   v.ID,
				VariantName: v.Value,
				Stock:       v.Stock,
			}
			switch {
			case v.Stock == 0:
				report.OutOfStockItems = append(report.OutOfStockItems, item)
			case v.Stock <= s.lowStockThreshold:
				report.LowStockItems = append(report.LowStockItems, item)
			}
		}
	}
	return report
}

// Stats returns per-product variant and stock statistics, or false for an
// unknown product.
func (s *InventoryService) Stats(productID string) (entity.ProductStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.products[productID]
	if !ok {
		return entity.ProductStats{}, false
	}

	stats := entity.ProductStats{
		ProductName:   state.name,
		TotalVariants: len(state.variants),
	}
	for _, v := range state.variants {
		stats.TotalStock += v.Stock
		if v.Stock > 0 {
			stats.InStockVariants++
		} else {
			stats.OutOfStockVariants++
		}
	}
	if len(state.variants) > 0 {
		stats.AverageStock = (stats.TotalStock + len(state.variants)/2) / len(state.variants)
	}
	stats.Status = s.statusFor(stats.TotalStock)
	return stats, true
}

// Products lists every product with its live total stock and status.
func (s *InventoryService) Products() []entity.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]entity.Product, 0, len(s.products))
	for _, state := range s.products {
		p := entity.Product{ID: state.id, Name: state.name}
		for _, v := range state.variants {
			p.Variants = append(p.Variants, *v)
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}
