package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/repository"
)

type ordersDoc struct {
	Orders []entity.Order `json:"orders"`
}

type orderRepository struct {
	mu   sync.Mutex
	path string
}

// NewOrderRepository persists orders in orders.json, append-only except for
// status and notes updates.
func NewOrderRepository(dataDir string) repository.OrderRepository {
	return &orderRepository{path: filepath.Join(dataDir, "orders.json")}
}

func (r *orderRepository) load() (ordersDoc, error) {
	var doc ordersDoc
	if err := readDoc(r.path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ordersDoc{}, nil
		}
		return ordersDoc{}, err
	}
	return doc, nil
}

func (r *orderRepository) Append(ctx context.Context, order entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return fmt.Errorf("failed to load order log: %w", err)
	}
	for _, existing := range doc.Orders {
		if existing.OrderID == order.OrderID {
			return fmt.Errorf("order %s already exists", order.OrderID)
		}
	}
	doc.Orders = append(doc.Orders, order)
	if err := writeDoc(r.path, doc); err != nil {
		return fmt.Errorf("failed to append order %s: %w", order.OrderID, err)
	}
	return nil
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load order log: %w", err)
	}
	orders := doc.Orders
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return entity.Order{}, fmt.Errorf("failed to load order log: %w", err)
	}
	for _, order := range doc.Orders {
		if order.OrderID == orderID {
			return order, nil
		}
	}
	return entity.Order{}, fmt.Errorf("order %s not found", orderID)
}

func (r *orderRepository) FindByCustomerPhone(ctx context.Context, phone string) ([]entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load order log: %w", err)
	}
	var orders []entity.Order
	for _, order := range doc.Orders {
		if order.Customer.Phone == phone {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status entity.OrderStatus, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return fmt.Errorf("failed to load order log: %w", err)
	}
	for i := range doc.Orders {
		if doc.Orders[i].OrderID != orderID {
			continue
		}
		doc.Orders[i].Status = status
		doc.Orders[i].LastUpdated = time.Now()
		if notes != "" {
			if doc.Orders[i].Notes != "" {
				doc.Orders[i].Notes += "\n"
			}
			doc.Orders[i].Notes += notes
		}
		if err := writeDoc(r.path, doc); err != nil {
			return fmt.Errorf("failed to update order %s: %w", orderID, err)
		}
		return nil
	}
	return fmt.Errorf("order %s not found", orderID)
}
