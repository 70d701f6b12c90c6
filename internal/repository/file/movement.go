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

type movementsDoc struct {
	Movements []entity.StockMovement `json:"movements"`
}

type movementRepository struct {
	mu   sync.Mutex
	path string
}

// NewMovementRepository persists the append-only stock movement audit log
// in stock_movements.json.
func NewMovementRepository(dataDir string) repository.MovementRepository {
	return &movementRepository{path: filepath.Join(dataDir, "stock_movements.json")}
}

func (r *movementRepository) load() (movementsDoc, error) {
	var doc movementsDoc
	if err := readDoc(r.path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return movementsDoc{}, nil
		}
		return movementsDoc{}, err
	}
	return doc, nil
}

func (r *movementRepository) Append(ctx context.Context, movement entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return fmt.Errorf("failed to load movement log: %w", err)
	}
	doc.Movements = append(doc.Movements, movement)
	if err := writeDoc(r.path, doc); err != nil {
		return fmt.Errorf("failed to append movement %s: %w", movement.ID, err)
	}
	return nil
}

func (r *movementRepository) FindRecent(ctx context.Context, limit int) ([]entity.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load movement log: %w", err)
	}
	movements := doc.Movements
	if limit > 0 && len(movements) > limit {
		movements = movements[len(movements)-limit:]
	}
	return movements, nil
}
