package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/messaging"
	"github.com/lovemage/deepvape/internal/repository"
)

// PriceSyncService reconciles the per-page product snapshots against the
// price ledger. The ledger always wins. Corrections are published as an
// event and written to an operator export; the per-page sources themselves
// are never touched, so editorial intent is never silently overwritten.
type PriceSyncService struct {
	prices    repository.PriceRepository
	snapshots repository.SnapshotRepository
	publisher messaging.Publisher
	exportDir string

	mu        sync.Mutex
	syncing   bool
	lastCheck time.Time
	lastDiffs []entity.Divergence
}

func NewPriceSyncService(prices repository.PriceRepository, snapshots repository.SnapshotRepository, publisher messaging.Publisher, exportDir string) *PriceSyncService {
	return &PriceSyncService{
		prices:    prices,
		snapshots: snapshots,
		publisher: publisher,
		exportDir: exportDir,
	}
}

// Reconcile compares every product present in both the ledger and the
// snapshot set and returns the divergences plus the corrected (ledger-wins)
// snapshots. Pure function: reconciling its own output again yields no
// further divergences.
func Reconcile(ledger map[string]entity.PriceEntry, snapshots map[string]entity.PageProductSnapshot) ([]entity.Divergence, map[string]entity.PageProductSnapshot) {
	var divergences []entity.Divergence
	corrected := make(map[string]entity.PageProductSnapshot, len(snapshots))

	for productID, snap := range snapshots {
		entry, ok := ledger[productID]
		if !ok {
			corrected[productID] = snap
			continue
		}

		if snap.Price != entry.Price {
			divergences = append(divergences, entity.Divergence{
				ProductID: productID,
				Field:     "price",
				OldValue:  fmt.Sprintf("%d", snap.Price),
				NewValue:  fmt.Sprintf("%d", entry.Price),
			})
			snap.Price = entry.Price
		}
		if snap.OriginalPrice != entry.OriginalPrice {
			divergences = append(divergences, entity.Divergence{
				ProductID: productID,
				Field:     "originalPrice",
				OldValue:  fmt.Sprintf("%d", snap.OriginalPrice),
				NewValue:  fmt.Sprintf("%d", entry.OriginalPrice),
			})
			snap.OriginalPrice = entry.OriginalPrice
		}
		if snap.Discount != entry.Discount {
			divergences = append(divergences, entity.Divergence{
				ProductID: productID,
				Field:     "discount",
				OldValue:  snap.Discount,
				NewValue:  entry.Discount,
			})
			snap.Discount = entry.Discount
		}
		corrected[productID] = snap
	}

	sort.Slice(divergences, func(i, j int) bool {
		if divergences[i].ProductID != divergences[j].ProductID {
			return divergences[i].ProductID < divergences[j].ProductID
		}
		return divergences[i].Field < divergences[j].Field
	})
	return divergences, corrected
}

// Sync loads both sides, reconciles, and on divergence emits the
// notification event and writes the operator export. Load failures of
// individual page sources were already skipped by the repository; a ledger
// load failure aborts the pass.
func (s *PriceSyncService) Sync(ctx context.Context) error {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		slog.Debug("Price sync already in progress, skipping")
		return nil
	}
	s.syncing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	ledger, err := s.prices.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("failed to load price ledger: %w", err)
	}
	snapshots, err := s.snapshots.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load page snapshots: %w", err)
	}

	checkedAt := time.Now()
	divergences, corrected := Reconcile(ledger, snapshots)

	s.mu.Lock()
	s.lastCheck = checkedAt
	s.lastDiffs = divergences
	s.mu.Unlock()

	if len(divergences) == 0 {
		slog.Debug("Price sync: all snapshots agree with the ledger")
		return nil
	}

	slog.Info("Price sync found divergences", "count", len(divergences))
	for _, d := range divergences {
		slog.Info("Price divergence", "product_id", d.ProductID, "field", d.Field,
			"snapshot", d.OldValue, "ledger", d.NewValue)
	}

	correctedList := make([]entity.PageProductSnapshot, 0, len(corrected))
	for _, snap := range corrected {
		correctedList = append(correctedList, snap)
	}
	sort.Slice(correctedList, func(i, j int) bool { return correctedList[i].PageID < correctedList[j].PageID })

	event := entity.PricesReconciled{
		Divergences: divergences,
		Corrected:   correctedList,
		CheckedAt:   checkedAt,
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, "prices.reconciled", "price-sync", event); err != nil {
			slog.Warn("Failed to publish reconciliation event", "err", err)
		}
	}
	if err := s.writeExport(event); err != nil {
		slog.Warn("Failed to write price correction export", "err", err)
	}
	return nil
}

// writeExport drops the correction set where the operator can pick it up
// and apply it to the page sources by hand.
func (s *PriceSyncService) writeExport(event entity.PricesReconciled) error {
	if s.exportDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}
	raw, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	name := fmt.Sprintf("price_corrections_%s.json", event.CheckedAt.Format("20060102_150405"))
	path := filepath.Join(s.exportDir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write export %s: %w", path, err)
	}
	slog.Info("Wrote price correction export", "path", path)
	return nil
}

// Run re-syncs on a fixed interval until ctx is cancelled. It shares no lock
// with order processing: it reads its own snapshot of the data and only
// recommends corrections.
func (s *PriceSyncService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Price sync loop shutting down")
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				slog.Error("Price sync pass failed", "err", err)
			}
		}
	}
}

// Status reports the outcome of the most recent sync pass.
func (s *PriceSyncService) Status() entity.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entity.SyncStatus{
		InSync:      len(s.lastDiffs) == 0,
		Divergences: s.lastDiffs,
		LastCheck:   s.lastCheck,
	}
}
