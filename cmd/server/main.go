package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lovemage/deepvape/internal/config"
	deliveryhttp "github.com/lovemage/deepvape/internal/delivery/http"
	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/messaging"
	"github.com/lovemage/deepvape/internal/messaging/bus"
	"github.com/lovemage/deepvape/internal/messaging/kafka"
	"github.com/lovemage/deepvape/internal/repository"
	"github.com/lovemage/deepvape/internal/repository/file"
	"github.com/lovemage/deepvape/internal/repository/postgres"
	"github.com/lovemage/deepvape/internal/service"
)

func main() {
	var (
		configPath = pflag.String("config", "", "path to YAML config file")
		debug      = pflag.Bool("debug", false, "enable debug logging")
	)
	pflag.Parse()

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Repositories ---
	productRepo := file.NewProductRepository(cfg.DataDir)
	priceRepo := file.NewPriceRepository(cfg.DataDir)
	snapshotRepo := file.NewSnapshotRepository(cfg.DataDir, cfg.Catalog)
	couponRepo := file.NewCouponRepository(cfg.DataDir)

	var (
		orderRepo    repository.OrderRepository
		movementRepo repository.MovementRepository
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.InitDB(cfg.PostgresDSN)
		if err != nil {
			slog.Error("Failed to init database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		orderRepo = postgres.NewOrderRepository(db)
		movementRepo = postgres.NewMovementRepository(db)
	} else {
		orderRepo = file.NewOrderRepository(cfg.DataDir)
		movementRepo = file.NewMovementRepository(cfg.DataDir)
	}

	// --- Messaging ---
	eventBus := bus.New(slog.Default())
	defer eventBus.Close()

	publisher := messaging.Fanout{eventBus}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = append(publisher, kafka.NewKafkaBroker(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix))
	}

	// --- Services ---
	inventory := service.NewInventoryService(movementRepo, publisher, cfg.LowStockThreshold)
	products, err := productRepo.LoadProducts(ctx)
	if err != nil {
		slog.Error("Failed to load catalog products", "err", err)
		os.Exit(1)
	}
	if err := inventory.LoadProducts(products); err != nil {
		slog.Error("Failed to seed variant registry", "err", err)
		os.Exit(1)
	}

	priceSync := service.NewPriceSyncService(priceRepo, snapshotRepo, publisher, cfg.ExportDir)

	syncQueue := service.NewSyncQueue(64, cfg.SyncMaxRetries)
	syncQueue.Start(ctx)

	coupons := service.NewCouponService(couponRepo)
	shipping := service.NewShippingCalculator(cfg.Shipping)
	orders := service.NewOrderService(inventory, orderRepo, priceRepo, coupons, shipping, syncQueue, publisher)
	if err := orders.ReloadPrices(ctx); err != nil {
		slog.Error("Failed to load price ledger", "err", err)
		os.Exit(1)
	}

	// Reconciliation currently only corrects snapshots; a ledger edit also
	// shows up here, so refresh the order engine's pricing view.
	if err := eventBus.Subscribe(ctx, "prices.reconciled", func(ctx context.Context, payload []byte) error {
		return orders.ReloadPrices(ctx)
	}); err != nil {
		slog.Error("Failed to subscribe to reconciliation events", "err", err)
		os.Exit(1)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		broker := kafka.NewKafkaBroker(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		orders.SetExternalSync(func(ctx context.Context, order entity.Order) error {
			return broker.PublishEvent(ctx, "orders.synced", order.OrderID, order)
		})
	}

	// First sync pass before serving, then the periodic loop.
	if err := priceSync.Sync(ctx); err != nil {
		slog.Warn("Initial price sync failed", "err", err)
	}
	go priceSync.Run(ctx, time.Duration(cfg.PriceSyncInterval))

	// --- HTTP ---
	handler := deliveryhttp.NewHandler(inventory, orders, priceSync, movementRepo, snapshotRepo, priceRepo)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: deliveryhttp.EnableCORS(mux),
	}

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "err", err)
	}
	syncQueue.Wait()
}
