package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lovemage/deepvape/internal/entity"
	"github.com/lovemage/deepvape/internal/repository"
	"github.com/lovemage/deepvape/internal/service"
)

// Handler exposes the consistency engine over HTTP. Every response carries
// an explicit success flag; read endpoints fall back to in-memory defaults
// so they answer even when the underlying store is unavailable.
type Handler struct {
	inventory *service.InventoryService
	orders    *service.OrderService
	priceSync *service.PriceSyncService
	movements repository.MovementRepository
	snapshots repository.SnapshotRepository
	prices    repository.PriceRepository
}

func NewHandler(
	inventory *service.InventoryService,
	orders *service.OrderService,
	priceSync *service.PriceSyncService,
	movements repository.MovementRepository,
	snapshots repository.SnapshotRepository,
	prices repository.PriceRepository,
) *Handler {
	return &Handler{
		inventory: inventory,
		orders:    orders,
		priceSync: priceSync,
		movements: movements,
		snapshots: snapshots,
		prices:    prices,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.handleGetProducts)
	mux.HandleFunc("GET /api/products/{id}", h.handleGetProduct)
	mux.HandleFunc("GET /api/products/{id}/stats", h.handleGetProductStats)
	mux.HandleFunc("GET /api/prices", h.handleGetPrices)
	mux.HandleFunc("GET /api/stock-check", h.handleStockCheck)
	mux.HandleFunc("GET /api/stock-report", h.handleStockReport)
	mux.HandleFunc("GET /api/stock-movements", h.handleGetMovements)
	mux.HandleFunc("POST /api/stock-movements", h.handleCreateMovement)
	mux.HandleFunc("GET /api/orders", h.handleGetOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /api/orders", h.handleCreateOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.handleUpdateOrderStatus)
	mux.HandleFunc("GET /api/sync-status", h.handleSyncStatus)
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

type productSummary struct {
	entity.Product
	TotalStock int                `json:"totalStock"`
	Status     entity.StockStatus `json:"status"`
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products := h.inventory.Products()
	summaries := make([]productSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, productSummary{
			Product:    p,
			TotalStock: h.inventory.TotalStock(p.ID),
			Status:     h.inventory.StockStatus(p.ID),
		})
	}
	respond(w, http.StatusOK, summaries)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := h.snapshots.Load(r.Context(), id)
	if err != nil {
		slog.Warn("Falling back to default snapshot", "product_id", id, "err", err)
		// The page still needs to render; commits never trust this data.
		snap = entity.PageProductSnapshot{
			PageID:      id,
			ProductName: id,
			Variants:    h.inventory.Variants(id),
		}
	}
	respond(w, http.StatusOK, snap)
}

func (h *Handler) handleGetProductStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.inventory.Stats(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "product not found")
		return
	}
	respond(w, http.StatusOK, stats)
}

func (h *Handler) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.prices.LoadLedger(r.Context())
	if err != nil {
		slog.Error("Failed to load price ledger, serving empty set", "err", err)
		respond(w, http.StatusOK, map[string]entity.PriceEntry{})
		return
	}
	respond(w, http.StatusOK, ledger)
}

func (h *Handler) handleStockCheck(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	variantID := r.URL.Query().Get("variantId")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity < 1 {
		quantity = 1
	}
	if productID == "" || variantID == "" {
		respondError(w, http.StatusBadRequest, "productId and variantId are required")
		return
	}
	respond(w, http.StatusOK, h.inventory.CheckStock(productID, variantID, quantity))
}

func (h *Handler) handleStockReport(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.prices.LoadLedger(r.Context())
	if err != nil {
		slog.Warn("Stock report without price data", "err", err)
		ledger = map[string]entity.PriceEntry{}
	}
	respond(w, http.StatusOK, h.inventory.Report(ledger))
}

func (h *Handler) handleGetMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.movements.FindRecent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to load stock movements", "err", err)
		respond(w, http.StatusOK, []entity.StockMovement{})
		return
	}
	respond(w, http.StatusOK, movements)
}

type movementRequest struct {
	ProductID string              `json:"productId"`
	VariantID string              `json:"variantId"`
	Quantity  int                 `json:"quantity"`
	Type      entity.MovementType `json:"type"`
	Reason    string              `json:"reason"`
	OrderID   string              `json:"orderId"`
}

func (h *Handler) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	oldStock, newStock, err := h.inventory.UpdateStock(r.Context(),
		req.ProductID, req.VariantID, req.Quantity, req.Type, req.Reason, req.OrderID)
	if err != nil {
		var notFound *entity.VariantNotFoundError
		var insufficient *entity.InsufficientStockError
		switch {
		case errors.As(err, &notFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &insufficient):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	respond(w, http.StatusOK, map[string]int{"oldStock": oldStock, "newStock": newStock})
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []entity.Order
		err    error
	)
	if phone := r.URL.Query().Get("phone"); phone != "" {
		orders, err = h.orders.CustomerOrders(r.Context(), phone)
	} else {
		orders, err = h.orders.RecentOrders(r.Context(), 50)
	}
	if err != nil {
		slog.Error("Failed to load orders", "err", err)
		respond(w, http.StatusOK, []entity.Order{})
		return
	}
	respond(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Order(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respond(w, http.StatusOK, order)
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		var rejected *entity.OrderRejectedError
		var coupon *entity.CouponError
		switch {
		case errors.Is(err, entity.ErrEmptyCart):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &rejected):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(struct {
				envelope
				Failures []entity.LineFailure `json:"failures"`
			}{
				envelope: envelope{Success: false, Error: rejected.Error()},
				Failures: rejected.Failures,
			})
		case errors.As(err, &coupon):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("Failed to place order", "err", err)
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	respond(w, http.StatusCreated, order)
}

type statusRequest struct {
	Status entity.OrderStatus `json:"status"`
	Notes  string             `json:"notes"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.Notes); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]string{"orderId": r.PathValue("id"), "status": string(req.Status)})
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.priceSync.Status())
}

// EnableCORS is middleware allowing the static storefront to call the API.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
