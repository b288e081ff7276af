package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shoplytics/shoplytics/internal/platform/httpx"
)

// ShippingEnqueuer queues a shipping-cost sync for one order.
type ShippingEnqueuer interface {
	EnqueueShippingSync(ctx context.Context, orderNumber string) error
}

// Handler serves the order read and status endpoints.
type Handler struct {
	logger    *slog.Logger
	repo      Repository
	resolver  *Resolver
	enqueuer  ShippingEnqueuer
	validator *validator.Validate
}

// NewHandler constructs the orders HTTP handler. The enqueuer may be nil, in
// which case the manual shipping sync endpoint reports unavailability.
func NewHandler(logger *slog.Logger, repo Repository, resolver *Resolver, enqueuer ShippingEnqueuer) *Handler {
	return &Handler{
		logger:    logger,
		repo:      repo,
		resolver:  resolver,
		enqueuer:  enqueuer,
		validator: validator.New(),
	}
}

// MountRoutes registers order endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleList)
	r.Get("/orders/{identifier}", h.handleGet)
	r.Patch("/orders/{identifier}/status", h.handleStatus)
	r.Post("/orders/{identifier}/sync-shipping", h.handleSyncShipping)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRequest{Limit: 50}

	if raw := q.Get("status"); raw != "" {
		status := raw
		req.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid from", "from must be YYYY-MM-DD")
			return
		}
		req.DateFrom = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid to", "to must be YYYY-MM-DD")
			return
		}
		req.DateTo = &t
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid limit", "limit must be between 1 and 200")
			return
		}
		req.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid offset", "offset must not be negative")
			return
		}
		req.Offset = offset
	}

	list, total, err := h.repo.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders": list,
		"total":  total,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	order, err := h.resolver.Resolve(r.Context(), identifier)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Order not found", "no order matches "+identifier)
		return
	}
	if err != nil {
		h.logger.Error("resolve order failed", slog.String("identifier", identifier), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type statusUpdate struct {
	Status string `json:"status" validate:"required,oneof=pending processing on-hold completed cancelled refunded failed draft checkout-draft"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	var body statusUpdate
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid status", err.Error())
		return
	}

	order, err := h.resolver.Resolve(r.Context(), identifier)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Order not found", "no order matches "+identifier)
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), order.OrderNumber, body.Status); err != nil {
		h.logger.Error("update status failed", slog.String("order_number", order.OrderNumber), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("order status updated",
		slog.String("order_number", order.OrderNumber),
		slog.String("status", body.Status))
	httpx.JSON(w, http.StatusOK, map[string]string{
		"order_number": order.OrderNumber,
		"status":       body.Status,
	})
}

func (h *Handler) handleSyncShipping(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "shipping sync queue is not configured")
		return
	}
	identifier := chi.URLParam(r, "identifier")
	order, err := h.resolver.Resolve(r.Context(), identifier)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Order not found", "no order matches "+identifier)
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.enqueuer.EnqueueShippingSync(r.Context(), order.OrderNumber); err != nil {
		h.logger.Error("enqueue shipping sync failed",
			slog.String("order_number", order.OrderNumber), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{
		"order_number": order.OrderNumber,
		"queued":       "shipping:sync",
	})
}
