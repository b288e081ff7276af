package metrics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shoplytics/shoplytics/internal/platform/httpx"
)

// Handler serves the dashboard aggregate endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the metrics HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers metrics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/metrics/summary", h.handleSummary)
	r.Get("/metrics/trend", h.handleTrend)
	r.Get("/metrics/top-products", h.handleTopProducts)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid period", err.Error())
		return
	}
	summary, err := h.service.GetSummary(r.Context(), period)
	if err != nil {
		h.logger.Error("metrics summary failed", slog.String("period", string(period)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 366 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid days", "days must be between 1 and 366")
			return
		}
		days = parsed
	}
	points, err := h.service.GetTrend(r.Context(), days)
	if err != nil {
		h.logger.Error("metrics trend failed", slog.Int("days", days), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	period, err := ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid period", err.Error())
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid limit", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}
	products, err := h.service.GetTopProducts(r.Context(), period, limit)
	if err != nil {
		h.logger.Error("metrics top products failed", slog.String("period", string(period)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}
