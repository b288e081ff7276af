package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/platform/httpx"
	"github.com/shoplytics/shoplytics/internal/woo"
)

const (
	signatureHeader = "X-WC-Webhook-Signature"
	maxBodyBytes    = 1 << 20
)

// OrderIngestor writes a normalised order into the store.
type OrderIngestor interface {
	IngestOrder(ctx context.Context, in orders.Ingest) (string, error)
}

// CacheInvalidator bumps cached aggregates after new data lands.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler receives WooCommerce order webhooks.
type Handler struct {
	logger    *slog.Logger
	secret    []byte
	ingestor  OrderIngestor
	cache     CacheInvalidator
	validator *validator.Validate
}

// NewHandler constructs the webhook handler.
func NewHandler(logger *slog.Logger, secret string, ingestor OrderIngestor, cache CacheInvalidator) *Handler {
	return &Handler{
		logger:    logger,
		secret:    []byte(secret),
		ingestor:  ingestor,
		cache:     cache,
		validator: validator.New(),
	}
}

// MountRoutes registers webhook endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/webhooks/woocommerce", h.handleOrder)
}

type orderEnvelope struct {
	ID     int64  `json:"id" validate:"required,gt=0"`
	Status string `json:"status" validate:"required"`
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Unreadable body", err.Error())
		return
	}
	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("webhook signature rejected", slog.String("remote", r.RemoteAddr))
		httpx.Problem(w, http.StatusUnauthorized, "Invalid signature", "webhook signature verification failed")
		return
	}

	// Woo delivers a ping when the webhook is first registered.
	var probe struct {
		WebhookID int64 `json:"webhook_id"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.WebhookID > 0 {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	}

	var envelope orderEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(envelope); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}

	var src woo.Order
	if err := json.Unmarshal(body, &src); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}

	orderNumber, err := h.ingestor.IngestOrder(r.Context(), woo.NormalizeOrder(src))
	if err != nil {
		h.logger.Error("webhook ingest failed", slog.Int64("woo_order_id", src.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache bump failed after webhook", slog.Any("error", err))
		}
	}

	h.logger.Info("webhook order ingested", slog.String("order_number", orderNumber), slog.Int64("woo_order_id", src.ID))
	httpx.JSON(w, http.StatusOK, map[string]string{"order_number": orderNumber})
}

func (h *Handler) verifySignature(body []byte, header string) bool {
	if len(h.secret) == 0 || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
