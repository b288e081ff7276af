package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	queued []string
	err    error
}

func (f *fakeEnqueuer) EnqueueShippingSync(_ context.Context, orderNumber string) error {
	if f.err != nil {
		return f.err
	}
	f.queued = append(f.queued, orderNumber)
	return nil
}

func newTestRouter(repo Repository, enq ShippingEnqueuer) chi.Router {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	h := NewHandler(logger, repo, NewResolver(repo, logger), enq)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestHandleGetResolvesEncodedIdentifier(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	router := newTestRouter(repo, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/Order%2520%25231791", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "Order #1791", got.OrderNumber)
}

func TestHandleGetUnknownOrder(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	router := newTestRouter(repo, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/9999", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleStatusUpdates(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	router := newTestRouter(repo, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/orders/1791/status", strings.NewReader(`{"status":"completed"}`))
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "completed", repo.byNumber["Order #1791"].Status)
}

func TestHandleStatusRejectsUnknownValue(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	router := newTestRouter(repo, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/orders/1791/status", strings.NewReader(`{"status":"shredded"}`))
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, repo.byNumber["Order #1791"].Status)
}

func TestHandleSyncShippingQueuesCanonicalNumber(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	enq := &fakeEnqueuer{}
	router := newTestRouter(repo, enq)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders/1791/sync-shipping", nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []string{"Order #1791"}, enq.queued)
}

func TestHandleSyncShippingWithoutQueue(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	router := newTestRouter(repo, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders/1791/sync-shipping", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleSyncShippingQueueFailure(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	router := newTestRouter(repo, enq)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders/1791/sync-shipping", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}