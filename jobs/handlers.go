package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/shoplytics/shoplytics/internal/jobs"
	"github.com/shoplytics/shoplytics/internal/metrics"
	"github.com/shoplytics/shoplytics/internal/shipping"
	storesync "github.com/shoplytics/shoplytics/internal/sync"
)

// ShippingSyncJob prices the carrier shipment for single orders.
type ShippingSyncJob struct {
	Shipping *shipping.Service
	Cache    *metrics.Service
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewShippingSyncJob wires dependencies for the shipping handler.
func NewShippingSyncJob(svc *shipping.Service, cache *metrics.Service, logger *slog.Logger, m *jobmetrics.Metrics) *ShippingSyncJob {
	return &ShippingSyncJob{Shipping: svc, Cache: cache, Logger: logger, Metrics: m}
}

// Handle processes shipping sync tasks. Transient carrier failures return an
// error so the queue retries; a malformed payload is dropped.
func (j *ShippingSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Shipping == nil {
		return errors.New("shipping sync: handler not configured")
	}
	var payload ShippingSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OrderNumber == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskShippingSync)
	err := j.Shipping.SyncOrder(ctx, payload.OrderNumber)
	if err != nil {
		j.Logger.Error("shipping sync failed",
			slog.String("order_number", payload.OrderNumber),
			slog.Any("error", err))
		return tracker.End(err)
	}
	if j.Cache != nil {
		if err := j.Cache.Invalidate(ctx); err != nil {
			j.Logger.Warn("cache bump failed after shipping sync", slog.Any("error", err))
		}
	}
	return tracker.End(nil)
}

// StoreSyncJob runs the scheduled pull from the store API.
type StoreSyncJob struct {
	Orchestrator *storesync.Orchestrator
	Cache        *metrics.Service
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
}

// NewStoreSyncJob wires dependencies for the scheduled sync handler.
func NewStoreSyncJob(orch *storesync.Orchestrator, cache *metrics.Service, logger *slog.Logger, m *jobmetrics.Metrics) *StoreSyncJob {
	return &StoreSyncJob{Orchestrator: orch, Cache: cache, Logger: logger, Metrics: m}
}

// Handle processes store sync tasks.
func (j *StoreSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Orchestrator == nil {
		return errors.New("store sync: handler not configured")
	}
	var payload StoreSyncPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	mode := storesync.ModeIncremental
	if payload.Mode == string(storesync.ModeFull) {
		mode = storesync.ModeFull
	}

	tracker := j.Metrics.Track(TaskStoreSync)
	var resultErr error
	if payload.Resource != "" {
		_, resultErr = j.Orchestrator.Run(ctx, storesync.Resource(payload.Resource), mode)
	} else {
		for _, result := range j.Orchestrator.RunAll(ctx, mode) {
			if result.Errors > 0 {
				j.Logger.Warn("store sync finished with item errors",
					slog.String("resource", string(result.Resource)),
					slog.Int("errors", result.Errors),
					slog.String("summary", result.ErrorSummary))
			}
		}
	}
	if resultErr == nil && j.Cache != nil {
		if err := j.Cache.Invalidate(ctx); err != nil {
			j.Logger.Warn("cache bump failed after store sync", slog.Any("error", err))
		}
	}
	return tracker.End(resultErr)
}

// MetricsWarmupJob re-primes the dashboard cache so the first request after
// an invalidation does not pay the aggregate queries.
type MetricsWarmupJob struct {
	Service *metrics.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMetricsWarmupJob wires dependencies for the warmup handler.
func NewMetricsWarmupJob(svc *metrics.Service, logger *slog.Logger, m *jobmetrics.Metrics) *MetricsWarmupJob {
	return &MetricsWarmupJob{Service: svc, Logger: logger, Metrics: m}
}

// Handle processes warmup tasks.
func (j *MetricsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("metrics warmup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskMetricsWarmup)
	for _, period := range []metrics.Period{metrics.PeriodMonth, metrics.PeriodWeek, metrics.PeriodAll} {
		if _, err := j.Service.GetSummary(ctx, period); err != nil {
			j.Logger.Error("metrics warmup failed", slog.String("period", string(period)), slog.Any("error", err))
			return tracker.End(err)
		}
	}
	if _, err := j.Service.GetTrend(ctx, 30); err != nil {
		return tracker.End(err)
	}
	if _, err := j.Service.GetTopProducts(ctx, metrics.PeriodMonth, 10); err != nil {
		return tracker.End(err)
	}
	return tracker.End(nil)
}
