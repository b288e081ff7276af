package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskShippingSync prices the carrier shipment for one order.
	TaskShippingSync = "shipping:sync"
	// TaskStoreSync pulls changed resources from the store API.
	TaskStoreSync = "store:sync"
	// TaskMetricsWarmup re-primes the dashboard aggregate cache.
	TaskMetricsWarmup = "metrics:warmup"
)

// ShippingSyncPayload identifies the order whose shipping cost to sync.
type ShippingSyncPayload struct {
	OrderNumber string `json:"order_number"`
}

// NewShippingSyncTask constructs the per-order shipping task.
func NewShippingSyncTask(payload ShippingSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskShippingSync, data), nil
}

// StoreSyncPayload selects what the scheduled sync pulls. An empty resource
// means every resource; mode defaults to incremental.
type StoreSyncPayload struct {
	Mode     string `json:"mode,omitempty"`
	Resource string `json:"resource,omitempty"`
}

// NewStoreSyncTask constructs a store sync task.
func NewStoreSyncTask(payload StoreSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStoreSync, data), nil
}

// NewMetricsWarmupTask constructs a cache warmup task.
func NewMetricsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskMetricsWarmup, nil)
}
