package sync

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resource identifies one independently synced resource type.
type Resource string

const (
	ResourceOrders   Resource = "orders"
	ResourceProducts Resource = "products"
	ResourceCoupons  Resource = "coupons"
)

// Resources lists every syncable resource in run order. Products come first
// so order lines resolve against a fresh catalog.
func Resources() []Resource {
	return []Resource{ResourceProducts, ResourceCoupons, ResourceOrders}
}

// State is the persisted checkpoint of one resource's last sync run.
type State struct {
	Resource           Resource
	LastSuccessfulSync *time.Time
	LastCount          int
	LastErrorSummary   string
	UpdatedAt          time.Time
}

// StateRepository persists per-resource sync checkpoints.
type StateRepository interface {
	Get(ctx context.Context, resource Resource) (*State, error)
	// Record writes the run outcome. The successful-sync timestamp advances
	// even when some items errored; see DESIGN.md for the rationale.
	Record(ctx context.Context, resource Resource, syncedAt time.Time, count int, errorSummary string) error
}

type stateRepository struct {
	pool *pgxpool.Pool
}

func NewStateRepository(pool *pgxpool.Pool) StateRepository {
	return &stateRepository{pool: pool}
}

func (r *stateRepository) Get(ctx context.Context, resource Resource) (*State, error) {
	var s State
	s.Resource = resource
	var last, updated pgtype.Timestamptz
	err := r.pool.QueryRow(ctx,
		"SELECT last_successful_sync, last_count, last_error_summary, updated_at FROM sync_state WHERE resource = $1",
		string(resource)).Scan(&last, &s.LastCount, &s.LastErrorSummary, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return &s, nil
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		val := last.Time
		s.LastSuccessfulSync = &val
	}
	if updated.Valid {
		s.UpdatedAt = updated.Time
	}
	return &s, nil
}

func (r *stateRepository) Record(ctx context.Context, resource Resource, syncedAt time.Time, count int, errorSummary string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_state (resource, last_successful_sync, last_count, last_error_summary)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (resource) DO UPDATE SET
			last_successful_sync = EXCLUDED.last_successful_sync,
			last_count = EXCLUDED.last_count,
			last_error_summary = EXCLUDED.last_error_summary,
			updated_at = now()`,
		string(resource), syncedAt, count, errorSummary)
	return err
}
