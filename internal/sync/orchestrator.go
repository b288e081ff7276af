// Package sync drives the WooCommerce to Postgres synchronization.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/coupons"
	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/woo"
)

// Mode selects how much of the upstream catalog a run fetches.
type Mode string

const (
	// ModeFull fetches everything but skips external IDs already stored.
	ModeFull Mode = "full"
	// ModeIncremental fetches only items modified after the last recorded
	// successful sync for the resource.
	ModeIncremental Mode = "incremental"
)

// Source is the slice of the Woo client the orchestrator consumes.
type Source interface {
	PageSize() int
	ListOrders(ctx context.Context, params woo.ListParams) ([]woo.Order, error)
	ListProducts(ctx context.Context, params woo.ListParams) ([]woo.Product, error)
	ListCoupons(ctx context.Context, params woo.ListParams) ([]woo.Coupon, error)
}

// Result summarizes one resource's sync run.
type Result struct {
	Resource     Resource  `json:"resource"`
	Mode         Mode      `json:"mode"`
	Synced       int       `json:"synced"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	ErrorSummary string    `json:"error_summary,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// Orchestrator runs paginated fetches against the Woo API and feeds each item
// through normalization, product resolution, and upsert. Items are processed
// one at a time with a fixed inter-item delay; individual failures are
// counted and logged but never abort the batch.
type Orchestrator struct {
	source    Source
	ingestor  *Ingestor
	orders    orders.Repository
	products  catalog.Repository
	coupons   coupons.Repository
	state     StateRepository
	logger    *slog.Logger
	itemDelay time.Duration
	clock     func() time.Time
}

// OrchestratorConfig collects the orchestrator's dependencies.
type OrchestratorConfig struct {
	Source    Source
	Ingestor  *Ingestor
	Orders    orders.Repository
	Products  catalog.Repository
	Coupons   coupons.Repository
	State     StateRepository
	Logger    *slog.Logger
	ItemDelay time.Duration
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		source:    cfg.Source,
		ingestor:  cfg.Ingestor,
		orders:    cfg.Orders,
		products:  cfg.Products,
		coupons:   cfg.Coupons,
		state:     cfg.State,
		logger:    cfg.Logger,
		itemDelay: cfg.ItemDelay,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// RunAll syncs every resource independently and returns one result per
// resource. A resource failing outright does not stop the others.
func (o *Orchestrator) RunAll(ctx context.Context, mode Mode) []Result {
	results := make([]Result, 0, len(Resources()))
	for _, resource := range Resources() {
		res, err := o.Run(ctx, resource, mode)
		if err != nil {
			o.logger.Error("resource sync failed",
				slog.String("resource", string(resource)),
				slog.Any("error", err))
			res.Errors++
			if res.ErrorSummary == "" {
				res.ErrorSummary = err.Error()
			}
		}
		results = append(results, res)
	}
	return results
}

// Run syncs a single resource in the given mode.
func (o *Orchestrator) Run(ctx context.Context, resource Resource, mode Mode) (Result, error) {
	started := o.clock()
	result := Result{Resource: resource, Mode: mode, StartedAt: started}

	var modifiedAfter *time.Time
	if mode == ModeIncremental {
		st, err := o.state.Get(ctx, resource)
		if err != nil {
			return result, fmt.Errorf("sync: load state for %s: %w", resource, err)
		}
		modifiedAfter = st.LastSuccessfulSync
	}

	logger := o.logger.With(
		slog.String("resource", string(resource)),
		slog.String("mode", string(mode)))
	logger.Info("sync run starting")

	var errMessages []string
	var err error
	switch resource {
	case ResourceOrders:
		err = o.runOrders(ctx, mode, modifiedAfter, &result, &errMessages, logger)
	case ResourceProducts:
		err = o.runProducts(ctx, mode, modifiedAfter, &result, &errMessages, logger)
	case ResourceCoupons:
		err = o.runCoupons(ctx, modifiedAfter, &result, &errMessages, logger)
	default:
		return result, fmt.Errorf("sync: unknown resource %q", resource)
	}
	if err != nil {
		return result, err
	}

	result.ErrorSummary = summarize(errMessages)
	// The checkpoint advances even when items errored: reprocessing the
	// whole window on every partial failure would dominate runtime, and
	// errored items resurface once their modified timestamp moves.
	if stateErr := o.state.Record(ctx, resource, started, result.Synced, result.ErrorSummary); stateErr != nil {
		logger.Error("record sync state", slog.Any("error", stateErr))
	}

	logger.Info("sync run finished",
		slog.Int("synced", result.Synced),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors))
	return result, nil
}

func (o *Orchestrator) runOrders(ctx context.Context, mode Mode, modifiedAfter *time.Time, result *Result, errMessages *[]string, logger *slog.Logger) error {
	var existing map[int64]struct{}
	if mode == ModeFull {
		var err error
		existing, err = o.orders.ExistingWooIDs(ctx)
		if err != nil {
			return fmt.Errorf("sync: load existing order ids: %w", err)
		}
	}

	return o.paginate(ctx, func(page int) (int, error) {
		items, err := o.source.ListOrders(ctx, woo.ListParams{Page: page, ModifiedAfter: modifiedAfter})
		if err != nil {
			return 0, err
		}
		for _, item := range items {
			if _, seen := existing[item.ID]; seen {
				result.Skipped++
				continue
			}
			if _, err := o.ingestor.IngestOrder(ctx, woo.NormalizeOrder(item)); err != nil {
				result.Errors++
				*errMessages = append(*errMessages, fmt.Sprintf("order %d: %v", item.ID, err))
				logger.Error("order sync failed", slog.Int64("woo_order_id", item.ID), slog.Any("error", err))
			} else {
				result.Synced++
			}
			o.pause(ctx)
		}
		return len(items), nil
	})
}

func (o *Orchestrator) runProducts(ctx context.Context, mode Mode, modifiedAfter *time.Time, result *Result, errMessages *[]string, logger *slog.Logger) error {
	var existing map[int64]struct{}
	if mode == ModeFull {
		var err error
		existing, err = o.products.ExistingWooIDs(ctx)
		if err != nil {
			return fmt.Errorf("sync: load existing product ids: %w", err)
		}
	}

	return o.paginate(ctx, func(page int) (int, error) {
		items, err := o.source.ListProducts(ctx, woo.ListParams{Page: page, ModifiedAfter: modifiedAfter})
		if err != nil {
			return 0, err
		}
		for _, item := range items {
			if _, seen := existing[item.ID]; seen {
				result.Skipped++
				continue
			}
			if _, err := o.products.UpsertFromSource(ctx, woo.NormalizeProduct(item)); err != nil {
				result.Errors++
				*errMessages = append(*errMessages, fmt.Sprintf("product %d: %v", item.ID, err))
				logger.Error("product sync failed", slog.Int64("woo_product_id", item.ID), slog.Any("error", err))
			} else {
				result.Synced++
			}
			o.pause(ctx)
		}
		return len(items), nil
	})
}

func (o *Orchestrator) runCoupons(ctx context.Context, modifiedAfter *time.Time, result *Result, errMessages *[]string, logger *slog.Logger) error {
	return o.paginate(ctx, func(page int) (int, error) {
		items, err := o.source.ListCoupons(ctx, woo.ListParams{Page: page, ModifiedAfter: modifiedAfter})
		if err != nil {
			return 0, err
		}
		for _, item := range items {
			code, kind, value := woo.NormalizeCoupon(item)
			if code == "" {
				result.Skipped++
				continue
			}
			err := o.coupons.Upsert(ctx, coupons.Coupon{Code: code, DiscountType: kind, DiscountValue: value})
			if err != nil {
				result.Errors++
				*errMessages = append(*errMessages, fmt.Sprintf("coupon %s: %v", code, err))
				logger.Error("coupon sync failed", slog.String("code", code), slog.Any("error", err))
			} else {
				result.Synced++
			}
			o.pause(ctx)
		}
		return len(items), nil
	})
}

// paginate walks pages until a short page signals the end of the listing.
func (o *Orchestrator) paginate(ctx context.Context, fetch func(page int) (int, error)) error {
	pageSize := o.source.PageSize()
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := fetch(page)
		if err != nil {
			return err
		}
		if n < pageSize {
			return nil
		}
	}
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.itemDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(o.itemDelay):
	}
}

func summarize(messages []string) string {
	if len(messages) == 0 {
		return ""
	}
	const maxShown = 5
	shown := messages
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	summary := strings.Join(shown, "; ")
	if len(messages) > maxShown {
		summary += fmt.Sprintf(" (+%d more)", len(messages)-maxShown)
	}
	return summary
}
