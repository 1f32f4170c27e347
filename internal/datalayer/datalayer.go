package datalayer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/orderlens/orderlens/internal/cache"
	"github.com/orderlens/orderlens/internal/catalog"
	"github.com/orderlens/orderlens/internal/config"
	"github.com/orderlens/orderlens/internal/observability"
	"github.com/orderlens/orderlens/internal/warehouse"
)

// DataLayer is the facade the API and CLI talk to. It owns the warehouse
// session, the query catalog and the result cache, and is safe for
// concurrent use.
type DataLayer struct {
	cfg       config.Config
	logger    *slog.Logger
	warehouse *warehouse.Manager
	catalog   *catalog.Catalog
	cache     *cache.ResultCache
}

func New(cfg config.Config, logger *slog.Logger) *DataLayer {
	return NewWithComponents(
		cfg,
		logger,
		warehouse.New(cfg.Warehouse, logger),
		catalog.New(cfg.Warehouse.Catalog, cfg.Warehouse.Schema),
		cache.New(cfg.Cache.DefaultTTL),
	)
}

func NewWithComponents(cfg config.Config, logger *slog.Logger, manager *warehouse.Manager, cat *catalog.Catalog, results *cache.ResultCache) *DataLayer {
	return &DataLayer{
		cfg:       cfg,
		logger:    logger,
		warehouse: manager,
		catalog:   cat,
		cache:     results,
	}
}

// Catalog exposes the query definitions, e.g. for the catalog endpoint.
func (d *DataLayer) Catalog() *catalog.Catalog { return d.catalog }

// Connect eagerly establishes the warehouse session. Execution paths connect
// lazily, so calling this is optional.
func (d *DataLayer) Connect(ctx context.Context) error {
	if err := d.warehouse.Connect(ctx); err != nil {
		return classify("", nil, err)
	}
	return nil
}

// HealthCheck reports whether the warehouse answers a trivial round-trip.
// It never returns an error.
func (d *DataLayer) HealthCheck(ctx context.Context) bool {
	return d.warehouse.HealthCheck(ctx)
}

// Close tears down the warehouse session and drops cached results. Safe to
// call multiple times.
func (d *DataLayer) Close() error {
	d.cache.Clear()
	if err := d.warehouse.Close(); err != nil {
		return classify("", nil, err)
	}
	return nil
}

// InvalidateCache drops every cached result so the next execution refetches.
func (d *DataLayer) InvalidateCache() {
	d.cache.Clear()
}

// Execute runs a catalog query with the given parameters. Results are served
// from the cache within the query's TTL; concurrent callers with identical
// parameters share one warehouse round-trip.
func (d *DataLayer) Execute(ctx context.Context, name string, params map[string]any) (*warehouse.Result, error) {
	stmt, err := d.catalog.Render(name, params)
	if err != nil {
		return nil, classify(name, params, err)
	}

	key := cache.Key(stmt.Query, stmt.Params)
	result, err := d.cache.GetOrCompute(ctx, stmt.Query, key, stmt.TTL, func(ctx context.Context) (*warehouse.Result, error) {
		return d.run(ctx, warehouse.Request{
			Name: stmt.Query,
			SQL:  stmt.SQL,
			Args: stmt.Args,
		})
	})
	if err != nil {
		return nil, classify(name, stmt.Params, err)
	}
	return result, nil
}

// ExecuteAdHoc runs free-form read-only SQL. Results bypass the cache, are
// capped at the configured row limit and run under the shorter ad-hoc
// timeout.
func (d *DataLayer) ExecuteAdHoc(ctx context.Context, sqlText string) (*warehouse.Result, error) {
	clean, err := catalog.SanitizeAdHoc(sqlText)
	if err != nil {
		observability.IncrementAdHocRejected("not_read_only")
		return nil, classify("adHoc", nil, err)
	}

	rowCap := d.cfg.AdHoc.RowCap
	if rowCap <= 0 {
		rowCap = 10_000
	}
	timeout := d.cfg.AdHoc.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	result, err := d.run(ctx, warehouse.Request{
		Name:     "adHoc",
		SQL:      catalog.WrapWithLimit(clean, rowCap),
		RowLimit: rowCap,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, classify("adHoc", nil, err)
	}
	if result.Truncated && d.cfg.AdHoc.RejectOverflow {
		observability.IncrementAdHocRejected("overflow")
		return nil, &Error{
			Kind:  KindResultTooLarge,
			Query: "adHoc",
			Err:   fmt.Errorf("result exceeds %d rows", rowCap),
		}
	}
	return result, nil
}

// run performs one warehouse round-trip, retrying exactly once with a fresh
// session when the fault looks transient.
func (d *DataLayer) run(ctx context.Context, req warehouse.Request) (*warehouse.Result, error) {
	result, err := d.warehouse.Run(ctx, req)
	if err == nil {
		return &result, nil
	}

	dlErr := classify(req.Name, nil, err)
	if !dlErr.Retryable() || ctx.Err() != nil {
		return nil, dlErr
	}

	if d.logger != nil {
		d.logger.WarnContext(ctx, "retrying query with fresh warehouse session",
			slog.String("query", req.Name),
			slog.String("kind", string(dlErr.Kind)),
			slog.Any("error", err),
		)
	}
	d.warehouse.Reset()

	result, err = d.warehouse.Run(ctx, req)
	if err != nil {
		return nil, classify(req.Name, nil, err)
	}
	return &result, nil
}
