package datalayer

import (
	"context"

	"github.com/orderlens/orderlens/internal/warehouse"
)

// Typed wrappers over Execute, one per catalog query. Dashboard code calls
// these instead of spelling out query names and parameter maps.

// OrdersSummary returns order volume and revenue grouped by year. A zero
// year covers all years.
func (d *DataLayer) OrdersSummary(ctx context.Context, year int) (*warehouse.Result, error) {
	return d.Execute(ctx, "ordersSummary", map[string]any{"year": year})
}

// KPIMetrics returns the headline dashboard figures: total orders, revenue,
// customer count and average order value.
func (d *DataLayer) KPIMetrics(ctx context.Context) (*warehouse.Result, error) {
	return d.Execute(ctx, "kpiMetrics", nil)
}

func (d *DataLayer) OrdersByStatus(ctx context.Context) (*warehouse.Result, error) {
	return d.Execute(ctx, "ordersByStatus", nil)
}

func (d *DataLayer) OrdersByPriority(ctx context.Context) (*warehouse.Result, error) {
	return d.Execute(ctx, "ordersByPriority", nil)
}

// TopCustomers returns the highest-revenue customers. limit accepts 1-100;
// zero falls back to the catalog default.
func (d *DataLayer) TopCustomers(ctx context.Context, limit int) (*warehouse.Result, error) {
	params := map[string]any{}
	if limit > 0 {
		params["limit"] = limit
	}
	return d.Execute(ctx, "topCustomers", params)
}

func (d *DataLayer) RevenueByRegion(ctx context.Context) (*warehouse.Result, error) {
	return d.Execute(ctx, "revenueByRegion", nil)
}

func (d *DataLayer) MarketSegments(ctx context.Context) (*warehouse.Result, error) {
	return d.Execute(ctx, "marketSegments", nil)
}

func (d *DataLayer) TopParts(ctx context.Context, limit int) (*warehouse.Result, error) {
	params := map[string]any{}
	if limit > 0 {
		params["limit"] = limit
	}
	return d.Execute(ctx, "topParts", params)
}

func (d *DataLayer) SupplierPerformance(ctx context.Context, limit int) (*warehouse.Result, error) {
	params := map[string]any{}
	if limit > 0 {
		params["limit"] = limit
	}
	return d.Execute(ctx, "supplierPerformance", params)
}

// MonthlyTrendBySegment returns monthly revenue for one market segment, or
// for all segments when segment is empty.
func (d *DataLayer) MonthlyTrendBySegment(ctx context.Context, segment string) (*warehouse.Result, error) {
	return d.Execute(ctx, "monthlyTrendBySegment", map[string]any{"segment": segment})
}

// FulfillmentMetrics returns shipping latency figures for orders placed in
// the [since, until] date window. Dates use the 2006-01-02 layout.
func (d *DataLayer) FulfillmentMetrics(ctx context.Context, since, until string) (*warehouse.Result, error) {
	return d.Execute(ctx, "fulfillmentMetrics", map[string]any{"since": since, "until": until})
}
