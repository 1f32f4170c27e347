package datalayer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/orderlens/orderlens/internal/cache"
	"github.com/orderlens/orderlens/internal/catalog"
	"github.com/orderlens/orderlens/internal/config"
	"github.com/orderlens/orderlens/internal/warehouse"
)

type netFault struct{}

func (netFault) Error() string   { return "connection reset by peer" }
func (netFault) Timeout() bool   { return false }
func (netFault) Temporary() bool { return false }

func testConfig() config.Config {
	return config.Config{
		Profile: config.ProfileTest,
		Warehouse: config.WarehouseConfig{
			Driver:         "duckdb",
			Catalog:        "samples",
			Schema:         "tpch",
			ConnectTimeout: time.Second,
			QueryTimeout:   time.Second,
		},
		Cache: config.CacheConfig{DefaultTTL: time.Hour},
		AdHoc: config.AdHocConfig{RowCap: 2, Timeout: time.Second},
	}
}

// newTestLayer wires a DataLayer whose warehouse sessions come from mock
// databases, one handed out per (re)connect. opens counts connect attempts.
func newTestLayer(t *testing.T, cfg config.Config, sessions int) (*DataLayer, []sqlmock.Sqlmock, *int) {
	t.Helper()

	pool := make([]*sql.DB, 0, sessions)
	mocks := make([]sqlmock.Sqlmock, 0, sessions)
	for i := 0; i < sessions; i++ {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("sqlmock.New() error = %v", err)
		}
		mock.ExpectPing()
		pool = append(pool, db)
		mocks = append(mocks, mock)
	}

	opens := 0
	opener := func(config.WarehouseConfig) (*sql.DB, error) {
		if opens >= len(pool) {
			return nil, fmt.Errorf("no session left: connect attempt %d", opens+1)
		}
		db := pool[opens]
		opens++
		return db, nil
	}

	layer := NewWithComponents(
		cfg,
		nil,
		warehouse.NewWithOpener(cfg.Warehouse, nil, opener),
		catalog.New(cfg.Warehouse.Catalog, cfg.Warehouse.Schema),
		cache.New(cfg.Cache.DefaultTTL),
	)
	return layer, mocks, &opens
}

func kpiRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"total_orders", "total_revenue", "customer_count", "avg_order_value"}).
		AddRow(int64(1500000), 226000000.5, int64(99996), 151.3)
}

func TestExecuteCachesWithinTTL(t *testing.T) {
	layer, mocks, opens := newTestLayer(t, testConfig(), 1)
	mocks[0].ExpectQuery("SELECT").WillReturnRows(kpiRows())

	first, err := layer.KPIMetrics(context.Background())
	if err != nil {
		t.Fatalf("KPIMetrics() error = %v", err)
	}
	second, err := layer.KPIMetrics(context.Background())
	if err != nil {
		t.Fatalf("KPIMetrics() error = %v", err)
	}
	if first != second {
		t.Fatal("expected the cached result to be reused")
	}
	if *opens != 1 {
		t.Fatalf("connect attempts = %d, want 1", *opens)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteDistinguishesParamSets(t *testing.T) {
	layer, mocks, _ := newTestLayer(t, testConfig(), 1)
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"order_year", "order_count", "total_revenue", "avg_order_value"}).
			AddRow(int64(1995), int64(1000), 100.0, 0.1)
	}
	mocks[0].ExpectQuery("FROM samples.tpch.orders").WithArgs(1995).WillReturnRows(rows())
	mocks[0].ExpectQuery("FROM samples.tpch.orders").WithArgs(1996).WillReturnRows(rows())

	if _, err := layer.OrdersSummary(context.Background(), 1995); err != nil {
		t.Fatalf("OrdersSummary(1995) error = %v", err)
	}
	if _, err := layer.OrdersSummary(context.Background(), 1996); err != nil {
		t.Fatalf("OrdersSummary(1996) error = %v", err)
	}
	// Same params again should not add a third round-trip.
	if _, err := layer.OrdersSummary(context.Background(), 1995); err != nil {
		t.Fatalf("OrdersSummary(1995) error = %v", err)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteRejectsUnknownQuery(t *testing.T) {
	layer, _, opens := newTestLayer(t, testConfig(), 1)

	_, err := layer.Execute(context.Background(), "dropEverything", nil)
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if dlErr.Kind != KindValidation {
		t.Fatalf("Kind = %s, want %s", dlErr.Kind, KindValidation)
	}
	if *opens != 0 {
		t.Fatalf("connect attempts = %d, want 0", *opens)
	}
}

func TestExecuteRejectsInvalidParams(t *testing.T) {
	layer, _, opens := newTestLayer(t, testConfig(), 1)

	_, err := layer.TopCustomers(context.Background(), 500)
	var dlErr *Error
	if !errors.As(err, &dlErr) || dlErr.Kind != KindValidation {
		t.Fatalf("error = %v, want validation", err)
	}
	if dlErr.Retryable() {
		t.Fatal("validation errors must not be retryable")
	}
	if *opens != 0 {
		t.Fatalf("connect attempts = %d, want 0", *opens)
	}
}

func TestExecuteRetriesOnceOnConnectionFault(t *testing.T) {
	layer, mocks, opens := newTestLayer(t, testConfig(), 2)
	mocks[0].ExpectQuery("SELECT").WillReturnError(netFault{})
	mocks[0].ExpectClose()
	mocks[1].ExpectQuery("SELECT").WillReturnRows(kpiRows())

	result, err := layer.KPIMetrics(context.Background())
	if err != nil {
		t.Fatalf("KPIMetrics() error = %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}
	if *opens != 2 {
		t.Fatalf("connect attempts = %d, want 2", *opens)
	}
	for i, mock := range mocks {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("session %d unmet expectations: %v", i, err)
		}
	}
}

func TestExecuteRetriesOnceOnTimeout(t *testing.T) {
	layer, mocks, opens := newTestLayer(t, testConfig(), 2)
	mocks[0].ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)
	mocks[0].ExpectClose()
	mocks[1].ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)

	_, err := layer.KPIMetrics(context.Background())
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if dlErr.Kind != KindTimeout {
		t.Fatalf("Kind = %s, want %s", dlErr.Kind, KindTimeout)
	}
	if *opens != 2 {
		t.Fatalf("connect attempts = %d, want exactly 2 (one retry)", *opens)
	}
}

func TestExecuteDoesNotRetryExecutionFault(t *testing.T) {
	layer, mocks, opens := newTestLayer(t, testConfig(), 2)
	mocks[0].ExpectQuery("SELECT").WillReturnError(fmt.Errorf("binder error: column not found"))

	_, err := layer.KPIMetrics(context.Background())
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if dlErr.Kind != KindExecution {
		t.Fatalf("Kind = %s, want %s", dlErr.Kind, KindExecution)
	}
	if *opens != 1 {
		t.Fatalf("connect attempts = %d, want 1 (no retry)", *opens)
	}
}

func TestExecuteFailureIsNotCached(t *testing.T) {
	layer, mocks, _ := newTestLayer(t, testConfig(), 1)
	mocks[0].ExpectQuery("SELECT").WillReturnError(fmt.Errorf("out of memory"))
	mocks[0].ExpectQuery("SELECT").WillReturnRows(kpiRows())

	if _, err := layer.KPIMetrics(context.Background()); err == nil {
		t.Fatal("expected first call to fail")
	}
	result, err := layer.KPIMetrics(context.Background())
	if err != nil {
		t.Fatalf("KPIMetrics() after failure error = %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteAdHocRunsReadOnlySQL(t *testing.T) {
	layer, mocks, _ := newTestLayer(t, testConfig(), 1)
	mocks[0].ExpectQuery("SELECT \\* FROM \\(SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"n"}).AddRow(int64(1)),
	)

	result, err := layer.ExecuteAdHoc(context.Background(), "SELECT 1 AS n;")
	if err != nil {
		t.Fatalf("ExecuteAdHoc() error = %v", err)
	}
	if result.Truncated {
		t.Fatal("result should not be truncated")
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}
}

func TestExecuteAdHocRejectsWrites(t *testing.T) {
	layer, _, opens := newTestLayer(t, testConfig(), 1)

	_, err := layer.ExecuteAdHoc(context.Background(), "DELETE FROM samples.tpch.orders")
	var dlErr *Error
	if !errors.As(err, &dlErr) || dlErr.Kind != KindValidation {
		t.Fatalf("error = %v, want validation", err)
	}
	if *opens != 0 {
		t.Fatalf("connect attempts = %d, want 0", *opens)
	}
}

func TestExecuteAdHocMarksTruncation(t *testing.T) {
	layer, mocks, _ := newTestLayer(t, testConfig(), 1)
	mocks[0].ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"n"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)),
	)

	result, err := layer.ExecuteAdHoc(context.Background(), "SELECT n FROM big_table")
	if err != nil {
		t.Fatalf("ExecuteAdHoc() error = %v", err)
	}
	if !result.Truncated {
		t.Fatal("expected truncation at the row cap")
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", result.RowCount)
	}
}

func TestExecuteAdHocRejectsOverflowWhenStrict(t *testing.T) {
	cfg := testConfig()
	cfg.AdHoc.RejectOverflow = true
	layer, mocks, _ := newTestLayer(t, cfg, 1)
	mocks[0].ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"n"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)),
	)

	_, err := layer.ExecuteAdHoc(context.Background(), "SELECT n FROM big_table")
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if dlErr.Kind != KindResultTooLarge {
		t.Fatalf("Kind = %s, want %s", dlErr.Kind, KindResultTooLarge)
	}
}

func TestHealthCheckReportsWarehouseState(t *testing.T) {
	layer, mocks, _ := newTestLayer(t, testConfig(), 1)
	mocks[0].ExpectQuery("SELECT 1").WillReturnRows(
		sqlmock.NewRows([]string{"1"}).AddRow(int64(1)),
	)

	if !layer.HealthCheck(context.Background()) {
		t.Fatal("HealthCheck() = false, want true")
	}
}

func TestHealthCheckNeverPanicsOrErrors(t *testing.T) {
	cfg := testConfig()
	layer := NewWithComponents(
		cfg,
		nil,
		warehouse.NewWithOpener(cfg.Warehouse, nil, func(config.WarehouseConfig) (*sql.DB, error) {
			return nil, fmt.Errorf("endpoint unreachable")
		}),
		catalog.New(cfg.Warehouse.Catalog, cfg.Warehouse.Schema),
		cache.New(cfg.Cache.DefaultTTL),
	)
	if layer.HealthCheck(context.Background()) {
		t.Fatal("HealthCheck() = true for an unreachable warehouse")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	layer, mocks, _ := newTestLayer(t, testConfig(), 1)
	mocks[0].ExpectQuery("SELECT").WillReturnRows(kpiRows())
	mocks[0].ExpectClose()

	if _, err := layer.KPIMetrics(context.Background()); err != nil {
		t.Fatalf("KPIMetrics() error = %v", err)
	}
	if err := layer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := layer.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestErrorsCarryQueryAndParams(t *testing.T) {
	layer, _, _ := newTestLayer(t, testConfig(), 0)

	_, err := layer.Execute(context.Background(), "topCustomers", map[string]any{"limit": 42})
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("Execute() error = %v, want *Error", err)
	}
	if dlErr.Kind != KindConnection {
		t.Fatalf("Kind = %q, want %q", dlErr.Kind, KindConnection)
	}
	if dlErr.Query != "topCustomers" {
		t.Fatalf("Query = %q", dlErr.Query)
	}
	if got, ok := dlErr.Params["limit"]; !ok || got != 42 {
		t.Fatalf("Params[limit] = %v (present=%v), want 42", got, ok)
	}
	for _, want := range []string{`query "topCustomers"`, "limit=42"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("Error() = %q, missing %q", err.Error(), want)
		}
	}
}

func TestValidationErrorsKeepSubmittedParams(t *testing.T) {
	layer, _, opens := newTestLayer(t, testConfig(), 0)

	_, err := layer.Execute(context.Background(), "topCustomers", map[string]any{"limit": 9999})
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("Execute() error = %v, want *Error", err)
	}
	if dlErr.Kind != KindValidation {
		t.Fatalf("Kind = %q, want %q", dlErr.Kind, KindValidation)
	}
	if got := dlErr.Params["limit"]; got != 9999 {
		t.Fatalf("Params[limit] = %v, want 9999", got)
	}
	if *opens != 0 {
		t.Fatalf("connect attempts = %d, want 0", *opens)
	}
}
