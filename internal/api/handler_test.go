package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orderlens/orderlens/internal/auth"
	"github.com/orderlens/orderlens/internal/catalog"
	"github.com/orderlens/orderlens/internal/config"
	"github.com/orderlens/orderlens/internal/datalayer"
	"github.com/orderlens/orderlens/internal/export"
	"github.com/orderlens/orderlens/internal/storage"
	"github.com/orderlens/orderlens/internal/warehouse"
)

type fakeDataLayer struct {
	cat        *catalog.Catalog
	result     *warehouse.Result
	err        error
	healthy    bool
	lastName   string
	lastParams map[string]any
	lastSQL    string
}

func (f *fakeDataLayer) Catalog() *catalog.Catalog { return f.cat }

func (f *fakeDataLayer) Execute(_ context.Context, name string, params map[string]any) (*warehouse.Result, error) {
	f.lastName = name
	f.lastParams = params
	return f.result, f.err
}

func (f *fakeDataLayer) ExecuteAdHoc(_ context.Context, sqlText string) (*warehouse.Result, error) {
	f.lastSQL = sqlText
	return f.result, f.err
}

func (f *fakeDataLayer) HealthCheck(context.Context) bool { return f.healthy }

type fakeExporter struct {
	info   storage.ObjectInfo
	err    error
	format export.Format
}

func (f *fakeExporter) Export(_ context.Context, result *warehouse.Result, format export.Format) (storage.ObjectInfo, error) {
	f.format = format
	return f.info, f.err
}

func testResult() *warehouse.Result {
	return &warehouse.Result{
		Query:    "kpiMetrics",
		Columns:  []warehouse.Column{{Name: "total_orders", Type: "BIGINT"}},
		Rows:     [][]any{{int64(1500000)}},
		RowCount: 1,
		Duration: 12 * time.Millisecond,
	}
}

func newTestHandler(cfg config.Config, layer *fakeDataLayer, exporter ResultExporter) http.Handler {
	if layer.cat == nil {
		layer.cat = catalog.New("samples", "tpch")
	}
	return NewHandler(cfg, Dependencies{
		DataLayer: layer,
		Exporter:  exporter,
	})
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, &fakeDataLayer{}, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReflectsWarehouseHealth(t *testing.T) {
	layer := &fakeDataLayer{healthy: false}
	handler := newTestHandler(config.Config{}, layer, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}

	layer.healthy = true
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestCatalogEndpointListsQueries(t *testing.T) {
	handler := newTestHandler(config.Config{}, &fakeDataLayer{}, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/catalog", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var payload struct {
		Queries []catalogEntry `json:"queries"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Queries) != 11 {
		t.Fatalf("catalog has %d queries, want 11", len(payload.Queries))
	}
}

func TestNamedQueryEndpoint(t *testing.T) {
	layer := &fakeDataLayer{result: testResult()}
	handler := newTestHandler(config.Config{}, layer, nil)

	body := strings.NewReader(`{"params":{"limit":5}}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/queries/topCustomers", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if layer.lastName != "topCustomers" {
		t.Fatalf("query name = %q", layer.lastName)
	}
	if layer.lastParams["limit"] != float64(5) {
		t.Fatalf("params = %v", layer.lastParams)
	}
	var payload queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.RowCount != 1 {
		t.Fatalf("row_count = %d", payload.RowCount)
	}
}

func TestNamedQueryEndpointAllowsEmptyBody(t *testing.T) {
	layer := &fakeDataLayer{result: testResult()}
	handler := newTestHandler(config.Config{}, layer, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/queries/kpiMetrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestErrorKindToStatusMapping(t *testing.T) {
	cases := []struct {
		kind datalayer.Kind
		want int
		code string
	}{
		{datalayer.KindValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
		{datalayer.KindConnection, http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE"},
		{datalayer.KindTimeout, http.StatusGatewayTimeout, "QUERY_TIMEOUT"},
		{datalayer.KindResultTooLarge, http.StatusRequestEntityTooLarge, "RESULT_TOO_LARGE"},
		{datalayer.KindExecution, http.StatusBadRequest, "QUERY_EXECUTION_FAILED"},
	}

	for _, tc := range cases {
		layer := &fakeDataLayer{err: &datalayer.Error{Kind: tc.kind, Query: "kpiMetrics", Err: fmt.Errorf("boom")}}
		handler := newTestHandler(config.Config{}, layer, nil)

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/queries/kpiMetrics", nil))

		if rr.Code != tc.want {
			t.Fatalf("kind %s: status = %d, want %d", tc.kind, rr.Code, tc.want)
		}
		var payload map[string]any
		if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
			t.Fatalf("kind %s: decode response: %v", tc.kind, err)
		}
		if payload["error_code"] != tc.code {
			t.Fatalf("kind %s: error_code = %v, want %s", tc.kind, payload["error_code"], tc.code)
		}
	}
}

func TestAdHocEndpointRequiresSQL(t *testing.T) {
	handler := newTestHandler(config.Config{}, &fakeDataLayer{result: testResult()}, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql":""}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAdHocEndpointExecutes(t *testing.T) {
	layer := &fakeDataLayer{result: testResult()}
	handler := newTestHandler(config.Config{}, layer, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql":"SELECT 1"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if layer.lastSQL != "SELECT 1" {
		t.Fatalf("sql = %q", layer.lastSQL)
	}
}

func TestAdHocEndpointEnforcesRole(t *testing.T) {
	validator, err := auth.NewStaticAPIKeyValidator("reader:dashboard:dashboard_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	cfg := config.Config{Auth: config.AuthConfig{Required: true}}
	layer := &fakeDataLayer{result: testResult(), cat: catalog.New("samples", "tpch")}
	handler := NewHandler(cfg, Dependencies{
		DataLayer:      layer,
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql":"SELECT 1"}`))
	req.Header.Set("X-API-Key", "reader")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}

	// Catalog queries remain available to the reader role.
	req = httptest.NewRequest(http.MethodPost, "/v1/queries/kpiMetrics", nil)
	req.Header.Set("X-API-Key", "reader")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestProtectedEndpointsRequireKeyWhenAuthRequired(t *testing.T) {
	validator, err := auth.NewStaticAPIKeyValidator("k1:dashboard:dashboard_reader")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	cfg := config.Config{Auth: config.AuthConfig{Required: true}}
	handler := NewHandler(cfg, Dependencies{
		DataLayer:      &fakeDataLayer{cat: catalog.New("samples", "tpch")},
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/catalog", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	// Health stays open.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rr.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	layer := &fakeDataLayer{result: testResult()}
	exporter := &fakeExporter{info: storage.ObjectInfo{Key: "exports/kpiMetrics/date=2026-03-01/kpiMetrics-1.csv", Size: 42}}
	handler := newTestHandler(config.Config{}, layer, exporter)

	body := strings.NewReader(`{"format":"csv"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/queries/kpiMetrics/export", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var payload exportResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Key == "" || payload.Size != 42 {
		t.Fatalf("payload = %+v", payload)
	}
	if exporter.format != export.FormatCSV {
		t.Fatalf("format = %q", exporter.format)
	}
}

func TestExportEndpointRejectsUnknownFormat(t *testing.T) {
	handler := newTestHandler(config.Config{}, &fakeDataLayer{result: testResult()}, &fakeExporter{})

	body := strings.NewReader(`{"format":"xlsx"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/queries/kpiMetrics/export", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestExportEndpointRequiresAdHocRole(t *testing.T) {
	validator, err := auth.NewStaticAPIKeyValidator("reader:dashboard:dashboard_reader,writer:analyst:dashboard_reader|adhoc_writer")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	cfg := config.Config{Auth: config.AuthConfig{Required: true}}
	layer := &fakeDataLayer{result: testResult(), cat: catalog.New("samples", "tpch")}
	exporter := &fakeExporter{info: storage.ObjectInfo{Key: "exports/kpiMetrics/date=2026-03-01/kpiMetrics-1.parquet", Size: 42}}
	handler := NewHandler(cfg, Dependencies{
		DataLayer:      layer,
		Exporter:       exporter,
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/queries/kpiMetrics/export", nil)
	req.Header.Set("X-API-Key", "reader")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for the reader role", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/queries/kpiMetrics/export", nil)
	req.Header.Set("X-API-Key", "writer")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for the adhoc_writer role", rr.Code)
	}
}

func TestQueryErrorResponseIdentifiesRequest(t *testing.T) {
	layer := &fakeDataLayer{err: &datalayer.Error{
		Kind:   datalayer.KindTimeout,
		Query:  "topCustomers",
		Params: map[string]any{"limit": 42},
		Err:    fmt.Errorf("context deadline exceeded"),
	}}
	handler := newTestHandler(config.Config{}, layer, nil)

	body := strings.NewReader(`{"params":{"limit":42}}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/queries/topCustomers", body))

	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rr.Code)
	}
	var payload struct {
		Context struct {
			Query  string         `json:"query"`
			Params map[string]any `json:"params"`
		} `json:"context"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Context.Query != "topCustomers" {
		t.Fatalf("context.query = %q", payload.Context.Query)
	}
	if got := payload.Context.Params["limit"]; got != float64(42) {
		t.Fatalf("context.params.limit = %v", got)
	}
}
