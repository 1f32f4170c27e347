package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orderlens/orderlens/internal/catalog"
	"github.com/orderlens/orderlens/internal/config"
	"github.com/orderlens/orderlens/internal/export"
	"github.com/orderlens/orderlens/internal/observability"
	"github.com/orderlens/orderlens/internal/storage"
	"github.com/orderlens/orderlens/internal/warehouse"
)

// QueryExecutor is the slice of the data layer the HTTP surface needs.
type QueryExecutor interface {
	Catalog() *catalog.Catalog
	Execute(ctx context.Context, name string, params map[string]any) (*warehouse.Result, error)
	ExecuteAdHoc(ctx context.Context, sqlText string) (*warehouse.Result, error)
	HealthCheck(ctx context.Context) bool
}

type ResultExporter interface {
	Export(ctx context.Context, result *warehouse.Result, format export.Format) (storage.ObjectInfo, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	DataLayer         QueryExecutor
	Exporter          ResultExporter
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.DataLayer == nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "data layer is not configured", true, nil)
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if !deps.DataLayer.HealthCheck(ctx) {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "warehouse is not reachable", true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/catalog", func(w http.ResponseWriter, r *http.Request) {
		handleCatalog(deps, w, r)
	})
	protected.HandleFunc("POST /v1/queries/{name}", func(w http.ResponseWriter, r *http.Request) {
		handleNamedQuery(deps, w, r)
	})
	protected.HandleFunc("POST /v1/queries/{name}/export", func(w http.ResponseWriter, r *http.Request) {
		handleExport(deps, w, r)
	})
	protected.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleAdHocQuery(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/catalog", protectedHandler)
	mux.Handle("POST /v1/queries/{name}", protectedHandler)
	mux.Handle("POST /v1/queries/{name}/export", protectedHandler)
	mux.Handle("POST /v1/query", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
