package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/orderlens/orderlens/internal/config"
	"github.com/orderlens/orderlens/internal/observability"
)

// ErrUnavailable marks failures to establish or keep the warehouse session.
// Callers use it to tell connection faults apart from query faults.
var ErrUnavailable = errors.New("warehouse unavailable")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Column struct {
	Name string
	Type string
}

// Result is an immutable tabular query result. Truncated is set when a row
// limit cut the result short.
type Result struct {
	Query     string
	Columns   []Column
	Rows      [][]any
	RowCount  int
	FetchedAt time.Time
	Duration  time.Duration
	Truncated bool
}

// Request describes one warehouse round-trip. RowLimit <= 0 means unbounded;
// Timeout <= 0 falls back to the configured query timeout.
type Request struct {
	Name     string
	SQL      string
	Args     []any
	RowLimit int
	Timeout  time.Duration
}

type OpenFunc func(cfg config.WarehouseConfig) (*sql.DB, error)

// Manager owns the session to the warehouse. The handle is opened lazily on
// first use; state transitions are serialized, query execution itself relies
// on database/sql pooling and is safe for concurrent readers.
type Manager struct {
	cfg    config.WarehouseConfig
	logger *slog.Logger
	open   OpenFunc

	mu    sync.Mutex
	state State
	db    *sql.DB
}

func New(cfg config.WarehouseConfig, logger *slog.Logger) *Manager {
	return NewWithOpener(cfg, logger, openDatabase)
}

func NewWithOpener(cfg config.WarehouseConfig, logger *slog.Logger, open OpenFunc) *Manager {
	if open == nil {
		open = openDatabase
	}
	return &Manager{cfg: cfg, logger: logger, open: open}
}

// Connect establishes the session if it is not already up. Calling it while
// connected is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	_, err := m.handle(ctx)
	return err
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HealthCheck runs a trivial round-trip and reports whether it succeeded.
// It never returns an error.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	timeout := m.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := m.Run(checkCtx, Request{Name: "healthCheck", SQL: "SELECT 1", Timeout: timeout})
	if err != nil && m.logger != nil {
		m.logger.WarnContext(ctx, "warehouse health check failed", slog.Any("error", err))
	}
	return err == nil
}

// Close tears down the session. Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()
	db := m.db
	m.db = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close warehouse session: %w", err)
	}
	return nil
}

// Reset drops the current session so the next call reconnects. Used after a
// timeout or connection fault to avoid reusing a possibly broken handle.
func (m *Manager) Reset() {
	if err := m.Close(); err != nil && m.logger != nil {
		m.logger.Warn("discarding warehouse session failed", slog.Any("error", err))
	}
	observability.IncrementWarehouseReconnects()
}

// Run executes one statement and fetches the full result set.
func (m *Manager) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return Result{}, fmt.Errorf("sql is required")
	}

	db, err := m.handle(ctx)
	if err != nil {
		return Result{}, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.cfg.QueryTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := db.QueryContext(queryCtx, req.SQL, req.Args...)
	if err != nil {
		return Result{}, fmt.Errorf("execute query %q: %w", req.Name, err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return Result{}, fmt.Errorf("query columns for %q: %w", req.Name, err)
	}
	columns := make([]Column, 0, len(columnTypes))
	for _, ct := range columnTypes {
		columns = append(columns, Column{Name: ct.Name(), Type: ct.DatabaseTypeName()})
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if req.RowLimit > 0 && len(resultRows) >= req.RowLimit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row for %q: %w", req.Name, err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows for %q: %w", req.Name, err)
	}

	elapsed := time.Since(start)
	observability.ObserveWarehouseQuery(req.Name, elapsed)

	return Result{
		Query:     req.Name,
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		FetchedAt: time.Now().UTC(),
		Duration:  elapsed,
		Truncated: truncated,
	}, nil
}

// handle returns the live session, connecting lazily when needed.
func (m *Manager) handle(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnected && m.db != nil {
		return m.db, nil
	}

	m.state = StateConnecting
	db, err := m.open(m.cfg)
	if err != nil {
		m.state = StateDisconnected
		return nil, fmt.Errorf("open warehouse session: %w", errors.Join(ErrUnavailable, err))
	}

	if m.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(m.cfg.MaxIdleConns)
	}
	if m.cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(m.cfg.ConnMaxIdleTime)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}

	pingTimeout := m.cfg.ConnectTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		m.state = StateDisconnected
		return nil, fmt.Errorf("ping warehouse: %w", errors.Join(ErrUnavailable, err))
	}

	m.db = db
	m.state = StateConnected
	if m.logger != nil {
		m.logger.Info("warehouse session established",
			slog.String("driver", m.cfg.Driver),
			slog.String("endpoint", m.cfg.Endpoint),
			slog.String("warehouse_id", m.cfg.WarehouseID),
		)
	}
	return m.db, nil
}

func openDatabase(cfg config.WarehouseConfig) (*sql.DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	return db, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
