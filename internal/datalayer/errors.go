package datalayer

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/orderlens/orderlens/internal/catalog"
	"github.com/orderlens/orderlens/internal/warehouse"
)

// Kind classifies a data layer failure. It drives both the retry policy and
// the HTTP status the API maps the failure to.
type Kind string

const (
	KindConnection     Kind = "connection"
	KindValidation     Kind = "validation"
	KindExecution      Kind = "execution"
	KindTimeout        Kind = "timeout"
	KindResultTooLarge Kind = "result_too_large"
)

// Error is the single failure type the data layer returns. Err keeps the
// underlying cause in the chain for errors.Is/As. Query and Params identify
// the originating request so operators can reproduce the failure.
type Error struct {
	Kind   Kind
	Query  string
	Params map[string]any
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("data layer: ")
	b.WriteString(string(e.Kind))
	if e.Query != "" {
		fmt.Fprintf(&b, ": query %q", e.Query)
	}
	if len(e.Params) > 0 {
		b.WriteString(" (")
		b.WriteString(formatParams(e.Params))
		b.WriteString(")")
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func formatParams(params map[string]any) string {
	pairs := make([]string, 0, len(params))
	for name, value := range params {
		pairs = append(pairs, fmt.Sprintf("%s=%v", name, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a retry with a fresh connection may succeed.
// Validation and execution faults are deterministic and never retried.
func (e *Error) Retryable() bool {
	return e.Kind == KindConnection || e.Kind == KindTimeout
}

// classify wraps err into an *Error with the kind inferred from the cause.
// An err that is already an *Error passes through, picking up the request
// parameters when it does not carry them yet.
func classify(query string, params map[string]any, err error) *Error {
	if err == nil {
		return nil
	}

	var dlErr *Error
	if errors.As(err, &dlErr) {
		if dlErr.Params == nil {
			dlErr.Params = params
		}
		return dlErr
	}

	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, catalog.ErrUnknownQuery),
		errors.Is(err, catalog.ErrNotReadOnly):
		return &Error{Kind: KindValidation, Query: query, Params: params, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Query: query, Params: params, Err: err}
	case isConnectionFault(err):
		return &Error{Kind: KindConnection, Query: query, Params: params, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Query: query, Params: params, Err: err}
	default:
		return &Error{Kind: KindExecution, Query: query, Params: params, Err: err}
	}
}

func isConnectionFault(err error) bool {
	if errors.Is(err, warehouse.ErrUnavailable) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
