package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/orderlens/orderlens/internal/auth"
	"github.com/orderlens/orderlens/internal/datalayer"
	"github.com/orderlens/orderlens/internal/warehouse"
)

type catalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Params      []catalogParam `json:"params,omitempty"`
}

type catalogParam struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Default  any      `json:"default,omitempty"`
	Min      *int     `json:"min,omitempty"`
	Max      *int     `json:"max,omitempty"`
	Enum     []string `json:"enum,omitempty"`
}

type namedQueryRequest struct {
	Params map[string]any `json:"params"`
}

type adHocQueryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Query     string             `json:"query"`
	Columns   []warehouse.Column `json:"columns"`
	Rows      [][]any            `json:"rows"`
	RowCount  int                `json:"row_count"`
	Truncated bool               `json:"truncated"`
	Stats     map[string]any     `json:"stats"`
}

func handleCatalog(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.DataLayer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "data layer is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	cat := deps.DataLayer.Catalog()
	entries := make([]catalogEntry, 0)
	for _, name := range cat.Names() {
		def, err := cat.Get(name)
		if err != nil {
			continue
		}
		entry := catalogEntry{Name: def.Name, Description: def.Description}
		for _, spec := range def.Params {
			entry.Params = append(entry.Params, catalogParam{
				Name:     spec.Name,
				Type:     string(spec.Type),
				Required: spec.Required,
				Default:  spec.Default,
				Min:      spec.Min,
				Max:      spec.Max,
				Enum:     spec.Enum,
			})
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": entries})
}

func handleNamedQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.DataLayer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "data layer is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	name := r.PathValue("name")
	request, err := decodeNamedQueryRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.DataLayer.Execute(r.Context(), name, request.Params)
	if err != nil {
		writeDataLayerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buildQueryResponse(result))
}

func handleAdHocQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.DataLayer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "data layer is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdHoc); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request adHocQueryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result, err := deps.DataLayer.ExecuteAdHoc(r.Context(), request.SQL)
	if err != nil {
		writeDataLayerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buildQueryResponse(result))
}

func decodeNamedQueryRequest(r *http.Request) (namedQueryRequest, error) {
	var request namedQueryRequest
	if r.Body == nil || r.ContentLength == 0 {
		return request, nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		return namedQueryRequest{}, err
	}
	return request, nil
}

func buildQueryResponse(result *warehouse.Result) queryResponse {
	return queryResponse{
		Query:     result.Query,
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
			"fetched_at":  result.FetchedAt,
		},
	}
}

// writeDataLayerError maps the data layer error taxonomy onto HTTP statuses.
func writeDataLayerError(w http.ResponseWriter, r *http.Request, err error) {
	var dlErr *datalayer.Error
	if !errors.As(err, &dlErr) {
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "unexpected error", true, map[string]any{"details": err.Error()})
		return
	}

	details := queryErrorContext(dlErr)
	switch dlErr.Kind {
	case datalayer.KindValidation:
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_FAILED", dlErr.Err.Error(), false, details)
	case datalayer.KindConnection:
		writeError(r.Context(), w, http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE", "warehouse is not reachable", true, details)
	case datalayer.KindTimeout:
		writeError(r.Context(), w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "query timed out", true, details)
	case datalayer.KindResultTooLarge:
		writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "RESULT_TOO_LARGE", dlErr.Err.Error(), false, details)
	default:
		details["details"] = dlErr.Err.Error()
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, details)
	}
}

// queryErrorContext identifies the failing request so dashboard operators
// can reproduce it.
func queryErrorContext(dlErr *datalayer.Error) map[string]any {
	details := map[string]any{}
	if dlErr.Query != "" {
		details["query"] = dlErr.Query
	}
	if len(dlErr.Params) > 0 {
		details["params"] = dlErr.Params
	}
	return details
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
