package api

import (
	"encoding/json"
	"net/http"

	"github.com/orderlens/orderlens/internal/auth"
	"github.com/orderlens/orderlens/internal/export"
)

type exportRequest struct {
	Params map[string]any `json:"params"`
	Format string         `json:"format"`
}

type exportResponse struct {
	Query    string `json:"query"`
	Format   string `json:"format"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	RowCount int    `json:"row_count"`
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.DataLayer == nil || deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "export dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdHoc); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request exportRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&request); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
			return
		}
	}

	format, err := export.ParseFormat(request.Format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), false, nil)
		return
	}

	name := r.PathValue("name")
	result, err := deps.DataLayer.Execute(r.Context(), name, request.Params)
	if err != nil {
		writeDataLayerError(w, r, err)
		return
	}

	info, err := deps.Exporter.Export(r.Context(), result, format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", "failed to store export", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{
		Query:    result.Query,
		Format:   string(format),
		Key:      info.Key,
		Size:     info.Size,
		RowCount: result.RowCount,
	})
}
