package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotReadOnly = errors.New("catalog: only read-only SELECT/WITH queries are allowed")

// SanitizeAdHoc normalizes free-form query text for the ad-hoc path. It
// strips trailing semicolons, rejects multi-statement input and anything
// that is not a SELECT/WITH query.
func SanitizeAdHoc(sqlText string) (string, error) {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	if trimmed == "" {
		return "", fmt.Errorf("sql is required")
	}
	if strings.Contains(trimmed, ";") {
		return "", fmt.Errorf("multiple statements are not allowed")
	}
	normalized := strings.ToLower(trimmed)
	if !strings.HasPrefix(normalized, "select") && !strings.HasPrefix(normalized, "with") {
		return "", ErrNotReadOnly
	}
	return trimmed, nil
}

// WrapWithLimit bounds an ad-hoc query to limit+1 rows so the caller can
// detect truncation.
func WrapWithLimit(sqlText string, limit int) string {
	if limit <= 0 {
		return sqlText
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, limit+1)
}
