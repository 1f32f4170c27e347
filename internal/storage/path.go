package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath returns the object key for an exported result set, laid
// out as exports/<query>/date=YYYY-MM-DD/<query>-<unix>.<ext>.
func BuildExportPath(queryName, extension string, exportedAt time.Time) (string, error) {
	if err := validatePathComponent(queryName, "query name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(extension, "extension"); err != nil {
		return "", err
	}

	ts := exportedAt.UTC()
	return path.Join(
		"exports",
		queryName,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%d.%s", queryName, ts.Unix(), extension),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
