package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orderlens/orderlens/internal/observability"
	"github.com/orderlens/orderlens/internal/storage"
	"github.com/orderlens/orderlens/internal/warehouse"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// ParseFormat accepts "parquet" (the default when raw is empty) or "csv".
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(FormatParquet):
		return FormatParquet, nil
	case string(FormatCSV):
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.apache.parquet"
}

// Exporter encodes result sets and uploads them to the object store.
type Exporter struct {
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store storage.ObjectStore, logger *slog.Logger) *Exporter {
	return &Exporter{store: store, logger: logger, now: time.Now}
}

// Export uploads the encoded result and returns the stored object info.
func (e *Exporter) Export(ctx context.Context, result *warehouse.Result, format Format) (storage.ObjectInfo, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = EncodeCSV(result)
	case FormatParquet:
		data, err = EncodeParquet(result)
	default:
		return storage.ObjectInfo{}, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("encode %s: %w", format, err)
	}

	key, err := storage.BuildExportPath(result.Query, string(format), e.now())
	if err != nil {
		return storage.ObjectInfo{}, err
	}

	info, err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: format.contentType(),
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload export: %w", err)
	}

	observability.ObserveExportBytes(string(format), int64(len(data)))
	if e.logger != nil {
		e.logger.InfoContext(ctx, "result set exported",
			slog.String("query", result.Query),
			slog.String("format", string(format)),
			slog.String("key", info.Key),
			slog.Int("rows", result.RowCount),
			slog.Int64("bytes", info.Size),
		)
	}
	return info, nil
}
