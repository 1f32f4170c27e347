package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/orderlens/orderlens/internal/warehouse"
)

// EncodeCSV renders a result set with a header row. Nil cells become empty
// fields.
func EncodeCSV(result *warehouse.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("result is required")
	}

	buf := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buf)

	header := make([]string, len(result.Columns))
	for i, column := range result.Columns {
		header[i] = column.Name
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = formatCell(row[i])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeParquet renders a result set with a schema inferred from the first
// non-nil value of each column. Columns are optional so nil cells survive
// the round trip.
func EncodeParquet(result *warehouse.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("result is required")
	}
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	kinds := inferColumnKinds(result)

	group := parquet.Group{}
	for i, column := range result.Columns {
		group[column.Name] = parquet.Optional(kinds[i].node())
	}
	schema := parquet.NewSchema(result.Query, group)

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		record := make(map[string]any, len(result.Columns))
		for i, column := range result.Columns {
			value, err := kinds[i].convert(row[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", column.Name, err)
			}
			record[column.Name] = value
		}
		rows = append(rows, record)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindFloat
	kindBool
)

func (k columnKind) node() parquet.Node {
	switch k {
	case kindInt:
		return parquet.Int(64)
	case kindFloat:
		return parquet.Leaf(parquet.DoubleType)
	case kindBool:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

func (k columnKind) convert(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch k {
	case kindInt:
		switch typed := value.(type) {
		case int64:
			return typed, nil
		case int32:
			return int64(typed), nil
		case int:
			return int64(typed), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", value)
		}
	case kindFloat:
		switch typed := value.(type) {
		case float64:
			return typed, nil
		case float32:
			return float64(typed), nil
		case int64:
			return float64(typed), nil
		default:
			return nil, fmt.Errorf("expected float, got %T", value)
		}
	case kindBool:
		typed, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		return typed, nil
	default:
		return formatCell(value), nil
	}
}

func inferColumnKinds(result *warehouse.Result) []columnKind {
	kinds := make([]columnKind, len(result.Columns))
	for i := range result.Columns {
		kinds[i] = kindString
		for _, row := range result.Rows {
			value := row[i]
			if value == nil {
				continue
			}
			switch value.(type) {
			case int, int32, int64:
				kinds[i] = kindInt
			case float32, float64:
				kinds[i] = kindFloat
			case bool:
				kinds[i] = kindBool
			}
			break
		}
	}
	return kinds
}

func formatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(typed)
	}
}
