// Package catalog holds the fixed set of named, parameterized aggregation
// queries the dashboard runs, plus the free-form ad-hoc path. Definitions are
// immutable after construction; Render validates caller parameters against
// the declared schema and produces a bound statement.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

var ErrUnknownQuery = errors.New("catalog: unknown query")

type ValidationError struct {
	Query  string
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("query %q: %s", e.Query, e.Reason)
	}
	return fmt.Sprintf("query %q: parameter %q %s", e.Query, e.Param, e.Reason)
}

type ParamType string

const (
	TypeInt  ParamType = "int"
	TypeDate ParamType = "date"
	TypeEnum ParamType = "enum"
)

// ParamSpec declares one typed placeholder. Min/Max bound TypeInt values;
// Enum lists the allowed values for TypeEnum. A param with a default is
// optional; an empty-string default for date/enum params means "no filter".
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	Default  any
	Min      *int
	Max      *int
	Enum     []string
}

type QueryDefinition struct {
	Name        string
	Description string
	SQL         string
	Params      []ParamSpec
	TTL         time.Duration
}

// Statement is a rendered, parameter-bound query ready for execution. Params
// holds the canonicalized parameter values (defaults applied) so that two
// equivalent requests derive the same cache key.
type Statement struct {
	Query  string
	SQL    string
	Args   []any
	Params map[string]any
	TTL    time.Duration
}

type Catalog struct {
	defs  map[string]QueryDefinition
	names []string
}

func New(catalogName, schemaName string) *Catalog {
	defs := definitions(catalogName, schemaName)
	byName := make(map[string]QueryDefinition, len(defs))
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return &Catalog{defs: byName, names: names}
}

// Names returns the catalog entries in stable order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Get(name string) (QueryDefinition, error) {
	def, ok := c.defs[name]
	if !ok {
		return QueryDefinition{}, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
	}
	return def, nil
}

// Render validates params against the definition's schema and binds them in
// declaration order. Unknown parameter names are rejected.
func (c *Catalog) Render(name string, params map[string]any) (Statement, error) {
	def, err := c.Get(name)
	if err != nil {
		return Statement{}, err
	}

	declared := make(map[string]bool, len(def.Params))
	for _, spec := range def.Params {
		declared[spec.Name] = true
	}
	for key := range params {
		if !declared[key] {
			return Statement{}, &ValidationError{Query: name, Param: key, Reason: "is not declared"}
		}
	}

	args := make([]any, 0, len(def.Params))
	canonical := make(map[string]any, len(def.Params))
	for _, spec := range def.Params {
		raw, supplied := params[spec.Name]
		if !supplied {
			if spec.Required && spec.Default == nil {
				return Statement{}, &ValidationError{Query: name, Param: spec.Name, Reason: "is required"}
			}
			raw = spec.Default
		}
		value, err := coerce(name, spec, raw)
		if err != nil {
			return Statement{}, err
		}
		args = append(args, value)
		canonical[spec.Name] = value
	}

	return Statement{
		Query:  name,
		SQL:    def.SQL,
		Args:   args,
		Params: canonical,
		TTL:    def.TTL,
	}, nil
}

func coerce(query string, spec ParamSpec, raw any) (any, error) {
	switch spec.Type {
	case TypeInt:
		value, ok := toInt(raw)
		if !ok {
			return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("must be an integer, got %T", raw)}
		}
		if spec.Min != nil && value < *spec.Min {
			return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("must be >= %d", *spec.Min)}
		}
		if spec.Max != nil && value > *spec.Max {
			return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("must be <= %d", *spec.Max)}
		}
		return value, nil
	case TypeDate:
		text, ok := raw.(string)
		if !ok {
			return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("must be a YYYY-MM-DD string, got %T", raw)}
		}
		if text == "" {
			return "", nil
		}
		if _, err := time.Parse("2006-01-02", text); err != nil {
			return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("is not a valid date: %q", text)}
		}
		return text, nil
	case TypeEnum:
		text, ok := raw.(string)
		if !ok {
			return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("must be a string, got %T", raw)}
		}
		if text == "" {
			return "", nil
		}
		for _, allowed := range spec.Enum {
			if text == allowed {
				return text, nil
			}
		}
		return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("must be one of %v", spec.Enum)}
	default:
		return nil, &ValidationError{Query: query, Param: spec.Name, Reason: fmt.Sprintf("has unsupported type %q", spec.Type)}
	}
}

// toInt accepts the integer shapes JSON decoding and Go callers produce.
func toInt(raw any) (int, bool) {
	switch typed := raw.(type) {
	case int:
		return typed, true
	case int32:
		return int(typed), true
	case int64:
		return int(typed), true
	case float64:
		if typed != math.Trunc(typed) {
			return 0, false
		}
		return int(typed), true
	case string:
		value, err := strconv.Atoi(typed)
		if err != nil {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}

func intPtr(v int) *int { return &v }
