package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RowMapper binds one result row to T by column name.
type RowMapper[T any] func(r *Row) (T, error)

// Row is one scanned result row addressed by column name.
// Accessors record the first failure; mappers return it through Err.
type Row struct {
	cols   []string
	index  map[string]int
	values []any
	err    error
}

func newRow(cols []string, index map[string]int, values []any) *Row {
	return &Row{cols: cols, index: index, values: values}
}

func columnIndex(cols []string) map[string]int {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		key := strings.ToLower(c)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}
	return index
}

func scanRow(rows *sql.Rows, cols []string, index map[string]int) (*Row, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return newRow(cols, index, values), nil
}

// Columns returns the column names in result order.
func (r *Row) Columns() []string { return r.cols }

// Has reports whether the row carries column name.
func (r *Row) Has(name string) bool {
	_, ok := r.index[strings.ToLower(name)]
	return ok
}

// Value returns the raw driver value of column name.
func (r *Row) Value(name string) (any, bool) {
	i, ok := r.index[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

func (r *Row) IsNull(name string) bool {
	v, ok := r.Value(name)
	return ok && v == nil
}

func (r *Row) Err() error { return r.err }

func (r *Row) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: %w", name, err)
	}
}

func (r *Row) get(name string) (any, bool) {
	v, ok := r.Value(name)
	if !ok {
		r.fail(name, errMissingColumn)
	}
	return v, ok
}

var errMissingColumn = errors.New("not in result set")

func (r *Row) String(name string) string {
	v, ok := r.get(name)
	if !ok {
		return ""
	}
	s, err := asString(v)
	if err != nil {
		r.fail(name, err)
	}
	return s
}

func (r *Row) Int64(name string) int64 {
	v, ok := r.get(name)
	if !ok {
		return 0
	}
	n, err := asInt64(v)
	if err != nil {
		r.fail(name, err)
	}
	return n
}

func (r *Row) Int(name string) int {
	return int(r.Int64(name))
}

func (r *Row) Float64(name string) float64 {
	v, ok := r.get(name)
	if !ok {
		return 0
	}
	f, err := asFloat64(v)
	if err != nil {
		r.fail(name, err)
	}
	return f
}

func (r *Row) Bool(name string) bool {
	v, ok := r.get(name)
	if !ok {
		return false
	}
	b, err := asBool(v)
	if err != nil {
		r.fail(name, err)
	}
	return b
}

func (r *Row) Time(name string) time.Time {
	v, ok := r.get(name)
	if !ok {
		return time.Time{}
	}
	t, err := asTime(v)
	if err != nil {
		r.fail(name, err)
	}
	return t
}

// TimePtr returns nil for NULL.
func (r *Row) TimePtr(name string) *time.Time {
	if r.IsNull(name) {
		return nil
	}
	t := r.Time(name)
	if t.IsZero() {
		return nil
	}
	return &t
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("cannot read %T as string", v)
	}
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is not representable as int64", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	default:
		return 0, fmt.Errorf("cannot read %T as integer", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("cannot read %T as float", v)
	}
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(x)))
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	default:
		return false, fmt.Errorf("cannot read %T as bool", v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x.UTC(), nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case []byte:
		return parseTime(string(x))
	case string:
		return parseTime(x)
	default:
		return time.Time{}, fmt.Errorf("cannot read %T as time", v)
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	// Go's default time.Time formatting may carry a monotonic suffix.
	if i := strings.Index(s, " m="); i > 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
