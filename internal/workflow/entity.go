package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"riskadmin/internal/domain"
	"riskadmin/internal/utils"
)

// FieldKind is the storage kind of an entity field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

// Field maps an API name to a table column.
type Field struct {
	Name   string
	Column string
	Kind   FieldKind
}

// Entity describes one table under maker-checker control.
type Entity struct {
	Name  string
	Table string
	Keys  []Field
	// Fields are the data columns a maker may set. Keys are not repeated here.
	Fields []Field
	// DefaultSort is the field name used when a list request names none.
	DefaultSort string
	// Notify lists the change kinds whose approval is sent downstream.
	Notify []domain.ActionType
}

// Values holds field values by API name.
type Values map[string]any

func (e *Entity) notifies(kind domain.ActionType) bool {
	for _, k := range e.Notify {
		if k == kind {
			return true
		}
	}
	return false
}

func (e *Entity) field(name string) (Field, bool) {
	for _, f := range e.Keys {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// KeyString renders key values as "v1~v2" in key order.
func (e *Entity) KeyString(keys Values) string {
	parts := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		s, _ := keys[k.Name].(string)
		if s == "" && keys[k.Name] != nil {
			s = fmt.Sprint(keys[k.Name])
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "~")
}

// ParseKey is the inverse of KeyString.
func (e *Entity) ParseKey(raw string) (Values, error) {
	parts := strings.Split(raw, "~")
	if len(parts) != len(e.Keys) {
		return nil, domain.InvalidArgument("key", "%s key needs %d part(s), got %d", e.Name, len(e.Keys), len(parts))
	}
	out := make(Values, len(parts))
	for i, k := range e.Keys {
		v, err := normalize(k, strings.TrimSpace(parts[i]))
		if err != nil {
			return nil, domain.InvalidArgument(k.Name, "%v", err)
		}
		out[k.Name] = v
	}
	return out, e.checkKeys(out)
}

func (e *Entity) checkKeys(keys Values) error {
	for _, k := range e.Keys {
		v, ok := keys[k.Name]
		if !ok || v == nil {
			return domain.InvalidArgument(k.Name, "key value is required")
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return domain.InvalidArgument(k.Name, "key value is required")
		}
	}
	for name := range keys {
		if !e.isKey(name) {
			return domain.InvalidArgument(name, "not a key of %s", e.Name)
		}
	}
	return nil
}

func (e *Entity) isKey(name string) bool {
	for _, k := range e.Keys {
		if k.Name == name {
			return true
		}
	}
	return false
}

// normalizeKeys coerces key values to their declared kinds.
func (e *Entity) normalizeKeys(keys Values) (Values, error) {
	if err := e.checkKeys(keys); err != nil {
		return nil, err
	}
	out := make(Values, len(keys))
	var fieldErrs []domain.FieldError
	for _, k := range e.Keys {
		v, err := normalize(k, keys[k.Name])
		if err != nil {
			fieldErrs = append(fieldErrs, domain.FieldError{Field: k.Name, Msg: err.Error()})
			continue
		}
		out[k.Name] = v
	}
	if len(fieldErrs) > 0 {
		return nil, domain.ValidationError{Fields: fieldErrs}
	}
	return out, nil
}

// normalizeFields coerces data values and rejects unknown names.
// Fields absent from in are filled from base, or the zero value of their kind.
func (e *Entity) normalizeFields(in, base Values) (Values, error) {
	var fieldErrs []domain.FieldError
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, ok := e.field(name)
		if !ok || e.isKey(f.Name) {
			fieldErrs = append(fieldErrs, domain.FieldError{Field: name, Msg: "unknown field"})
		}
	}

	out := make(Values, len(e.Fields))
	for _, f := range e.Fields {
		raw, ok := in[f.Name]
		if !ok {
			if bv, inBase := base[f.Name]; inBase {
				out[f.Name] = bv
			} else {
				out[f.Name] = zero(f.Kind)
			}
			continue
		}
		v, err := normalize(f, raw)
		if err != nil {
			fieldErrs = append(fieldErrs, domain.FieldError{Field: f.Name, Msg: err.Error()})
			continue
		}
		out[f.Name] = v
	}
	if len(fieldErrs) > 0 {
		return nil, domain.ValidationError{Fields: fieldErrs}
	}
	return out, nil
}

func zero(kind FieldKind) any {
	switch kind {
	case KindInt:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindBool:
		return false
	case KindTime:
		return time.Time{}
	default:
		return ""
	}
}

func normalize(f Field, v any) (any, error) {
	if v == nil {
		return zero(f.Kind), nil
	}
	switch f.Kind {
	case KindString:
		switch x := v.(type) {
		case string:
			return strings.TrimSpace(x), nil
		case []byte:
			return strings.TrimSpace(string(x)), nil
		}
	case KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case uint64:
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("%d overflows a 64-bit integer", x)
			}
			return int64(x), nil
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("%v is not a whole number", x)
			}
			if x < math.MinInt64 || x >= math.MaxInt64 {
				return nil, fmt.Errorf("%v overflows a 64-bit integer", x)
			}
			return int64(x), nil
		case json.Number:
			return x.Int64()
		case string:
			return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case json.Number:
			return x.Float64()
		case string:
			return strconv.ParseFloat(strings.TrimSpace(x), 64)
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(x))
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x)); err == nil {
				return t.UTC(), nil
			}
			if t, err := utils.ParseDateTime(x); err == nil {
				return t, nil
			}
			return utils.ParseDate(x)
		}
	}
	return nil, fmt.Errorf("unexpected %T value", v)
}
