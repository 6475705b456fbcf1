package db

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"riskadmin/internal/domain"
)

// Direction tags a parameter as input, output or both.
type Direction int

const (
	DirIn Direction = iota
	DirOut
	DirInOut
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	case DirInOut:
		return "inout"
	default:
		return "unknown"
	}
}

// Type is the optional declared type of a parameter.
type Type int

const (
	TypeAny Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
)

func (t Type) String() string {
	return [...]string{"any", "string", "int", "float", "bool", "time", "bytes"}[t]
}

// Reserved output names filled from the driver result of the same call.
const (
	RowsAffectedParam = "RowsAffected"
	StatusCodeParam   = "StatusCode"
	StatusMsgParam    = "StatusMsg"
)

type source int

const (
	sourceRow source = iota
	sourceRowsAffected
	sourceIdentity
)

// Parameter is one named, typed, directional value of a command.
// Outputs carry a pointer destination that is overwritten after dispatch.
type Parameter struct {
	Name      string
	Value     any
	Direction Direction
	Type      Type

	dest   any
	source source
}

// Arg declares an input parameter.
func Arg(name string, value any) Parameter {
	return Parameter{Name: name, Value: value, Direction: DirIn}
}

// Out declares an output parameter written into dest, which must be a non-nil pointer.
func Out(name string, dest any) Parameter {
	p := Parameter{Name: name, Direction: DirOut, dest: dest}
	if strings.EqualFold(name, RowsAffectedParam) {
		p.source = sourceRowsAffected
	}
	return p
}

// InOut sends the current value of *dest and overwrites it with the returned value.
func InOut(name string, dest any) Parameter {
	return Parameter{Name: name, Value: deref(dest), Direction: DirInOut, dest: dest}
}

// Identity declares an output filled with the id generated by the same call.
func Identity(name string, dest any) Parameter {
	return Parameter{Name: name, Direction: DirOut, Type: TypeInt, dest: dest, source: sourceIdentity}
}

// As sets the declared type.
func (p Parameter) As(t Type) Parameter {
	p.Type = t
	return p
}

func (p Parameter) isInput() bool  { return p.Direction == DirIn || p.Direction == DirInOut }
func (p Parameter) isOutput() bool { return p.Direction == DirOut || p.Direction == DirInOut }

// Params is an ordered parameter list with case-insensitively unique names.
type Params []Parameter

func NewParams(ps ...Parameter) Params {
	return append(Params(nil), ps...)
}

// Add returns a copy of the list with more parameters appended.
func (ps Params) Add(more ...Parameter) Params {
	out := make(Params, 0, len(ps)+len(more))
	out = append(out, ps...)
	return append(out, more...)
}

func (ps Params) Lookup(name string) (Parameter, bool) {
	for _, p := range ps {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Parameter{}, false
}

func (ps Params) Inputs() Params {
	var out Params
	for _, p := range ps {
		if p.isInput() {
			out = append(out, p)
		}
	}
	return out
}

func (ps Params) Outputs() Params {
	var out Params
	for _, p := range ps {
		if p.isOutput() {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks names, uniqueness, declared types and output placeholders.
func (ps Params) Validate() error {
	seen := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		if !validName(p.Name) {
			return domain.InvalidArgument(p.Name, "parameter name must be an identifier")
		}
		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return domain.InvalidArgument(p.Name, "duplicate parameter name")
		}
		seen[key] = struct{}{}

		if p.Direction < DirIn || p.Direction > DirInOut {
			return domain.InvalidArgument(p.Name, "unknown direction %d", p.Direction)
		}
		if p.isOutput() {
			if p.dest == nil {
				return domain.InvalidArgument(p.Name, "output parameter needs a placeholder")
			}
			rv := reflect.ValueOf(p.dest)
			if rv.Kind() != reflect.Pointer || rv.IsNil() {
				return domain.InvalidArgument(p.Name, "output placeholder must be a non-nil pointer, got %T", p.dest)
			}
			if p.source == sourceRowsAffected || p.source == sourceIdentity {
				if !isIntDest(p.dest) {
					return domain.InvalidArgument(p.Name, "%s output needs an integer placeholder, got %T", p.Name, p.dest)
				}
			}
		}
		if p.isInput() && p.Type != TypeAny && !matchesType(p.Type, p.Value) {
			return domain.InvalidArgument(p.Name, "declared %s but value is %T", p.Type, p.Value)
		}
		if p.Direction == DirOut && p.Type != TypeAny && !matchesType(p.Type, deref(p.dest)) {
			return domain.InvalidArgument(p.Name, "declared %s but placeholder is %T", p.Type, p.dest)
		}
	}
	return nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func matchesType(t Type, v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeString:
		switch v.(type) {
		case string, sql.NullString:
			return true
		}
	case TypeInt:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, sql.NullInt64, sql.NullInt32:
			return true
		}
	case TypeFloat:
		switch v.(type) {
		case float32, float64, sql.NullFloat64:
			return true
		}
	case TypeBool:
		switch v.(type) {
		case bool, sql.NullBool:
			return true
		}
	case TypeTime:
		switch v.(type) {
		case time.Time, sql.NullTime:
			return true
		}
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	default:
		return true
	}
	return false
}

func isIntDest(dest any) bool {
	switch dest.(type) {
	case *int, *int32, *int64, *any:
		return true
	}
	return false
}

func deref(ptr any) any {
	if ptr == nil {
		return nil
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil
	}
	return rv.Elem().Interface()
}

// assign writes a driver value into an output destination.
func assign(dest, src any) error {
	if sc, ok := dest.(sql.Scanner); ok {
		return sc.Scan(src)
	}
	switch d := dest.(type) {
	case *any:
		if b, ok := src.([]byte); ok {
			src = string(b)
		}
		*d = src
		return nil
	case *string:
		s, err := asString(src)
		*d = s
		return err
	case *int64:
		n, err := asInt64(src)
		*d = n
		return err
	case *int:
		n, err := asInt64(src)
		*d = int(n)
		return err
	case *int32:
		n, err := asInt64(src)
		*d = int32(n)
		return err
	case *float64:
		f, err := asFloat64(src)
		*d = f
		return err
	case *bool:
		b, err := asBool(src)
		*d = b
		return err
	case *time.Time:
		t, err := asTime(src)
		*d = t
		return err
	case *[]byte:
		switch v := src.(type) {
		case nil:
			*d = nil
		case []byte:
			*d = append([]byte(nil), v...)
		case string:
			*d = []byte(v)
		default:
			return fmt.Errorf("cannot assign %T to %T", src, dest)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output placeholder %T", dest)
	}
}
