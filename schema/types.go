package schema

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Type is the semantic type of an entity field.
type Type int

const (
	String Type = iota + 1
	Integer
	Float
	Boolean
	Time
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case Time:
		return "time"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType parses the names produced by Type.String.
func ParseType(s string) (Type, error) {
	for t := String; t <= Time; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("schema: unknown type %q", s)
}

// timeLayouts are the textual forms drivers hand back for timestamp columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Check validates a caller-supplied value and returns it in canonical form:
// string, int64, float64, bool or time.Time. nil passes through.
func (t Type) Check(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case Float:
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Time:
		if tm, ok := v.(time.Time); ok {
			return tm.UTC(), nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, v)
}

// Decode converts a value scanned from any supported driver into the
// canonical Go type for t. nil passes through.
func (t Type) Decode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch t {
	case String:
		switch s := v.(type) {
		case string:
			return s, nil
		case time.Time:
			return s.Format(time.RFC3339Nano), nil
		}
	case Integer:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
		switch s := v.(type) {
		case string:
			return strconv.ParseInt(s, 10, 64)
		case float64:
			if s == math.Trunc(s) {
				return int64(s), nil
			}
		}
	case Float:
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		case string:
			return strconv.ParseFloat(f, 64)
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
	case Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
		if n, ok := toInt64(v); ok {
			return n != 0, nil
		}
	case Time:
		switch tm := v.(type) {
		case time.Time:
			return tm.UTC(), nil
		case string:
			for _, layout := range timeLayouts {
				if parsed, err := time.Parse(layout, tm); err == nil {
					return parsed.UTC(), nil
				}
			}
			return nil, fmt.Errorf("schema: cannot parse %q as time", tm)
		}
	}
	return nil, fmt.Errorf("schema: cannot decode %T as %s", v, t)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}
