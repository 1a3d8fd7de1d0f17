package tree

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

// Datatype is the declared type of a node's value
type Datatype string

const (
	// DatatypeNode marks a container node
	DatatypeNode      Datatype = "node"
	DatatypeInt32     Datatype = "int32"
	DatatypeInt64     Datatype = "int64"
	DatatypeEnum      Datatype = "enum"
	DatatypeString    Datatype = "string"
	DatatypeFloat     Datatype = "float"
	DatatypeBool      Datatype = "bool"
	DatatypeTimestamp Datatype = "timestamp"
	// DatatypeObject holds an opaque value (process handles, connectors)
	DatatypeObject Datatype = "object"
	// DatatypeLink holds the path of another node
	DatatypeLink Datatype = "link"
)

var datatypes = map[Datatype]struct{}{
	DatatypeNode:      {},
	DatatypeInt32:     {},
	DatatypeInt64:     {},
	DatatypeEnum:      {},
	DatatypeString:    {},
	DatatypeFloat:     {},
	DatatypeBool:      {},
	DatatypeTimestamp: {},
	DatatypeObject:    {},
	DatatypeLink:      {},
}

// Valid reports whether d is one of the recognized datatypes
func (d Datatype) Valid() bool {
	_, ok := datatypes[d]
	return ok
}

// IsContainer reports whether d describes a container node
func (d Datatype) IsContainer() bool {
	return d == DatatypeNode
}

// ParseDatatype validates s as a datatype name
func ParseDatatype(s string) (Datatype, error) {
	d := Datatype(s)
	if !d.Valid() {
		return "", hosterr.ErrInvalidDatatype(s)
	}
	return d, nil
}

// ZeroValue returns the value a leaf of datatype d holds when it is created
// without an initial value.
func (d Datatype) ZeroValue() any {
	switch d {
	case DatatypeInt32, DatatypeEnum:
		return int32(0)
	case DatatypeInt64:
		return int64(0)
	case DatatypeFloat:
		return float64(0)
	case DatatypeBool:
		return false
	case DatatypeTimestamp:
		return time.Time{}
	case DatatypeString, DatatypeLink:
		return ""
	case DatatypeObject:
		return struct{}{}
	default:
		return nil
	}
}

var errNotIntegral = errors.New("value is not an integer")

// Coerce converts v into the canonical Go representation of datatype d.
//
// It accepts the values produced by untyped transports (strings, float64
// numbers, bools) as well as native Go values:
//
//   - int32 and enum become int32, int64 becomes int64; strings are parsed
//     as base-10 integers and floats must be integral and in range.
//   - float becomes float64.
//   - bool accepts a bool, or a string, in which case only the literal
//     "true" is true.
//   - string passes strings through and formats anything else.
//   - timestamp accepts time.Time, RFC 3339 strings and unix milliseconds.
//   - link accepts a path string.
//   - object accepts any non-nil value.
//
// Any other datatype, including "node", yields a CONVERSION_FAILED error.
func Coerce(d Datatype, v any) (any, error) {
	if v == nil {
		return nil, hosterr.ErrConversionFailed(string(d), v, errors.New("nil value"))
	}

	switch d {
	case DatatypeInt32, DatatypeEnum:
		i, err := toInt64(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, hosterr.ErrConversionFailed(string(d), v, err)
		}
		return int32(i), nil

	case DatatypeInt64:
		i, err := toInt64(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return nil, hosterr.ErrConversionFailed(string(d), v, err)
		}
		return i, nil

	case DatatypeFloat:
		f, err := toFloat64(v)
		if err != nil {
			return nil, hosterr.ErrConversionFailed(string(d), v, err)
		}
		return f, nil

	case DatatypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return b == "true", nil
		default:
			return nil, hosterr.ErrConversionFailed(string(d), v, fmt.Errorf("unsupported type %T", v))
		}

	case DatatypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil

	case DatatypeLink:
		s, ok := v.(string)
		if !ok {
			return nil, hosterr.ErrConversionFailed(string(d), v, fmt.Errorf("unsupported type %T", v))
		}
		return s, nil

	case DatatypeTimestamp:
		t, err := toTime(v)
		if err != nil {
			return nil, hosterr.ErrConversionFailed(string(d), v, err)
		}
		return t, nil

	case DatatypeObject:
		return v, nil

	default:
		return nil, hosterr.ErrConversionFailed(string(d), v, errors.New("datatype has no scalar representation"))
	}
}

func toInt64(v any, lo, hi int64) (int64, error) {
	var i int64
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int8:
		i = int64(n)
	case int16:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case uint8:
		i = int64(n)
	case uint16:
		i = int64(n)
	case uint32:
		i = int64(n)
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, strconv.ErrRange
		}
		i = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, strconv.ErrRange
		}
		i = int64(n)
	case float32:
		return toInt64(float64(n), lo, hi)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, errNotIntegral
		}
		if n < float64(lo) || n > float64(hi) {
			return 0, strconv.ErrRange
		}
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, err
		}
		i = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}

	if i < lo || i > hi {
		return 0, strconv.ErrRange
	}
	return i, nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	default:
		ms, err := toInt64(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms), nil
	}
}
