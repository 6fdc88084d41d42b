// ABOUTME: Codec between typed property bags and flat column-name→value maps
// ABOUTME: Column names carry the property type as a prefix, e.g. int64_count

package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved primary-key columns. Every table carries both; exactly one is
// non-null per row. They never appear in the logical schema or in decoded
// property bags.
const (
	ColumnKeyInt    = "pk_int"
	ColumnKeyString = "pk_string"
)

// Type tags used as column-name prefixes.
const (
	tagInt64   = "int64"
	tagString  = "string"
	tagBoolean = "boolean"
	tagDouble  = "double"
	tagKey     = "pk"
)

// ErrUnsupportedType is returned when a property or sample value is not one
// of the four supported primitives.
var ErrUnsupportedType = errors.New("unsupported property type")

// Column derives the physical column name and driver-ready value for a single
// typed property. Booleans flatten to the integers 1 and 0.
func Column(name string, v Value) (string, any, error) {
	switch val := v.(type) {
	case Int64:
		return tagInt64 + "_" + name, int64(val), nil
	case String:
		return tagString + "_" + name, string(val), nil
	case Bool:
		n := int64(0)
		if val {
			n = 1
		}
		return tagBoolean + "_" + name, n, nil
	case Double:
		return tagDouble + "_" + name, float64(val), nil
	default:
		return "", nil, fmt.Errorf("%w: property %q has type %T", ErrUnsupportedType, name, v)
	}
}

// Decomposer controls how a single typed property expands into physical
// columns. The default is a 1:1 mapping; alternative implementations may fan
// one property out over several columns (say, a future composite type).
type Decomposer interface {
	Decompose(dst map[string]any, column string, value any)
}

type identityDecomposer struct{}

func (identityDecomposer) Decompose(dst map[string]any, column string, value any) {
	dst[column] = value
}

// Codec converts entities to column maps and rows back to property bags.
type Codec struct {
	dec Decomposer
}

// NewCodec returns a codec using the given decomposition strategy.
// A nil decomposer selects the default 1:1 mapping.
func NewCodec(dec Decomposer) *Codec {
	if dec == nil {
		dec = identityDecomposer{}
	}
	return &Codec{dec: dec}
}

// Encode converts the entity's properties into a column-name→value map ready
// for binding as statement parameters. The entity's key is not part of the
// result. Fails before touching the output if any property value is outside
// the supported set.
func (c *Codec) Encode(e *Entity) (map[string]any, error) {
	result := make(map[string]any, len(e.Properties))
	for name, val := range e.Properties {
		column, driverVal, err := Column(name, val)
		if err != nil {
			return nil, err
		}
		c.dec.Decompose(result, column, driverVal)
	}
	return result, nil
}

// RowMap zips column names from query metadata with the values of one row.
func RowMap(columns []string, row []any) map[string]any {
	values := make(map[string]any, len(columns))
	for i, col := range columns {
		if i < len(row) {
			values[col] = row[i]
		}
	}
	return values
}

// Decode converts a flat row map into a typed property bag. Columns whose
// name has no type tag, whose tag is not one of the supported four (this
// covers the pk_* columns), or whose value is NULL are ignored.
func (c *Codec) Decode(values map[string]any) map[string]Value {
	props := make(map[string]Value)
	for column, val := range values {
		if val == nil {
			continue
		}
		i := strings.Index(column, "_")
		if i < 1 {
			continue
		}
		tag, name := column[:i], column[i+1:]
		switch tag {
		case tagInt64:
			if n, ok := asInt64(val); ok {
				props[name] = Int64(n)
			}
		case tagString:
			if s, ok := asString(val); ok {
				props[name] = String(s)
			}
		case tagBoolean:
			if n, ok := asInt64(val); ok {
				props[name] = Bool(n != 0)
			}
		case tagDouble:
			if f, ok := asFloat64(val); ok {
				props[name] = Double(f)
			}
		}
	}
	return props
}

// KeyFromRow extracts the primary key descriptor from a row map. The second
// return is false when neither pk column holds a value. A non-null pk_string
// wins over pk_int; the two should never both be set.
func KeyFromRow(kind string, values map[string]any) (Key, bool) {
	if name, ok := asString(values[ColumnKeyString]); ok && name != "" {
		return Key{Kind: kind, Name: name}, true
	}
	if id, ok := asInt64(values[ColumnKeyInt]); ok {
		return Key{Kind: kind, ID: id}, true
	}
	return Key{}, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
