package featuremill

import (
	"fmt"
	"time"
)

// The null sentinel for feature values is an untyped nil. Aggregations over
// empty valid slices return nil (except count-like primitives, which return
// zero), and downstream consumers rely on that marker staying stable.

// asFloat coerces a cell to float64. It accepts the numeric types a
// data-loading collaborator is likely to hand over.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// asBool coerces a cell to bool.
func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asTime coerces a cell to time.Time.
func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// categoryKey returns a stable string form of a categorical or boolean cell,
// used for mode and distinct-count computations.
func categoryKey(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	default:
		if f, ok := asFloat(v); ok {
			return fmt.Sprintf("%g", f), true
		}
		return fmt.Sprintf("%v", x), true
	}
}

// normalizeKey maps key cells onto a canonical comparable form so that an
// int foreign key matches an int64 primary key. Strings pass through;
// integer types widen to int64; floats stay float64.
func normalizeKey(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// inferColumnType guesses a semantic type from a cell value. Declared
// overrides in TableSpec.Types always win over inference.
func inferColumnType(v any) ColumnType {
	switch v.(type) {
	case bool:
		return ColumnBoolean
	case time.Time:
		return ColumnDatetime
	case string:
		return ColumnCategorical
	default:
		if _, ok := asFloat(v); ok {
			return ColumnNumeric
		}
		return ColumnCategorical
	}
}
