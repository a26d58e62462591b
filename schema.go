package featuremill

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ColumnType enumerates the semantic column types primitives match against.
// Types are attached at declaration time; primitives never inspect raw values
// to decide applicability.
type ColumnType int

const (
	// ColumnUnknown marks a column with no declared or inferable type.
	ColumnUnknown ColumnType = iota
	// ColumnNumeric is a continuous or integer-valued measurement.
	ColumnNumeric
	// ColumnCategorical is a discrete label, including numeric-looking codes
	// declared categorical via TableSpec.Types.
	ColumnCategorical
	// ColumnBoolean is a true/false flag.
	ColumnBoolean
	// ColumnDatetime is a timestamp.
	ColumnDatetime
	// ColumnID is a primary-key or foreign-key identifier. ID columns are
	// never used as primitive inputs.
	ColumnID
)

// String returns the lowercase name of the column type.
func (t ColumnType) String() string {
	switch t {
	case ColumnNumeric:
		return "numeric"
	case ColumnCategorical:
		return "categorical"
	case ColumnBoolean:
		return "boolean"
	case ColumnDatetime:
		return "datetime"
	case ColumnID:
		return "id"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the column type by name so exported definitions stay
// readable and stable across releases.
func (t ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a column type name.
func (t *ColumnType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ct, ok := parseColumnType(s)
	if !ok && s != "unknown" {
		return fmt.Errorf("unknown column type %q", s)
	}
	*t = ct
	return nil
}

// parseColumnType resolves a column type name from configuration files.
func parseColumnType(s string) (ColumnType, bool) {
	switch s {
	case "numeric":
		return ColumnNumeric, true
	case "categorical":
		return ColumnCategorical, true
	case "boolean":
		return ColumnBoolean, true
	case "datetime":
		return ColumnDatetime, true
	case "id":
		return ColumnID, true
	}
	return ColumnUnknown, false
}

// Row is a single table row: a mapping from column name to typed cell value.
// A nil cell is the null sentinel.
type Row map[string]any

// TableSpec declares the structure of a table for DeclareTable.
type TableSpec struct {
	// Name is the table name, unique within the entity set.
	Name string

	// PrimaryKey is the column holding unique, non-null row identifiers.
	// Exactly one of PrimaryKey and SyntheticKey must be set.
	PrimaryKey string

	// SyntheticKey, if set, names a new column to create and fill with a
	// dense 0-based int64 key in row order. Deterministic and stable as long
	// as row order is unchanged.
	SyntheticKey string

	// TimeIndex names the column holding each row's valid time. Empty means
	// the table has no time index and is fully known at all times.
	TimeIndex string

	// Types overrides the inferred semantic type of specific columns, e.g. a
	// numeric-looking status code declared categorical. Referencing a column
	// that exists in no row is a schema error.
	Types map[string]ColumnType
}

// Table is a named ordered collection of rows with a declared schema.
// Tables are read-only once declared.
type Table struct {
	Name       string
	PrimaryKey string
	TimeIndex  string

	// Columns holds the column names in deterministic order: primary key,
	// time index, then remaining columns sorted by name. Synthesis iterates
	// columns in this order.
	Columns []string

	// Types maps every column to its semantic type.
	Types map[string]ColumnType

	Rows []Row

	keyIndex map[any]int
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnType returns the semantic type of a column, or ColumnUnknown if the
// column does not exist.
func (t *Table) ColumnType(name string) ColumnType {
	return t.Types[name]
}

// rowByKey returns the row holding the given (normalized) primary key value.
func (t *Table) rowByKey(key any) (Row, bool) {
	i, ok := t.keyIndex[key]
	if !ok {
		return nil, false
	}
	return t.Rows[i], true
}

// DeclareTable registers a table with the entity set. The rows slice is
// retained (not copied) and must not be mutated afterwards: the entity set is
// immutable input for the lifetime of a run.
func (es *EntitySet) DeclareTable(spec TableSpec, rows []Row) (*Table, error) {
	if spec.Name == "" {
		return nil, newSchemaError(spec.Name, "", "table name is required")
	}
	if _, exists := es.tables[spec.Name]; exists {
		return nil, newSchemaError(spec.Name, "", "table already declared")
	}
	if spec.PrimaryKey == "" && spec.SyntheticKey == "" {
		return nil, newSchemaError(spec.Name, "", "either PrimaryKey or SyntheticKey is required")
	}
	if spec.PrimaryKey != "" && spec.SyntheticKey != "" {
		return nil, newSchemaError(spec.Name, "", "PrimaryKey and SyntheticKey are mutually exclusive")
	}

	// Collect the column universe across all rows.
	seen := make(map[string]bool)
	for _, r := range rows {
		for name := range r {
			seen[name] = true
		}
	}

	pk := spec.PrimaryKey
	if spec.SyntheticKey != "" {
		if seen[spec.SyntheticKey] {
			return nil, newSchemaError(spec.Name, spec.SyntheticKey, "synthetic key collides with existing column")
		}
		pk = spec.SyntheticKey
		for i, r := range rows {
			if r == nil {
				r = Row{}
				rows[i] = r
			}
			r[pk] = int64(i)
		}
		seen[pk] = true
	} else if !seen[pk] && len(rows) > 0 {
		return nil, newSchemaError(spec.Name, pk, "primary key column not present")
	}

	if spec.TimeIndex != "" && !seen[spec.TimeIndex] && len(rows) > 0 {
		return nil, newSchemaError(spec.Name, spec.TimeIndex, "time index column not present")
	}
	for name := range spec.Types {
		if !seen[name] {
			return nil, newSchemaError(spec.Name, name, "type override references nonexistent column")
		}
	}

	t := &Table{
		Name:       spec.Name,
		PrimaryKey: pk,
		TimeIndex:  spec.TimeIndex,
		Types:      make(map[string]ColumnType, len(seen)),
		Rows:       rows,
		keyIndex:   make(map[any]int, len(rows)),
	}

	// Resolve types: declared overrides win, then structural roles, then
	// inference from the first non-null cell.
	for name := range seen {
		if ct, ok := spec.Types[name]; ok {
			t.Types[name] = ct
		}
	}
	t.Types[pk] = ColumnID
	if spec.TimeIndex != "" {
		if ct, ok := spec.Types[spec.TimeIndex]; ok && ct != ColumnDatetime {
			return nil, newSchemaError(spec.Name, spec.TimeIndex, "time index must be a datetime column")
		}
		t.Types[spec.TimeIndex] = ColumnDatetime
	}
	for name := range seen {
		if _, ok := t.Types[name]; ok {
			continue
		}
		t.Types[name] = ColumnUnknown
		for _, r := range rows {
			if v, ok := r[name]; ok && v != nil {
				t.Types[name] = inferColumnType(v)
				break
			}
		}
		if t.Types[name] == ColumnUnknown {
			// All-null column: treat as categorical so it stays addressable.
			t.Types[name] = ColumnCategorical
		}
	}

	// Validate the time index and primary key over all rows.
	for i, r := range rows {
		if spec.TimeIndex != "" {
			if v, ok := r[spec.TimeIndex]; ok && v != nil {
				if _, isTime := asTime(v); !isTime {
					return nil, newSchemaError(spec.Name, spec.TimeIndex,
						fmt.Sprintf("row %d: time index value %v is not a timestamp", i, v))
				}
			}
		}
		v, ok := r[pk]
		if !ok || v == nil {
			return nil, newSchemaError(spec.Name, pk, fmt.Sprintf("row %d: primary key is null", i))
		}
		key := normalizeKey(v)
		if _, dup := t.keyIndex[key]; dup {
			return nil, newSchemaError(spec.Name, pk, fmt.Sprintf("row %d: duplicate primary key %v", i, v))
		}
		t.keyIndex[key] = i
	}

	// Deterministic column order: primary key, time index, rest sorted.
	rest := make([]string, 0, len(seen))
	for name := range seen {
		if name == pk || name == spec.TimeIndex {
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	t.Columns = append(t.Columns, pk)
	if spec.TimeIndex != "" && spec.TimeIndex != pk {
		t.Columns = append(t.Columns, spec.TimeIndex)
	}
	t.Columns = append(t.Columns, rest...)

	es.tables[spec.Name] = t
	es.order = append(es.order, spec.Name)
	return t, nil
}
