package featuremill

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// FeatureMatrix is the output of a calculation run: one row per input
// CutoffTimeEntry, in input order, with one column per feature definition.
// Rows are never mutated after finalization.
type FeatureMatrix struct {
	// RunID identifies the run that produced the matrix, so partition
	// outputs can be traced back and merged by an external orchestrator.
	RunID string `json:"run_id"`

	// Target is the target table name.
	Target string `json:"target"`

	// Columns holds the feature names in definition order.
	Columns []string `json:"columns"`

	// HasLabel reports whether the input entries carried label values.
	HasLabel bool `json:"has_label"`

	Rows []MatrixRow `json:"rows"`
}

// MatrixRow is one finalized row of the feature matrix.
type MatrixRow struct {
	EntityID   any       `json:"entity_id"`
	CutoffTime time.Time `json:"cutoff_time"`

	// Values holds one cell per matrix column; nil is the null sentinel.
	Values []any `json:"values"`

	Label any `json:"label,omitempty"`
}

// NumRows returns the number of rows.
func (m *FeatureMatrix) NumRows() int { return len(m.Rows) }

// NumColumns returns the number of feature columns.
func (m *FeatureMatrix) NumColumns() int { return len(m.Columns) }

// Concat appends another partition's rows after this matrix's rows,
// preserving each partition's internal order. Both matrices must have been
// computed from the same feature-definition list.
func (m *FeatureMatrix) Concat(other *FeatureMatrix) (*FeatureMatrix, error) {
	if len(m.Columns) != len(other.Columns) {
		return nil, fmt.Errorf("cannot concat matrices with %d and %d columns", len(m.Columns), len(other.Columns))
	}
	for i, col := range m.Columns {
		if other.Columns[i] != col {
			return nil, fmt.Errorf("cannot concat: column %d is %q vs %q", i, col, other.Columns[i])
		}
	}
	out := &FeatureMatrix{
		RunID:    m.RunID,
		Target:   m.Target,
		Columns:  append([]string{}, m.Columns...),
		HasLabel: m.HasLabel || other.HasLabel,
	}
	out.Rows = append(out.Rows, m.Rows...)
	out.Rows = append(out.Rows, other.Rows...)
	return out, nil
}

// WriteCSV writes the matrix as CSV with an entity_id and cutoff_time prefix
// and, if labels are present, a trailing label column. Null cells render as
// empty fields.
func (m *FeatureMatrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"entity_id", "cutoff_time"}, m.Columns...)
	if m.HasLabel {
		header = append(header, "label")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, 0, len(header))
	for _, row := range m.Rows {
		record = record[:0]
		record = append(record, formatCell(row.EntityID), row.CutoffTime.UTC().Format(time.RFC3339))
		for _, v := range row.Values {
			record = append(record, formatCell(v))
		}
		if m.HasLabel {
			record = append(record, formatCell(row.Label))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the matrix as JSON lines, one object per row with features
// keyed by column name.
func (m *FeatureMatrix) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, row := range m.Rows {
		features := make(map[string]any, len(m.Columns))
		for i, col := range m.Columns {
			features[col] = row.Values[i]
		}
		obj := map[string]any{
			"entity_id":   row.EntityID,
			"cutoff_time": row.CutoffTime.UTC().Format(time.RFC3339),
			"features":    features,
		}
		if m.HasLabel {
			obj["label"] = row.Label
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}

// formatCell renders a cell for CSV output.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
