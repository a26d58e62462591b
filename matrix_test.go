package featuremill

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteCSV(t *testing.T) {
	m := &FeatureMatrix{
		Target:   "members",
		Columns:  []string{"COUNT(transactions)", "MODE(transactions.method)"},
		HasLabel: true,
		Rows: []MatrixRow{
			{EntityID: "M1", CutoffTime: date(2017, 2, 1), Values: []any{1.0, "card"}, Label: true},
			{EntityID: "M2", CutoffTime: date(2017, 2, 1), Values: []any{0.0, nil}, Label: false},
		},
	}

	var buf bytes.Buffer
	if err := m.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	wantHeader := []string{"entity_id", "cutoff_time", "COUNT(transactions)", "MODE(transactions.method)", "label"}
	for i, h := range wantHeader {
		if records[0][i] != h {
			t.Fatalf("header = %v, want %v", records[0], wantHeader)
		}
	}
	if records[1][1] != "2017-02-01T00:00:00Z" {
		t.Errorf("cutoff rendering = %q", records[1][1])
	}
	if records[1][2] != "1" || records[1][3] != "card" || records[1][4] != "true" {
		t.Errorf("row 1 = %v", records[1])
	}
	// Null cells render empty.
	if records[2][3] != "" {
		t.Errorf("null cell = %q, want empty", records[2][3])
	}
}

func TestWriteJSON(t *testing.T) {
	m := &FeatureMatrix{
		Target:  "members",
		Columns: []string{"COUNT(transactions)"},
		Rows: []MatrixRow{
			{EntityID: "M1", CutoffTime: date(2017, 2, 1), Values: []any{2.0}},
		},
	}
	var buf bytes.Buffer
	if err := m.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("output line is not valid JSON: %v", err)
	}
	if obj["entity_id"] != "M1" {
		t.Errorf("entity_id = %v", obj["entity_id"])
	}
	features, ok := obj["features"].(map[string]any)
	if !ok {
		t.Fatalf("features field = %T", obj["features"])
	}
	if features["COUNT(transactions)"] != 2.0 {
		t.Errorf("feature value = %v", features["COUNT(transactions)"])
	}
	if _, present := obj["label"]; present {
		t.Error("unlabeled matrix should not emit a label field")
	}
}

func TestConcat_ColumnMismatch(t *testing.T) {
	a := &FeatureMatrix{Columns: []string{"x", "y"}}
	b := &FeatureMatrix{Columns: []string{"x"}}
	if _, err := a.Concat(b); err == nil {
		t.Error("column-count mismatch should fail")
	}
	c := &FeatureMatrix{Columns: []string{"x", "z"}}
	if _, err := a.Concat(c); err == nil {
		t.Error("column-name mismatch should fail")
	}
	if _, err := a.Concat(a); err != nil {
		t.Errorf("matching columns should concat: %v", err)
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"card", "card"},
		{true, "true"},
		{1.5, "1.5"},
		{3.0, "3"},
		{int64(7), "7"},
		{date(2020, 1, 2), "2020-01-02T00:00:00Z"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatrixShape(t *testing.T) {
	matrix, defs := retailMatrix(t, []CutoffTimeEntry{
		{EntityID: "M1", CutoffTime: date(2017, 2, 1)},
	}, CalcOptions{})
	if matrix.NumColumns() != len(defs) {
		t.Errorf("NumColumns = %d, want %d", matrix.NumColumns(), len(defs))
	}
	if matrix.NumRows() != 1 {
		t.Errorf("NumRows = %d, want 1", matrix.NumRows())
	}
	if matrix.RunID == "" {
		t.Error("RunID should be assigned")
	}
	if matrix.Target != "members" {
		t.Errorf("Target = %q", matrix.Target)
	}
	if strings.TrimSpace(matrix.Columns[0]) == "" {
		t.Error("column names should be non-empty")
	}
}
