package featuremill

import (
	"errors"
	"math"
	"testing"
	"time"
)

func aggregate(t *testing.T, name string, values []any) any {
	t.Helper()
	p, ok := DefaultPrimitives().Aggregation(name)
	if !ok {
		t.Fatalf("builtin aggregation %q not registered", name)
	}
	return p.Aggregate(values)
}

func TestAggregations(t *testing.T) {
	tests := []struct {
		name      string
		primitive string
		values    []any
		want      any
	}{
		{"count", "count", []any{nil, nil, nil}, 3.0},
		{"count empty", "count", nil, 0.0},
		{"sum", "sum", []any{1.0, 2.0, 3.5}, 6.5},
		{"sum skips nulls", "sum", []any{1.0, nil, 2.0}, 3.0},
		{"sum empty", "sum", nil, 0.0},
		{"mean", "mean", []any{2.0, 4.0}, 3.0},
		{"mean empty is null", "mean", nil, nil},
		{"mean all null is null", "mean", []any{nil, nil}, nil},
		{"min", "min", []any{5.0, 3.0, 4.0}, 3.0},
		{"min empty is null", "min", nil, nil},
		{"max", "max", []any{5.0, 3.0, 4.0}, 5.0},
		{"max empty is null", "max", nil, nil},
		{"std empty is null", "std", nil, nil},
		{"std single is null", "std", []any{1.0}, nil},
		{"mode", "mode", []any{"a", "b", "a"}, "a"},
		{"mode tie breaks low", "mode", []any{"b", "a"}, "a"},
		{"mode empty is null", "mode", nil, nil},
		{"num_unique", "num_unique", []any{"a", "b", "a", nil}, 2.0},
		{"num_unique empty", "num_unique", nil, 0.0},
		{"percent_true", "percent_true", []any{true, false, true, true}, 0.75},
		{"percent_true empty is null", "percent_true", nil, nil},
		{"integer cells coerce", "sum", []any{1, int64(2), float32(3)}, 6.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregate(t, tt.primitive, tt.values)
			if got != tt.want {
				t.Errorf("%s(%v) = %v, want %v", tt.primitive, tt.values, got, tt.want)
			}
		})
	}
}

func TestStdAggregation(t *testing.T) {
	got := aggregate(t, "std", []any{2.0, 4.0, 4.0, 4.0, 5.0, 5.0, 7.0, 9.0})
	sd, ok := got.(float64)
	if !ok {
		t.Fatalf("std returned %T, want float64", got)
	}
	// Sample standard deviation of the classic example set.
	if math.Abs(sd-2.138) > 0.001 {
		t.Errorf("std = %f, want ~2.138", sd)
	}
}

func TestTrendAggregation(t *testing.T) {
	p, _ := DefaultPrimitives().Aggregation("trend")
	trend, ok := p.(TimeAwareAggregation)
	if !ok {
		t.Fatal("trend must implement TimeAwareAggregation")
	}

	base := date(2020, 1, 1)
	times := []time.Time{base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)}

	got := trend.AggregateWithTimes([]any{1.0, 2.0, 3.0}, times)
	slope, ok := got.(float64)
	if !ok {
		t.Fatalf("trend returned %T, want float64", got)
	}
	if math.Abs(slope-1.0) > 1e-9 {
		t.Errorf("slope = %f, want 1.0 per day", slope)
	}

	if got := trend.AggregateWithTimes(nil, nil); got != nil {
		t.Errorf("trend over empty slice = %v, want null", got)
	}
	if got := trend.AggregateWithTimes([]any{1.0}, times[:1]); got != nil {
		t.Errorf("trend over single point = %v, want null", got)
	}
}

func TestTransforms(t *testing.T) {
	ts := time.Date(2017, 2, 4, 15, 30, 0, 0, time.UTC) // a Saturday
	tests := []struct {
		primitive string
		input     any
		want      any
	}{
		{"year", ts, 2017.0},
		{"month", ts, 2.0},
		{"day", ts, 4.0},
		{"hour", ts, 15.0},
		{"weekday", ts, 6.0},
		{"is_weekend", ts, true},
		{"is_weekend", date(2017, 2, 6), false}, // a Monday
		{"absolute", -3.5, 3.5},
		{"absolute", 2, 2.0},
		{"year", nil, nil},
		{"absolute", nil, nil},
	}
	reg := DefaultPrimitives()
	for _, tt := range tests {
		t.Run(tt.primitive, func(t *testing.T) {
			p, ok := reg.Transform(tt.primitive)
			if !ok {
				t.Fatalf("builtin transform %q not registered", tt.primitive)
			}
			if got := p.Transform(tt.input); got != tt.want {
				t.Errorf("%s(%v) = %v, want %v", tt.primitive, tt.input, got, tt.want)
			}
		})
	}
}

func TestRegistrySubset(t *testing.T) {
	reg := DefaultPrimitives()

	sub, err := reg.Subset([]string{"count", "mean"}, []string{"year"})
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if got := len(sub.Aggregations()); got != 2 {
		t.Errorf("aggregation count = %d, want 2", got)
	}
	if got := len(sub.Transforms()); got != 1 {
		t.Errorf("transform count = %d, want 1", got)
	}

	if _, err := reg.Subset([]string{"bogus"}, nil); !errors.Is(err, ErrUnknownPrimitive) {
		t.Errorf("unknown aggregation: got %v, want ErrUnknownPrimitive", err)
	}
	if _, err := reg.Subset(nil, []string{"bogus"}); !errors.Is(err, ErrUnknownPrimitive) {
		t.Errorf("unknown transform: got %v, want ErrUnknownPrimitive", err)
	}

	// Nil keeps everything.
	full, err := reg.Subset(nil, nil)
	if err != nil {
		t.Fatalf("full subset failed: %v", err)
	}
	if len(full.Aggregations()) != len(reg.Aggregations()) {
		t.Error("nil subset should keep all aggregations")
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	reg := NewPrimitiveRegistry()
	if err := reg.RegisterAggregation(countPrimitive{}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterAggregation(countPrimitive{}); err == nil {
		t.Error("duplicate registration should fail")
	}
}

// customLast is a caller-defined aggregation used to exercise open extension.
type customLast struct{}

func (customLast) Name() string             { return "last" }
func (customLast) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (customLast) OutputType() ColumnType   { return ColumnNumeric }
func (customLast) Aggregate(values []any) any {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != nil {
			return values[i]
		}
	}
	return nil
}

func TestRegistryOpenExtension(t *testing.T) {
	reg := DefaultPrimitives()
	if err := reg.RegisterAggregation(customLast{}); err != nil {
		t.Fatalf("registering custom primitive: %v", err)
	}

	es := retailEntitySet(t)
	defs, err := Synthesize(es, "members", SynthesisOptions{MaxDepth: 1, Primitives: reg})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	found := false
	for _, d := range defs {
		if d.Name == "LAST(transactions.amount)" {
			found = true
		}
	}
	if !found {
		t.Error("custom primitive was not enumerated by the synthesizer")
	}
}
