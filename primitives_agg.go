package featuremill

import (
	"time"

	"github.com/featuremill/featuremill/internal/stats"
)

// builtinAggregations returns the builtin aggregation primitives in their
// canonical registration order.
func builtinAggregations() []AggregationPrimitive {
	return []AggregationPrimitive{
		countPrimitive{},
		sumPrimitive{},
		meanPrimitive{},
		minPrimitive{},
		maxPrimitive{},
		stdPrimitive{},
		modePrimitive{},
		numUniquePrimitive{},
		percentTruePrimitive{},
		trendPrimitive{},
	}
}

// numericCells extracts the non-null numeric cells of a slice.
func numericCells(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		if f, ok := asFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// categoryCells extracts the non-null cells of a slice as category keys.
func categoryCells(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if k, ok := categoryKey(v); ok {
			out = append(out, k)
		}
	}
	return out
}

// countPrimitive counts the rows of the valid slice. The only column-less
// builtin: it applies to a table, not to a column, and counts null cells too.
type countPrimitive struct{}

func (countPrimitive) Name() string            { return "count" }
func (countPrimitive) InputTypes() []ColumnType { return nil }
func (countPrimitive) OutputType() ColumnType  { return ColumnNumeric }

// Aggregate returns the row count. Empty slice: 0, never nil.
func (countPrimitive) Aggregate(values []any) any {
	return float64(len(values))
}

type sumPrimitive struct{}

func (sumPrimitive) Name() string             { return "sum" }
func (sumPrimitive) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (sumPrimitive) OutputType() ColumnType   { return ColumnNumeric }

// Aggregate returns the sum of non-null cells. Empty slice: 0.
func (sumPrimitive) Aggregate(values []any) any {
	var sum float64
	for _, x := range numericCells(values) {
		sum += x
	}
	return sum
}

type meanPrimitive struct{}

func (meanPrimitive) Name() string             { return "mean" }
func (meanPrimitive) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (meanPrimitive) OutputType() ColumnType   { return ColumnNumeric }

func (meanPrimitive) Aggregate(values []any) any {
	xs := numericCells(values)
	if len(xs) == 0 {
		return nil
	}
	return stats.Mean(xs)
}

type minPrimitive struct{}

func (minPrimitive) Name() string             { return "min" }
func (minPrimitive) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (minPrimitive) OutputType() ColumnType   { return ColumnNumeric }

func (minPrimitive) Aggregate(values []any) any {
	xs := numericCells(values)
	if len(xs) == 0 {
		return nil
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if x < best {
			best = x
		}
	}
	return best
}

type maxPrimitive struct{}

func (maxPrimitive) Name() string             { return "max" }
func (maxPrimitive) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (maxPrimitive) OutputType() ColumnType   { return ColumnNumeric }

func (maxPrimitive) Aggregate(values []any) any {
	xs := numericCells(values)
	if len(xs) == 0 {
		return nil
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if x > best {
			best = x
		}
	}
	return best
}

type stdPrimitive struct{}

func (stdPrimitive) Name() string             { return "std" }
func (stdPrimitive) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (stdPrimitive) OutputType() ColumnType   { return ColumnNumeric }

// Aggregate returns the sample standard deviation, or nil for fewer than two
// non-null cells.
func (stdPrimitive) Aggregate(values []any) any {
	sd, ok := stats.SampleStd(numericCells(values))
	if !ok {
		return nil
	}
	return sd
}

type modePrimitive struct{}

func (modePrimitive) Name() string { return "mode" }
func (modePrimitive) InputTypes() []ColumnType {
	return []ColumnType{ColumnCategorical, ColumnBoolean}
}
func (modePrimitive) OutputType() ColumnType { return ColumnCategorical }

// Aggregate returns the most frequent non-null cell. Ties break toward the
// smallest key so the result is independent of row order.
func (modePrimitive) Aggregate(values []any) any {
	m, ok := stats.Mode(categoryCells(values))
	if !ok {
		return nil
	}
	return m
}

type numUniquePrimitive struct{}

func (numUniquePrimitive) Name() string { return "num_unique" }
func (numUniquePrimitive) InputTypes() []ColumnType {
	return []ColumnType{ColumnCategorical, ColumnBoolean}
}
func (numUniquePrimitive) OutputType() ColumnType { return ColumnNumeric }

// Aggregate returns the distinct count of non-null cells. Empty slice: 0.
func (numUniquePrimitive) Aggregate(values []any) any {
	return float64(stats.NumUnique(categoryCells(values)))
}

type percentTruePrimitive struct{}

func (percentTruePrimitive) Name() string             { return "percent_true" }
func (percentTruePrimitive) InputTypes() []ColumnType { return []ColumnType{ColumnBoolean} }
func (percentTruePrimitive) OutputType() ColumnType   { return ColumnNumeric }

func (percentTruePrimitive) Aggregate(values []any) any {
	var total, trues int
	for _, v := range values {
		b, ok := asBool(v)
		if !ok {
			continue
		}
		total++
		if b {
			trues++
		}
	}
	if total == 0 {
		return nil
	}
	return float64(trues) / float64(total)
}

// trendPrimitive fits a least-squares line of the column values over the
// source table's time index and returns the slope per day.
type trendPrimitive struct{}

func (trendPrimitive) Name() string             { return "trend" }
func (trendPrimitive) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (trendPrimitive) OutputType() ColumnType   { return ColumnNumeric }

// Aggregate is unusable without timestamps; the calculator always routes
// trend through AggregateWithTimes.
func (trendPrimitive) Aggregate(values []any) any {
	return nil
}

func (trendPrimitive) AggregateWithTimes(values []any, times []time.Time) any {
	xs := make([]float64, 0, len(values))
	ys := make([]float64, 0, len(values))
	var origin time.Time
	for i, v := range values {
		if v == nil || times[i].IsZero() {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			continue
		}
		if origin.IsZero() {
			origin = times[i]
		}
		xs = append(xs, times[i].Sub(origin).Hours()/24)
		ys = append(ys, f)
	}
	slope, ok := stats.Slope(xs, ys)
	if !ok {
		return nil
	}
	return slope
}
