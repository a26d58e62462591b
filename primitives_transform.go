package featuremill

import "math"

// builtinTransforms returns the builtin transform primitives in their
// canonical registration order.
func builtinTransforms() []TransformPrimitive {
	return []TransformPrimitive{
		datetimeTransform{name: "year", extract: func(y, m, d, h, wd int) float64 { return float64(y) }},
		datetimeTransform{name: "month", extract: func(y, m, d, h, wd int) float64 { return float64(m) }},
		datetimeTransform{name: "day", extract: func(y, m, d, h, wd int) float64 { return float64(d) }},
		datetimeTransform{name: "hour", extract: func(y, m, d, h, wd int) float64 { return float64(h) }},
		datetimeTransform{name: "weekday", extract: func(y, m, d, h, wd int) float64 { return float64(wd) }},
		isWeekendTransform{},
		absoluteTransform{},
	}
}

// datetimeTransform extracts one calendar component from a datetime cell.
type datetimeTransform struct {
	name    string
	extract func(year, month, day, hour, weekday int) float64
}

func (t datetimeTransform) Name() string             { return t.name }
func (t datetimeTransform) InputTypes() []ColumnType { return []ColumnType{ColumnDatetime} }
func (t datetimeTransform) OutputType() ColumnType   { return ColumnNumeric }

func (t datetimeTransform) Transform(v any) any {
	ts, ok := asTime(v)
	if !ok {
		return nil
	}
	return t.extract(ts.Year(), int(ts.Month()), ts.Day(), ts.Hour(), int(ts.Weekday()))
}

type isWeekendTransform struct{}

func (isWeekendTransform) Name() string             { return "is_weekend" }
func (isWeekendTransform) InputTypes() []ColumnType { return []ColumnType{ColumnDatetime} }
func (isWeekendTransform) OutputType() ColumnType   { return ColumnBoolean }

func (isWeekendTransform) Transform(v any) any {
	ts, ok := asTime(v)
	if !ok {
		return nil
	}
	wd := ts.Weekday()
	return wd == 0 || wd == 6
}

type absoluteTransform struct{}

func (absoluteTransform) Name() string             { return "absolute" }
func (absoluteTransform) InputTypes() []ColumnType { return []ColumnType{ColumnNumeric} }
func (absoluteTransform) OutputType() ColumnType   { return ColumnNumeric }

func (absoluteTransform) Transform(v any) any {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	return math.Abs(f)
}
