package featuremill

import (
	"fmt"
	"time"
)

// Primitive is a named, reusable feature-computation function. Each primitive
// declares the semantic column types it accepts; the synthesizer prunes
// combinations the declaration rules out (a mean of a categorical column is
// never enumerated).
type Primitive interface {
	// Name is the primitive identifier used in feature names. Lowercase by
	// convention; it is uppercased when rendered into a feature name.
	Name() string

	// InputTypes lists the accepted input column types. An aggregation with
	// no input types applies to a table as a whole (row count) rather than
	// to a column.
	InputTypes() []ColumnType

	// OutputType is the semantic type of the produced value.
	OutputType() ColumnType
}

// TransformPrimitive is a pure row-local function: one cell in, one cell out.
// Transforms never cross a cutoff boundary; the source row's inclusion is
// decided upstream by the calculator.
type TransformPrimitive interface {
	Primitive

	// Transform computes the output cell. A nil input yields nil.
	Transform(v any) any
}

// AggregationPrimitive collapses the values of one column across a filtered
// child slice into a single value. Every aggregation must be well-defined on
// an empty slice: count-like primitives return zero, value-directed
// primitives return the nil sentinel. Null cells inside the slice are
// skipped; an all-null slice behaves like an empty one.
type AggregationPrimitive interface {
	Primitive

	// Aggregate computes the output value from the column cells of the
	// valid slice, in table row order.
	Aggregate(values []any) any
}

// TimeAwareAggregation is implemented by aggregations that additionally
// consume the source table's time index (e.g. trend). The synthesizer only
// enumerates such primitives for tables that carry a time index, and the
// calculator invokes AggregateWithTimes instead of Aggregate.
type TimeAwareAggregation interface {
	AggregationPrimitive

	// AggregateWithTimes receives the column cells and the parallel slice of
	// row timestamps.
	AggregateWithTimes(values []any, times []time.Time) any
}

// PrimitiveRegistry is a catalog of primitives, registered in a stable order.
// The builtin set is open for extension: registering a new primitive requires
// no change to the synthesizer or calculator.
type PrimitiveRegistry struct {
	aggregations map[string]AggregationPrimitive
	transforms   map[string]TransformPrimitive
	aggOrder     []string
	trOrder      []string
}

// NewPrimitiveRegistry creates an empty registry.
func NewPrimitiveRegistry() *PrimitiveRegistry {
	return &PrimitiveRegistry{
		aggregations: make(map[string]AggregationPrimitive),
		transforms:   make(map[string]TransformPrimitive),
	}
}

// RegisterAggregation adds an aggregation primitive. Names must be unique
// across the registry.
func (r *PrimitiveRegistry) RegisterAggregation(p AggregationPrimitive) error {
	if err := r.checkName(p.Name()); err != nil {
		return err
	}
	r.aggregations[p.Name()] = p
	r.aggOrder = append(r.aggOrder, p.Name())
	return nil
}

// RegisterTransform adds a transform primitive.
func (r *PrimitiveRegistry) RegisterTransform(p TransformPrimitive) error {
	if err := r.checkName(p.Name()); err != nil {
		return err
	}
	r.transforms[p.Name()] = p
	r.trOrder = append(r.trOrder, p.Name())
	return nil
}

func (r *PrimitiveRegistry) checkName(name string) error {
	if name == "" {
		return fmt.Errorf("primitive name is required")
	}
	if _, ok := r.aggregations[name]; ok {
		return fmt.Errorf("primitive %q already registered", name)
	}
	if _, ok := r.transforms[name]; ok {
		return fmt.Errorf("primitive %q already registered", name)
	}
	return nil
}

// Aggregation returns the named aggregation primitive.
func (r *PrimitiveRegistry) Aggregation(name string) (AggregationPrimitive, bool) {
	p, ok := r.aggregations[name]
	return p, ok
}

// Transform returns the named transform primitive.
func (r *PrimitiveRegistry) Transform(name string) (TransformPrimitive, bool) {
	p, ok := r.transforms[name]
	return p, ok
}

// Aggregations returns all aggregation primitives in registration order.
func (r *PrimitiveRegistry) Aggregations() []AggregationPrimitive {
	out := make([]AggregationPrimitive, 0, len(r.aggOrder))
	for _, name := range r.aggOrder {
		out = append(out, r.aggregations[name])
	}
	return out
}

// Transforms returns all transform primitives in registration order.
func (r *PrimitiveRegistry) Transforms() []TransformPrimitive {
	out := make([]TransformPrimitive, 0, len(r.trOrder))
	for _, name := range r.trOrder {
		out = append(out, r.transforms[name])
	}
	return out
}

// Subset returns a registry restricted to the named primitives, preserving
// this registry's registration order. Nil slices keep the full corresponding
// set. Unknown names yield an error wrapping ErrUnknownPrimitive.
func (r *PrimitiveRegistry) Subset(aggregations, transforms []string) (*PrimitiveRegistry, error) {
	sub := NewPrimitiveRegistry()
	keepAgg := toSet(aggregations)
	keepTr := toSet(transforms)
	for name := range keepAgg {
		if _, ok := r.aggregations[name]; !ok {
			return nil, fmt.Errorf("%w: aggregation %q", ErrUnknownPrimitive, name)
		}
	}
	for name := range keepTr {
		if _, ok := r.transforms[name]; !ok {
			return nil, fmt.Errorf("%w: transform %q", ErrUnknownPrimitive, name)
		}
	}
	for _, name := range r.aggOrder {
		if aggregations == nil || keepAgg[name] {
			sub.aggregations[name] = r.aggregations[name]
			sub.aggOrder = append(sub.aggOrder, name)
		}
	}
	for _, name := range r.trOrder {
		if transforms == nil || keepTr[name] {
			sub.transforms[name] = r.transforms[name]
			sub.trOrder = append(sub.trOrder, name)
		}
	}
	return sub, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// DefaultPrimitives returns a registry holding the builtin primitive set.
func DefaultPrimitives() *PrimitiveRegistry {
	r := NewPrimitiveRegistry()
	for _, p := range builtinAggregations() {
		if err := r.RegisterAggregation(p); err != nil {
			panic(err) // builtin names are unique by construction
		}
	}
	for _, p := range builtinTransforms() {
		if err := r.RegisterTransform(p); err != nil {
			panic(err)
		}
	}
	return r
}
