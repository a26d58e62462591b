package featuremill

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CutoffTimeEntry asks for one feature-matrix row: the features of EntityID
// computed using only facts known strictly before CutoffTime. Entries are
// supplied wholesale before computation and are immutable during a run.
type CutoffTimeEntry struct {
	// EntityID references the target table's primary key.
	EntityID any

	// CutoffTime is the instant before which data may be used. A row
	// timestamped exactly at the cutoff is excluded.
	CutoffTime time.Time

	// Label is an optional label value copied through to the output row.
	Label any
}

// CalcOptions configures a Calculator.
type CalcOptions struct {
	// Primitives resolves the primitive names referenced by the feature
	// definitions. Default: DefaultPrimitives(). Definitions synthesized
	// from a custom registry need that same registry here.
	Primitives *PrimitiveRegistry

	// Workers is the number of concurrent per-entity workers. Default: 1.
	// Entity computations are independent and side-effect-free, so any
	// worker count yields the same matrix in the same order.
	Workers int

	// Logger receives row-scoped warnings (missing entities).
	// Default: slog.Default().
	Logger *slog.Logger

	// OnRow, if set, is invoked after each output row is finalized with the
	// row's position in the input sequence. With Workers > 1 it is called
	// concurrently and must be safe for concurrent use.
	OnRow func(i int, row MatrixRow)
}

// featurePlan is a resolved feature definition ready for evaluation.
type featurePlan struct {
	def       FeatureDefinition
	transform TransformPrimitive
	agg       AggregationPrimitive
	timed     TimeAwareAggregation
}

// Calculator evaluates a feature-definition list against an entity set for
// any sequence of cutoff-time entries. The entity set and definitions are
// shared read-only inputs; a Calculator is safe for concurrent use once
// constructed.
type Calculator struct {
	es     *EntitySet
	target *Table
	plans  []featurePlan
	opts   CalcOptions

	// fkIndex maps each relationship to child row positions keyed by the
	// normalized foreign-key value. Built once at construction.
	fkIndex map[Relationship]map[any][]int
}

// NewCalculator builds a calculator for the given target table and feature
// definitions. It fails when the target is unknown, a definition references
// a missing table or column, or a primitive cannot be resolved.
func NewCalculator(es *EntitySet, target string, defs []FeatureDefinition, opts CalcOptions) (*Calculator, error) {
	tt, ok := es.Table(target)
	if !ok {
		return nil, &SynthesisError{Target: target, Message: "target table not declared"}
	}
	reg := opts.Primitives
	if reg == nil {
		reg = DefaultPrimitives()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Calculator{
		es:      es,
		target:  tt,
		opts:    opts,
		fkIndex: make(map[Relationship]map[any][]int),
	}

	for _, def := range defs {
		table, ok := es.Table(def.Table)
		if !ok {
			return nil, fmt.Errorf("feature %q: table %q not declared", def.Name, def.Table)
		}
		if def.Column != "" {
			if _, ok := table.Types[def.Column]; !ok {
				return nil, fmt.Errorf("feature %q: column %q not present in table %q", def.Name, def.Column, def.Table)
			}
		}
		plan := featurePlan{def: def}
		switch def.Kind {
		case KindTransform:
			tr, ok := reg.Transform(def.Primitive)
			if !ok {
				return nil, fmt.Errorf("feature %q: %w: transform %q", def.Name, ErrUnknownPrimitive, def.Primitive)
			}
			if def.Table != target {
				return nil, fmt.Errorf("feature %q: transform features must read the target table", def.Name)
			}
			plan.transform = tr
		case KindAggregation:
			agg, ok := reg.Aggregation(def.Primitive)
			if !ok {
				return nil, fmt.Errorf("feature %q: %w: aggregation %q", def.Name, ErrUnknownPrimitive, def.Primitive)
			}
			plan.agg = agg
			if timed, ok := agg.(TimeAwareAggregation); ok {
				if table.TimeIndex == "" {
					return nil, fmt.Errorf("feature %q: primitive %q requires a time index on table %q", def.Name, def.Primitive, def.Table)
				}
				plan.timed = timed
			}
			if len(def.Path) == 0 {
				return nil, fmt.Errorf("feature %q: aggregation features need a relationship path", def.Name)
			}
			for _, rel := range def.Path {
				if err := c.buildFKIndex(rel); err != nil {
					return nil, fmt.Errorf("feature %q: %w", def.Name, err)
				}
			}
		default:
			return nil, fmt.Errorf("feature %q: unknown primitive kind %q", def.Name, def.Kind)
		}
		c.plans = append(c.plans, plan)
	}
	return c, nil
}

// buildFKIndex materializes the child-row index for a relationship.
func (c *Calculator) buildFKIndex(rel Relationship) error {
	if _, done := c.fkIndex[rel]; done {
		return nil
	}
	child, ok := c.es.Table(rel.ChildTable)
	if !ok {
		return fmt.Errorf("table %q not declared", rel.ChildTable)
	}
	idx := make(map[any][]int)
	for i, row := range child.Rows {
		v, ok := row[rel.ChildFK]
		if !ok || v == nil {
			continue
		}
		key := normalizeKey(v)
		idx[key] = append(idx[key], i)
	}
	c.fkIndex[rel] = idx
	return nil
}

// Columns returns the output column names in matrix order.
func (c *Calculator) Columns() []string {
	out := make([]string, len(c.plans))
	for i, p := range c.plans {
		out[i] = p.def.Name
	}
	return out
}

// Run computes one feature-matrix row per entry, in entry order. An entity
// missing from the target table produces an all-null row and a logged
// warning; the run continues. Cancelling the context stops the submission of
// further entities and returns the context's error; rows already in flight
// are finished but discarded.
func (c *Calculator) Run(ctx context.Context, entries []CutoffTimeEntry) (*FeatureMatrix, error) {
	hasLabel := false
	for _, e := range entries {
		if e.Label != nil {
			hasLabel = true
			break
		}
	}
	matrix := &FeatureMatrix{
		RunID:    uuid.NewString(),
		Target:   c.target.Name,
		Columns:  c.Columns(),
		HasLabel: hasLabel,
		Rows:     make([]MatrixRow, len(entries)),
	}

	workers := c.opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers == 1 {
		for i, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			matrix.Rows[i] = c.computeRow(entry)
			if c.opts.OnRow != nil {
				c.opts.OnRow(i, matrix.Rows[i])
			}
		}
		return matrix, nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				matrix.Rows[i] = c.computeRow(entries[i])
				if c.opts.OnRow != nil {
					c.opts.OnRow(i, matrix.Rows[i])
				}
			}
		}()
	}
submit:
	for i := range entries {
		select {
		case <-ctx.Done():
			break submit
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return matrix, nil
}

// computeRow evaluates every feature plan for one entry. Each invocation
// reads only shared immutable state and writes only its own output row.
func (c *Calculator) computeRow(entry CutoffTimeEntry) MatrixRow {
	out := MatrixRow{
		EntityID:   entry.EntityID,
		CutoffTime: entry.CutoffTime,
		Values:     make([]any, len(c.plans)),
		Label:      entry.Label,
	}
	key := normalizeKey(entry.EntityID)
	targetRow, found := c.target.rowByKey(key)
	if !found {
		lerr := &LookupError{Table: c.target.Name, EntityID: entry.EntityID}
		c.opts.Logger.Warn("entity not found, emitting null row",
			"table", c.target.Name, "entity_id", entry.EntityID, "err", lerr)
		return out
	}

	// Valid slices are shared across features with the same path.
	slices := make(map[string][]int)
	for i, plan := range c.plans {
		switch plan.def.Kind {
		case KindTransform:
			out.Values[i] = plan.transform.Transform(targetRow[plan.def.Column])
		case KindAggregation:
			pk := pathKey(plan.def.Path)
			idxs, cached := slices[pk]
			if !cached {
				idxs = c.validSlice(plan.def.Path, key, entry.CutoffTime)
				slices[pk] = idxs
			}
			table, _ := c.es.Table(plan.def.Table)
			values := make([]any, len(idxs))
			if plan.def.Column != "" {
				for j, ri := range idxs {
					values[j] = table.Rows[ri][plan.def.Column]
				}
			}
			if plan.timed != nil {
				times := make([]time.Time, len(idxs))
				for j, ri := range idxs {
					if ts, ok := asTime(table.Rows[ri][table.TimeIndex]); ok {
						times[j] = ts
					}
				}
				out.Values[i] = plan.timed.AggregateWithTimes(values, times)
			} else {
				out.Values[i] = plan.agg.Aggregate(values)
			}
		}
	}
	return out
}

// validSlice resolves a relationship path to the terminal table's row
// positions whose foreign-key chain leads back to the entity and whose time
// index (at every hop) is strictly before the cutoff. Tables without a time
// index are considered always known; a null timestamp in a timed table
// excludes the row, since it cannot be proven known before the cutoff.
func (c *Calculator) validSlice(path []Relationship, entityKey any, cutoff time.Time) []int {
	parentKeys := map[any]struct{}{entityKey: {}}
	var idxs []int
	for _, rel := range path {
		child, _ := c.es.Table(rel.ChildTable)
		index := c.fkIndex[rel]
		idxs = idxs[:0]
		for key := range parentKeys {
			idxs = append(idxs, index[key]...)
		}
		sort.Ints(idxs)

		kept := idxs[:0]
		nextKeys := make(map[any]struct{})
		for _, ri := range idxs {
			row := child.Rows[ri]
			if child.TimeIndex != "" {
				ts, ok := asTime(row[child.TimeIndex])
				if !ok || !ts.Before(cutoff) {
					continue
				}
			}
			kept = append(kept, ri)
			nextKeys[normalizeKey(row[child.PrimaryKey])] = struct{}{}
		}
		idxs = kept
		parentKeys = nextKeys
	}
	return idxs
}
