package featuremill

import (
	"fmt"
	"log/slog"
	"strings"
)

// PrimitiveKind distinguishes the two primitive families in exported
// feature definitions.
type PrimitiveKind string

const (
	// KindTransform marks a row-local transform feature.
	KindTransform PrimitiveKind = "transform"
	// KindAggregation marks an aggregation feature over a relationship path.
	KindAggregation PrimitiveKind = "aggregation"
)

// FeatureDefinition specifies one derived column of the feature matrix,
// independent of any specific entity. Definitions are created once per run by
// Synthesize, are immutable afterwards, and can be exported and re-imported
// so a trained model's feature set is reproducible against new entities.
type FeatureDefinition struct {
	// Name is the deterministic feature name, e.g. MEAN(transactions.amount).
	Name string `json:"name"`

	// Primitive is the primitive identifier, e.g. "mean".
	Primitive string `json:"primitive"`

	// Kind is the primitive family.
	Kind PrimitiveKind `json:"kind"`

	// Table is the table the primitive reads from. For transforms this is
	// the target table.
	Table string `json:"table"`

	// Column is the input column, empty for column-less aggregations (count).
	Column string `json:"column,omitempty"`

	// Path is the relationship chain from the target table to Table. Empty
	// for depth-0 transform features.
	Path []Relationship `json:"path,omitempty"`

	// Output is the semantic type of the feature value.
	Output ColumnType `json:"output"`
}

// Depth returns the number of relationship hops from the target table.
func (d FeatureDefinition) Depth() int {
	return len(d.Path)
}

// SynthesisOptions configures feature enumeration.
type SynthesisOptions struct {
	// MaxDepth is the maximum number of relationship hops to traverse.
	// Default: 2. A depth beyond the longest acyclic path from the target is
	// clamped with a warning rather than failing.
	MaxDepth int

	// Primitives is the primitive set to enumerate. Default: DefaultPrimitives().
	Primitives *PrimitiveRegistry

	// Logger receives the depth-clamp warning. Default: slog.Default().
	Logger *slog.Logger
}

// Synthesize enumerates feature definitions for the target table by
// breadth-first traversal of the relationship graph.
//
// Depth-0 transform features on the target table are always included. For
// every table reached by 1..MaxDepth forward hops, one row-count feature and
// one feature per compatible (aggregation, column) pair are emitted.
// Identical (primitive, path, column) combinations are deduplicated; distinct
// equal-length paths to the same table (diamond schemas) are both kept,
// disambiguated by the foreign-key column in the name.
//
// Synthesis is a pure function of its inputs: rerunning it over the same
// entity set and options yields byte-identical names in identical order.
func Synthesize(es *EntitySet, target string, opts SynthesisOptions) ([]FeatureDefinition, error) {
	tt, ok := es.Table(target)
	if !ok {
		return nil, &SynthesisError{Target: target, Message: "target table not declared"}
	}
	reg := opts.Primitives
	if reg == nil {
		reg = DefaultPrimitives()
	}
	if len(reg.aggOrder) == 0 && len(reg.trOrder) == 0 {
		return nil, &SynthesisError{Target: target, Message: "primitive set is empty"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if longest := es.longestPath(target); maxDepth > longest {
		logger.Warn("max_depth exceeds longest relationship path, clamping",
			"target", target, "max_depth", maxDepth, "longest_path", longest)
		maxDepth = longest
	}

	var defs []FeatureDefinition
	dedup := make(map[string]bool)
	emit := func(d FeatureDefinition) {
		key := string(d.Kind) + "|" + d.Primitive + "|" + pathKey(d.Path) + "|" + d.Column
		if dedup[key] {
			return
		}
		dedup[key] = true
		defs = append(defs, d)
	}

	// Depth 0: transforms on the target table's own columns.
	for _, tr := range reg.Transforms() {
		for _, col := range eligibleColumns(es, tt, tr.InputTypes()) {
			emit(FeatureDefinition{
				Name:      featureName(tr.Name(), es, nil, col),
				Primitive: tr.Name(),
				Kind:      KindTransform,
				Table:     target,
				Column:    col,
				Output:    tr.OutputType(),
			})
		}
	}

	// Depth 1..maxDepth: aggregations over each reachable table, level by
	// level. Relationships are walked in insertion order, keeping the
	// enumeration stable across runs.
	type visit struct {
		table string
		path  []Relationship
	}
	frontier := []visit{{table: target}}
	for depth := 1; depth <= maxDepth; depth++ {
		var next []visit
		for _, v := range frontier {
			for _, rel := range es.Children(v.table) {
				path := append(append([]Relationship{}, v.path...), rel)
				child, _ := es.Table(rel.ChildTable)
				for _, agg := range reg.Aggregations() {
					if _, timed := agg.(TimeAwareAggregation); timed && child.TimeIndex == "" {
						continue
					}
					if len(agg.InputTypes()) == 0 {
						emit(FeatureDefinition{
							Name:      featureName(agg.Name(), es, path, ""),
							Primitive: agg.Name(),
							Kind:      KindAggregation,
							Table:     rel.ChildTable,
							Path:      path,
							Output:    agg.OutputType(),
						})
						continue
					}
					for _, col := range eligibleColumns(es, child, agg.InputTypes()) {
						emit(FeatureDefinition{
							Name:      featureName(agg.Name(), es, path, col),
							Primitive: agg.Name(),
							Kind:      KindAggregation,
							Table:     rel.ChildTable,
							Column:    col,
							Path:      path,
							Output:    agg.OutputType(),
						})
					}
				}
				next = append(next, visit{table: rel.ChildTable, path: path})
			}
		}
		frontier = next
	}

	return defs, nil
}

// eligibleColumns returns the columns of a table whose semantic type matches
// one of the accepted input types, in the table's deterministic column order.
// Structural columns never qualify: the primary key, the time index, and any
// column serving as a foreign key in a relationship.
func eligibleColumns(es *EntitySet, t *Table, accepted []ColumnType) []string {
	fks := make(map[string]bool)
	for _, rel := range es.Parents(t.Name) {
		fks[rel.ChildFK] = true
	}
	var out []string
	for _, col := range t.Columns {
		if col == t.PrimaryKey || col == t.TimeIndex || fks[col] {
			continue
		}
		ct := t.Types[col]
		if ct == ColumnID {
			continue
		}
		for _, a := range accepted {
			if ct == a {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// featureName renders the deterministic feature name, e.g.
// COUNT(transactions), MEAN(transactions.amount), or for a hop whose parent
// has several relationships to the same child, MEAN(orders[billing_id].total).
func featureName(primitive string, es *EntitySet, path []Relationship, column string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(primitive))
	b.WriteByte('(')
	for i, rel := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(pathSegment(es, rel))
	}
	if column != "" {
		if len(path) > 0 {
			b.WriteByte('.')
		}
		b.WriteString(column)
	}
	b.WriteByte(')')
	return b.String()
}

// pathSegment renders one hop. The foreign-key column is appended only when
// the parent has multiple relationships to the same child table, which is the
// only case where the bare table name would be ambiguous.
func pathSegment(es *EntitySet, rel Relationship) string {
	count := 0
	for _, sibling := range es.Children(rel.ParentTable) {
		if sibling.ChildTable == rel.ChildTable {
			count++
		}
	}
	if count > 1 {
		return fmt.Sprintf("%s[%s]", rel.ChildTable, rel.ChildFK)
	}
	return rel.ChildTable
}

// pathKey renders the full hop-by-hop path for deduplication, always
// including the key columns.
func pathKey(path []Relationship) string {
	parts := make([]string, len(path))
	for i, rel := range path {
		parts[i] = rel.String()
	}
	return strings.Join(parts, "/")
}
