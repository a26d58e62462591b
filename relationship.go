package featuremill

import "fmt"

// Relationship is a directed foreign-key link: one parent row owns many child
// rows whose foreign-key column holds the parent's primary key value.
type Relationship struct {
	ParentTable string `json:"parent_table"`
	ParentKey   string `json:"parent_key"`
	ChildTable  string `json:"child_table"`
	ChildFK     string `json:"child_fk"`
}

// String renders the relationship as parent.key -> child.fk.
func (r Relationship) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.ParentTable, r.ParentKey, r.ChildTable, r.ChildFK)
}

// identifierCompatible reports whether a column type may serve as a foreign
// key. Categorical and numeric columns are accepted because loaders often
// deliver key columns without an explicit ID override.
func identifierCompatible(t ColumnType) bool {
	return t == ColumnID || t == ColumnCategorical || t == ColumnNumeric
}

// AddRelationship links parentTable.parentKey to childTable.childFK.
//
// The insertion is rejected with a RelationshipError if parentKey is not the
// parent's primary key, the foreign-key column's type is not
// identifier-compatible, or the new edge would make a table its own
// transitive ancestor. A rejected insertion leaves the graph unchanged.
//
// Unmatched foreign-key values (children referencing no existing parent) are
// tolerated: they simply never contribute to any entity's valid slice.
func (es *EntitySet) AddRelationship(parentTable, parentKey, childTable, childFK string) error {
	parent, ok := es.tables[parentTable]
	if !ok {
		return newRelationshipError(parentTable, childTable, "parent table not declared")
	}
	child, ok := es.tables[childTable]
	if !ok {
		return newRelationshipError(parentTable, childTable, "child table not declared")
	}
	if parentKey != parent.PrimaryKey {
		return newRelationshipError(parentTable, childTable,
			fmt.Sprintf("parent key %q is not the primary key of %q", parentKey, parentTable))
	}
	ct, declared := child.Types[childFK]
	if !declared && child.NumRows() > 0 {
		return newRelationshipError(parentTable, childTable,
			fmt.Sprintf("foreign key column %q not present in %q", childFK, childTable))
	}
	if declared && !identifierCompatible(ct) {
		return newRelationshipError(parentTable, childTable,
			fmt.Sprintf("foreign key column %q has type %s, not identifier-compatible", childFK, ct))
	}

	rel := Relationship{ParentTable: parentTable, ParentKey: parentKey, ChildTable: childTable, ChildFK: childFK}
	for _, existing := range es.relationships {
		if existing == rel {
			return newRelationshipError(parentTable, childTable, "relationship already exists")
		}
	}

	// Cycle check before mutating: the edge parent -> child closes a cycle
	// exactly when parent is already reachable from child along child edges.
	if es.reachable(childTable, parentTable) {
		return newRelationshipError(parentTable, childTable, "relationship would create a cycle")
	}

	es.relationships = append(es.relationships, rel)
	es.childRels[parentTable] = append(es.childRels[parentTable], rel)
	es.parentRels[childTable] = append(es.parentRels[childTable], rel)
	return nil
}

// reachable reports whether to is reachable from from by following
// parent -> child edges. A table is considered reachable from itself.
func (es *EntitySet) reachable(from, to string) bool {
	if from == to {
		return true
	}
	visited := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		table := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[table] {
			continue
		}
		visited[table] = true
		for _, rel := range es.childRels[table] {
			if rel.ChildTable == to {
				return true
			}
			stack = append(stack, rel.ChildTable)
		}
	}
	return false
}

// Children returns the relationships in which the table is the parent, in
// insertion order.
func (es *EntitySet) Children(table string) []Relationship {
	rels := es.childRels[table]
	out := make([]Relationship, len(rels))
	copy(out, rels)
	return out
}

// Parents returns the relationships in which the table is the child, in
// insertion order.
func (es *EntitySet) Parents(table string) []Relationship {
	rels := es.parentRels[table]
	out := make([]Relationship, len(rels))
	copy(out, rels)
	return out
}

// Ancestors returns the names of all tables reachable from the given table
// by following child -> parent edges, in breadth-first order.
func (es *EntitySet) Ancestors(table string) []string {
	var out []string
	visited := map[string]bool{table: true}
	queue := []string{table}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, rel := range es.parentRels[current] {
			if visited[rel.ParentTable] {
				continue
			}
			visited[rel.ParentTable] = true
			out = append(out, rel.ParentTable)
			queue = append(queue, rel.ParentTable)
		}
	}
	return out
}

// longestPath returns the length of the longest acyclic relationship path
// from the table following parent -> child edges. Safe because cycles are
// rejected at insertion time.
func (es *EntitySet) longestPath(table string) int {
	best := 0
	for _, rel := range es.childRels[table] {
		if d := es.longestPath(rel.ChildTable) + 1; d > best {
			best = d
		}
	}
	return best
}
