package featuremill

// EntitySet is the full collection of tables plus the relationships between
// them. It is assembled once by a data-loading collaborator and treated as
// read-only input for the duration of a synthesis and calculation run.
type EntitySet struct {
	// Name identifies the entity set in exports and logs.
	Name string

	tables map[string]*Table
	order  []string

	relationships []Relationship
	childRels     map[string][]Relationship
	parentRels    map[string][]Relationship
}

// NewEntitySet creates an empty entity set.
func NewEntitySet(name string) *EntitySet {
	return &EntitySet{
		Name:       name,
		tables:     make(map[string]*Table),
		childRels:  make(map[string][]Relationship),
		parentRels: make(map[string][]Relationship),
	}
}

// Table returns the named table.
func (es *EntitySet) Table(name string) (*Table, bool) {
	t, ok := es.tables[name]
	return t, ok
}

// Tables returns all tables in declaration order.
func (es *EntitySet) Tables() []*Table {
	out := make([]*Table, 0, len(es.order))
	for _, name := range es.order {
		out = append(out, es.tables[name])
	}
	return out
}

// Relationships returns all relationships in insertion order.
func (es *EntitySet) Relationships() []Relationship {
	out := make([]Relationship, len(es.relationships))
	copy(out, es.relationships)
	return out
}
