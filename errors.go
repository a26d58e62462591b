package featuremill

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the featuremill package.
var (
	// ErrSchema is returned when a table declaration is invalid.
	ErrSchema = errors.New("schema validation failed")

	// ErrRelationship is returned when a relationship is invalid or would
	// create a cycle.
	ErrRelationship = errors.New("invalid relationship")

	// ErrSynthesis is returned when feature synthesis cannot start.
	ErrSynthesis = errors.New("feature synthesis failed")

	// ErrEntityNotFound is returned when an entity id is missing from the
	// target table. During calculation this condition is row-scoped and does
	// not abort the run.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrUnknownPrimitive is returned when a primitive name cannot be
	// resolved against the registry.
	ErrUnknownPrimitive = errors.New("unknown primitive")

	// ErrInvalidSnapshot is returned when snapshot data is malformed or was
	// written with an incompatible format version.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrClosed is returned when operations are attempted on a closed exporter.
	ErrClosed = errors.New("exporter is closed")
)

// SchemaError provides detailed information about a failed table declaration.
// Schema errors are structural: they abort a run before any computation.
type SchemaError struct {
	Table   string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema error in table %q, column %q: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("schema error in table %q: %s", e.Table, e.Message)
}

// Is implements error matching for SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func newSchemaError(table, column, message string) *SchemaError {
	return &SchemaError{Table: table, Column: column, Message: message}
}

// RelationshipError provides detailed information about a rejected
// relationship. A rejected insertion leaves the relationship graph unchanged.
type RelationshipError struct {
	Parent  string
	Child   string
	Message string
}

func (e *RelationshipError) Error() string {
	return fmt.Sprintf("relationship error %s -> %s: %s", e.Parent, e.Child, e.Message)
}

// Is implements error matching for RelationshipError.
func (e *RelationshipError) Is(target error) bool {
	return target == ErrRelationship
}

func newRelationshipError(parent, child, message string) *RelationshipError {
	return &RelationshipError{Parent: parent, Child: child, Message: message}
}

// SynthesisError reports a synthesis configuration problem that cannot be
// repaired by clamping (an unknown target table, an empty primitive set).
// Depth overruns are clamped with a warning instead, see Synthesize.
type SynthesisError struct {
	Target  string
	Message string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis error for target %q: %s", e.Target, e.Message)
}

// Is implements error matching for SynthesisError.
func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesis
}

// LookupError records a missing entity during calculation. It is never
// returned from Run; the calculator logs it and emits an all-null row.
type LookupError struct {
	Table    string
	EntityID any
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("entity %v not found in table %q", e.EntityID, e.Table)
}

// Is implements error matching for LookupError.
func (e *LookupError) Is(target error) bool {
	return target == ErrEntityNotFound
}
