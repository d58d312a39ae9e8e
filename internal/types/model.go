package types

import (
	"time"
)

// RelationType is a typed relationship name drawn from the closed HCG
// relationship vocabulary. Membership is enforced by the vocabulary registry
// at write time; the constants below cover the core vocabulary.
type RelationType string

const (
	RelationIsA         RelationType = "IS_A"
	RelationHasState    RelationType = "HAS_STATE"
	RelationCauses      RelationType = "CAUSES"
	RelationPrecedes    RelationType = "PRECEDES"
	RelationPartOf      RelationType = "PART_OF"
	RelationDerivedFrom RelationType = "DERIVED_FROM"
	RelationRelatedTo   RelationType = "RELATED_TO"
)

// String returns the string representation of RelationType.
func (r RelationType) String() string {
	return string(r)
}

// Derivation records the provenance of a write: which kind of caller produced it.
type Derivation string

const (
	DerivationObserved  Derivation = "observed"  // perception pipeline
	DerivationReflected Derivation = "reflected" // persona/reflection job
	DerivationAsserted  Derivation = "asserted"  // planner or direct API call
)

// IsValid checks if the Derivation is a valid value.
func (d Derivation) IsValid() bool {
	switch d {
	case DerivationObserved, DerivationReflected, DerivationAsserted:
		return true
	default:
		return false
	}
}

// Entity is a concrete object or agent in the HCG.
// Properties carries caller-supplied free-form attributes.
type Entity struct {
	ID         ID             `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Derivation Derivation     `json:"derivation,omitempty"`
	Concepts   []string       `json:"concepts,omitempty"` // IS_A memberships by concept name
	CreatedAt  time.Time      `json:"created_at"`
}

// Concept is an abstract category. Names are unique across all concepts;
// uniqueness is enforced at write time.
type Concept struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// State is an append-only timestamped snapshot of an entity's properties.
// States are never mutated in place; a new State node is created per observation.
type State struct {
	ID        ID             `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Process is a causal transformation between states.
type Process struct {
	ID        ID            `json:"id"`
	Name      string        `json:"name,omitempty"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// CausalEdge is a typed relationship between two existing nodes.
type CausalEdge struct {
	SourceID ID           `json:"source_id"`
	TargetID ID           `json:"target_id"`
	Type     RelationType `json:"type"`
}

// GraphSnapshot is a bounded subgraph for visualization and diagnostics.
type GraphSnapshot struct {
	Nodes []SnapshotNode `json:"nodes"`
	Edges []CausalEdge   `json:"edges"`
}

// SnapshotNode is a node as it appears in a snapshot: id, label and the
// properties that were stored on it.
type SnapshotNode struct {
	ID         ID             `json:"id"`
	Label      string         `json:"label"`
	Name       string         `json:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Severity grades a shape violation.
type Severity string

const (
	SeverityViolation Severity = "violation"
	SeverityWarning   Severity = "warning"
)

// Violation describes a single failed constraint in a validation report.
type Violation struct {
	FocusNode  string   `json:"focus_node"`
	Constraint string   `json:"constraint"`
	Path       string   `json:"path,omitempty"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
}

// ValidationReport is the outcome of a shape check over a candidate delta.
// Reports are immutable once produced and are never persisted.
type ValidationReport struct {
	Conforms   bool        `json:"conforms"`
	Violations []Violation `json:"violations,omitempty"`
}

// ConformingReport returns a report with no violations.
func ConformingReport() ValidationReport {
	return ValidationReport{Conforms: true}
}
