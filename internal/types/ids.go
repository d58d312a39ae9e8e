package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// NodeKind identifies one of the four node categories stored in the HCG.
// Every node id carries its kind as a fixed prefix.
type NodeKind string

const (
	KindEntity  NodeKind = "entity"
	KindConcept NodeKind = "concept"
	KindState   NodeKind = "state"
	KindProcess NodeKind = "process"
)

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	return string(k)
}

// IsValid checks if the NodeKind is a valid value.
func (k NodeKind) IsValid() bool {
	switch k {
	case KindEntity, KindConcept, KindState, KindProcess:
		return true
	default:
		return false
	}
}

// Label returns the graph label for the kind (Entity, Concept, State, Process).
func (k NodeKind) Label() string {
	if len(k) == 0 {
		return ""
	}
	return strings.ToUpper(string(k[0])) + string(k[1:])
}

// ParseNodeKind parses a string into a NodeKind.
// Accepts both the lowercase prefix form ("entity") and the label form ("Entity").
func ParseNodeKind(s string) (NodeKind, error) {
	k := NodeKind(strings.ToLower(s))
	if !k.IsValid() {
		return "", NewError(INVALID_QUERY, fmt.Sprintf("unknown node kind: %q", s))
	}
	return k, nil
}

// idPattern matches a prefixed node id: kind prefix, dash, UUID suffix.
var idPattern = regexp.MustCompile(`^(entity|concept|state|process)-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ID is a prefixed node identifier, e.g. "entity-6f1c...".
// The prefix is fixed per node kind and ids are globally unique.
type ID string

// NewID generates a fresh ID for the given kind using a UUIDv4 suffix.
func NewID(kind NodeKind) ID {
	return ID(fmt.Sprintf("%s-%s", kind, uuid.New().String()))
}

// ParseID parses and validates a string as a prefixed node id.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", NewError(INVALID_ID, "id cannot be empty")
	}
	if !idPattern.MatchString(s) {
		return "", NewError(INVALID_ID, fmt.Sprintf("malformed node id: %q", s))
	}
	return ID(s), nil
}

// Kind returns the node kind encoded in the id prefix.
// Returns an empty kind if the id is malformed.
func (id ID) Kind() NodeKind {
	idx := strings.IndexByte(string(id), '-')
	if idx < 0 {
		return ""
	}
	k := NodeKind(id[:idx])
	if !k.IsValid() {
		return ""
	}
	return k
}

// Validate checks that the id is well formed and, when kind is non-empty,
// that the prefix matches the expected kind.
func (id ID) Validate(kind NodeKind) error {
	if _, err := ParseID(string(id)); err != nil {
		return err
	}
	if kind != "" && id.Kind() != kind {
		return NewError(INVALID_ID,
			fmt.Sprintf("id %q has prefix %q, expected %q", id, id.Kind(), kind))
	}
	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}
