package hcg

import (
	"fmt"
	"strings"
	"time"

	"github.com/c-daly/logos/internal/types"
)

// NodeSpec describes one node to create or upsert as part of a delta.
// ID is optional: when zero, an id with the kind's prefix is assigned before
// commit so that retries merge onto the same node.
type NodeSpec struct {
	Kind       types.NodeKind
	ID         types.ID
	Name       string
	Properties map[string]any
	Timestamp  time.Time // required for states
	StartTime  time.Time // required for processes
	Duration   time.Duration
}

// Delta is a candidate set of node and edge creations submitted as one atomic
// write: either the whole delta commits or none of it does.
type Delta struct {
	Nodes      []NodeSpec
	Edges      []types.CausalEdge
	Derivation types.Derivation
}

// AssignIDs fills in generated ids for nodes that have none. Called exactly
// once per write request, before validation, so a retried commit merges onto
// the same ids instead of minting fresh nodes.
func (d *Delta) AssignIDs() error {
	for i := range d.Nodes {
		spec := &d.Nodes[i]
		if !spec.Kind.IsValid() {
			return types.NewError(types.INVALID_QUERY,
				fmt.Sprintf("node %d has unknown kind %q", i, spec.Kind))
		}
		if spec.ID.IsZero() {
			spec.ID = types.NewID(spec.Kind)
			continue
		}
		if err := spec.ID.Validate(spec.Kind); err != nil {
			return err
		}
	}
	return nil
}

// IDs returns the node ids of the delta, in declaration order.
func (d *Delta) IDs() []types.ID {
	ids := make([]types.ID, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// ToNTriples serializes the delta as N-Triples for shape validation. Nodes
// become typed resources under NodeNamespace; edges are reified as
// hcg:Relationship resources so the shape set can constrain their type.
func (d *Delta) ToNTriples() string {
	var sb strings.Builder

	rdfType := "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	xsdDateTime := "http://www.w3.org/2001/XMLSchema#dateTime"

	for _, n := range d.Nodes {
		iri := NodeNamespace + n.ID.String()
		sb.WriteString(fmt.Sprintf("<%s> <%s> <%s%s> .\n", iri, rdfType, Namespace, n.Kind.Label()))
		sb.WriteString(fmt.Sprintf("<%s> <%sid> \"%s\" .\n", iri, Namespace, n.ID))
		if n.Name != "" {
			sb.WriteString(fmt.Sprintf("<%s> <%sname> \"%s\"^^<http://www.w3.org/2001/XMLSchema#string> .\n",
				iri, Namespace, escapeLiteral(n.Name)))
		}
		if d.Derivation != "" {
			sb.WriteString(fmt.Sprintf("<%s> <%sderivation> \"%s\" .\n", iri, Namespace, d.Derivation))
		}
		if !n.Timestamp.IsZero() {
			sb.WriteString(fmt.Sprintf("<%s> <%stimestamp> \"%s\"^^<%s> .\n",
				iri, Namespace, n.Timestamp.UTC().Format(time.RFC3339), xsdDateTime))
		}
		if !n.StartTime.IsZero() {
			sb.WriteString(fmt.Sprintf("<%s> <%sstartTime> \"%s\"^^<%s> .\n",
				iri, Namespace, n.StartTime.UTC().Format(time.RFC3339), xsdDateTime))
		}
		for key, value := range n.Properties {
			sb.WriteString(fmt.Sprintf("<%s> <%s%s> %s .\n", iri, Namespace, encodePredicateKey(key), formatLiteral(value)))
		}
	}

	for i, e := range d.Edges {
		iri := fmt.Sprintf("%srel-%d", NodeNamespace, i)
		sb.WriteString(fmt.Sprintf("<%s> <%s> <%sRelationship> .\n", iri, rdfType, Namespace))
		sb.WriteString(fmt.Sprintf("<%s> <%ssource> <%s%s> .\n", iri, Namespace, NodeNamespace, e.SourceID))
		sb.WriteString(fmt.Sprintf("<%s> <%starget> <%s%s> .\n", iri, Namespace, NodeNamespace, e.TargetID))
		sb.WriteString(fmt.Sprintf("<%s> <%srelationType> \"%s\" .\n", iri, Namespace, e.Type))
	}

	return sb.String()
}

// formatLiteral renders a property value as a typed N-Triples literal.
func formatLiteral(value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("\"%s\"^^<http://www.w3.org/2001/XMLSchema#string>", escapeLiteral(v))
	case int, int32, int64:
		return fmt.Sprintf("\"%d\"^^<http://www.w3.org/2001/XMLSchema#integer>", v)
	case float32, float64:
		return fmt.Sprintf("\"%v\"^^<http://www.w3.org/2001/XMLSchema#decimal>", v)
	case bool:
		return fmt.Sprintf("\"%t\"^^<http://www.w3.org/2001/XMLSchema#boolean>", v)
	case time.Time:
		return fmt.Sprintf("\"%s\"^^<http://www.w3.org/2001/XMLSchema#dateTime>",
			v.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("\"%s\"", escapeLiteral(fmt.Sprintf("%v", v)))
	}
}

// encodePredicateKey percent-encodes a property key so it always forms a
// parseable predicate IRI. Keys with spaces, angle brackets, or other bytes
// outside the unreserved set would otherwise break the N-Triples stream.
func encodePredicateKey(key string) string {
	var sb strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

// escapeLiteral escapes special characters for N-Triples literals.
func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
