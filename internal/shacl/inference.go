package shacl

import (
	"fmt"

	"github.com/deiu/rdf2go"

	"github.com/c-daly/logos/internal/types"
)

// InferenceMode controls which derived facts are materialized into the data
// graph before constraints are checked.
type InferenceMode string

const (
	InferenceNone InferenceMode = "none"
	InferenceRDFS InferenceMode = "rdfs"
	InferenceOWL  InferenceMode = "owl"
	InferenceBoth InferenceMode = "both"
)

// IsValid checks if the InferenceMode is a valid value.
func (m InferenceMode) IsValid() bool {
	switch m {
	case InferenceNone, InferenceRDFS, InferenceOWL, InferenceBoth:
		return true
	default:
		return false
	}
}

// ParseInferenceMode parses a string into an InferenceMode.
func ParseInferenceMode(s string) (InferenceMode, error) {
	m := InferenceMode(s)
	if !m.IsValid() {
		return "", types.NewError(types.INVALID_QUERY,
			fmt.Sprintf("unknown inference mode: %q", s))
	}
	return m, nil
}

type termKind int

const (
	kindIRI termKind = iota
	kindLiteral
	kindBlank
)

// term is a resolved RDF term: an IRI, a literal with optional datatype, or a
// blank node.
type term struct {
	value    string
	kind     termKind
	datatype string
}

func (t term) key() string {
	return fmt.Sprintf("%d|%s|%s", t.kind, t.value, t.datatype)
}

// triple is one data or ontology statement.
type triple struct {
	subj string
	pred string
	obj  term
}

func (t triple) key() string {
	return t.subj + "|" + t.pred + "|" + t.obj.key()
}

// tripleFromRDF converts an rdf2go triple into the internal form.
func tripleFromRDF(t *rdf2go.Triple) triple {
	return triple{
		subj: termValue(t.Subject),
		pred: termValue(t.Predicate),
		obj:  termFromRDF(t.Object),
	}
}

func termFromRDF(t rdf2go.Term) term {
	switch v := t.(type) {
	case *rdf2go.Resource:
		return term{value: v.URI, kind: kindIRI}
	case *rdf2go.Literal:
		dt := ""
		if v.Datatype != nil {
			dt = termValue(v.Datatype)
		}
		return term{value: v.Value, kind: kindLiteral, datatype: dt}
	case *rdf2go.BlankNode:
		return term{value: "_:" + v.ID, kind: kindBlank}
	default:
		return term{value: t.RawValue(), kind: kindLiteral}
	}
}

// materialize forward-chains the selected rule set over data plus ontology
// until fixpoint and returns the expanded data graph. The input slices are
// not modified.
//
// RDFS rules: class membership propagates up rdfs:subClassOf; statements
// propagate up rdfs:subPropertyOf. OWL rules: owl:sameAs is symmetric and
// transitive and statements are copied between equivalent nodes;
// owl:inverseOf mirrors statements across inverse property pairs.
func materialize(data []triple, ontology []triple, mode InferenceMode) []triple {
	if mode == InferenceNone || mode == "" {
		return data
	}

	rdfs := mode == InferenceRDFS || mode == InferenceBoth
	owl := mode == InferenceOWL || mode == InferenceBoth

	seen := make(map[string]bool, len(data))
	var out []triple
	add := func(t triple) bool {
		k := t.key()
		if seen[k] {
			return false
		}
		seen[k] = true
		out = append(out, t)
		return true
	}
	for _, t := range data {
		add(t)
	}

	// Schema statements may live in either graph.
	subClass := map[string][]string{}
	subProp := map[string][]string{}
	inverse := map[string][]string{}
	for _, src := range [][]triple{ontology, data} {
		for _, t := range src {
			switch t.pred {
			case nsRDFS + "subClassOf":
				subClass[t.subj] = append(subClass[t.subj], t.obj.value)
			case nsRDFS + "subPropertyOf":
				subProp[t.subj] = append(subProp[t.subj], t.obj.value)
			case nsOWL + "inverseOf":
				inverse[t.subj] = append(inverse[t.subj], t.obj.value)
				inverse[t.obj.value] = append(inverse[t.obj.value], t.subj)
			}
		}
	}

	for changed := true; changed; {
		changed = false
		snapshot := out

		for _, t := range snapshot {
			if rdfs {
				if t.pred == nsRDF+"type" {
					for _, super := range subClass[t.obj.value] {
						if add(triple{t.subj, nsRDF + "type", term{value: super, kind: kindIRI}}) {
							changed = true
						}
					}
				}
				for _, super := range subProp[t.pred] {
					if add(triple{t.subj, super, t.obj}) {
						changed = true
					}
				}
			}

			if owl {
				if t.pred == nsOWL+"sameAs" && t.obj.kind != kindLiteral {
					if add(triple{t.obj.value, nsOWL + "sameAs", term{value: t.subj, kind: kindIRI}}) {
						changed = true
					}
				}
				for _, inv := range inverse[t.pred] {
					if t.obj.kind != kindLiteral {
						if add(triple{t.obj.value, inv, term{value: t.subj, kind: kindIRI}}) {
							changed = true
						}
					}
				}
			}
		}

		if owl {
			// Copy statements between sameAs-equivalent subjects.
			sames := map[string][]string{}
			for _, t := range out {
				if t.pred == nsOWL+"sameAs" && t.obj.kind != kindLiteral {
					sames[t.subj] = append(sames[t.subj], t.obj.value)
				}
			}
			for _, t := range out {
				if t.pred == nsOWL+"sameAs" {
					continue
				}
				for _, alias := range sames[t.subj] {
					if add(triple{alias, t.pred, t.obj}) {
						changed = true
					}
				}
			}
		}
	}

	return out
}
