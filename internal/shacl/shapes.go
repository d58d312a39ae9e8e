// Package shacl validates serialized graph deltas against a declared shape
// set before they are allowed anywhere near the backend. The shape set is
// loaded once at startup and treated as immutable for the process lifetime;
// changing it requires an explicit Reload.
package shacl

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/deiu/rdf2go"

	"github.com/c-daly/logos/internal/types"
)

// Well-known vocabularies used by the shapes document.
const (
	nsRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	nsOWL  = "http://www.w3.org/2002/07/owl#"
	nsXSD  = "http://www.w3.org/2001/XMLSchema#"
	nsSH   = "http://www.w3.org/ns/shacl#"
)

// PropertyShape is one property constraint block on a node shape: the
// predicate it constrains plus the checks to apply to its values.
type PropertyShape struct {
	Path      string
	MinCount  *int
	MaxCount  *int
	Datatype  string
	Pattern   *regexp.Regexp
	In        []string
	Message   string
	Severity  types.Severity
}

// NodeShape declares constraints over all nodes of a target class.
type NodeShape struct {
	IRI         string
	TargetClass string
	Properties  []PropertyShape
}

// ShapeSet is an immutable parsed shapes document.
type ShapeSet struct {
	Shapes []NodeShape

	// ontology triples (subClassOf, subPropertyOf, inverseOf) retained for
	// inference during validation.
	ontology []triple
}

// Registry holds the process-wide shape set. Reads are lock-free in the
// common case; Reload swaps the set atomically and is the only mutation.
type Registry struct {
	mu   sync.RWMutex
	set  *ShapeSet
	path string
}

// LoadRegistry parses the Turtle shapes document at path and returns a
// registry bound to it for later explicit reloads.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.WrapError(types.SHAPE_LOAD_FAILED,
			fmt.Sprintf("cannot open shapes document %s", path), err)
	}
	defer f.Close()

	set, err := ParseShapes(f)
	if err != nil {
		return nil, err
	}
	return &Registry{set: set, path: path}, nil
}

// NewRegistry wraps an already parsed shape set; used by tests and embedded
// shape documents.
func NewRegistry(set *ShapeSet) *Registry {
	return &Registry{set: set}
}

// Shapes returns the current shape set.
func (r *Registry) Shapes() *ShapeSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set
}

// Reload re-reads the shapes document the registry was loaded from. This is
// the only way the shape set changes after startup; it never happens
// implicitly on file change.
func (r *Registry) Reload() error {
	if r.path == "" {
		return types.NewError(types.SHAPE_LOAD_FAILED,
			"registry was not loaded from a file; nothing to reload")
	}

	f, err := os.Open(r.path)
	if err != nil {
		return types.WrapError(types.SHAPE_LOAD_FAILED,
			fmt.Sprintf("cannot open shapes document %s", r.path), err)
	}
	defer f.Close()

	set, err := ParseShapes(f)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}

// ParseShapes parses a Turtle shapes document into a ShapeSet.
func ParseShapes(r io.Reader) (*ShapeSet, error) {
	g := rdf2go.NewGraph(nsSH)
	if err := g.Parse(r, "text/turtle"); err != nil {
		return nil, types.WrapError(types.SHAPE_LOAD_FAILED,
			"shapes document is not valid turtle", err)
	}

	set := &ShapeSet{}

	for _, t := range g.All(nil, rdf2go.NewResource(nsRDF+"type"), rdf2go.NewResource(nsSH+"NodeShape")) {
		shape, err := parseNodeShape(g, t.Subject)
		if err != nil {
			return nil, err
		}
		set.Shapes = append(set.Shapes, shape)
	}

	// Retain the schema triples the inference engine understands.
	for _, pred := range []string{nsRDFS + "subClassOf", nsRDFS + "subPropertyOf", nsOWL + "inverseOf"} {
		for _, t := range g.All(nil, rdf2go.NewResource(pred), nil) {
			set.ontology = append(set.ontology, tripleFromRDF(t))
		}
	}

	return set, nil
}

func parseNodeShape(g *rdf2go.Graph, subject rdf2go.Term) (NodeShape, error) {
	shape := NodeShape{IRI: termValue(subject)}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"targetClass"), nil); t != nil {
		shape.TargetClass = termValue(t.Object)
	}
	if shape.TargetClass == "" {
		return NodeShape{}, types.NewError(types.SHAPE_LOAD_FAILED,
			fmt.Sprintf("node shape %s has no sh:targetClass", shape.IRI))
	}

	for _, pt := range g.All(subject, rdf2go.NewResource(nsSH+"property"), nil) {
		prop, err := parsePropertyShape(g, pt.Object)
		if err != nil {
			return NodeShape{}, err
		}
		shape.Properties = append(shape.Properties, prop)
	}

	return shape, nil
}

func parsePropertyShape(g *rdf2go.Graph, subject rdf2go.Term) (PropertyShape, error) {
	prop := PropertyShape{Severity: types.SeverityViolation}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"path"), nil); t != nil {
		prop.Path = termValue(t.Object)
	}
	if prop.Path == "" {
		return PropertyShape{}, types.NewError(types.SHAPE_LOAD_FAILED,
			"property shape has no sh:path")
	}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"minCount"), nil); t != nil {
		n, err := strconv.Atoi(termValue(t.Object))
		if err != nil {
			return PropertyShape{}, types.WrapError(types.SHAPE_LOAD_FAILED,
				fmt.Sprintf("sh:minCount on %s is not an integer", prop.Path), err)
		}
		prop.MinCount = &n
	}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"maxCount"), nil); t != nil {
		n, err := strconv.Atoi(termValue(t.Object))
		if err != nil {
			return PropertyShape{}, types.WrapError(types.SHAPE_LOAD_FAILED,
				fmt.Sprintf("sh:maxCount on %s is not an integer", prop.Path), err)
		}
		prop.MaxCount = &n
	}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"datatype"), nil); t != nil {
		prop.Datatype = termValue(t.Object)
	}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"pattern"), nil); t != nil {
		re, err := regexp.Compile(termValue(t.Object))
		if err != nil {
			return PropertyShape{}, types.WrapError(types.SHAPE_LOAD_FAILED,
				fmt.Sprintf("sh:pattern on %s is not a valid expression", prop.Path), err)
		}
		prop.Pattern = re
	}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"in"), nil); t != nil {
		prop.In = parseRDFList(g, t.Object)
	}

	if t := g.One(subject, rdf2go.NewResource(nsSH+"message"), nil); t != nil {
		prop.Message = termValue(t.Object)
	}

	return prop, nil
}

// parseRDFList walks an rdf:first/rdf:rest list and collects the member values.
func parseRDFList(g *rdf2go.Graph, head rdf2go.Term) []string {
	var values []string
	node := head
	for node != nil && termValue(node) != nsRDF+"nil" {
		first := g.One(node, rdf2go.NewResource(nsRDF+"first"), nil)
		if first == nil {
			break
		}
		values = append(values, termValue(first.Object))

		rest := g.One(node, rdf2go.NewResource(nsRDF+"rest"), nil)
		if rest == nil {
			break
		}
		node = rest.Object
	}
	return values
}

// termValue extracts the bare value of a term: IRI for resources, value for
// literals, "_:id" for blank nodes.
func termValue(t rdf2go.Term) string {
	switch v := t.(type) {
	case *rdf2go.Resource:
		return v.URI
	case *rdf2go.Literal:
		return v.Value
	case *rdf2go.BlankNode:
		return "_:" + v.ID
	default:
		return strings.TrimSpace(t.RawValue())
	}
}
