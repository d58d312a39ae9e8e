package shacl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deiu/rdf2go"

	"github.com/c-daly/logos/internal/types"
)

// Format selects the deserializer for a submitted delta.
type Format string

const (
	FormatTurtle   Format = "turtle"
	FormatNTriples Format = "ntriples"
	FormatJSONLD   Format = "jsonld"
)

// mime maps the format onto the parser's content type. N-Triples is a strict
// subset of Turtle and shares its parser.
func (f Format) mime() (string, error) {
	switch f {
	case FormatTurtle, FormatNTriples:
		return "text/turtle", nil
	case FormatJSONLD:
		return "application/ld+json", nil
	default:
		return "", types.NewError(types.DELTA_PARSE_FAILED,
			fmt.Sprintf("unsupported delta format: %q", f))
	}
}

// ParseFormat parses a string into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if _, err := f.mime(); err != nil {
		return "", err
	}
	return f, nil
}

// Validator checks candidate graph deltas against the registry's shape set.
// Validation is a pure function of (data, shapes, inference mode): it never
// touches the graph backend.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator over the given shape registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate deserializes data per format, optionally materializes inferred
// facts, and evaluates every shape. When abortOnFirst is set the first
// violation short-circuits the walk; otherwise all violations are accumulated
// into a complete report.
//
// A parse failure is an error, not a report: the caller submitted something
// that is not a graph at all.
func (v *Validator) Validate(data string, format Format, mode InferenceMode, abortOnFirst bool) (types.ValidationReport, error) {
	mime, err := format.mime()
	if err != nil {
		return types.ValidationReport{}, err
	}
	if !mode.IsValid() {
		return types.ValidationReport{}, types.NewError(types.INVALID_QUERY,
			fmt.Sprintf("unknown inference mode: %q", mode))
	}

	g := rdf2go.NewGraph(nsSH)
	if err := g.Parse(strings.NewReader(data), mime); err != nil {
		return types.ValidationReport{}, types.WrapError(types.DELTA_PARSE_FAILED,
			fmt.Sprintf("delta is not valid %s", format), err)
	}

	var parsed []triple
	for t := range g.IterTriples() {
		parsed = append(parsed, tripleFromRDF(t))
	}

	set := v.registry.Shapes()
	graph := newIndexedGraph(materialize(parsed, set.ontology, mode))

	var violations []types.Violation
	for _, shape := range set.Shapes {
		for _, focus := range graph.instancesOf(shape.TargetClass) {
			for _, prop := range shape.Properties {
				found := checkProperty(graph, focus, prop)
				violations = append(violations, found...)
				if abortOnFirst && len(violations) > 0 {
					return types.ValidationReport{
						Conforms:   false,
						Violations: violations[:1],
					}, nil
				}
			}
		}
	}

	if len(violations) > 0 {
		return types.ValidationReport{Conforms: false, Violations: violations}, nil
	}
	return types.ConformingReport(), nil
}

// indexedGraph indexes triples by subject and predicate for constraint checks.
type indexedGraph struct {
	bySubjPred map[string]map[string][]term
	byType     map[string][]string
}

func newIndexedGraph(triples []triple) *indexedGraph {
	g := &indexedGraph{
		bySubjPred: make(map[string]map[string][]term),
		byType:     make(map[string][]string),
	}
	for _, t := range triples {
		preds, ok := g.bySubjPred[t.subj]
		if !ok {
			preds = make(map[string][]term)
			g.bySubjPred[t.subj] = preds
		}
		preds[t.pred] = append(preds[t.pred], t.obj)

		if t.pred == nsRDF+"type" {
			g.byType[t.obj.value] = append(g.byType[t.obj.value], t.subj)
		}
	}
	return g
}

// instancesOf returns all focus nodes typed with the given class IRI.
func (g *indexedGraph) instancesOf(class string) []string {
	return g.byType[class]
}

// values returns the objects of (subject, predicate).
func (g *indexedGraph) values(subject, predicate string) []term {
	if preds, ok := g.bySubjPred[subject]; ok {
		return preds[predicate]
	}
	return nil
}

// checkProperty evaluates one property shape against one focus node.
func checkProperty(g *indexedGraph, focus string, prop PropertyShape) []types.Violation {
	values := g.values(focus, prop.Path)
	var violations []types.Violation

	report := func(constraint, fallback string) {
		msg := prop.Message
		if msg == "" {
			msg = fallback
		}
		violations = append(violations, types.Violation{
			FocusNode:  focus,
			Constraint: constraint,
			Path:       prop.Path,
			Message:    msg,
			Severity:   prop.Severity,
		})
	}

	if prop.MinCount != nil && len(values) < *prop.MinCount {
		report("sh:minCount", fmt.Sprintf("expected at least %d value(s) for %s, found %d",
			*prop.MinCount, prop.Path, len(values)))
	}
	if prop.MaxCount != nil && len(values) > *prop.MaxCount {
		report("sh:maxCount", fmt.Sprintf("expected at most %d value(s) for %s, found %d",
			*prop.MaxCount, prop.Path, len(values)))
	}

	for _, val := range values {
		if prop.Datatype != "" {
			if ok, why := literalConforms(val, prop.Datatype); !ok {
				report("sh:datatype", why)
			}
		}
		if prop.Pattern != nil && !prop.Pattern.MatchString(val.value) {
			report("sh:pattern", fmt.Sprintf("value %q does not match pattern %s",
				val.value, prop.Pattern.String()))
		}
		if len(prop.In) > 0 && !contains(prop.In, val.value) {
			report("sh:in", fmt.Sprintf("value %q is not in the allowed set", val.value))
		}
	}

	return violations
}

// literalConforms checks that a term is a literal of the declared datatype
// with a well-formed lexical value. A bare string never passes for a typed
// datatype: a timestamp must be an xsd:dateTime literal, not "yesterday".
func literalConforms(val term, datatype string) (bool, string) {
	if val.kind != kindLiteral {
		return false, fmt.Sprintf("expected a %s literal, found %s", localName(datatype), val.value)
	}
	if val.datatype != datatype && !(val.datatype == "" && datatype == nsXSD+"string") {
		return false, fmt.Sprintf("value %q is typed %s, expected %s",
			val.value, localName(val.datatype), localName(datatype))
	}

	switch datatype {
	case nsXSD + "dateTime":
		if _, err := time.Parse(time.RFC3339, val.value); err != nil {
			return false, fmt.Sprintf("value %q is not a valid instant", val.value)
		}
	case nsXSD + "integer", nsXSD + "int", nsXSD + "long":
		if _, err := strconv.ParseInt(val.value, 10, 64); err != nil {
			return false, fmt.Sprintf("value %q is not an integer", val.value)
		}
	case nsXSD + "decimal", nsXSD + "double", nsXSD + "float":
		if _, err := strconv.ParseFloat(val.value, 64); err != nil {
			return false, fmt.Sprintf("value %q is not a number", val.value)
		}
	case nsXSD + "boolean":
		if val.value != "true" && val.value != "false" {
			return false, fmt.Sprintf("value %q is not a boolean", val.value)
		}
	}

	return true, ""
}

func localName(iri string) string {
	if iri == "" {
		return "plain"
	}
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	return iri
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
