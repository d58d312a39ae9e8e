package shacl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hcgNS = "https://logos.dev/hcg#"

func iri(v string) term { return term{value: v, kind: kindIRI} }

func TestMaterialize_None(t *testing.T) {
	data := []triple{{subj: "a", pred: nsRDF + "type", obj: iri(hcgNS + "RobotState")}}
	ontology := []triple{{subj: hcgNS + "RobotState", pred: nsRDFS + "subClassOf", obj: iri(hcgNS + "State")}}

	out := materialize(data, ontology, InferenceNone)
	assert.Len(t, out, 1)
}

func TestMaterialize_SubClassOf(t *testing.T) {
	data := []triple{{subj: "a", pred: nsRDF + "type", obj: iri(hcgNS + "RobotState")}}
	ontology := []triple{
		{subj: hcgNS + "RobotState", pred: nsRDFS + "subClassOf", obj: iri(hcgNS + "State")},
		{subj: hcgNS + "State", pred: nsRDFS + "subClassOf", obj: iri(hcgNS + "Node")},
	}

	out := materialize(data, ontology, InferenceRDFS)
	g := newIndexedGraph(out)

	// Transitive closure: a is a RobotState, a State and a Node.
	assert.Contains(t, g.instancesOf(hcgNS+"RobotState"), "a")
	assert.Contains(t, g.instancesOf(hcgNS+"State"), "a")
	assert.Contains(t, g.instancesOf(hcgNS+"Node"), "a")
}

func TestMaterialize_SubPropertyOf(t *testing.T) {
	data := []triple{{subj: "a", pred: hcgNS + "drives", obj: iri("b")}}
	ontology := []triple{
		{subj: hcgNS + "drives", pred: nsRDFS + "subPropertyOf", obj: iri(hcgNS + "causes")},
	}

	out := materialize(data, ontology, InferenceRDFS)
	g := newIndexedGraph(out)
	require.Len(t, g.values("a", hcgNS+"causes"), 1)
}

func TestMaterialize_SameAs(t *testing.T) {
	data := []triple{
		{subj: "a", pred: nsOWL + "sameAs", obj: iri("b")},
		{subj: "a", pred: hcgNS + "name", obj: term{value: "arm", kind: kindLiteral}},
	}

	out := materialize(data, nil, InferenceOWL)
	g := newIndexedGraph(out)

	// Statements propagate to the equivalent node in both directions.
	require.Len(t, g.values("b", hcgNS+"name"), 1)
	assert.Equal(t, "arm", g.values("b", hcgNS+"name")[0].value)
	require.Len(t, g.values("b", nsOWL+"sameAs"), 1)
}

func TestMaterialize_InverseOf(t *testing.T) {
	data := []triple{{subj: "p1", pred: hcgNS + "causes", obj: iri("s1")}}
	ontology := []triple{
		{subj: hcgNS + "causes", pred: nsOWL + "inverseOf", obj: iri(hcgNS + "causedBy")},
	}

	out := materialize(data, ontology, InferenceOWL)
	g := newIndexedGraph(out)
	require.Len(t, g.values("s1", hcgNS+"causedBy"), 1)
	assert.Equal(t, "p1", g.values("s1", hcgNS+"causedBy")[0].value)
}

func TestMaterialize_BothCombinesRuleSets(t *testing.T) {
	data := []triple{
		{subj: "a", pred: nsRDF + "type", obj: iri(hcgNS + "RobotState")},
		{subj: "a", pred: nsOWL + "sameAs", obj: iri("b")},
	}
	ontology := []triple{
		{subj: hcgNS + "RobotState", pred: nsRDFS + "subClassOf", obj: iri(hcgNS + "State")},
	}

	out := materialize(data, ontology, InferenceBoth)
	g := newIndexedGraph(out)
	assert.Contains(t, g.instancesOf(hcgNS+"State"), "a")
	assert.Contains(t, g.instancesOf(hcgNS+"State"), "b")
}

func TestMaterialize_DoesNotMutateInput(t *testing.T) {
	data := []triple{{subj: "a", pred: nsRDF + "type", obj: iri(hcgNS + "RobotState")}}
	ontology := []triple{
		{subj: hcgNS + "RobotState", pred: nsRDFS + "subClassOf", obj: iri(hcgNS + "State")},
	}

	_ = materialize(data, ontology, InferenceRDFS)
	assert.Len(t, data, 1)
}

func TestInferenceMode_IsValid(t *testing.T) {
	for _, m := range []InferenceMode{InferenceNone, InferenceRDFS, InferenceOWL, InferenceBoth} {
		assert.True(t, m.IsValid())
	}
	assert.False(t, InferenceMode("full").IsValid())
}
