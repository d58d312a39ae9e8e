package hcg

import (
	"bytes"
	_ "embed"

	"github.com/c-daly/logos/internal/shacl"
)

// Namespace is the HCG ontology namespace used in shapes and serialized deltas.
const Namespace = "https://logos.dev/hcg#"

// NodeNamespace is the base IRI for node instances.
const NodeNamespace = "https://logos.dev/hcg/"

//go:embed shapes.ttl
var defaultShapesTTL []byte

// DefaultShapeRegistry parses the embedded default shape set. Deployments
// that declare a shapes path in configuration load from disk instead.
func DefaultShapeRegistry() (*shacl.Registry, error) {
	set, err := shacl.ParseShapes(bytes.NewReader(defaultShapesTTL))
	if err != nil {
		return nil, err
	}
	return shacl.NewRegistry(set), nil
}
