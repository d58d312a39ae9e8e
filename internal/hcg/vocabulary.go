package hcg

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/c-daly/logos/internal/types"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

// relationshipDefinition is one entry in the vocabulary document.
type relationshipDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Acyclic     bool   `yaml:"acyclic"`
}

type vocabularyDocument struct {
	Relationships []relationshipDefinition `yaml:"relationships"`
}

// Vocabulary is the closed set of relationship types the HCG accepts.
// Membership is a structural invariant: it is enforced on every edge write
// regardless of whether shape validation is enabled.
type Vocabulary struct {
	mu      sync.RWMutex
	entries map[types.RelationType]relationshipDefinition
	ordered []types.RelationType
}

// LoadVocabulary parses the embedded vocabulary document.
func LoadVocabulary() (*Vocabulary, error) {
	return parseVocabulary(vocabularyYAML)
}

func parseVocabulary(data []byte) (*Vocabulary, error) {
	var doc vocabularyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			"relationship vocabulary is not valid yaml", err)
	}
	if len(doc.Relationships) == 0 {
		return nil, types.NewError(types.CONFIG_LOAD_FAILED,
			"relationship vocabulary is empty")
	}

	v := &Vocabulary{entries: make(map[types.RelationType]relationshipDefinition)}
	for _, def := range doc.Relationships {
		if def.Name == "" {
			return nil, types.NewError(types.CONFIG_LOAD_FAILED,
				"relationship vocabulary entry has no name")
		}
		rel := types.RelationType(def.Name)
		if _, dup := v.entries[rel]; dup {
			return nil, types.NewError(types.CONFIG_LOAD_FAILED,
				fmt.Sprintf("duplicate relationship type %q in vocabulary", def.Name))
		}
		v.entries[rel] = def
		v.ordered = append(v.ordered, rel)
	}
	return v, nil
}

// Contains reports whether rel is a member of the closed vocabulary.
func (v *Vocabulary) Contains(rel types.RelationType) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.entries[rel]
	return ok
}

// IsAcyclic reports whether edges of this type must not form cycles.
func (v *Vocabulary) IsAcyclic(rel types.RelationType) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.entries[rel].Acyclic
}

// All returns the vocabulary in document order.
func (v *Vocabulary) All() []types.RelationType {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]types.RelationType, len(v.ordered))
	copy(out, v.ordered)
	return out
}

// Names returns the vocabulary as plain strings, for shape generation and
// error messages.
func (v *Vocabulary) Names() []string {
	all := v.All()
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.String()
	}
	return names
}
