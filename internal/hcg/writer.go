package hcg

import (
	"context"
	"fmt"

	"github.com/c-daly/logos/internal/graph"
	"github.com/c-daly/logos/internal/observability"
	"github.com/c-daly/logos/internal/shacl"
	"github.com/c-daly/logos/internal/types"
)

// WriteState is one stage in the gated write lifecycle.
type WriteState string

const (
	WritePending    WriteState = "pending"
	WriteValidating WriteState = "validating"
	WriteRejected   WriteState = "rejected"
	WriteCommitting WriteState = "committing"
	WriteRetrying   WriteState = "retrying"
	WriteCommitted  WriteState = "committed"
	WriteFailed     WriteState = "failed"
)

// WriteResult reports the outcome of one gated write. Trace records every
// state the request passed through, in order.
type WriteResult struct {
	State  WriteState             `json:"state"`
	IDs    []types.ID             `json:"ids,omitempty"`
	Report types.ValidationReport `json:"report"`
	Trace  []WriteState           `json:"trace"`
}

// ValidationError is returned when a delta fails shape validation. It carries
// the full report so callers can surface every violation, not just the first.
type ValidationError struct {
	*types.LogosError
	Report types.ValidationReport
}

// Unwrap exposes the coded error so errors.As and code matching see it.
func (e *ValidationError) Unwrap() error {
	return e.LogosError
}

func newValidationError(report types.ValidationReport) *ValidationError {
	return &ValidationError{
		LogosError: types.NewError(types.WRITE_REJECTED,
			fmt.Sprintf("delta rejected with %d violation(s)", len(report.Violations))),
		Report: report,
	}
}

// WriterConfig controls the validation gate.
type WriterConfig struct {
	// SHACLEnabled toggles shape validation. Structural invariants the shape
	// graph cannot express (id prefixes, the closed relationship vocabulary)
	// are enforced regardless; schema-class rules such as required timestamps
	// are enforced by the validator when enabled, structurally otherwise.
	SHACLEnabled bool

	// InferenceMode selects which entailment rules run before validation.
	InferenceMode shacl.InferenceMode

	// AbortOnFirst stops validation at the first violation instead of
	// collecting the complete report.
	AbortOnFirst bool
}

// Writer is the single write path into the graph: every delta is validated
// before it is committed, and commits are atomic. A rejected delta leaves the
// graph untouched.
type Writer struct {
	engine    *Engine
	validator *shacl.Validator
	retry     graph.RetryPolicy
	config    WriterConfig
	log       *observability.Logger
}

// NewWriter builds a gated writer over the engine. The validator may be nil
// only when validation is disabled.
func NewWriter(engine *Engine, validator *shacl.Validator, retry graph.RetryPolicy, config WriterConfig, log *observability.Logger) (*Writer, error) {
	if config.SHACLEnabled && validator == nil {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			"shape validation enabled but no validator provided")
	}
	if config.InferenceMode == "" {
		config.InferenceMode = shacl.InferenceNone
	}
	if !config.InferenceMode.IsValid() {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown inference mode %q", config.InferenceMode))
	}
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &Writer{
		engine:    engine,
		validator: validator,
		retry:     retry,
		config:    config,
		log:       log,
	}, nil
}

// Write validates the delta and commits it atomically. The returned result
// always carries the full state trace; on rejection the error is a
// *ValidationError holding the complete report.
func (w *Writer) Write(ctx context.Context, delta *Delta) (WriteResult, error) {
	result := WriteResult{State: WritePending, Trace: []WriteState{WritePending}}

	if err := delta.AssignIDs(); err != nil {
		return w.reject(ctx, result, types.ValidationReport{}, err)
	}
	if err := w.checkStructure(delta, !w.config.SHACLEnabled); err != nil {
		return w.reject(ctx, result, types.ValidationReport{}, err)
	}

	result.State = WriteValidating
	result.Trace = append(result.Trace, WriteValidating)

	if w.config.SHACLEnabled {
		report, err := w.validator.Validate(delta.ToNTriples(), shacl.FormatNTriples,
			w.config.InferenceMode, w.config.AbortOnFirst)
		if err != nil {
			result.State = WriteFailed
			result.Trace = append(result.Trace, WriteFailed)
			return result, err
		}
		result.Report = report
		if !report.Conforms {
			return w.reject(ctx, result, report, newValidationError(report))
		}
	} else {
		result.Report = types.ConformingReport()
		w.log.Warn(ctx, "shape validation disabled, delta admitted on structural checks only",
			"nodes", len(delta.Nodes), "edges", len(delta.Edges))
	}

	result.State = WriteCommitting
	result.Trace = append(result.Trace, WriteCommitting)

	attempt := 0
	var committed []types.ID
	err := w.retry.Execute(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			result.State = WriteRetrying
			result.Trace = append(result.Trace, WriteRetrying)
			w.log.Warn(ctx, "retrying delta commit", "attempt", attempt)
		}
		var err error
		committed, err = w.engine.CommitDelta(ctx, delta)
		return err
	})
	if err != nil {
		result.State = WriteFailed
		result.Trace = append(result.Trace, WriteFailed)
		return result, types.WrapError(types.WRITE_FAILED, "delta commit failed", err)
	}

	result.State = WriteCommitted
	result.Trace = append(result.Trace, WriteCommitted)
	result.IDs = committed
	return result, nil
}

// CreateNode validates and commits a single-node delta, returning the node's
// id. When spec.ID is zero an id with the kind's prefix is generated; an
// explicit id with the wrong prefix is rejected, never silently renamed.
func (w *Writer) CreateNode(ctx context.Context, spec NodeSpec, derivation types.Derivation) (types.ID, error) {
	delta := &Delta{Nodes: []NodeSpec{spec}, Derivation: derivation}
	result, err := w.Write(ctx, delta)
	if err != nil {
		return "", err
	}
	return result.IDs[0], nil
}

// CreateEntity creates or upserts an entity through the validation gate.
func (w *Writer) CreateEntity(ctx context.Context, name string, properties map[string]any, derivation types.Derivation) (types.ID, error) {
	return w.CreateNode(ctx, NodeSpec{
		Kind:       types.KindEntity,
		Name:       name,
		Properties: properties,
	}, derivation)
}

func (w *Writer) reject(ctx context.Context, result WriteResult, report types.ValidationReport, err error) (WriteResult, error) {
	result.State = WriteRejected
	result.Trace = append(result.Trace, WriteRejected)
	result.Report = report
	w.log.Info(ctx, "delta rejected", "violations", len(report.Violations), "error", err.Error())
	return result, err
}

// checkStructure enforces the invariants the shape graph cannot express:
// valid prefixed ids, relationship types from the closed vocabulary, a known
// derivation. With schemaChecks set (validation disabled) it additionally
// enforces the schema-class rules the validator would otherwise own, so that
// missing timestamps, start times, and concept names never reach the backend.
// With validation enabled those rules are left to the validator, which
// reports every violation instead of failing on the first.
func (w *Writer) checkStructure(delta *Delta, schemaChecks bool) error {
	seen := make(map[types.ID]struct{}, len(delta.Nodes))
	for _, n := range delta.Nodes {
		if err := n.ID.Validate(n.Kind); err != nil {
			return err
		}
		seen[n.ID] = struct{}{}

		if !schemaChecks {
			continue
		}
		switch n.Kind {
		case types.KindConcept:
			if n.Name == "" {
				return types.NewError(types.INVALID_QUERY,
					fmt.Sprintf("concept %s has no name", n.ID))
			}
		case types.KindState:
			if n.Timestamp.IsZero() {
				return types.NewError(types.INVALID_TIMESTAMP,
					fmt.Sprintf("state %s has no timestamp", n.ID))
			}
		case types.KindProcess:
			if n.StartTime.IsZero() {
				return types.NewError(types.INVALID_TIMESTAMP,
					fmt.Sprintf("process %s has no start time", n.ID))
			}
		}
	}

	if delta.Derivation != "" && !delta.Derivation.IsValid() {
		return types.NewError(types.INVALID_QUERY,
			fmt.Sprintf("unknown derivation %q", delta.Derivation))
	}

	for _, edge := range delta.Edges {
		if !w.engine.vocab.Contains(edge.Type) {
			return types.NewError(types.INVALID_RELATIONSHIP,
				fmt.Sprintf("relationship type %q is not in the vocabulary %v",
					edge.Type, w.engine.vocab.Names()))
		}
		if err := edge.SourceID.Validate(""); err != nil {
			return err
		}
		if err := edge.TargetID.Validate(""); err != nil {
			return err
		}
	}
	return nil
}
