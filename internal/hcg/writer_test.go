package hcg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c-daly/logos/internal/graph"
	"github.com/c-daly/logos/internal/shacl"
	"github.com/c-daly/logos/internal/types"
)

func newTestWriter(t *testing.T, config WriterConfig) (*Writer, *graph.MockClient) {
	t.Helper()
	engine, mock := newTestEngine(t)

	var validator *shacl.Validator
	if config.SHACLEnabled {
		registry, err := DefaultShapeRegistry()
		require.NoError(t, err)
		validator = shacl.NewValidator(registry)
	}

	writer, err := NewWriter(engine, validator, testRetryPolicy(), config, nil)
	require.NoError(t, err)
	return writer, mock
}

func conformingDelta(t *testing.T) *Delta {
	t.Helper()
	delta := &Delta{
		Nodes: []NodeSpec{
			{Kind: types.KindEntity, Name: "arm-1"},
			{Kind: types.KindConcept, Name: "Robot"},
			{Kind: types.KindState, Timestamp: time.Now()},
		},
		Derivation: types.DerivationObserved,
	}
	require.NoError(t, delta.AssignIDs())
	delta.Edges = []types.CausalEdge{
		{SourceID: delta.Nodes[0].ID, TargetID: delta.Nodes[1].ID, Type: types.RelationIsA},
		{SourceID: delta.Nodes[0].ID, TargetID: delta.Nodes[2].ID, Type: types.RelationHasState},
	}
	return delta
}

func TestWriter_CommitsConformingDelta(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})
	delta := conformingDelta(t)

	result, err := writer.Write(context.Background(), delta)
	require.NoError(t, err)

	assert.Equal(t, WriteCommitted, result.State)
	assert.Equal(t, []WriteState{WritePending, WriteValidating, WriteCommitting, WriteCommitted}, result.Trace)
	assert.True(t, result.Report.Conforms)
	assert.Len(t, result.IDs, 3)
	assert.Equal(t, 5, mock.CallCount("WriteBatch"))
}

func TestWriter_RejectionLeavesGraphUntouched(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})

	// An entity without a name passes the structural gate but fails EntityShape.
	delta := &Delta{Nodes: []NodeSpec{{Kind: types.KindEntity}}}

	result, err := writer.Write(context.Background(), delta)
	require.Error(t, err)

	assert.Equal(t, WriteRejected, result.State)
	assert.Equal(t, []WriteState{WritePending, WriteValidating, WriteRejected}, result.Trace)
	assert.Empty(t, mock.Calls(), "a rejected delta must not reach the backend")

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, types.WRITE_REJECTED, types.CodeOf(err))
	assert.False(t, vErr.Report.Conforms)
	assert.NotEmpty(t, vErr.Report.Violations)
}

func TestWriter_MissingTimestampSurfacesAsShapeViolation(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})

	delta := &Delta{Nodes: []NodeSpec{{Kind: types.KindState}}} // no timestamp

	result, err := writer.Write(context.Background(), delta)
	require.Error(t, err)

	// The validator owns the verdict: the caller gets the full report with
	// exactly one violation on the timestamp path, not a bare coded error.
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Report.Violations, 1)
	assert.Equal(t, "sh:minCount", vErr.Report.Violations[0].Constraint)
	assert.Contains(t, vErr.Report.Violations[0].Path, "timestamp")

	assert.Equal(t, WriteRejected, result.State)
	assert.Equal(t, []WriteState{WritePending, WriteValidating, WriteRejected}, result.Trace)
	assert.False(t, result.Report.Conforms)
	assert.Empty(t, mock.Calls())
}

func TestWriter_DisabledValidationRejectsMissingTimestamp(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: false})

	delta := &Delta{Nodes: []NodeSpec{{Kind: types.KindState}}}

	result, err := writer.Write(context.Background(), delta)
	require.Error(t, err)
	assert.Equal(t, types.INVALID_TIMESTAMP, types.CodeOf(err))
	assert.Equal(t, WriteRejected, result.State)
	assert.Equal(t, []WriteState{WritePending, WriteRejected}, result.Trace)
	assert.False(t, result.Report.Conforms)
	assert.Empty(t, mock.Calls())
}

func TestWriter_DisabledValidationStillEnforcesStructure(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: false})

	delta := conformingDelta(t)
	delta.Edges = append(delta.Edges, types.CausalEdge{
		SourceID: delta.Nodes[0].ID,
		TargetID: delta.Nodes[1].ID,
		Type:     types.RelationType("FLOOGLE"),
	})

	result, err := writer.Write(context.Background(), delta)
	require.Error(t, err)
	assert.Equal(t, types.INVALID_RELATIONSHIP, types.CodeOf(err))
	assert.Equal(t, WriteRejected, result.State)
	assert.Empty(t, mock.Calls())
}

func TestWriter_DisabledValidationAdmitsShapeViolations(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: false})

	// Nameless entity: a shape violation, but structurally sound.
	delta := &Delta{Nodes: []NodeSpec{{Kind: types.KindEntity}}}

	result, err := writer.Write(context.Background(), delta)
	require.NoError(t, err)
	assert.Equal(t, WriteCommitted, result.State)
	assert.Equal(t, 1, mock.CallCount("WriteBatch"))
}

func TestWriter_RetriesTransientCommitFailure(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})
	mock.FailNext(1, types.NewRetryableError(types.CONNECTION_FAILED, "backend hiccup"))

	delta := conformingDelta(t)
	result, err := writer.Write(context.Background(), delta)
	require.NoError(t, err)

	assert.Equal(t, WriteCommitted, result.State)
	assert.Equal(t, []WriteState{
		WritePending, WriteValidating, WriteCommitting, WriteRetrying, WriteCommitted,
	}, result.Trace)
}

func TestWriter_TerminalCommitFailure(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})
	mock.SetWriteError(types.NewError(types.QUERY_FAILED, "constraint violation"))

	delta := conformingDelta(t)
	result, err := writer.Write(context.Background(), delta)
	require.Error(t, err)

	assert.Equal(t, types.WRITE_FAILED, types.CodeOf(err))
	assert.Equal(t, WriteFailed, result.State)
	assert.Equal(t, WriteFailed, result.Trace[len(result.Trace)-1])
	// Exactly one batch attempt: terminal failures are not retried.
	assert.Equal(t, 5, mock.CallCount("WriteBatch"))
}

func TestWriter_ExhaustedRetriesFail(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})
	mock.SetWriteError(types.NewRetryableError(types.CONNECTION_FAILED, "backend down"))

	delta := conformingDelta(t)
	result, err := writer.Write(context.Background(), delta)
	require.Error(t, err)

	assert.Equal(t, WriteFailed, result.State)
	assert.Equal(t, 2, countState(result.Trace, WriteRetrying))
	assert.Equal(t, 15, mock.CallCount("WriteBatch"), "three attempts of five statements each")
}

func TestWriter_IdempotentRetryReusesIDs(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})
	mock.FailNext(1, types.NewRetryableError(types.CONNECTION_FAILED, "backend hiccup"))

	delta := conformingDelta(t)
	wantIDs := delta.IDs()

	result, err := writer.Write(context.Background(), delta)
	require.NoError(t, err)
	assert.Equal(t, wantIDs, result.IDs, "a retried commit merges onto the ids minted before the first attempt")

	calls := mock.Calls()
	require.Len(t, calls, 10)
	assert.Equal(t, calls[0].Params["id"], calls[5].Params["id"])
}

func TestWriter_CommittedIDsComeFromGraph(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})

	existing := types.NewID(types.KindConcept)
	mock.EnqueueWrite(graph.QueryResult{Records: []map[string]any{{"id": existing.String()}}})

	delta := &Delta{
		Nodes:      []NodeSpec{{Kind: types.KindConcept, Name: "Robot"}},
		Derivation: types.DerivationAsserted,
	}

	result, err := writer.Write(context.Background(), delta)
	require.NoError(t, err)
	require.Len(t, result.IDs, 1)
	assert.Equal(t, existing, result.IDs[0],
		"merging onto an existing concept reports that concept's id")
	assert.NotEqual(t, delta.Nodes[0].ID, result.IDs[0])
}

func TestWriter_EdgeToMissingNodeFailsAtomically(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})

	delta := &Delta{
		Nodes:      []NodeSpec{{Kind: types.KindEntity, Name: "arm-1"}},
		Derivation: types.DerivationObserved,
	}
	require.NoError(t, delta.AssignIDs())
	delta.Edges = []types.CausalEdge{
		{SourceID: delta.Nodes[0].ID, TargetID: types.NewID(types.KindEntity), Type: types.RelationRelatedTo},
	}

	// Node merge produces its row; the edge merge matches no endpoint and
	// aborts the transaction, so nothing is committed.
	mock.EnqueueWrite(graph.QueryResult{Records: []map[string]any{{"id": delta.Nodes[0].ID.String()}}})
	mock.EnqueueWrite(graph.QueryResult{})

	result, err := writer.Write(context.Background(), delta)
	require.Error(t, err)

	assert.Equal(t, WriteFailed, result.State)
	assert.Equal(t, types.WRITE_FAILED, types.CodeOf(err))
	assert.ErrorIs(t, err, types.NewError(types.NODE_NOT_FOUND, ""))
	assert.Empty(t, result.IDs)
	assert.Equal(t, 2, mock.CallCount("WriteBatch"), "a missing endpoint is terminal, not retried")
}

func TestWriter_CreateEntity(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})

	id, err := writer.CreateEntity(context.Background(), "RobotArm01",
		map[string]any{"payload_kg": 5}, types.DerivationAsserted)
	require.NoError(t, err)
	require.NoError(t, id.Validate(types.KindEntity))

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, id.String(), calls[0].Params["id"])
	assert.Equal(t, "RobotArm01", calls[0].Params["name"])
}

func TestWriter_CreateNode_RejectsWrongPrefixID(t *testing.T) {
	writer, mock := newTestWriter(t, WriterConfig{SHACLEnabled: true})

	_, err := writer.CreateNode(context.Background(), NodeSpec{
		Kind: types.KindConcept,
		ID:   types.NewID(types.KindEntity),
		Name: "Manipulator",
	}, types.DerivationAsserted)

	require.Error(t, err)
	assert.Equal(t, types.INVALID_ID, types.CodeOf(err))
	assert.Empty(t, mock.Calls(), "a wrong-prefix id is refused, never silently renamed")
}

func TestNewWriter_RequiresValidatorWhenEnabled(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := NewWriter(engine, nil, testRetryPolicy(), WriterConfig{SHACLEnabled: true}, nil)
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
}

func TestNewWriter_RejectsUnknownInferenceMode(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := NewWriter(engine, nil, testRetryPolicy(),
		WriterConfig{InferenceMode: shacl.InferenceMode("psychic")}, nil)
	require.Error(t, err)
}

func countState(trace []WriteState, s WriteState) int {
	n := 0
	for _, st := range trace {
		if st == s {
			n++
		}
	}
	return n
}
