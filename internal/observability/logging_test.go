package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestLogger_EmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "info").With("component", "graph")

	log.Info(context.Background(), "session acquired", "pool_utilization", 0.5)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "session acquired", record["msg"])
	assert.Equal(t, "graph", record["component"])
	assert.Equal(t, 0.5, record["pool_utilization"])
	assert.NotContains(t, record, "trace_id", "no span in context means no trace fields")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn")

	log.Debug(context.Background(), "ignored")
	log.Info(context.Background(), "ignored too")
	assert.Zero(t, buf.Len())

	log.Error(context.Background(), "kept")
	assert.NotZero(t, buf.Len())
}

func TestLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "info")

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.Info(ctx, "delta committed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, traceID.String(), record["trace_id"])
	assert.Equal(t, spanID.String(), record["span_id"])
}

func TestParseLevel_UnknownDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "chatty")

	log.Debug(context.Background(), "filtered at info")
	assert.Zero(t, buf.Len())

	log.Info(context.Background(), "kept")
	assert.NotZero(t, buf.Len())
}
