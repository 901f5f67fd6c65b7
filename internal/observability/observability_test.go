package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDRoundTrip(t *testing.T) {
	id := GenerateCorrelationID()
	require.Len(t, id, 36)

	ctx := WithCorrelationID(context.Background(), id)
	assert.Equal(t, id, ExtractCorrelationID(ctx))
	assert.Empty(t, ExtractCorrelationID(context.Background()))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", ResultLabel(""))
	assert.Equal(t, "SELF_VOTE", ResultLabel("SELF_VOTE"))
}

func TestVotesTotalCounts(t *testing.T) {
	before := testutil.ToFloat64(VotesTotal.WithLabelValues("comment", "switch"))
	VotesTotal.WithLabelValues("comment", "switch").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(VotesTotal.WithLabelValues("comment", "switch")))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "confessional-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	span, ctx := NewSpan(context.Background(), "noop")
	span.SetError(assert.AnError)
	span.End()
	RecordErrorInContext(ctx, assert.AnError)

	var nilSpan *Span
	nilSpan.SetError(assert.AnError)
	nilSpan.End()
}

func TestTraceQueryRecordsLatency(t *testing.T) {
	before := testutil.CollectAndCount(DatabaseQueryLatency)
	_, done := TraceQuery(context.Background(), GenerateCorrelationID(), "observability_test")
	done()
	assert.Equal(t, before+1, testutil.CollectAndCount(DatabaseQueryLatency))
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", newSampler(1).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
}
