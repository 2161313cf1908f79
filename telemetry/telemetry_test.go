package telemetry_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fcpmesh/mesh/telemetry"
	"github.com/stretchr/testify/require"
)

func TestBufferNeverDropsCritical(t *testing.T) {
	t.Parallel()

	buf := telemetry.NewBuffer(3)
	for i := 0; i < 3; i++ {
		require.True(t, buf.Push(telemetry.TraceEvent{TraceID: "ordinary", Critical: false}))
	}

	// Buffer is full of non-critical events; pushing a critical one must
	// evict the oldest non-critical, not drop the critical arrival.
	ok := buf.Push(telemetry.TraceEvent{TraceID: "critical-1", Critical: true})
	require.True(t, ok)
	require.Equal(t, 3, buf.Len())

	// Fill every remaining slot with critical events.
	require.True(t, buf.Push(telemetry.TraceEvent{TraceID: "critical-2", Critical: true}))
	require.True(t, buf.Push(telemetry.TraceEvent{TraceID: "critical-3", Critical: true}))

	// Now every resident event is critical; a further critical push must
	// still be accepted (grows rather than drops).
	require.True(t, buf.Push(telemetry.TraceEvent{TraceID: "critical-4", Critical: true}))
	require.Equal(t, 4, buf.Len())

	drained := buf.Drain()
	for _, ev := range drained {
		require.True(t, ev.Critical)
	}
}

func TestBufferDropsOldestNonCriticalFirst(t *testing.T) {
	t.Parallel()

	buf := telemetry.NewBuffer(2)
	require.True(t, buf.Push(telemetry.TraceEvent{TraceID: "a"}))
	require.True(t, buf.Push(telemetry.TraceEvent{TraceID: "b"}))
	require.True(t, buf.Push(telemetry.TraceEvent{TraceID: "c"}))

	drained := buf.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, "b", drained[0].TraceID)
	require.Equal(t, "c", drained[1].TraceID)
	require.Equal(t, uint64(1), buf.Dropped())
}

func TestEncoderDefaultsToV1AndOmitsV2Fields(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	enc := telemetry.NewEncoder(&out)
	require.NoError(t, enc.Encode(telemetry.Record{
		Timestamp:     time.Now().UnixMilli(),
		TestName:      "policy_rollout",
		Module:        "policy",
		Phase:         "ingest",
		CorrelationID: "corr-1",
		Result:        "pass",
		DurationMs:    5,
		Assertions:    telemetry.Assertions{Passed: 1},
		Schema:        "should-be-dropped",
		Details:       map[string]any{"x": 1},
	}))

	line := strings.TrimSpace(out.String())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	require.NotContains(t, decoded, "schema")
	require.NotContains(t, decoded, "details")
	require.NotContains(t, decoded, "log_version")
}

func TestEncoderV2CarriesDetails(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	enc := telemetry.NewEncoder(&out)
	rec := telemetry.FromTraceEvent(
		telemetry.TraceEvent{TraceID: "corr-2", Kind: telemetry.KindRoutingDecision},
		"multipath_determinism", "transport", "select", 2,
		telemetry.Assertions{Passed: 1}, "pass",
	)
	require.NoError(t, enc.Encode(rec))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &decoded))
	require.Equal(t, "v2", decoded["log_version"])
	require.Equal(t, string(telemetry.KindRoutingDecision), decoded["schema"])
	require.Contains(t, decoded, "details")
}

func TestRedactionAppliesWhenReasonMentionsDeniedField(t *testing.T) {
	t.Parallel()

	policy := telemetry.DefaultRedactionPolicy()
	ev := telemetry.TraceEvent{Reason: "request carried an expired token"}
	redacted := policy.WithRedaction(ev)
	require.True(t, redacted.RedactionApplied)
	require.Equal(t, "[redacted]", redacted.Reason)

	clean := telemetry.TraceEvent{Reason: "zone integrity violation"}
	redactedClean := policy.WithRedaction(clean)
	require.False(t, redactedClean.RedactionApplied)
	require.Equal(t, "zone integrity violation", redactedClean.Reason)
}
