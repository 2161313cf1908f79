package telemetry

import (
	"encoding/json"
	"io"
)

// LogVersion selects which JSONL record shape Encoder emits (spec.md §9
// open question 3): the source has two E2E log schemas; both are
// supported, selecting via an optional log_version field that defaults to
// v1 when absent.
type LogVersion string

const (
	LogV1 LogVersion = "v1"
	LogV2 LogVersion = "v2"
)

// Assertions is the pass/fail tally spec.md §6 requires on every record.
type Assertions struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Record is one JSONL line: spec.md §6's mandatory keys plus, for v2, an
// additional details object and schema identifier.
type Record struct {
	Timestamp     int64      `json:"timestamp"`
	TestName      string     `json:"test_name"`
	Module        string     `json:"module"`
	Phase         string     `json:"phase"`
	CorrelationID string     `json:"correlation_id"`
	Result        string     `json:"result"`
	DurationMs    int64      `json:"duration_ms"`
	Assertions    Assertions `json:"assertions"`

	LogVersion LogVersion     `json:"log_version,omitempty"`
	Schema     string         `json:"schema,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// EffectiveVersion returns r's log version, defaulting to v1 when unset.
func (r Record) EffectiveVersion() LogVersion {
	if r.LogVersion == "" {
		return LogV1
	}
	return r.LogVersion
}

// Encoder renders Records as JSONL, one object per line, stripping
// v2-only fields when the record's effective version is v1.
type Encoder struct {
	w io.Writer
}

// NewEncoder constructs an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one JSONL line for r.
func (e *Encoder) Encode(r Record) error {
	if r.EffectiveVersion() == LogV1 {
		r.Schema = ""
		r.Details = nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = e.w.Write(b)
	return err
}

// FromTraceEvent builds a v2 Record from a TraceEvent, carrying its kind
// as the schema identifier and its structural payload in details.
func FromTraceEvent(ev TraceEvent, testName, module, phase string, durationMs int64, assertions Assertions, result string) Record {
	return Record{
		Timestamp:     ev.Timestamp.UnixMilli(),
		TestName:      testName,
		Module:        module,
		Phase:         phase,
		CorrelationID: ev.TraceID,
		Result:        result,
		DurationMs:    durationMs,
		Assertions:    assertions,
		LogVersion:    LogV2,
		Schema:        string(ev.Kind),
		Details: map[string]any{
			"source_node":       ev.SourceNode,
			"target_node":       ev.TargetNode,
			"object_id":         ev.ObjectID,
			"reason":            ev.Reason,
			"redaction_applied": ev.RedactionApplied,
		},
	}
}
