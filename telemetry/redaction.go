package telemetry

import "strings"

// RedactionPolicy names fields that must never reach a trace event's
// exported form, grounded on fcp-telemetry/src/trace_capture.rs's
// RedactionPolicy (the file survived in original_source only as a doc
// comment; its denylist role is reconstructed from spec.md §7's "secrets
// are never included in error payloads" rule).
type RedactionPolicy struct {
	DeniedFields map[string]bool
}

// DefaultRedactionPolicy denies the field names spec.md §7 calls out by
// name: keys, tokens, cookies, and signed fields.
func DefaultRedactionPolicy() RedactionPolicy {
	return RedactionPolicy{
		DeniedFields: map[string]bool{
			"key":           true,
			"token":         true,
			"cookie":        true,
			"signature":     true,
			"signed_fields": true,
			"private_key":   true,
			"nonce":         true,
		},
	}
}

// Redacts reports whether field is on the denylist.
func (p RedactionPolicy) Redacts(field string) bool {
	return p.DeniedFields[field]
}

// mentionsDenied reports whether any denylisted field name occurs as a
// substring of s, case-insensitively.
func (p RedactionPolicy) mentionsDenied(s string) bool {
	lower := strings.ToLower(s)
	for field := range p.DeniedFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// WithRedaction returns a copy of ev with Reason blanked if it mentions a
// denied field, and RedactionApplied set. TraceID, SourceNode, and the
// structural payload fields are never touched: redaction targets
// free-text/secret-bearing fields only.
func (p RedactionPolicy) WithRedaction(ev TraceEvent) TraceEvent {
	redacted := ev
	if ev.Reason != "" && p.mentionsDenied(ev.Reason) {
		redacted.Reason = "[redacted]"
		redacted.RedactionApplied = true
	}
	return redacted
}
