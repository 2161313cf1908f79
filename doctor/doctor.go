// Package doctor implements the Mesh's Doctor & Self-Check Service (DSS):
// a structured zone-health report carrying freshness, transport policy,
// store coverage, degraded-mode, and per-connector self-checks run under
// a bounded timeout (spec.md §4.6), ported directly from
// original_source/flywheel_connectors/crates/fcp-host/src/doctor.rs.
//
// Only the connector self-checks and the overall status derived from them
// are computed. The freshness, transport-policy, store-coverage and
// degraded-mode fields always hold the fixed baseline values (all fresh,
// LAN only, store healthy, not degraded), and checks[] is always empty.
package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/fcpmesh/mesh/ids"
)

// SchemaVersion is the doctor report's schema version, unchanged from the
// original implementation's fcp-cli-aligned constant.
const SchemaVersion = "1.1.0"

// OverallStatus summarizes a zone's health. Serialized UPPERCASE to match
// the original's #[serde(rename_all = "UPPERCASE")].
type OverallStatus string

const (
	StatusOK   OverallStatus = "OK"
	StatusWarn OverallStatus = "WARN"
	StatusFail OverallStatus = "FAIL"
)

// FreshnessLevel is the staleness of a head/checkpoint. Serialized
// snake_case.
type FreshnessLevel string

const (
	FreshnessFresh    FreshnessLevel = "fresh"
	FreshnessStale    FreshnessLevel = "stale"
	FreshnessTooStale FreshnessLevel = "too_stale"
	FreshnessMissing  FreshnessLevel = "missing"
)

// CheckStatus is an individual check's pass/fail result. UPPERCASE.
type CheckStatus string

const (
	CheckOK   CheckStatus = "OK"
	CheckWarn CheckStatus = "WARN"
	CheckFail CheckStatus = "FAIL"
)

// CheckSeverity is the operational weight of a failed check. lowercase.
type CheckSeverity string

const (
	SeverityInfo     CheckSeverity = "info"
	SeverityWarning  CheckSeverity = "warning"
	SeverityCritical CheckSeverity = "critical"
)

// CheckResult is one named, severity-tagged health check (supplemented
// from the original source; spec.md §4.6 names the aggregate fields but
// not this per-check breakdown).
type CheckResult struct {
	Name     string        `json:"name"`
	Status   CheckStatus   `json:"status"`
	Severity CheckSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// SelfCheckStatus is a connector's self-reported health.
type SelfCheckStatus string

const (
	SelfCheckOK       SelfCheckStatus = "ok"
	SelfCheckDegraded SelfCheckStatus = "degraded"
	SelfCheckFailed   SelfCheckStatus = "failed"
)

// SelfCheckReport is what a connector's self_check returns.
type SelfCheckReport struct {
	Status  SelfCheckStatus `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message"`
}

// FailedSelfCheckReport builds the synthetic report DSS substitutes when
// a connector's self-check exceeds its timeout.
func FailedSelfCheckReport(reason, message string) SelfCheckReport {
	return SelfCheckReport{Status: SelfCheckFailed, Reason: reason, Message: message}
}

// ConnectorSelfCheck pairs a connector id with its self-check result.
type ConnectorSelfCheck struct {
	ConnectorID string          `json:"connector_id"`
	Report      SelfCheckReport `json:"report"`
}

// TransportPolicyStatus mirrors the active zone transport policy.
type TransportPolicyStatus struct {
	AllowLan    bool `json:"allow_lan"`
	AllowDerp   bool `json:"allow_derp"`
	AllowFunnel bool `json:"allow_funnel"`
}

// StoreCoverageStatus reports overall store health for key roots.
type StoreCoverageStatus struct {
	StoreHealthy bool `json:"store_healthy"`
}

// DegradedModeStatus reports whether the zone is in degraded mode.
type DegradedModeStatus struct {
	IsDegraded bool `json:"is_degraded"`
}

// Report is the complete, structured doctor output (spec.md §6).
type Report struct {
	SchemaVersion       string                `json:"schema_version"`
	GeneratedAt         time.Time             `json:"generated_at"`
	ZoneID              string                `json:"zone_id"`
	OverallStatus       OverallStatus         `json:"overall_status"`
	Checkpoint          FreshnessLevel        `json:"checkpoint"`
	Revocation          FreshnessLevel        `json:"revocation"`
	Audit               FreshnessLevel        `json:"audit"`
	TransportPolicy     TransportPolicyStatus `json:"transport_policy"`
	StoreCoverage       StoreCoverageStatus   `json:"store_coverage"`
	DegradedMode        DegradedModeStatus    `json:"degraded_mode"`
	Checks              []CheckResult         `json:"checks"`
	ConnectorSelfChecks []ConnectorSelfCheck  `json:"connector_self_checks,omitempty"`
}

// Request is a doctor-report request.
type Request struct {
	ZoneID     ids.ZoneID
	Connectors []string
	SelfCheck  bool
}

// ConnectorRegistry is the narrow capability set DSS needs from the
// connector layer: running one connector's self-check.
type ConnectorRegistry interface {
	SelfCheck(ctx context.Context, connectorID string) (SelfCheckReport, bool)
}

const defaultSelfCheckTimeout = 5 * time.Second

// Service builds doctor reports against a ConnectorRegistry.
type Service struct {
	registry         ConnectorRegistry
	selfCheckTimeout time.Duration
	now              func() time.Time
}

// NewService constructs a Service with the default 5-second self-check
// timeout.
func NewService(registry ConnectorRegistry) *Service {
	return &Service{registry: registry, selfCheckTimeout: defaultSelfCheckTimeout, now: time.Now}
}

// NewServiceWithTimeout constructs a Service with a custom timeout.
func NewServiceWithTimeout(registry ConnectorRegistry, timeout time.Duration) *Service {
	return &Service{registry: registry, selfCheckTimeout: timeout, now: time.Now}
}

func baseline(zoneID ids.ZoneID, generatedAt time.Time) Report {
	return Report{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt,
		ZoneID:        zoneID.String(),
		OverallStatus: StatusOK,
		Checkpoint:    FreshnessFresh,
		Revocation:    FreshnessFresh,
		Audit:         FreshnessFresh,
		TransportPolicy: TransportPolicyStatus{
			AllowLan: true,
		},
		StoreCoverage: StoreCoverageStatus{StoreHealthy: true},
		Checks:        []CheckResult{},
	}
}

// Handle builds a Report for req. For each requested connector, it runs
// ConnectorRegistry.SelfCheck under the configured bounded timeout;
// timeout produces a synthetic failed sub-report with reason
// "self_check_timeout". Overall status aggregates: any failed ⇒ FAIL; any
// degraded ⇒ WARN; else OK.
func (s *Service) Handle(ctx context.Context, req Request) (Report, error) {
	report := baseline(req.ZoneID, s.now())

	if !req.SelfCheck {
		return report, nil
	}

	checks := make([]ConnectorSelfCheck, 0, len(req.Connectors))
	for _, connectorID := range req.Connectors {
		checkCtx, cancel := context.WithTimeout(ctx, s.selfCheckTimeout)
		result, done := runSelfCheck(checkCtx, s.registry, connectorID)
		cancel()
		if !done {
			result = FailedSelfCheckReport("self_check_timeout",
				fmt.Sprintf("self_check exceeded %dms", s.selfCheckTimeout.Milliseconds()))
		}
		checks = append(checks, ConnectorSelfCheck{ConnectorID: connectorID, Report: result})
	}

	report.ConnectorSelfChecks = checks
	report.OverallStatus = overallStatusFromSelfChecks(checks)
	return report, nil
}

// runSelfCheck invokes the registry's self-check and races it against
// checkCtx's deadline, returning done=false on timeout.
func runSelfCheck(ctx context.Context, registry ConnectorRegistry, connectorID string) (SelfCheckReport, bool) {
	type result struct {
		report SelfCheckReport
		found  bool
	}
	resultCh := make(chan result, 1)
	go func() {
		report, found := registry.SelfCheck(ctx, connectorID)
		resultCh <- result{report: report, found: found}
	}()

	select {
	case r := <-resultCh:
		if !r.found {
			return FailedSelfCheckReport("connector_not_found", "connector "+connectorID+" not found"), true
		}
		return r.report, true
	case <-ctx.Done():
		return SelfCheckReport{}, false
	}
}

func overallStatusFromSelfChecks(checks []ConnectorSelfCheck) OverallStatus {
	degraded := false
	for _, c := range checks {
		if c.Report.Status == SelfCheckFailed {
			return StatusFail
		}
		if c.Report.Status == SelfCheckDegraded {
			degraded = true
		}
	}
	if degraded {
		return StatusWarn
	}
	return StatusOK
}
