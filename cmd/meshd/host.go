package main

import (
	"context"
	"os"

	"github.com/fcpmesh/mesh/admission"
	"github.com/fcpmesh/mesh/config"
	"github.com/fcpmesh/mesh/doctor"
	"github.com/fcpmesh/mesh/policy"
	"github.com/fcpmesh/mesh/telemetry"
	"github.com/fcpmesh/mesh/transport"
	"github.com/fcpmesh/mesh/zone"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Host wires CC/CP/PMS/ACE/TSO/DSS into one process for a single mesh
// node, the way the teacher's cmd/server wires an engine and its config
// into one ConsensusServer. It is not a CLI surface or an HTTP API
// (spec.md §1's Non-goals exclude both); it only owns process lifecycle
// and the shared collaborators every component needs.
type Host struct {
	Config config.Config
	Logger *zap.Logger

	Metrics *telemetry.Metrics
	Trace   *telemetry.Buffer
	Redact  telemetry.RedactionPolicy

	Policy      *policy.Store
	Admission   *admission.Engine
	Doctor      *doctor.Service
	Distributor *transport.Distributor

	traceFile *os.File
}

// emptyConnectorRegistry satisfies doctor.ConnectorRegistry when no
// connector implementations are registered (spec.md §1 excludes concrete
// connectors from this module's scope); every self-check reports
// "connector_not_found".
type emptyConnectorRegistry struct{}

func (emptyConnectorRegistry) SelfCheck(context.Context, string) (doctor.SelfCheckReport, bool) {
	return doctor.SelfCheckReport{}, false
}

// NewHost constructs every mesh component from cfg, registering metrics
// against a fresh prometheus registry and opening cfg.LogJSONLPath in
// append mode for trace export (if cfg.LogJSONLPath is empty, no file is
// opened and no JSONL records are written).
func NewHost(cfg config.Config, logger *zap.Logger) (*Host, error) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	policyStore := policy.NewStoreWithMetrics(metrics)

	h := &Host{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Trace:   telemetry.NewBuffer(4096),
		Redact:  telemetry.DefaultRedactionPolicy(),
		Policy:  policyStore,
		Admission: admission.NewEngine(
			admission.NewReplayCache(cfg.ReplayWindow(), cfg.ReplayMaxNonces),
			admission.NewRateLimiter(nil),
			admission.NewExclusiveLeases(),
			policyStore,
			nil,
		),
		Doctor: doctor.NewServiceWithTimeout(emptyConnectorRegistry{}, cfg.SelfCheckTimeout()),
	}
	h.Admission.Recorder = h
	h.Distributor = transport.NewDistributorWithMetrics(DefaultZoneTransportPolicy(), defaultMultipathFanout, metrics)

	if cfg.LogJSONLPath != "" {
		f, err := os.OpenFile(cfg.LogJSONLPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		h.traceFile = f
	}

	return h, nil
}

// RecordCapabilityUsage implements admission.Recorder: every ACE decision
// becomes a buffered CapabilityUsage trace event, a prometheus counter
// increment, and (if a JSONL sink is configured) a v2 log record.
func (h *Host) RecordCapabilityUsage(ev admission.CapabilityUsageEvent) {
	h.Metrics.ObserveAdmission(string(ev.Outcome), string(ev.Reason))

	critical := ev.Outcome != admission.Admit
	traceEv := telemetry.TraceEvent{
		Timestamp:        ev.OccurredAt,
		TraceID:          ev.Principal + ":" + ev.Operation,
		SourceNode:       ev.Connector,
		Reason:           string(ev.Reason),
		RedactionApplied: false,
		Kind:             telemetry.KindCapabilityUsage,
		Usage: telemetry.NewCapabilityUsagePayload(
			ev.Zone.String(), ev.Connector, ev.Capability, ev.Principal, "", ev.Operation, string(ev.Outcome),
		),
		Critical: critical,
	}
	traceEv = h.Redact.WithRedaction(traceEv)
	h.Trace.Push(traceEv)

	if h.traceFile != nil {
		enc := telemetry.NewEncoder(h.traceFile)
		rec := telemetry.FromTraceEvent(traceEv, ev.Operation, "admission", string(ev.FinalState),
			0, telemetry.Assertions{}, string(ev.Outcome))
		_ = enc.Encode(rec)
	}
}

// defaultMultipathFanout is the object-distribution fanout the host's
// Distributor is constructed with; no policy bundle changes it.
const defaultMultipathFanout = 3

// DefaultZoneTransportPolicy is the conservative LAN-only transport policy
// the host's Distributor is constructed with; ingesting a policy bundle
// does not change the Distributor's policy.
func DefaultZoneTransportPolicy() zone.TransportPolicy {
	return zone.TransportPolicy{AllowLan: true}
}

// Shutdown drains the trace buffer to the JSONL sink (if configured) and
// releases resources. Safe to call more than once.
func (h *Host) Shutdown(ctx context.Context) error {
	if h.traceFile == nil {
		return nil
	}
	enc := telemetry.NewEncoder(h.traceFile)
	for _, ev := range h.Trace.Drain() {
		rec := telemetry.FromTraceEvent(ev, "shutdown_drain", "telemetry", "flush", 0, telemetry.Assertions{}, "flushed")
		if err := enc.Encode(rec); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	err := h.traceFile.Close()
	h.traceFile = nil
	return err
}
