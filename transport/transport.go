// Package transport implements the object-distribution half of the
// Mesh's Transport Selector & Object Distribution component (TSO):
// encoding an object through the canonical codec, computing its
// ObjectId, and returning per-symbol RoutingDecision and
// BackpressureEvent records (spec.md §4.5). Neither is pushed to a
// telemetry trace buffer by this package. Path ranking and multipath
// selection live in package zone, reused here unchanged.
package transport

import (
	"github.com/fcpmesh/mesh/codec"
	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/telemetry"
	"github.com/fcpmesh/mesh/zone"
)

// RoutingDecision records the outcome of distributing one object symbol:
// which paths were selected and why, for audit and replay (spec.md §4.5,
// §3's TraceEvent union).
type RoutingDecision struct {
	ObjectID      ids.ObjectID
	SymbolIndex   uint32
	SelectedPaths []zone.TransportPath
	AllRanked     []zone.RankedPath
	EncodedBytes  int
}

// BackpressureEvent is emitted when a path's write queue crosses the
// configured watermark (spec.md §5: "TSO observes per-path write queues
// and refuses new symbol dispatch once a configurable water mark is
// crossed").
type BackpressureEvent struct {
	PathID     ids.PathID
	QueueDepth int
	Watermark  int
}

// Distributor encodes objects and selects their delivery paths under a
// zone transport policy.
type Distributor struct {
	Policy  zone.TransportPolicy
	Fanout  int
	Metrics *telemetry.Metrics // optional; nil disables routing-decision metrics
}

// NewDistributor constructs a Distributor for a fixed policy and default
// multipath fanout.
func NewDistributor(policy zone.TransportPolicy, fanout int) *Distributor {
	return &Distributor{Policy: policy, Fanout: fanout}
}

// NewDistributorWithMetrics is NewDistributor plus a metrics sink that
// records every Distribute call's dominant selected path kind.
func NewDistributorWithMetrics(policy zone.TransportPolicy, fanout int, metrics *telemetry.Metrics) *Distributor {
	return &Distributor{Policy: policy, Fanout: fanout, Metrics: metrics}
}

// Distribute encodes v under schema, computes its ObjectId, selects a
// multipath fanout from candidates for symbolIndex, and returns the
// resulting RoutingDecision. Receivers are expected to re-hash decoded
// bytes to verify ObjectId independently.
func (d *Distributor) Distribute(v any, schema codec.Schema, candidates []zone.TransportPath, symbolIndex uint32) (RoutingDecision, error) {
	encoded, err := codec.Encode(v, schema)
	if err != nil {
		return RoutingDecision{}, err
	}
	objectID, err := codec.ObjectIDOf(v, schema)
	if err != nil {
		return RoutingDecision{}, err
	}

	selected := zone.SelectMultipath(candidates, d.Policy, objectID, symbolIndex, d.Fanout)
	ranked := zone.RankPaths(candidates, d.Policy)

	if d.Metrics != nil && len(selected) > 0 {
		d.Metrics.ObserveRouting(selected[0].Kind.String())
	}

	return RoutingDecision{
		ObjectID:      objectID,
		SymbolIndex:   symbolIndex,
		SelectedPaths: selected,
		AllRanked:     ranked,
		EncodedBytes:  len(encoded),
	}, nil
}

// BackpressureGuard tracks per-path write-queue depth and refuses new
// symbol dispatch once a path crosses its watermark.
type BackpressureGuard struct {
	watermark int
	depths    map[ids.PathID]int
	metrics   *telemetry.Metrics // optional; nil disables backpressure metrics
}

// NewBackpressureGuard constructs a guard with a fixed watermark shared
// across all paths.
func NewBackpressureGuard(watermark int) *BackpressureGuard {
	return &BackpressureGuard{watermark: watermark, depths: make(map[ids.PathID]int)}
}

// NewBackpressureGuardWithMetrics is NewBackpressureGuard plus a metrics
// sink that records every refusal.
func NewBackpressureGuardWithMetrics(watermark int, metrics *telemetry.Metrics) *BackpressureGuard {
	return &BackpressureGuard{watermark: watermark, depths: make(map[ids.PathID]int), metrics: metrics}
}

// Observe records queueDepth for pathID and reports whether dispatch
// should be refused, returning the BackpressureEvent to trace when it is.
func (g *BackpressureGuard) Observe(pathID ids.PathID, queueDepth int) (refuse bool, event BackpressureEvent) {
	g.depths[pathID] = queueDepth
	if queueDepth >= g.watermark {
		if g.metrics != nil {
			g.metrics.ObserveBackpressure(string(pathID))
		}
		return true, BackpressureEvent{PathID: pathID, QueueDepth: queueDepth, Watermark: g.watermark}
	}
	return false, BackpressureEvent{}
}
