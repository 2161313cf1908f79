// Package zone implements the Mesh's zone model: administrative boundaries
// with integrity/confidentiality levels and an immutable-per-version
// transport policy, plus deterministic transport path ranking and
// multipath selection (spec.md §4.5, grounded on
// original_source/flywheel_connectors/crates/fcp-mesh/src/transport.rs).
package zone

import (
	"errors"
	"sort"

	"github.com/fcpmesh/mesh/ids"
)

// ErrLevelOutOfRange is returned when an integrity or confidentiality level
// falls outside [0,100].
var ErrLevelOutOfRange = errors.New("zone: level out of range [0,100]")

// ErrChildLevelExceedsParent is returned when a child zone declares a
// higher integrity or confidentiality level than its parent.
var ErrChildLevelExceedsParent = errors.New("zone: child level exceeds parent")

// Zone is an administrative boundary with integrity/confidentiality levels
// and a transport policy. A child zone's levels must not exceed its
// parent's (spec.md §3).
type Zone struct {
	ID              ids.ZoneID
	ParentID        ids.ZoneID // zero value means no parent
	Integrity       int
	Confidentiality int
	TransportPolicy TransportPolicy
}

// NewZone validates levels and, when parent is non-nil, that child levels
// do not exceed the parent's.
func NewZone(id ids.ZoneID, parent *Zone, integrity, confidentiality int, policy TransportPolicy) (Zone, error) {
	if integrity < 0 || integrity > 100 || confidentiality < 0 || confidentiality > 100 {
		return Zone{}, ErrLevelOutOfRange
	}
	z := Zone{ID: id, Integrity: integrity, Confidentiality: confidentiality, TransportPolicy: policy}
	if parent != nil {
		if integrity > parent.Integrity || confidentiality > parent.Confidentiality {
			return Zone{}, ErrChildLevelExceedsParent
		}
		z.ParentID = parent.ID
	}
	return z, nil
}

// TransportMode is the coarse transport class a ZoneTransportPolicy grants
// or denies; several TransportPathKinds can map to the same mode.
type TransportMode int

const (
	ModeLan TransportMode = iota
	ModeDerp
	ModeFunnel
)

// TransportPolicy is the set of booleans gating transport modes for a
// zone. Immutable per policy version; mutated only by applying a new
// policy bundle (spec.md §3).
type TransportPolicy struct {
	AllowLan    bool
	AllowDerp   bool
	AllowFunnel bool
}

// Allows reports whether mode is permitted under p.
func (p TransportPolicy) Allows(mode TransportMode) bool {
	switch mode {
	case ModeLan:
		return p.AllowLan
	case ModeDerp:
		return p.AllowDerp
	case ModeFunnel:
		return p.AllowFunnel
	default:
		return false
	}
}

// PathKind is the priority class of a candidate transport path.
type PathKind int

const (
	Direct PathKind = iota
	Mesh
	Derp
	Funnel
)

// String renders the path kind's lowercase name, used as a metrics label.
func (k PathKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Mesh:
		return "mesh"
	case Derp:
		return "derp"
	case Funnel:
		return "funnel"
	default:
		return "unknown"
	}
}

// priority returns the ranking class: higher sorts first.
func (k PathKind) priority() int {
	switch k {
	case Direct:
		return 4
	case Mesh:
		return 3
	case Derp:
		return 2
	case Funnel:
		return 1
	default:
		return 0
	}
}

func (k PathKind) transportMode() TransportMode {
	switch k {
	case Direct, Mesh:
		return ModeLan
	case Derp:
		return ModeDerp
	case Funnel:
		return ModeFunnel
	default:
		return ModeLan
	}
}

// DenyReason names why a candidate path was ruled ineligible.
type DenyReason string

const (
	ReasonTransportLanForbidden    DenyReason = "TransportLanForbidden"
	ReasonTransportDerpForbidden   DenyReason = "TransportDerpForbidden"
	ReasonTransportFunnelForbidden DenyReason = "TransportFunnelForbidden"
)

func denyReasonFor(mode TransportMode) DenyReason {
	switch mode {
	case ModeDerp:
		return ReasonTransportDerpForbidden
	case ModeFunnel:
		return ReasonTransportFunnelForbidden
	default:
		return ReasonTransportLanForbidden
	}
}

// TransportPath is a candidate path to a peer.
type TransportPath struct {
	Kind           PathKind
	Peer           ids.NodeID
	PathID         ids.PathID
	EstimatedRTTMs *uint32 // nil means unknown; ranks last within its class
}

// RankedPath is a TransportPath annotated with its eligibility under a
// given policy.
type RankedPath struct {
	Path     TransportPath
	Priority int
	Eligible bool
	Reason   DenyReason // zero value when Eligible
}

// RankPaths produces the total order spec.md §4.5 names: ineligible paths
// sink below eligible ones; within eligibility, Direct > Mesh > Derp >
// Funnel; then ascending RTT (missing last); then path_id; then peer id.
func RankPaths(paths []TransportPath, policy TransportPolicy) []RankedPath {
	ranked := make([]RankedPath, len(paths))
	for i, p := range paths {
		mode := p.Kind.transportMode()
		eligible := policy.Allows(mode)
		var reason DenyReason
		if !eligible {
			reason = denyReasonFor(mode)
		}
		ranked[i] = RankedPath{Path: p, Priority: p.Kind.priority(), Eligible: eligible, Reason: reason}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Eligible != b.Eligible {
			return a.Eligible // eligible sorts first
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		rttA, rttB := rttOrMax(a.Path.EstimatedRTTMs), rttOrMax(b.Path.EstimatedRTTMs)
		if rttA != rttB {
			return rttA < rttB
		}
		if a.Path.PathID != b.Path.PathID {
			return a.Path.PathID < b.Path.PathID
		}
		return a.Path.Peer.String() < b.Path.Peer.String()
	})
	return ranked
}

func rttOrMax(rtt *uint32) uint32 {
	if rtt == nil {
		return ^uint32(0)
	}
	return *rtt
}

// BestPath returns the first eligible path under RankPaths' ordering, or
// false if none are eligible.
func BestPath(paths []TransportPath, policy TransportPolicy) (RankedPath, bool) {
	for _, r := range RankPaths(paths, policy) {
		if r.Eligible {
			return r, true
		}
	}
	return RankedPath{}, false
}

// SelectMultipath groups eligible paths by priority class and, within each
// class, orders them by a keyed 32-byte weight derived from (objectID,
// symbolIndex, pathID), taking the first fanout slots and refilling from
// lower classes if a class is exhausted. Deterministic across invocations
// and nodes given identical inputs (spec.md §4.5).
func SelectMultipath(paths []TransportPath, policy TransportPolicy, objectID ids.ObjectID, symbolIndex uint32, fanout int) []TransportPath {
	if fanout <= 0 {
		return nil
	}

	ranked := RankPaths(paths, policy)
	eligible := make([]RankedPath, 0, len(ranked))
	for _, r := range ranked {
		if r.Eligible {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority > eligible[j].Priority
	})

	selected := make([]TransportPath, 0, fanout)
	idx := 0
	for idx < len(eligible) && len(selected) < fanout {
		currentPriority := eligible[idx].Priority
		group := make([]TransportPath, 0)
		for idx < len(eligible) && eligible[idx].Priority == currentPriority {
			group = append(group, eligible[idx].Path)
			idx++
		}
		sort.SliceStable(group, func(i, j int) bool {
			wi := pathWeight(objectID, symbolIndex, group[i].PathID)
			wj := pathWeight(objectID, symbolIndex, group[j].PathID)
			return lessDigest(wi, wj)
		})
		for _, p := range group {
			if len(selected) >= fanout {
				break
			}
			selected = append(selected, p)
		}
	}
	return selected
}

func lessDigest(a, b ids.Digest) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
