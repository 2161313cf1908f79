package zone_test

import (
	"testing"

	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/zone"
	"github.com/stretchr/testify/require"
)

func rtt(ms uint32) *uint32 { return &ms }

func TestNewZoneRejectsChildExceedingParent(t *testing.T) {
	t.Parallel()

	parent, err := zone.NewZone(ids.MustZoneID("z:root"), nil, 50, 50, zone.TransportPolicy{})
	require.NoError(t, err)

	_, err = zone.NewZone(ids.MustZoneID("z:child"), &parent, 80, 10, zone.TransportPolicy{})
	require.ErrorIs(t, err, zone.ErrChildLevelExceedsParent)

	child, err := zone.NewZone(ids.MustZoneID("z:child"), &parent, 10, 10, zone.TransportPolicy{})
	require.NoError(t, err)
	require.Equal(t, parent.ID, child.ParentID)
}

func TestNewZoneRejectsOutOfRangeLevels(t *testing.T) {
	t.Parallel()

	_, err := zone.NewZone(ids.MustZoneID("z:work"), nil, 101, 0, zone.TransportPolicy{})
	require.ErrorIs(t, err, zone.ErrLevelOutOfRange)

	_, err = zone.NewZone(ids.MustZoneID("z:work"), nil, 0, -1, zone.TransportPolicy{})
	require.ErrorIs(t, err, zone.ErrLevelOutOfRange)
}

// TestDeniedByTransportPolicy mirrors spec.md §8 scenario 2.
func TestDeniedByTransportPolicy(t *testing.T) {
	t.Parallel()

	policy := zone.TransportPolicy{AllowLan: true, AllowDerp: false, AllowFunnel: false}
	paths := []zone.TransportPath{
		{Kind: zone.Direct, Peer: ids.NewNodeID("n1"), PathID: "p1"},
		{Kind: zone.Derp, Peer: ids.NewNodeID("n2"), PathID: "p2"},
		{Kind: zone.Funnel, Peer: ids.NewNodeID("n3"), PathID: "p3"},
	}

	best, ok := zone.BestPath(paths, policy)
	require.True(t, ok)
	require.Equal(t, zone.Direct, best.Path.Kind)
	require.Equal(t, ids.PathID("p1"), best.Path.PathID)

	ranked := zone.RankPaths(paths, policy)
	byPathID := make(map[ids.PathID]zone.RankedPath, len(ranked))
	for _, r := range ranked {
		byPathID[r.Path.PathID] = r
	}
	require.Equal(t, zone.ReasonTransportDerpForbidden, byPathID["p2"].Reason)
	require.Equal(t, zone.ReasonTransportFunnelForbidden, byPathID["p3"].Reason)
}

func TestRankPathsOrdersByPriorityThenRTT(t *testing.T) {
	t.Parallel()

	policy := zone.TransportPolicy{AllowLan: true, AllowDerp: true, AllowFunnel: true}
	paths := []zone.TransportPath{
		{Kind: zone.Funnel, Peer: ids.NewNodeID("p4"), PathID: "funnel", EstimatedRTTMs: rtt(5)},
		{Kind: zone.Derp, Peer: ids.NewNodeID("p3"), PathID: "derp", EstimatedRTTMs: rtt(5)},
		{Kind: zone.Mesh, Peer: ids.NewNodeID("p2"), PathID: "mesh", EstimatedRTTMs: rtt(10)},
		{Kind: zone.Direct, Peer: ids.NewNodeID("p1"), PathID: "direct", EstimatedRTTMs: rtt(20)},
	}

	ranked := zone.RankPaths(paths, policy)
	kinds := make([]zone.PathKind, len(ranked))
	for i, r := range ranked {
		kinds[i] = r.Path.Kind
	}
	require.Equal(t, []zone.PathKind{zone.Direct, zone.Mesh, zone.Derp, zone.Funnel}, kinds)
}

func TestRankPathsMissingRTTRanksLast(t *testing.T) {
	t.Parallel()

	policy := zone.TransportPolicy{AllowLan: true}
	paths := []zone.TransportPath{
		{Kind: zone.Direct, Peer: ids.NewNodeID("a"), PathID: "no-rtt"},
		{Kind: zone.Direct, Peer: ids.NewNodeID("b"), PathID: "has-rtt", EstimatedRTTMs: rtt(1)},
	}
	ranked := zone.RankPaths(paths, policy)
	require.Equal(t, ids.PathID("has-rtt"), ranked[0].Path.PathID)
	require.Equal(t, ids.PathID("no-rtt"), ranked[1].Path.PathID)
}

// TestDeterministicMultipath mirrors spec.md §8 scenario 3.
func TestDeterministicMultipath(t *testing.T) {
	t.Parallel()

	policy := zone.TransportPolicy{AllowLan: true, AllowDerp: true, AllowFunnel: true}
	paths := []zone.TransportPath{
		{Kind: zone.Direct, Peer: ids.NewNodeID("n1"), PathID: "p1"},
		{Kind: zone.Direct, Peer: ids.NewNodeID("n2"), PathID: "p2"},
		{Kind: zone.Mesh, Peer: ids.NewNodeID("n3"), PathID: "p3"},
		{Kind: zone.Derp, Peer: ids.NewNodeID("n4"), PathID: "p4"},
	}
	var objectID ids.ObjectID
	objectID[0] = 1

	first := zone.SelectMultipath(paths, policy, objectID, 7, 2)
	second := zone.SelectMultipath(paths, policy, objectID, 7, 2)
	require.Equal(t, first, second)
	require.Len(t, first, 2)
	for _, p := range first {
		require.Equal(t, zone.Direct, p.Kind)
	}
}

func TestSelectMultipathRefillsFromLowerClass(t *testing.T) {
	t.Parallel()

	policy := zone.TransportPolicy{AllowLan: true, AllowDerp: true, AllowFunnel: true}
	paths := []zone.TransportPath{
		{Kind: zone.Direct, Peer: ids.NewNodeID("n1"), PathID: "p1"},
		{Kind: zone.Mesh, Peer: ids.NewNodeID("n2"), PathID: "p2"},
		{Kind: zone.Derp, Peer: ids.NewNodeID("n3"), PathID: "p3"},
	}
	var objectID ids.ObjectID
	selected := zone.SelectMultipath(paths, policy, objectID, 1, 3)
	require.Len(t, selected, 3)
}

func TestSelectMultipathZeroFanout(t *testing.T) {
	t.Parallel()

	var objectID ids.ObjectID
	require.Empty(t, zone.SelectMultipath(nil, zone.TransportPolicy{}, objectID, 0, 0))
}
