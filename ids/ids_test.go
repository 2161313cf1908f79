package ids_test

import (
	"testing"

	"github.com/fcpmesh/mesh/ids"
	"github.com/stretchr/testify/require"
)

func TestParseZoneID(t *testing.T) {
	t.Parallel()

	valid := []string{"z:work", "z:a", "z:team-1", "z:team_1", "z:a0"}
	for _, s := range valid {
		z, err := ids.ParseZoneID(s)
		require.NoError(t, err, s)
		require.Equal(t, s, z.String())
	}

	invalid := []string{"work", "z:", "z:Work", "z:1abc", "z:-abc", ""}
	for _, s := range invalid {
		_, err := ids.ParseZoneID(s)
		require.ErrorIs(t, err, ids.ErrInvalidZoneID, s)
	}
}

func TestDigestFromBytes(t *testing.T) {
	t.Parallel()

	_, err := ids.DigestFromBytes(make([]byte, 31))
	require.ErrorIs(t, err, ids.ErrInvalidLength)

	d, err := ids.DigestFromBytes(make([]byte, 32))
	require.NoError(t, err)
	require.True(t, d.IsZero())
	require.Len(t, d.String(), 64)
}

func TestNodeIDAndPathID(t *testing.T) {
	t.Parallel()

	n := ids.NewNodeID("node-1")
	require.Equal(t, "node-1", n.String())

	var p ids.PathID = "direct-a"
	require.Equal(t, "direct-a", string(p))
}
