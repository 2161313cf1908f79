package reqcontext_test

import (
	"context"
	"testing"
	"time"

	"github.com/fcpmesh/mesh/ids"
	"github.com/fcpmesh/mesh/reqcontext"
	"github.com/stretchr/testify/require"
)

func TestNewAttachesIDsAndDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := reqcontext.New(context.Background(), ids.MustZoneID("z:work"), "alice", 50*time.Millisecond)
	defer cancel()

	require.Equal(t, "z:work", reqcontext.Zone(ctx).String())
	require.Equal(t, "alice", reqcontext.Principal(ctx))
	require.NotEmpty(t, reqcontext.CorrelationID(ctx))

	_, hasDeadline := ctx.Deadline()
	require.True(t, hasDeadline)
}

func TestMustIDsPanicsWhenMissing(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		reqcontext.MustIDs(context.Background())
	})
}

func TestWithCorrelationIDPreservesGivenID(t *testing.T) {
	t.Parallel()

	ctx, cancel := reqcontext.WithCorrelationID(context.Background(), ids.MustZoneID("z:work"), "bob", "corr-fixed", time.Second)
	defer cancel()
	require.Equal(t, "corr-fixed", reqcontext.CorrelationID(ctx))
}
