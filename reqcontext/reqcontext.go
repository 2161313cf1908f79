// Package reqcontext carries the mesh's per-request handle — zone,
// principal, correlation id, and deadline — through a context.Context
// instead of through global state (spec.md §9: "Global state. Replaced
// with explicit handles passed through a request context"). Grounded on
// the teacher's ctx.go WithIDs/MustIDs typed-context-key idiom.
package reqcontext

import (
	"context"
	"time"

	"github.com/fcpmesh/mesh/ids"
	"github.com/google/uuid"
)

// IDs is the small, immutable request identity carried in context for the
// lifetime of one inbound operation.
type IDs struct {
	Zone          ids.ZoneID
	Principal     string
	CorrelationID string
}

// idsKey is a private typed key to avoid collisions with other packages'
// context values.
type idsKey struct{}

// WithIDs attaches ids to ctx.
func WithIDs(ctx context.Context, v IDs) context.Context {
	return context.WithValue(ctx, idsKey{}, v)
}

// MustIDs panics if IDs are missing from ctx; fail fast rather than
// silently operate on an unset zone/principal.
func MustIDs(ctx context.Context) IDs {
	v, ok := ctx.Value(idsKey{}).(IDs)
	if !ok {
		panic("reqcontext: IDs missing from context")
	}
	return v
}

// Zone returns the request's zone, or IDs' zero value if unset.
func Zone(ctx context.Context) ids.ZoneID {
	if v, ok := ctx.Value(idsKey{}).(IDs); ok {
		return v.Zone
	}
	return ids.ZoneID{}
}

// Principal returns the request's principal, or "" if unset.
func Principal(ctx context.Context) string {
	if v, ok := ctx.Value(idsKey{}).(IDs); ok {
		return v.Principal
	}
	return ""
}

// CorrelationID returns the request's correlation id, or "" if unset.
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(idsKey{}).(IDs); ok {
		return v.CorrelationID
	}
	return ""
}

// New builds a fresh request context for zone/principal with a new random
// correlation id and a deadline bounded by timeout; the returned
// CancelFunc must be called once the request completes.
func New(ctx context.Context, zone ids.ZoneID, principal string, timeout time.Duration) (context.Context, context.CancelFunc) {
	withIDs := WithIDs(ctx, IDs{Zone: zone, Principal: principal, CorrelationID: uuid.NewString()})
	return context.WithTimeout(withIDs, timeout)
}

// WithCorrelationID attaches an explicit correlation id (e.g. one
// received from an upstream caller) instead of minting a new one.
func WithCorrelationID(ctx context.Context, zone ids.ZoneID, principal, correlationID string, timeout time.Duration) (context.Context, context.CancelFunc) {
	withIDs := WithIDs(ctx, IDs{Zone: zone, Principal: principal, CorrelationID: correlationID})
	return context.WithTimeout(withIDs, timeout)
}
