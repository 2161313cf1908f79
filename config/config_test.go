package config_test

import (
	"testing"
	"time"

	"github.com/fcpmesh/mesh/config"
	"github.com/stretchr/testify/require"
)

func TestLoadTOML(t *testing.T) {
	t.Parallel()

	raw := []byte(`
mesh_endpoint = "https://mesh.internal:8443"
self_check_timeout_ms = 2500
log_jsonl_path = "/var/log/mesh/trace.jsonl"
strict_validation = false
`)
	cfg, err := config.LoadTOML(raw)
	require.NoError(t, err)
	require.Equal(t, "https://mesh.internal:8443", cfg.MeshEndpoint)
	require.Equal(t, 2500, cfg.SelfCheckTimeoutMs)
	require.False(t, cfg.StrictValidation)
	require.Equal(t, 2500*time.Millisecond, cfg.SelfCheckTimeout())
	// Unset fields keep their defaults.
	require.Equal(t, 5, cfg.PolicyMaxRollout)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"mesh_endpoint": "https://mesh.internal:8443", "strict_validation": true}`)
	cfg, err := config.LoadJSON(raw)
	require.NoError(t, err)
	require.Equal(t, "https://mesh.internal:8443", cfg.MeshEndpoint)
	require.True(t, cfg.StrictValidation)
}

func TestBuilderRejectsEmptyEndpoint(t *testing.T) {
	t.Parallel()

	_, err := config.NewBuilder().WithMeshEndpoint("").Build()
	require.Error(t, err)
}

func TestBuilderChain(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewBuilder().
		WithMeshEndpoint("https://mesh.internal:8443").
		WithSelfCheckTimeout(10 * time.Second).
		WithLogJSONLPath("/tmp/trace.jsonl").
		WithStrictValidation(false).
		Build()
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.SelfCheckTimeout())
	require.False(t, cfg.StrictValidation)
}
