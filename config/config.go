// Package config loads the mesh host's configuration document: the four
// fields spec.md §6 names at the mesh boundary plus the policy-rollout
// attempt ceiling and the replay-cache window and size, decoded from either TOML
// or JSON (the host decides which; both forms decode into the same
// struct). No implicit globals — config.Config is passed explicitly into
// every constructor that needs it, mirroring the teacher's config.Builder
// pattern (core/consensus.go re-exports config.NewBuilder).
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the mesh host's configuration document (spec.md §6).
type Config struct {
	MeshEndpoint        string `toml:"mesh_endpoint" json:"mesh_endpoint"`
	SelfCheckTimeoutMs  int    `toml:"self_check_timeout_ms" json:"self_check_timeout_ms"`
	LogJSONLPath        string `toml:"log_jsonl_path" json:"log_jsonl_path"`
	StrictValidation    bool   `toml:"strict_validation" json:"strict_validation"`
	PolicyMaxRollout    int    `toml:"policy_max_rollout_attempts" json:"policy_max_rollout_attempts"`
	ReplayWindowSeconds int    `toml:"replay_window_seconds" json:"replay_window_seconds"`
	ReplayMaxNonces     int    `toml:"replay_max_nonces" json:"replay_max_nonces"`
}

// SelfCheckTimeout returns SelfCheckTimeoutMs as a time.Duration.
func (c Config) SelfCheckTimeout() time.Duration {
	return time.Duration(c.SelfCheckTimeoutMs) * time.Millisecond
}

// ReplayWindow returns ReplayWindowSeconds as a time.Duration.
func (c Config) ReplayWindow() time.Duration {
	return time.Duration(c.ReplayWindowSeconds) * time.Second
}

// Default returns the mesh host's baseline configuration: a 5-second
// self-check timeout, strict validation on, a bounded 5-attempt policy
// rollout ceiling (spec.md §9 open question 2), and a 5-minute/10000-entry
// replay cache.
func Default() Config {
	return Config{
		SelfCheckTimeoutMs:  5000,
		StrictValidation:    true,
		PolicyMaxRollout:    5,
		ReplayWindowSeconds: 300,
		ReplayMaxNonces:     10000,
	}
}

// Builder provides a fluent interface for constructing a Config, matching
// the teacher's config.Builder shape (NewBuilder, With* chain, Build).
type Builder struct {
	cfg Config
	err error
}

// NewBuilder starts a Builder from Default().
func NewBuilder() *Builder {
	return &Builder{cfg: Default()}
}

// WithMeshEndpoint sets the mesh_endpoint URL.
func (b *Builder) WithMeshEndpoint(endpoint string) *Builder {
	if b.err != nil {
		return b
	}
	if endpoint == "" {
		b.err = fmt.Errorf("config: mesh_endpoint must not be empty")
		return b
	}
	b.cfg.MeshEndpoint = endpoint
	return b
}

// WithSelfCheckTimeout sets self_check_timeout_ms.
func (b *Builder) WithSelfCheckTimeout(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if d <= 0 {
		b.err = fmt.Errorf("config: self_check_timeout_ms must be positive, got %s", d)
		return b
	}
	b.cfg.SelfCheckTimeoutMs = int(d.Milliseconds())
	return b
}

// WithLogJSONLPath sets log_jsonl_path.
func (b *Builder) WithLogJSONLPath(path string) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.LogJSONLPath = path
	return b
}

// WithStrictValidation sets strict_validation.
func (b *Builder) WithStrictValidation(strict bool) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.StrictValidation = strict
	return b
}

// Build finalizes the Config, returning the first validation error
// encountered by any With* call.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	return b.cfg, nil
}

// LoadTOML decodes raw as a TOML configuration document, starting from
// Default() so unset fields keep their defaults.
func LoadTOML(raw []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid toml: %w", err)
	}
	return cfg, nil
}

// LoadJSON decodes raw as a JSON configuration document, starting from
// Default() so unset fields keep their defaults.
func LoadJSON(raw []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid json: %w", err)
	}
	return cfg, nil
}
