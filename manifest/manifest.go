// Package manifest implements the manifest half of the Mesh's Policy &
// Manifest Store (PMS): parsing, structural validation, and interface-hash
// verification of connector manifests (spec.md §4.3, §6), grounded on the
// TOML sections the spec names and hashed with the mesh's single keyed
// BLAKE3 construction (codec.KeyedDigest).
package manifest

import (
	"sort"

	"github.com/fcpmesh/mesh/codec"
	"github.com/fcpmesh/mesh/ids"
	"github.com/pelletier/go-toml/v2"
)

// Manifest section blocks, matching spec.md §6's required TOML sections.

type ManifestSection struct {
	Format           string `toml:"format"`
	SchemaVersion    string `toml:"schema_version"`
	MinMeshVersion   string `toml:"min_mesh_version"`
	MinProtocol      string `toml:"min_protocol"`
	MaxDatagramBytes int    `toml:"max_datagram_bytes"`
	InterfaceHash    string `toml:"interface_hash"`
}

type ConnectorSection struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description string   `toml:"description"`
	Archetypes  []string `toml:"archetypes"`
	StateModel  string   `toml:"state_model"`
}

type ZonesSection struct {
	Home           string   `toml:"home"`
	AllowedSources []string `toml:"allowed_sources"`
	AllowedTargets []string `toml:"allowed_targets"`
	Forbidden      []string `toml:"forbidden"`
}

type CapabilitiesSection struct {
	Required  []string `toml:"required"`
	Optional  []string `toml:"optional"`
	Forbidden []string `toml:"forbidden"`
}

type SandboxSection struct {
	Profile            string   `toml:"profile"`
	MemoryMB           int      `toml:"memory_mb"`
	CPUPercent         int      `toml:"cpu_percent"`
	WallClockTimeoutMs int      `toml:"wall_clock_timeout_ms"`
	FSReadonlyPaths    []string `toml:"fs_readonly_paths"`
	FSWritablePaths    []string `toml:"fs_writable_paths"`
	DenyExec           bool     `toml:"deny_exec"`
	DenyPtrace         bool     `toml:"deny_ptrace"`
}

// NetworkConstraints gates a single operation's network egress (spec.md
// §4.3).
type NetworkConstraints struct {
	AllowHosts        []string `toml:"allow_hosts"`
	DenyHosts         []string `toml:"deny_hosts"`
	AllowPorts        []int    `toml:"allow_ports"`
	MaxRedirects      int      `toml:"max_redirects"`
	MaxBytes          int64    `toml:"max_bytes"`
	DenyIPLiterals    bool     `toml:"deny_ip_literals"`
	DenyPrivateRanges bool     `toml:"deny_private_ranges"`
	DenyLocalhost     bool     `toml:"deny_localhost"`
	RequireSNI        bool     `toml:"require_sni"`
}

// ApprovalTier names the approval required before an operation may run.
type ApprovalTier string

const (
	ApprovalNone        ApprovalTier = "none"
	ApprovalInteractive ApprovalTier = "interactive"
	ApprovalTwoParty    ApprovalTier = "two_party"
)

// Operation is one `[provides.operations.<name>]` entry.
type Operation struct {
	Name               string              `toml:"-"`
	RiskLevel          string              `toml:"risk_level"`
	SafetyTier         string              `toml:"safety_tier"`
	Idempotent         bool                `toml:"idempotency"`
	RequiresApproval   ApprovalTier        `toml:"requires_approval"`
	RateLimit          *RateLimit          `toml:"rate_limit"`
	InputSchema        string              `toml:"input_schema"`
	OutputSchema       string              `toml:"output_schema"`
	NetworkConstraints *NetworkConstraints `toml:"network_constraints"`
}

// RateLimit names the pool an operation maps to and its bucket parameters.
type RateLimit struct {
	Pool        string `toml:"pool"`
	WindowSecs  int    `toml:"window_secs"`
	MaxRequests int    `toml:"max_requests"`
}

type providesSection struct {
	Operations map[string]Operation `toml:"operations"`
}

// Document is the raw parsed shape of a manifest TOML file.
type Document struct {
	Manifest     ManifestSection     `toml:"manifest"`
	Connector    ConnectorSection    `toml:"connector"`
	Zones        ZonesSection        `toml:"zones"`
	Capabilities CapabilitiesSection `toml:"capabilities"`
	Sandbox      SandboxSection      `toml:"sandbox"`
	Provides     providesSection     `toml:"provides"`
}

// ConnectorManifest is the validated, structurally complete manifest used
// throughout the rest of the mesh.
type ConnectorManifest struct {
	Manifest     ManifestSection
	Connector    ConnectorSection
	Zones        ZonesSection
	Capabilities CapabilitiesSection
	Sandbox      SandboxSection
	Operations   map[string]Operation

	InterfaceHash ids.Digest
}

// Parse decodes raw TOML bytes into a Document without validating it.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return Document{}, newErr(ReasonPolicyInvalid, err.Error())
	}
	return doc, nil
}

// Validate enforces the structural rules of spec.md §4.3: connector id and
// version and manifest format and schema_version present, the declared
// interface_hash recomputed and checked, and no capability listed as both
// required and forbidden. Forbidden-over-optional precedence is not
// checked here; HasRequiredCapability applies it at lookup time.
func Validate(doc Document) (ConnectorManifest, error) {
	if doc.Connector.ID == "" || doc.Connector.Version == "" {
		return ConnectorManifest{}, newErr(ReasonPolicyInvalid, "connector id and version are required")
	}
	if doc.Manifest.Format == "" || doc.Manifest.SchemaVersion == "" {
		return ConnectorManifest{}, newErr(ReasonPolicyInvalid, "manifest format and schema_version are required")
	}

	forbidden := make(map[string]struct{}, len(doc.Capabilities.Forbidden))
	for _, c := range doc.Capabilities.Forbidden {
		forbidden[c] = struct{}{}
	}
	for _, c := range doc.Capabilities.Required {
		if _, ok := forbidden[c]; ok {
			return ConnectorManifest{}, newErr(ReasonPolicyInvalid, "capability "+c+" is both required and forbidden")
		}
	}

	ops := make(map[string]Operation, len(doc.Provides.Operations))
	for name, op := range doc.Provides.Operations {
		op.Name = name
		ops[name] = op
	}

	m := ConnectorManifest{
		Manifest:     doc.Manifest,
		Connector:    doc.Connector,
		Zones:        doc.Zones,
		Capabilities: doc.Capabilities,
		Sandbox:      doc.Sandbox,
		Operations:   ops,
	}

	computed := computeInterfaceHash(m)
	declared, err := ids.DigestFromBytes(mustHexDecode(doc.Manifest.InterfaceHash))
	if err != nil {
		return ConnectorManifest{}, newErr(ReasonPolicyInvalid, "interface_hash is not a valid 32-byte hex digest")
	}
	if computed != declared {
		return ConnectorManifest{}, ErrHashMismatch
	}
	m.InterfaceHash = computed
	return m, nil
}

// InterfaceHashOf computes the interface hash for m the same way Validate
// does, for callers that need to stamp a manifest document before it is
// signed or distributed.
func InterfaceHashOf(m ConnectorManifest) ids.Digest {
	return computeInterfaceHash(m)
}

// computeInterfaceHash deterministically hashes, with the mesh's single
// keyed digest, the connector id and version, the manifest format,
// schema_version, min_mesh_version and min_protocol, the required,
// optional and forbidden capability lists, and each operation's name,
// risk_level, safety_tier and requires_approval. The sandbox and zones
// sections, the other connector and manifest fields, and the other
// operation fields (rate limit, schemas, idempotency, network
// constraints) are not covered.
func computeInterfaceHash(m ConnectorManifest) ids.Digest {
	parts := [][]byte{
		[]byte(m.Connector.ID),
		[]byte(m.Connector.Version),
		[]byte(m.Manifest.Format),
		[]byte(m.Manifest.SchemaVersion),
		[]byte(m.Manifest.MinMeshVersion),
		[]byte(m.Manifest.MinProtocol),
	}
	parts = append(parts, stringSliceBytes(m.Capabilities.Required)...)
	parts = append(parts, []byte{0})
	parts = append(parts, stringSliceBytes(m.Capabilities.Optional)...)
	parts = append(parts, []byte{0})
	parts = append(parts, stringSliceBytes(m.Capabilities.Forbidden)...)
	parts = append(parts, []byte{0})

	names := make([]string, 0, len(m.Operations))
	for name := range m.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		op := m.Operations[name]
		parts = append(parts, []byte(name), []byte(op.RiskLevel), []byte(op.SafetyTier), []byte(op.RequiresApproval))
	}
	return codec.KeyedDigest(parts...)
}

func stringSliceBytes(ss []string) [][]byte {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	out := make([][]byte, len(sorted))
	for i, s := range sorted {
		out[i] = []byte(s)
	}
	return out
}

// HasRequiredCapability reports whether cap is declared required or
// optional, and not forbidden, per ACE's admission check (spec.md §4.4
// step 3).
func (m ConnectorManifest) HasRequiredCapability(cap string) bool {
	for _, c := range m.Capabilities.Forbidden {
		if c == cap {
			return false
		}
	}
	for _, c := range m.Capabilities.Required {
		if c == cap {
			return true
		}
	}
	for _, c := range m.Capabilities.Optional {
		if c == cap {
			return true
		}
	}
	return false
}
