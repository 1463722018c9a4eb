package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ghostlabs/seance/core"
)

// Severity is the manifest's top-level priority label. It constrains a small
// enumerated set; anything else is a load-time error.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityDebug, SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Descriptor declares one plugin to load. Resolution happens through the
// factory registry: Factory names the registered constructor and the
// descriptor only supplies configuration.
type Descriptor struct {
	// ID is the plugin's unique identity; the instantiated plugin must
	// report the same id.
	ID string `yaml:"id" toml:"id"`
	// Factory is the registry key of the constructor. Defaults to ID.
	Factory string `yaml:"factory" toml:"factory"`
	// DependsOn lists plugin ids expected to load before this one.
	DependsOn []string `yaml:"depends_on" toml:"depends_on"`
	// Permissions are opaque capability tags handed to the factory.
	Permissions []string `yaml:"permissions" toml:"permissions"`
	// HauntWeight is the spontaneous-emission probability in [0, 1]. Nil
	// defers to the plugin's own manifest default; an explicit 0 always
	// suppresses haunting.
	HauntWeight *float64 `yaml:"haunt_weight" toml:"haunt_weight"`
	// Config is free-form per-plugin configuration passed to the factory.
	Config map[string]any `yaml:"config" toml:"config"`
}

// Manifest is the ordered declarative list of plugins consumed at load time.
// It is read once per load; re-reading is a fresh load operation, not a live
// diff.
type Manifest struct {
	Severity Severity     `yaml:"severity" toml:"severity"`
	Plugins  []Descriptor `yaml:"plugins" toml:"plugin"`
}

// LoadManifest reads and validates a manifest file. The format follows the
// file extension: .toml decodes as TOML, everything else as YAML. Any parse
// or validation failure is a manifestation fault.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewManifestationFault(fmt.Sprintf("reading manifest %s", path), err)
	}

	manifest := &Manifest{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(raw, manifest); err != nil {
			return nil, core.NewManifestationFault(fmt.Sprintf("decoding manifest %s", path), err)
		}
	default:
		if err := yaml.Unmarshal(raw, manifest); err != nil {
			return nil, core.NewManifestationFault(fmt.Sprintf("decoding manifest %s", path), err)
		}
	}

	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Validate checks structural invariants: a non-empty plugin list, unique
// non-empty ids, weights inside [0, 1] and a recognized severity label. It
// also defaults Severity to info and each empty Factory to its descriptor's
// ID.
func (m *Manifest) Validate() error {
	if m.Severity == "" {
		m.Severity = SeverityInfo
	}
	if !m.Severity.valid() {
		return core.NewManifestationFault(fmt.Sprintf("unrecognized severity label %q", m.Severity), nil)
	}
	if len(m.Plugins) == 0 {
		return core.NewManifestationFault("manifest declares no plugins", nil)
	}

	seen := make(map[string]struct{}, len(m.Plugins))
	for i := range m.Plugins {
		desc := &m.Plugins[i]
		if desc.ID == "" {
			return core.NewManifestationFault(fmt.Sprintf("plugin %d has no id", i), nil)
		}
		if _, dup := seen[desc.ID]; dup {
			return core.NewManifestationFault(fmt.Sprintf("duplicate plugin id %q", desc.ID), nil)
		}
		seen[desc.ID] = struct{}{}
		if desc.Factory == "" {
			desc.Factory = desc.ID
		}
		if w := desc.HauntWeight; w != nil && (*w < 0 || *w > 1) {
			return core.NewManifestationFault(fmt.Sprintf("plugin %q haunt weight %v outside [0,1]", desc.ID, *w), nil)
		}
	}

	for _, desc := range m.Plugins {
		for _, dep := range desc.DependsOn {
			if _, ok := seen[dep]; !ok {
				return core.NewManifestationFault(fmt.Sprintf("plugin %q depends on unknown id %q", desc.ID, dep), nil)
			}
		}
	}
	return nil
}
