package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostlabs/seance/core"
)

func writeManifestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifestYAML(t *testing.T) {
	path := writeManifestFile(t, "manifest.yaml", `
severity: warning
plugins:
  - id: echo_haunt
    haunt_weight: 0.5
    depends_on: []
    config:
      greeting: boo
  - id: whisper
    factory: whisper_v2
    depends_on: [echo_haunt]
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, SeverityWarning, m.Severity)
	require.Len(t, m.Plugins, 2)
	assert.Equal(t, "echo_haunt", m.Plugins[0].ID)
	assert.Equal(t, "echo_haunt", m.Plugins[0].Factory) // defaulted to id
	require.NotNil(t, m.Plugins[0].HauntWeight)
	assert.Equal(t, 0.5, *m.Plugins[0].HauntWeight)
	assert.Equal(t, "boo", m.Plugins[0].Config["greeting"])
	assert.Equal(t, "whisper_v2", m.Plugins[1].Factory)
	assert.Nil(t, m.Plugins[1].HauntWeight) // absent key stays unset
	assert.Equal(t, []string{"echo_haunt"}, m.Plugins[1].DependsOn)
}

func TestLoadManifestTOML(t *testing.T) {
	path := writeManifestFile(t, "manifest.toml", `
severity = "critical"

[[plugin]]
id = "echo_haunt"
haunt_weight = 1.0
permissions = ["emit", "state"]
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, SeverityCritical, m.Severity)
	require.Len(t, m.Plugins, 1)
	assert.Equal(t, "echo_haunt", m.Plugins[0].ID)
	require.NotNil(t, m.Plugins[0].HauntWeight)
	assert.Equal(t, 1.0, *m.Plugins[0].HauntWeight)
	assert.Equal(t, []string{"emit", "state"}, m.Plugins[0].Permissions)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FaultManifestation))
}

func TestLoadManifestMalformed(t *testing.T) {
	path := writeManifestFile(t, "broken.yaml", "plugins: [unclosed")

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.FaultManifestation))
}

func TestValidateDefaultsSeverity(t *testing.T) {
	m := &Manifest{Plugins: []Descriptor{{ID: "a"}}}

	require.NoError(t, m.Validate())
	assert.Equal(t, SeverityInfo, m.Severity)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name     string
		manifest *Manifest
	}{
		{
			name:     "unknown severity",
			manifest: &Manifest{Severity: "loud", Plugins: []Descriptor{{ID: "a"}}},
		},
		{
			name:     "no plugins",
			manifest: &Manifest{},
		},
		{
			name:     "empty id",
			manifest: &Manifest{Plugins: []Descriptor{{ID: ""}}},
		},
		{
			name:     "duplicate id",
			manifest: &Manifest{Plugins: []Descriptor{{ID: "a"}, {ID: "a"}}},
		},
		{
			name:     "weight above one",
			manifest: &Manifest{Plugins: []Descriptor{{ID: "a", HauntWeight: hauntWeight(1.5)}}},
		},
		{
			name:     "negative weight",
			manifest: &Manifest{Plugins: []Descriptor{{ID: "a", HauntWeight: hauntWeight(-0.1)}}},
		},
		{
			name:     "unknown dependency",
			manifest: &Manifest{Plugins: []Descriptor{{ID: "a", DependsOn: []string{"ghost"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.FaultManifestation))
		})
	}
}
