package testutil

import (
	"github.com/ghostlabs/seance/loader"
)

// ManifestBuilder helps construct manifests with fluent chaining for tests.
// Example:
//
//	m := NewManifestBuilder().Severity("warning").Plugin("echo_haunt").Build()
type ManifestBuilder struct {
	severity loader.Severity
	plugins  []loader.Descriptor
}

// NewManifestBuilder creates a new builder for a manifest.
// Use chainable methods (Severity, Plugin, Descriptor) then call Build.
func NewManifestBuilder() *ManifestBuilder {
	return &ManifestBuilder{}
}

// Severity sets the manifest severity level (chainable).
func (b *ManifestBuilder) Severity(s loader.Severity) *ManifestBuilder {
	b.severity = s
	return b
}

// Plugin appends a descriptor whose factory name equals its id (chainable).
func (b *ManifestBuilder) Plugin(id string) *ManifestBuilder {
	b.plugins = append(b.plugins, loader.Descriptor{ID: id})
	return b
}

// Descriptor appends a fully specified descriptor (chainable).
func (b *ManifestBuilder) Descriptor(d loader.Descriptor) *ManifestBuilder {
	b.plugins = append(b.plugins, d)
	return b
}

// Build returns a *loader.Manifest with the accumulated descriptors.
func (b *ManifestBuilder) Build() *loader.Manifest {
	return &loader.Manifest{
		Severity: b.severity,
		Plugins:  b.plugins,
	}
}
