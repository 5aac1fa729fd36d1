// manifest.go: plugin manifest model and builder
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"strings"
)

// wildcardSuffix marks a capability name as a package wildcard.
const wildcardSuffix = ".*"

// CapabilityRef is a requirement on a named capability or, in the
// required-plugins list, on a plugin id. Name never carries the wildcard
// suffix; IsPackageWildcard records it.
type CapabilityRef struct {
	Name              string
	Range             VersionRange
	IsPackageWildcard bool
}

// String renders the reference in manifest notation.
func (c CapabilityRef) String() string {
	name := c.Name
	if c.IsPackageWildcard {
		name += wildcardSuffix
	}
	if r := c.Range.String(); r != "" {
		return name + " " + r
	}
	return name
}

// ExportedCapability is a capability a plugin provides at a fixed version.
type ExportedCapability struct {
	Name              string
	Version           string
	IsPackageWildcard bool
}

// String renders the export in manifest notation.
func (e ExportedCapability) String() string {
	name := e.Name
	if e.IsPackageWildcard {
		name += wildcardSuffix
	}
	return name + " [" + e.Version + "]"
}

// Satisfies reports whether this export fulfils ref: the names match and
// the export's version lies in ref's range. A wildcard on either side
// matches every name sharing its package prefix.
func (e ExportedCapability) Satisfies(ref CapabilityRef) bool {
	if !capabilityNamesMatch(e.Name, e.IsPackageWildcard, ref.Name, ref.IsPackageWildcard) {
		return false
	}
	return ref.Range.Contains(e.Version)
}

func capabilityNamesMatch(exported string, exportedWildcard bool, required string, requiredWildcard bool) bool {
	if exported == required {
		return true
	}
	if requiredWildcard && strings.HasPrefix(exported, required+".") {
		return true
	}
	if exportedWildcard && strings.HasPrefix(required, exported+".") {
		return true
	}
	return false
}

// splitWildcard strips a trailing ".*" and reports whether it was present.
func splitWildcard(name string) (string, bool) {
	if strings.HasSuffix(name, wildcardSuffix) {
		return strings.TrimSuffix(name, wildcardSuffix), true
	}
	return name, false
}

// PluginManifest is the parsed, immutable description of a plugin bundle.
// Accessors return copies; a manifest never changes after construction.
type PluginManifest struct {
	id              string
	version         string
	hookUnits       []string
	requires        []CapabilityRef
	requiredPlugins []CapabilityRef
	exports         []ExportedCapability
}

// ID returns the unique plugin id.
func (m *PluginManifest) ID() string { return m.id }

// Version returns the plugin version as declared (default "0.0.0").
func (m *PluginManifest) Version() string { return m.version }

// HookUnits returns the hook unit identifiers in declaration order.
func (m *PluginManifest) HookUnits() []string {
	return append([]string(nil), m.hookUnits...)
}

// Requires returns the required capabilities.
func (m *PluginManifest) Requires() []CapabilityRef {
	return append([]CapabilityRef(nil), m.requires...)
}

// RequiredPlugins returns the required sibling plugins; Name is a plugin id.
func (m *PluginManifest) RequiredPlugins() []CapabilityRef {
	return append([]CapabilityRef(nil), m.requiredPlugins...)
}

// Exports returns the exported capabilities.
func (m *PluginManifest) Exports() []ExportedCapability {
	return append([]ExportedCapability(nil), m.exports...)
}

// String renders the manifest in descriptor format. Parsing the result
// yields an equivalent manifest.
func (m *PluginManifest) String() string {
	var b strings.Builder
	b.WriteString("PLUGIN-ID: " + m.id + "\n")
	b.WriteString("VERSION: " + m.version + "\n")
	if len(m.hookUnits) > 0 {
		b.WriteString("PLUGIN-CLASSES: " + strings.Join(m.hookUnits, ";") + "\n")
	}
	if len(m.requires) > 0 {
		b.WriteString("REQUIRES: " + joinRefs(m.requires) + "\n")
	}
	if len(m.exports) > 0 {
		parts := make([]string, len(m.exports))
		for i, e := range m.exports {
			parts[i] = e.String()
		}
		b.WriteString("EXPORTS: " + strings.Join(parts, "; ") + "\n")
	}
	if len(m.requiredPlugins) > 0 {
		b.WriteString("REQUIRES-PLUGINS: " + joinRefs(m.requiredPlugins) + "\n")
	}
	return b.String()
}

func joinRefs(refs []CapabilityRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, "; ")
}

// ManifestBuilder assembles a PluginManifest programmatically, for plugins
// that are registered in code rather than shipped with a descriptor file.
//
// Example usage:
//
//	manifest, err := NewManifestBuilder("org.example.greeter").
//	    Version("1.2.0").
//	    HookUnits("greeter.Hook").
//	    Require("org.example.api", Between("1.0", "2.0")).
//	    Export("org.example.greeting", "1.2.0").
//	    Build()
type ManifestBuilder struct {
	manifest PluginManifest
}

// NewManifestBuilder starts a manifest for the given plugin id.
func NewManifestBuilder(id string) *ManifestBuilder {
	return &ManifestBuilder{manifest: PluginManifest{id: strings.TrimSpace(id), version: DefaultVersion}}
}

// Version sets the plugin version.
func (b *ManifestBuilder) Version(version string) *ManifestBuilder {
	b.manifest.version = strings.TrimSpace(version)
	return b
}

// HookUnits appends hook unit identifiers.
func (b *ManifestBuilder) HookUnits(units ...string) *ManifestBuilder {
	b.manifest.hookUnits = append(b.manifest.hookUnits, units...)
	return b
}

// Require appends a required capability; a trailing ".*" makes it a
// package wildcard.
func (b *ManifestBuilder) Require(name string, r VersionRange) *ManifestBuilder {
	base, wildcard := splitWildcard(name)
	b.manifest.requires = append(b.manifest.requires, CapabilityRef{Name: base, Range: r, IsPackageWildcard: wildcard})
	return b
}

// RequirePlugin appends a required sibling plugin.
func (b *ManifestBuilder) RequirePlugin(id string, r VersionRange) *ManifestBuilder {
	b.manifest.requiredPlugins = append(b.manifest.requiredPlugins, CapabilityRef{Name: id, Range: r})
	return b
}

// Export appends an exported capability. An empty version means "0.0.0".
func (b *ManifestBuilder) Export(name, version string) *ManifestBuilder {
	if version == "" {
		version = DefaultVersion
	}
	base, wildcard := splitWildcard(name)
	b.manifest.exports = append(b.manifest.exports, ExportedCapability{Name: base, Version: version, IsPackageWildcard: wildcard})
	return b
}

// Build validates and returns the manifest. The builder may be reused; the
// returned manifest does not share storage with it.
func (b *ManifestBuilder) Build() (*PluginManifest, error) {
	if b.manifest.id == "" {
		return nil, NewManifestParseError(blockPluginID, "", "plugin id is required")
	}
	if b.manifest.version == "" {
		b.manifest.version = DefaultVersion
	}
	if !IsValidVersion(b.manifest.version) {
		return nil, NewManifestParseError(blockVersion, b.manifest.version, "invalid version")
	}
	m := &PluginManifest{
		id:              b.manifest.id,
		version:         b.manifest.version,
		hookUnits:       append([]string(nil), b.manifest.hookUnits...),
		requires:        append([]CapabilityRef(nil), b.manifest.requires...),
		requiredPlugins: append([]CapabilityRef(nil), b.manifest.requiredPlugins...),
		exports:         append([]ExportedCapability(nil), b.manifest.exports...),
	}
	return m, nil
}
