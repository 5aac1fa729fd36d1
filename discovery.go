// discovery.go: filesystem discovery of plugin bundles
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Discovery turns configured locations into plugin references.
type Discovery interface {
	Discover(ctx context.Context, locations []string) ([]string, error)
}

// DefaultDiscoveryDepth lets a location be a bundle or a directory of
// bundles.
const DefaultDiscoveryDepth = 1

// DirectoryDiscovery finds plugin bundles on the local filesystem.
//
// A location is either a bundle directory itself or a directory whose
// subdirectories are bundles. Directories are scanned in lexical order, so
// the returned references are deterministic. Bundles that require or export
// a restricted capability are skipped with a warning; a bundle whose
// manifest cannot be parsed is still returned so that registration reports
// the parse error.
//
// Example:
//
//	discovery := NewDirectoryDiscovery(NewBundleHandler(nil, ""),
//	    WithRestrictedCapabilities([]string{"os", "net.raw"}),
//	    WithDiscoveryLogger(logger))
//	refs, err := discovery.Discover(ctx, []string{"/opt/termite/plugins"})
type DirectoryDiscovery struct {
	handler    *BundleHandler
	restricted []string
	maxDepth   int
	logger     Logger
}

// DiscoveryOption configures a DirectoryDiscovery.
type DiscoveryOption func(*DirectoryDiscovery)

// WithDiscoveryLogger sets the logger.
func WithDiscoveryLogger(logger Logger) DiscoveryOption {
	return func(d *DirectoryDiscovery) {
		d.logger = NewLogger(logger)
	}
}

// WithRestrictedCapabilities sets the capability names plugins may not use.
// A name also restricts every capability below it ("net" covers "net.http").
func WithRestrictedCapabilities(names []string) DiscoveryOption {
	return func(d *DirectoryDiscovery) {
		d.restricted = d.restricted[:0]
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				d.restricted = append(d.restricted, name)
			}
		}
	}
}

// WithMaxDepth sets how many directory levels below a location are searched
// for bundles.
func WithMaxDepth(depth int) DiscoveryOption {
	return func(d *DirectoryDiscovery) {
		if depth >= 0 {
			d.maxDepth = depth
		}
	}
}

// NewDirectoryDiscovery creates a discovery reading manifests through
// handler (a default BundleHandler when nil).
func NewDirectoryDiscovery(handler *BundleHandler, opts ...DiscoveryOption) *DirectoryDiscovery {
	if handler == nil {
		handler = NewBundleHandler(nil, "")
	}
	d := &DirectoryDiscovery{
		handler:  handler,
		maxDepth: DefaultDiscoveryDepth,
		logger:   DefaultLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover implements Discovery. Missing or unreadable locations are logged
// and skipped; only cancellation of ctx is returned as an error.
func (d *DirectoryDiscovery) Discover(ctx context.Context, locations []string) ([]string, error) {
	d.logger.Info("Starting plugin discovery", "locations", locations)

	var references []string
	seen := make(map[string]bool)

	for _, location := range locations {
		location = strings.TrimSpace(location)
		if location == "" {
			continue
		}
		root, err := filepath.Abs(location)
		if err != nil {
			d.logger.Warn("Invalid plugin location", "location", location, "error", err)
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			d.logger.Warn("Plugin location is not a directory", "location", root)
			continue
		}

		found, err := d.scanDirectory(ctx, root, 0)
		if err != nil {
			return nil, NewDiscoveryError("plugin discovery cancelled", err)
		}
		for _, reference := range found {
			if !seen[reference] {
				seen[reference] = true
				references = append(references, reference)
			}
		}
	}

	d.logger.Info("Plugin discovery completed", "plugins_found", len(references))
	return references, nil
}

// scanDirectory returns the bundle references at or below dir.
func (d *DirectoryDiscovery) scanDirectory(ctx context.Context, dir string, depth int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.handler.hasManifest(dir) {
		if reference, ok := d.inspectBundle(dir); ok {
			return []string{reference}, nil
		}
		return nil, nil
	}
	if depth >= d.maxDepth {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		d.logger.Warn("Failed to read plugin directory", "path", dir, "error", err)
		return nil, nil
	}

	var references []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		found, err := d.scanDirectory(ctx, filepath.Join(dir, entry.Name()), depth+1)
		if err != nil {
			return nil, err
		}
		references = append(references, found...)
	}
	return references, nil
}

// inspectBundle applies the restricted capability filter to the bundle in
// dir.
func (d *DirectoryDiscovery) inspectBundle(dir string) (string, bool) {
	reference := BundleReference(dir)
	if len(d.restricted) == 0 {
		return reference, true
	}

	resource, err := d.handler.Resolve(reference, dir)
	if err != nil {
		d.logger.Warn("Bundle manifest unreadable during discovery", "path", dir, "error", err)
		return reference, true
	}
	manifest, _ := resource.(PluginResource).Manifest()

	if name, restricted := d.restrictedUse(manifest); restricted {
		d.logger.Warn("Plugin uses a restricted capability",
			"plugin_id", manifest.ID(),
			"capability", name,
			"path", dir)
		return "", false
	}

	d.logger.Debug("Discovered plugin", "plugin_id", manifest.ID(), "version", manifest.Version(), "path", dir)
	return reference, true
}

func (d *DirectoryDiscovery) restrictedUse(manifest *PluginManifest) (string, bool) {
	for _, ref := range manifest.Requires() {
		if d.isRestricted(ref.Name) {
			return ref.Name, true
		}
	}
	for _, export := range manifest.Exports() {
		if d.isRestricted(export.Name) {
			return export.Name, true
		}
	}
	return "", false
}

func (d *DirectoryDiscovery) isRestricted(name string) bool {
	for _, restricted := range d.restricted {
		if name == restricted || strings.HasPrefix(name, restricted+".") {
			return true
		}
	}
	return false
}
