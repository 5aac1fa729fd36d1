// bundle.go: on-disk plugin bundles
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"os"
	"path/filepath"
)

// BundleScheme is the reference scheme of plugin bundles on disk.
const BundleScheme = "plugin"

// DefaultManifestFile is the descriptor file name inside a bundle.
const DefaultManifestFile = "PLUGIN.MF"

// BundleHandler resolves "plugin:<dir>" references. A bundle is a directory
// holding a manifest file; hook scripts referenced with a relative path are
// resolved against that directory.
type BundleHandler struct {
	parser       *ManifestParser
	manifestFile string
}

// NewBundleHandler creates a handler reading manifestFile (DefaultManifestFile
// when empty) with parser (a default parser when nil).
func NewBundleHandler(parser *ManifestParser, manifestFile string) *BundleHandler {
	if parser == nil {
		parser = NewManifestParser()
	}
	if manifestFile == "" {
		manifestFile = DefaultManifestFile
	}
	return &BundleHandler{parser: parser, manifestFile: manifestFile}
}

// BundleReference returns the reference of the bundle in dir.
func BundleReference(dir string) string {
	return BundleScheme + ":" + dir
}

// Resolve implements SchemeHandler. The manifest is parsed eagerly, so a
// malformed descriptor fails resolution.
func (h *BundleHandler) Resolve(reference, path string) (Resource, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, NewInvalidReferenceError(reference)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, NewResourceNotFoundError(reference, err)
	}
	if !info.IsDir() {
		return nil, NewResourceTypeError(reference, "bundle directory")
	}

	manifestPath := filepath.Join(root, h.manifestFile)
	f, err := os.Open(manifestPath) // #nosec G304 -- path comes from configured plugin locations
	if err != nil {
		return nil, NewResourceNotFoundError(reference, err)
	}
	defer func() { _ = f.Close() }()

	manifest, err := h.parser.Parse(f)
	if err != nil {
		return nil, err
	}

	return &bundleResource{reference: reference, root: root, manifest: manifest}, nil
}

// hasManifest reports whether dir directly contains the manifest file.
func (h *BundleHandler) hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, h.manifestFile))
	return err == nil && !info.IsDir()
}

type bundleResource struct {
	reference string
	root      string
	manifest  *PluginManifest
}

func (b *bundleResource) Reference() string                  { return b.reference }
func (b *bundleResource) Manifest() (*PluginManifest, error) { return b.manifest, nil }

// Root returns the absolute bundle directory.
func (b *bundleResource) Root() string { return b.root }

// QualifyHookUnit anchors relative script paths at the bundle directory.
func (b *bundleResource) QualifyHookUnit(reference string) string {
	scheme, path, err := SplitReference(reference)
	if err != nil || scheme != LuaScheme || filepath.IsAbs(path) {
		return reference
	}
	return LuaScheme + ":" + filepath.Join(b.root, path)
}
