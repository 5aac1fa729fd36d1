// loader.go: scheme-dispatching resource loader
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"regexp"
	"sort"
	"strings"
)

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

// Resource is anything a reference resolves to.
type Resource interface {
	// Reference returns the reference the resource was resolved from.
	Reference() string
}

// PluginResource is a resolved plugin bundle.
type PluginResource interface {
	Resource
	// Manifest returns the bundle's parsed manifest.
	Manifest() (*PluginManifest, error)
}

// HookFactory is a resolved hook unit that can create hook instances.
// NewHook may return any value; it is adapted with AdaptHook.
type HookFactory interface {
	Resource
	NewHook() (any, error)
}

// HookUnitQualifier is implemented by plugin resources that rewrite the
// hook unit references of their own manifest, for example to resolve script
// paths relative to the bundle directory.
type HookUnitQualifier interface {
	QualifyHookUnit(reference string) string
}

// Loader resolves references of the form "scheme:path".
type Loader interface {
	Resolve(reference string) (Resource, error)
}

// SchemeHandler resolves the path part of references for one scheme.
type SchemeHandler interface {
	Resolve(reference, path string) (Resource, error)
}

// SchemeHandlerFunc adapts a function to SchemeHandler.
type SchemeHandlerFunc func(reference, path string) (Resource, error)

// Resolve calls f.
func (f SchemeHandlerFunc) Resolve(reference, path string) (Resource, error) {
	return f(reference, path)
}

// SplitReference splits "scheme:path" into its parts. Both parts must be
// non-empty and the scheme must be a valid identifier.
func SplitReference(reference string) (scheme, path string, err error) {
	idx := strings.Index(reference, ":")
	if idx <= 0 || idx == len(reference)-1 {
		return "", "", NewInvalidReferenceError(reference)
	}
	scheme, path = reference[:idx], reference[idx+1:]
	if !schemePattern.MatchString(scheme) {
		return "", "", NewInvalidReferenceError(reference)
	}
	return strings.ToLower(scheme), path, nil
}

// ResourceLoader dispatches references to the handler registered for their
// scheme. The zero value is not usable; create one with NewResourceLoader.
//
// Example usage:
//
//	hooks := NewHookRegistry()
//	hooks.Register("greeter", func() (any, error) { return &Greeter{}, nil })
//
//	loader := NewResourceLoader(logger)
//	loader.Register(BundleScheme, NewBundleHandler(parser, "PLUGIN.MF"))
//	loader.Register(DefaultHookScheme, hooks)
//	loader.Register(LuaScheme, NewLuaHookHandler(logger))
type ResourceLoader struct {
	handlers map[string]SchemeHandler
	logger   Logger
}

// NewResourceLoader creates a loader without handlers.
func NewResourceLoader(logger Logger) *ResourceLoader {
	return &ResourceLoader{
		handlers: make(map[string]SchemeHandler),
		logger:   NewLogger(logger),
	}
}

// Register installs handler for scheme, replacing any previous handler.
func (l *ResourceLoader) Register(scheme string, handler SchemeHandler) {
	scheme = strings.ToLower(scheme)
	if _, exists := l.handlers[scheme]; exists {
		l.logger.Warn("Replacing scheme handler", "scheme", scheme)
	}
	l.handlers[scheme] = handler
}

// Schemes returns the registered schemes, sorted.
func (l *ResourceLoader) Schemes() []string {
	schemes := make([]string, 0, len(l.handlers))
	for scheme := range l.handlers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Resolve implements Loader.
func (l *ResourceLoader) Resolve(reference string) (Resource, error) {
	scheme, path, err := SplitReference(reference)
	if err != nil {
		return nil, err
	}
	handler, ok := l.handlers[scheme]
	if !ok {
		return nil, NewUnknownSchemeError(reference, scheme)
	}
	l.logger.Debug("Resolving resource", "reference", reference, "scheme", scheme)
	return handler.Resolve(reference, path)
}

// manifestResource is a PluginResource backed by an in-memory manifest.
type manifestResource struct {
	reference string
	manifest  *PluginManifest
}

func (r *manifestResource) Reference() string                  { return r.reference }
func (r *manifestResource) Manifest() (*PluginManifest, error) { return r.manifest, nil }

// StaticPluginHandler serves manifests registered in code, keyed by path.
// It lets applications ship plugins inside the binary next to bundles
// discovered on disk.
type StaticPluginHandler struct {
	manifests map[string]*PluginManifest
}

// NewStaticPluginHandler creates an empty handler.
func NewStaticPluginHandler() *StaticPluginHandler {
	return &StaticPluginHandler{manifests: make(map[string]*PluginManifest)}
}

// Add registers manifest under path, replacing any previous entry.
func (h *StaticPluginHandler) Add(path string, manifest *PluginManifest) {
	h.manifests[path] = manifest
}

// Remove drops the manifest registered under path.
func (h *StaticPluginHandler) Remove(path string) {
	delete(h.manifests, path)
}

// Resolve implements SchemeHandler.
func (h *StaticPluginHandler) Resolve(reference, path string) (Resource, error) {
	manifest, ok := h.manifests[path]
	if !ok {
		return nil, NewResourceNotFoundError(reference, nil)
	}
	return &manifestResource{reference: reference, manifest: manifest}, nil
}
