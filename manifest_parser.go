// manifest_parser.go: line-oriented plugin descriptor parser
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// Recognized manifest blocks. Block names are matched case-insensitively.
const (
	blockPluginID        = "PLUGIN-ID"
	blockVersion         = "VERSION"
	blockPluginClasses   = "PLUGIN-CLASSES"
	blockRequires        = "REQUIRES"
	blockExports         = "EXPORTS"
	blockRequiresPlugins = "REQUIRES-PLUGINS"
)

// DefaultCommentMarker starts a comment line in a descriptor.
const DefaultCommentMarker = "#"

// entrySeparator separates entries inside list blocks.
const entrySeparator = ";"

// maxManifestLine caps the length of a single descriptor line.
const maxManifestLine = 16 * 1024 * 1024

var (
	blockHeaderPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_.\-]*)\s*:(.*)$`)

	knownBlocks = map[string]bool{
		blockPluginID:        true,
		blockVersion:         true,
		blockPluginClasses:   true,
		blockRequires:        true,
		blockExports:         true,
		blockRequiresPlugins: true,
	}
)

// ManifestParser turns descriptor text into a PluginManifest.
//
// The descriptor is a sequence of blocks, each introduced by a header line
// "<NAME>:<content>". Content may continue on the following lines until the
// next header; continuation lines are appended with surrounding whitespace
// trimmed. Blank lines and comment lines are skipped.
//
// Every "NAME:" line is a header unless NAME is a reserved hook-unit scheme,
// so continuation lines such as "lua:hooks/init.lua" stay part of the
// current block. Unknown blocks are logged as warnings and discarded.
//
// Example descriptor:
//
//	# greeter bundle
//	PLUGIN-ID: org.example.greeter
//	VERSION: 1.2.0
//	PLUGIN-CLASSES: greeter.Hook;
//	    lua:hooks/greeter.lua
//	REQUIRES: org.example.api [1.0, 2.0); org.example.util.*
//	EXPORTS: org.example.greeting [1.2.0]
//	REQUIRES-PLUGINS: org.example.core [1.0]
type ManifestParser struct {
	commentMarker string
	logger        Logger
	reserved      map[string]bool
}

// ManifestParserOption configures a ManifestParser.
type ManifestParserOption func(*ManifestParser)

// WithCommentMarker overrides the comment prefix (default "#").
func WithCommentMarker(marker string) ManifestParserOption {
	return func(p *ManifestParser) {
		if marker != "" {
			p.commentMarker = marker
		}
	}
}

// WithParserLogger sets the logger used for non-fatal warnings.
func WithParserLogger(logger Logger) ManifestParserOption {
	return func(p *ManifestParser) {
		p.logger = NewLogger(logger)
	}
}

// WithReservedSchemes adds hook-unit schemes whose "scheme:path" lines
// continue the current block instead of starting a new one.
func WithReservedSchemes(schemes ...string) ManifestParserOption {
	return func(p *ManifestParser) {
		p.ReserveSchemes(schemes...)
	}
}

// NewManifestParser creates a parser with the given options. The built-in
// schemes plugin, hook, class and lua are always reserved.
func NewManifestParser(opts ...ManifestParserOption) *ManifestParser {
	p := &ManifestParser{
		commentMarker: DefaultCommentMarker,
		logger:        DefaultLogger(),
		reserved:      make(map[string]bool),
	}
	p.ReserveSchemes(BundleScheme, DefaultHookScheme, ClassScheme, LuaScheme)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReserveSchemes reserves more hook-unit schemes. It must be called before
// the parser is shared.
func (p *ManifestParser) ReserveSchemes(schemes ...string) {
	for _, scheme := range schemes {
		if scheme = strings.TrimSpace(scheme); scheme != "" {
			p.reserved[strings.ToUpper(scheme)] = true
		}
	}
}

type manifestBlock struct {
	name    string
	content string
	line    int
}

// ParseString parses a descriptor held in memory.
func (p *ManifestParser) ParseString(descriptor string) (*PluginManifest, error) {
	return p.Parse(strings.NewReader(descriptor))
}

// Parse reads a descriptor from r. It fails only when PLUGIN-ID is missing,
// an entry is malformed, or r cannot be read.
func (p *ManifestParser) Parse(r io.Reader) (*PluginManifest, error) {
	blocks, err := p.readBlocks(r)
	if err != nil {
		return nil, err
	}

	m := &PluginManifest{}
	for _, b := range blocks {
		if err := p.applyBlock(m, b); err != nil {
			return nil, err
		}
	}

	if m.id == "" {
		return nil, NewManifestParseError(blockPluginID, "", "missing required block "+blockPluginID)
	}
	if m.version == "" {
		m.version = DefaultVersion
	}
	return m, nil
}

func (p *ManifestParser) readBlocks(r io.Reader) ([]manifestBlock, error) {
	var (
		blocks  []manifestBlock
		current *manifestBlock
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxManifestLine)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, p.commentMarker) {
			continue
		}

		if name, content, ok := p.matchBlockHeader(line); ok {
			if current != nil {
				blocks = append(blocks, *current)
			}
			current = &manifestBlock{name: name, content: content, line: lineNo}
			continue
		}

		if current == nil {
			p.logger.Warn("Manifest content outside of any block ignored", "line", lineNo, "content", line)
			continue
		}
		current.content += line
	}
	if err := scanner.Err(); err != nil {
		return nil, NewManifestParseError("", "", "failed to read manifest: "+err.Error())
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks, nil
}

func (p *ManifestParser) matchBlockHeader(line string) (name, content string, ok bool) {
	m := blockHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	name = strings.ToUpper(m[1])
	if !knownBlocks[name] && p.reserved[name] {
		return "", "", false
	}
	return name, strings.TrimSpace(m[2]), true
}

func (p *ManifestParser) applyBlock(m *PluginManifest, b manifestBlock) error {
	switch b.name {
	case blockPluginID:
		m.id = strings.TrimSpace(b.content)
	case blockVersion:
		version := strings.TrimSpace(b.content)
		if version != "" && !IsValidVersion(version) {
			return NewManifestParseError(b.name, version, "invalid version").
				WithContext("line", b.line)
		}
		m.version = version
	case blockPluginClasses:
		m.hookUnits = append(m.hookUnits, splitEntries(b.content)...)
	case blockRequires:
		refs, err := parseCapabilityRefs(b, true)
		if err != nil {
			return err
		}
		m.requires = append(m.requires, refs...)
	case blockRequiresPlugins:
		refs, err := parseCapabilityRefs(b, false)
		if err != nil {
			return err
		}
		m.requiredPlugins = append(m.requiredPlugins, refs...)
	case blockExports:
		exports, err := parseExports(b)
		if err != nil {
			return err
		}
		m.exports = append(m.exports, exports...)
	default:
		p.logger.Warn("Unknown block in manifest", "block", b.name, "content", b.content, "line", b.line)
	}
	return nil
}

func splitEntries(content string) []string {
	var entries []string
	for _, raw := range strings.Split(content, entrySeparator) {
		if entry := strings.TrimSpace(raw); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// splitEntry separates "<name> <range>" into its name and range token.
func splitEntry(entry string) (name, rangeToken string) {
	if idx := strings.IndexAny(entry, "[("); idx >= 0 {
		return strings.TrimSpace(entry[:idx]), strings.TrimSpace(entry[idx:])
	}
	return strings.TrimSpace(entry), ""
}

func validEntryName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t[]()")
}

func parseCapabilityRefs(b manifestBlock, allowWildcard bool) ([]CapabilityRef, error) {
	var refs []CapabilityRef
	for _, entry := range splitEntries(b.content) {
		name, token := splitEntry(entry)
		if !validEntryName(name) {
			return nil, NewManifestParseError(b.name, entry, "invalid entry name").
				WithContext("line", b.line)
		}

		r, problem := parseRange(token)
		if problem != "" {
			return nil, NewManifestParseError(b.name, entry, problem).
				WithContext("line", b.line)
		}

		ref := CapabilityRef{Name: name, Range: r}
		if allowWildcard {
			ref.Name, ref.IsPackageWildcard = splitWildcard(name)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseExports(b manifestBlock) ([]ExportedCapability, error) {
	var exports []ExportedCapability
	for _, entry := range splitEntries(b.content) {
		name, token := splitEntry(entry)
		if !validEntryName(name) {
			return nil, NewManifestParseError(b.name, entry, "invalid entry name").
				WithContext("line", b.line)
		}
		if strings.Contains(token, ",") {
			return nil, NewManifestParseError(b.name, entry, "exports declare a single version").
				WithContext("line", b.line)
		}

		r, problem := parseRange(token)
		if problem != "" {
			return nil, NewManifestParseError(b.name, entry, problem).
				WithContext("line", b.line)
		}

		version := r.Lower
		if version == "" {
			version = DefaultVersion
		}
		base, wildcard := splitWildcard(name)
		exports = append(exports, ExportedCapability{Name: base, Version: version, IsPackageWildcard: wildcard})
	}
	return exports, nil
}
