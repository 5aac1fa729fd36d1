// version.go: dotted version comparison and version ranges
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultVersion is assigned to manifests and exports that declare none.
const DefaultVersion = "0.0.0"

// minVersionSegments is the width versions are padded to before comparison.
const minVersionSegments = 3

var versionPattern = regexp.MustCompile(`^[A-Za-z0-9_+\-]+(\.[A-Za-z0-9_+\-]+)*$`)

// NormalizeVersion pads a dotted version to at least three segments with "0".
//
//	NormalizeVersion("1.0")        // "1.0.0"
//	NormalizeVersion("0.1.2.TEST") // "0.1.2.TEST"
func NormalizeVersion(version string) string {
	segments := strings.Split(strings.TrimSpace(version), ".")
	for len(segments) < minVersionSegments {
		segments = append(segments, "0")
	}
	return strings.Join(segments, ".")
}

// IsValidVersion reports whether version is a well-formed dotted version:
// one or more non-empty segments without whitespace or bracket characters.
func IsValidVersion(version string) bool {
	return versionPattern.MatchString(version)
}

// CompareVersions compares two dotted versions segment by segment and returns
// -1, 0 or 1. Segments are compared numerically when both parse as
// non-negative integers, lexicographically otherwise. The shorter version is
// padded with "0" segments.
func CompareVersions(a, b string) int {
	as := strings.Split(NormalizeVersion(a), ".")
	bs := strings.Split(NormalizeVersion(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		x, y := "0", "0"
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		if c := compareSegment(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// VersionRange is a pair of optional bounds over dotted versions. An empty
// bound means unbounded on that side; the zero value matches every version.
//
// Bounds are not checked against each other: a range whose lower bound
// exceeds its upper bound is legal and simply never matches.
type VersionRange struct {
	Lower          string
	LowerInclusive bool
	Upper          string
	UpperInclusive bool
}

// AtLeast returns the range [version, ).
func AtLeast(version string) VersionRange {
	return VersionRange{Lower: version, LowerInclusive: true}
}

// Between returns the half-open range [lower, upper).
func Between(lower, upper string) VersionRange {
	return VersionRange{Lower: lower, LowerInclusive: true, Upper: upper}
}

// IsUnbounded reports whether the range has no bounds at all.
func (r VersionRange) IsUnbounded() bool {
	return r.Lower == "" && r.Upper == ""
}

// Contains reports whether version satisfies both bounds.
func (r VersionRange) Contains(version string) bool {
	if r.Lower != "" {
		c := CompareVersions(version, r.Lower)
		if c < 0 || (c == 0 && !r.LowerInclusive) {
			return false
		}
	}
	if r.Upper != "" {
		c := CompareVersions(version, r.Upper)
		if c > 0 || (c == 0 && !r.UpperInclusive) {
			return false
		}
	}
	return true
}

// String renders the range in manifest notation, or "" when unbounded.
func (r VersionRange) String() string {
	if r.IsUnbounded() {
		return ""
	}
	var b strings.Builder
	if r.LowerInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	b.WriteString(r.Lower)
	b.WriteString(", ")
	b.WriteString(r.Upper)
	if r.UpperInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// ParseVersionRange parses a bracketed range token.
//
// Accepted forms:
//
//	""            unbounded
//	"[]"          unbounded
//	"[1.0, 2.0)"  both bounds, inclusivity per bracket
//	"(, 2.0]"     upper bound only
//	"[1.0, ]"     lower bound only
//	"[1.0]"       a single version: at least 1.0 ("(1.0)" means above 1.0)
//
// Anything else yields a manifest parse error.
func ParseVersionRange(token string) (VersionRange, error) {
	r, problem := parseRange(token)
	if problem != "" {
		return VersionRange{}, NewManifestParseError("", token, problem)
	}
	return r, nil
}

// parseRange returns the parsed range or a non-empty problem description.
func parseRange(token string) (VersionRange, string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VersionRange{}, ""
	}
	if len(token) < 2 {
		return VersionRange{}, "malformed version range " + token
	}

	open, closing := token[0], token[len(token)-1]
	if (open != '[' && open != '(') || (closing != ']' && closing != ')') {
		return VersionRange{}, "version range must be enclosed in [ or ( and ] or ): " + token
	}

	inner := token[1 : len(token)-1]
	if strings.ContainsAny(inner, "[]()") {
		return VersionRange{}, "nested brackets in version range " + token
	}

	parts := strings.Split(inner, ",")
	if len(parts) > 2 {
		return VersionRange{}, "too many bounds in version range " + token
	}

	r := VersionRange{LowerInclusive: open == '[', UpperInclusive: closing == ']'}
	if lower := strings.TrimSpace(parts[0]); lower != "" {
		if !IsValidVersion(lower) {
			return VersionRange{}, "invalid lower bound " + lower
		}
		r.Lower = lower
	}
	if len(parts) == 2 {
		if upper := strings.TrimSpace(parts[1]); upper != "" {
			if !IsValidVersion(upper) {
				return VersionRange{}, "invalid upper bound " + upper
			}
			r.Upper = upper
		}
	}
	return r, ""
}
