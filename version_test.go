// version_test.go: tests for dotted version comparison and ranges
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVersion(t *testing.T) {
	tests := map[string]string{
		"1":          "1.0.0",
		"1.0":        "1.0.0",
		"1.2.3":      "1.2.3",
		"0.1.2.TEST": "0.1.2.TEST",
		" 2.1 ":      "2.1.0",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeVersion(in), in)
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0", "1.0.0", 0},
		{"1", "1.0.0.0", 0},
		{"1.10.0", "1.9.0", 1},
		{"1.9.9", "2.0.0", -1},
		{"0.9.9", "1.0.0", -1},
		{"1.a", "1.0", 1},
		{"1.a", "1.b", -1},
		{"0.1.2.TEST", "0.1.2", 1},
		{"3.4.5", "3.4.5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareVersions(tt.b, tt.a))
		})
	}
}

func TestVersionRange_BoundaryLaw(t *testing.T) {
	r := Between("1.0.0", "2.0.0")

	assert.True(t, r.Contains("1.0.0"))
	assert.False(t, r.Contains("2.0.0"))
	assert.True(t, r.Contains("1.9.9"))
	assert.False(t, r.Contains("0.9.9"))
}

func TestVersionRange_Unbounded(t *testing.T) {
	var r VersionRange
	assert.True(t, r.IsUnbounded())
	for _, v := range []string{"0.0.0", "1", "99.99.99", "1.a.b", "0.1.2.TEST"} {
		assert.True(t, r.Contains(v), v)
	}
	assert.Equal(t, "", r.String())
}

func TestVersionRange_EmptyRangeNeverMatches(t *testing.T) {
	r := VersionRange{Lower: "2.0.0", LowerInclusive: true, Upper: "1.0.0", UpperInclusive: true}
	for _, v := range []string{"0.5", "1.0.0", "1.5.0", "2.0.0", "3.0.0"} {
		assert.False(t, r.Contains(v), v)
	}
}

func TestParseVersionRange(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    VersionRange
		in      []string
		out     []string
		wantErr bool
	}{
		{
			name:  "HalfOpen",
			token: "[0.2.3, 0.2.5)",
			want:  VersionRange{Lower: "0.2.3", LowerInclusive: true, Upper: "0.2.5"},
			in:    []string{"0.2.3", "0.2.4"},
			out:   []string{"0.2.5", "0.2.2"},
		},
		{
			name:  "ExclusiveNoSpace",
			token: "(1,7)",
			want:  VersionRange{Lower: "1", Upper: "7"},
			in:    []string{"1.0.1", "6.9"},
			out:   []string{"1", "7.0.0"},
		},
		{
			name:  "ClosedWithLetters",
			token: "[1.a, 3.4.5]",
			want:  VersionRange{Lower: "1.a", LowerInclusive: true, Upper: "3.4.5", UpperInclusive: true},
			in:    []string{"1.a", "3.4.5", "2.0"},
			out:   []string{"1.0", "3.4.6"},
		},
		{
			name:  "SingleInclusive",
			token: "[1.0]",
			want:  VersionRange{Lower: "1.0", LowerInclusive: true, UpperInclusive: true},
			in:    []string{"1.0.0", "5.0"},
			out:   []string{"0.9"},
		},
		{
			name:  "SingleExclusive",
			token: "(1.0)",
			want:  VersionRange{Lower: "1.0"},
			in:    []string{"1.0.1"},
			out:   []string{"1.0.0"},
		},
		{
			name:  "UpperOnly",
			token: "[, 2.0)",
			want:  VersionRange{LowerInclusive: true, Upper: "2.0"},
			in:    []string{"0.0.1", "1.9"},
			out:   []string{"2.0"},
		},
		{
			name:  "LowerOnly",
			token: "[1.0, ]",
			want:  VersionRange{Lower: "1.0", LowerInclusive: true, UpperInclusive: true},
			in:    []string{"1.0", "100"},
			out:   []string{"0.1"},
		},
		{name: "Empty", token: "", want: VersionRange{}, in: []string{"0", "9.9.9"}},
		{name: "EmptyBrackets", token: "[]", want: VersionRange{LowerInclusive: true, UpperInclusive: true}, in: []string{"0", "9.9.9"}},
		{name: "MissingClose", token: "[1.0, 2.0", wantErr: true},
		{name: "MissingOpen", token: "1.0, 2.0)", wantErr: true},
		{name: "TooManyBounds", token: "[1, 2, 3]", wantErr: true},
		{name: "BadVersion", token: "[1..0, 2]", wantErr: true},
		{name: "Whitespace", token: "[1 0, 2]", wantErr: true},
		{name: "Nested", token: "[[1, 2]]", wantErr: true},
		{name: "SingleChar", token: "[", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersionRange(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsManifestParseError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			for _, v := range tt.in {
				assert.True(t, got.Contains(v), "expected %s in %s", v, tt.token)
			}
			for _, v := range tt.out {
				assert.False(t, got.Contains(v), "expected %s outside %s", v, tt.token)
			}
		})
	}
}

func TestVersionRange_String(t *testing.T) {
	r, err := ParseVersionRange("(1.0,2.0]")
	require.NoError(t, err)
	assert.Equal(t, "(1.0, 2.0]", r.String())
	assert.Equal(t, "[1.0, )", AtLeast("1.0").String())
}
