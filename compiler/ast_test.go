package compiler

import (
	"testing"
)

func TestEffectiveWidth(t *testing.T) {
	tests := []struct {
		width string
		want  string
	}{
		{"", "u32"},
		{"u8", "u8"},
		{"u16", "u16"},
		{"u32", "u32"},
		{"u64", "u64"},
	}
	for _, tc := range tests {
		ts := &TagSet{Width: tc.width}
		if got := ts.EffectiveWidth(); got != tc.want {
			t.Errorf("EffectiveWidth(%q) = %q, want %q", tc.width, got, tc.want)
		}
	}
}

func TestTagSetLookups(t *testing.T) {
	ts := &TagSet{
		Name: "Planet",
		Tags: []*TagEntry{
			{Name: "Mercury"},
			{Name: "Venus"},
			{Name: "Earth"},
		},
	}

	if ts.Ordinal("Mercury") != 0 || ts.Ordinal("Earth") != 2 {
		t.Errorf("ordinals wrong: Mercury=%d Earth=%d", ts.Ordinal("Mercury"), ts.Ordinal("Earth"))
	}
	if ts.Ordinal("Pluto") != -1 {
		t.Errorf("Ordinal(Pluto) = %d, want -1", ts.Ordinal("Pluto"))
	}
	if ts.FindTag("Venus") == nil || ts.FindTag("Venus").Name != "Venus" {
		t.Error("FindTag(Venus) failed")
	}
	if ts.FindTag("Pluto") != nil {
		t.Error("FindTag(Pluto) should be nil")
	}
}

func TestHasDerive(t *testing.T) {
	ts := &TagSet{Derives: []*Derive{{Name: "json"}, {Name: "text"}}}
	if !ts.HasDerive("json") {
		t.Error("HasDerive(json) = false")
	}
	if ts.HasDerive("sql") {
		t.Error("HasDerive(sql) = true")
	}
}

func TestSupportedWidthsAndDerives(t *testing.T) {
	widths := SupportedWidths()
	if len(widths) != 4 || widths[0] != "u8" || widths[3] != "u64" {
		t.Errorf("SupportedWidths() = %v", widths)
	}
	for _, w := range widths {
		if backingTypes[w] == "" {
			t.Errorf("width %s has no backing type", w)
		}
	}

	derives := SupportedDerives()
	if len(derives) != 4 {
		t.Errorf("SupportedDerives() = %v", derives)
	}
	seen := map[string]bool{}
	for _, d := range derives {
		seen[d] = true
	}
	for _, want := range []string{DeriveText, DeriveJSON, DeriveSQL, DeriveParse} {
		if !seen[want] {
			t.Errorf("SupportedDerives() missing %s", want)
		}
	}
}
