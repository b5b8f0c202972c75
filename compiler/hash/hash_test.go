package hash

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/chazu/consttab/compiler"
)

// parseFile parses source and fails the test on any diagnostic.
func parseFile(t *testing.T, source string) *compiler.File {
	t.Helper()
	file, diags := compiler.Parse(source)
	if len(diags) > 0 {
		t.Fatalf("Parse(%q): unexpected diagnostics: %v", source, diags)
	}
	return file
}

func hashOf(t *testing.T, source string) [32]byte {
	t.Helper()
	sum, err := HashFile(parseFile(t, source))
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	return sum
}

const baseSource = `package colors

tagset Color {
	record Rgb {
		R uint8
		G uint8
		B uint8
	}
	Red   = Rgb{R: 255}
	Green = Rgb{G: 255}
	Blue  = Rgb{B: 255}
}
`

func TestHashFile_Deterministic(t *testing.T) {
	a := hashOf(t, baseSource)
	b := hashOf(t, baseSource)
	if a != b {
		t.Errorf("same source hashed twice: %x vs %x", a, b)
	}
}

func TestHashFile_IgnoresCommentsAndWhitespace(t *testing.T) {
	commented := `package colors

// Color is reachable from every renderer.
tagset Color {
	// layout
	record Rgb {
		R uint8
		G uint8
		B uint8
	}

	Red   = Rgb{R: 255} // primary
	Green = Rgb{G: 255}
	Blue  = Rgb{B: 255}
}
`
	if hashOf(t, baseSource) != hashOf(t, commented) {
		t.Error("comments and blank lines changed the hash")
	}
}

func TestHashFile_DefaultWidthMatchesExplicitU32(t *testing.T) {
	explicit := strings.Replace(baseSource, "tagset Color {", "tagset Color {\n\twidth u32", 1)
	if hashOf(t, baseSource) != hashOf(t, explicit) {
		t.Error("explicit u32 hashed differently from the default width")
	}
}

func TestHashFile_DeriveOrderInsensitive(t *testing.T) {
	ab := strings.Replace(baseSource, "tagset Color {", "tagset Color {\n\tderive json, text", 1)
	ba := strings.Replace(baseSource, "tagset Color {", "tagset Color {\n\tderive text, json", 1)
	if hashOf(t, ab) != hashOf(t, ba) {
		t.Error("derive order changed the hash")
	}
}

func TestHashFile_SensitiveToContent(t *testing.T) {
	base := hashOf(t, baseSource)

	tests := []struct {
		name     string
		old, new string
	}{
		{"tag rename", "Red  ", "Rot  "},
		{"initializer edit", "Rgb{R: 255}", "Rgb{R: 254}"},
		{"width change", "tagset Color {", "tagset Color {\n\twidth u8"},
		{"derive added", "tagset Color {", "tagset Color {\n\tderive json"},
		{"field type change", "R uint8", "R uint16"},
		{"record rename", "Rgb", "RGB"},
		{"package rename", "package colors", "package paints"},
		{"tag reorder", "Red   = Rgb{R: 255}\n\tGreen = Rgb{G: 255}", "Green = Rgb{G: 255}\n\tRed   = Rgb{R: 255}"},
	}
	for _, tt := range tests {
		mutated := strings.Replace(baseSource, tt.old, tt.new, -1)
		if mutated == baseSource {
			t.Fatalf("%s: mutation %q did not apply", tt.name, tt.old)
		}
		if hashOf(t, mutated) == base {
			t.Errorf("%s: hash did not change", tt.name)
		}
	}
}

func TestFingerprint_Format(t *testing.T) {
	fp, err := Fingerprint(parseFile(t, baseSource))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if !strings.HasPrefix(fp, "sha256:") {
		t.Fatalf("Fingerprint = %q, want sha256: prefix", fp)
	}
	digits := strings.TrimPrefix(fp, "sha256:")
	if len(digits) != 64 {
		t.Errorf("fingerprint digest has %d hex digits, want 64", len(digits))
	}
	if _, err := hex.DecodeString(digits); err != nil {
		t.Errorf("fingerprint digest is not hex: %v", err)
	}
}

func TestNormalize_EffectiveWidthAndDerives(t *testing.T) {
	source := `package jobs

tagset State {
	width u8
	derive text, parse, text
	record Meta {
		Label string
	}
	Idle = Meta{Label: "idle"}
}
`
	// Duplicate derive is a semantic error but must not break normalization.
	hf := Normalize(parseFile(t, source))
	if len(hf.TagSets) != 1 {
		t.Fatalf("normalized %d tagsets, want 1", len(hf.TagSets))
	}
	ts := hf.TagSets[0]
	if ts.Width != "u8" {
		t.Errorf("width: got %q, want %q", ts.Width, "u8")
	}
	if len(ts.Derives) != 2 || ts.Derives[0] != "parse" || ts.Derives[1] != "text" {
		t.Errorf("derives: got %v, want [parse text]", ts.Derives)
	}
	if ts.Record.Name != "Meta" || len(ts.Record.Fields) != 1 {
		t.Errorf("record: got %q with %d fields, want Meta with 1", ts.Record.Name, len(ts.Record.Fields))
	}
	if len(ts.Tags) != 1 || ts.Tags[0].Init != `Meta{Label: "idle"}` {
		t.Errorf("tags: got %+v", ts.Tags)
	}
}

func TestNormalize_DefaultWidth(t *testing.T) {
	hf := Normalize(parseFile(t, baseSource))
	if got := hf.TagSets[0].Width; got != "u32" {
		t.Errorf("default width normalized to %q, want u32", got)
	}
}
