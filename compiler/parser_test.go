package compiler

import (
	"strings"
	"testing"
)

// parseValid parses input and fails the test on any diagnostic.
func parseValid(t *testing.T, input string) *File {
	t.Helper()
	file, diags := Parse(input)
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	return file
}

func TestParseMinimalFile(t *testing.T) {
	input := `package planets

tagset Planet {
	record Info {
		Mass   float64
		Radius float64
	}
	Mercury = Info{Mass: 3.303e23, Radius: 2.4397e6}
	Venus   = Info{Mass: 4.869e24, Radius: 6.0518e6}
}
`
	file := parseValid(t, input)

	if file.Package != "planets" {
		t.Errorf("package = %q, want %q", file.Package, "planets")
	}
	if len(file.TagSets) != 1 {
		t.Fatalf("tagsets = %d, want 1", len(file.TagSets))
	}

	ts := file.TagSets[0]
	if ts.Name != "Planet" {
		t.Errorf("tagset name = %q, want %q", ts.Name, "Planet")
	}
	if ts.Width != "" {
		t.Errorf("width = %q, want empty (default)", ts.Width)
	}
	if ts.EffectiveWidth() != "u32" {
		t.Errorf("effective width = %q, want u32", ts.EffectiveWidth())
	}

	if ts.Record == nil {
		t.Fatal("record is nil")
	}
	if ts.Record.Name != "Info" {
		t.Errorf("record name = %q, want %q", ts.Record.Name, "Info")
	}
	if len(ts.Record.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(ts.Record.Fields))
	}
	if f := ts.Record.Fields[0]; f.Name != "Mass" || f.Type != "float64" {
		t.Errorf("field[0] = %q %q, want Mass float64", f.Name, f.Type)
	}

	if len(ts.Tags) != 2 {
		t.Fatalf("tags = %d, want 2", len(ts.Tags))
	}
	if ts.Tags[0].Name != "Mercury" {
		t.Errorf("tag[0] name = %q, want Mercury", ts.Tags[0].Name)
	}
	if want := "Info{Mass: 3.303e23, Radius: 2.4397e6}"; ts.Tags[0].Init != want {
		t.Errorf("tag[0] init = %q, want %q", ts.Tags[0].Init, want)
	}
	if ts.Ordinal("Venus") != 1 {
		t.Errorf("Ordinal(Venus) = %d, want 1", ts.Ordinal("Venus"))
	}
	if ts.Ordinal("Pluto") != -1 {
		t.Errorf("Ordinal(Pluto) = %d, want -1", ts.Ordinal("Pluto"))
	}
	if file.FindTagSet("Planet") != ts {
		t.Error("FindTagSet(Planet) did not return the tagset")
	}
}

func TestParseDocComments(t *testing.T) {
	input := `// Package planets holds orbital data.
package planets

// Planet identifies one planet.
// Ordered by distance.
tagset Planet {
	record Info {
		// Mass in kilograms.
		Mass float64
	}

	// Closest to the sun.
	Mercury = Info{Mass: 1}

	// Detached comment.

	Venus = Info{Mass: 2}
}
`
	file := parseValid(t, input)

	if len(file.Doc) != 1 || file.Doc[0] != "// Package planets holds orbital data." {
		t.Errorf("file doc = %v", file.Doc)
	}

	ts := file.TagSets[0]
	if len(ts.Doc) != 2 {
		t.Fatalf("tagset doc = %v, want 2 lines", ts.Doc)
	}
	if ts.Doc[0] != "// Planet identifies one planet." {
		t.Errorf("tagset doc[0] = %q", ts.Doc[0])
	}

	if f := ts.Record.Fields[0]; len(f.Doc) != 1 || f.Doc[0] != "// Mass in kilograms." {
		t.Errorf("field doc = %v", f.Doc)
	}

	if tag := ts.Tags[0]; len(tag.Doc) != 1 || tag.Doc[0] != "// Closest to the sun." {
		t.Errorf("Mercury doc = %v", tag.Doc)
	}
	// A blank line between comment and declaration detaches the comment.
	if tag := ts.Tags[1]; len(tag.Doc) != 0 {
		t.Errorf("Venus doc = %v, want none", tag.Doc)
	}
}

func TestParseImports(t *testing.T) {
	input := `package p

import "math"

import (
	pretty "github.com/some/pkg"
	"strings"
)

tagset T {
	record R {
		V float64
	}
	A = R{V: math.Pi}
}
`
	file := parseValid(t, input)

	want := []struct {
		name, path string
	}{
		{"", "math"},
		{"pretty", "github.com/some/pkg"},
		{"", "strings"},
	}
	if len(file.Imports) != len(want) {
		t.Fatalf("imports = %d, want %d", len(file.Imports), len(want))
	}
	for i, w := range want {
		imp := file.Imports[i]
		if imp.Name != w.name || imp.Path != w.path {
			t.Errorf("import[%d] = %q %q, want %q %q", i, imp.Name, imp.Path, w.name, w.path)
		}
	}
}

func TestParseWidthAndDerives(t *testing.T) {
	input := `package p

tagset T {
	width u8
	derive json, text
	derive parse
	record R {
		V int
	}
	A = R{V: 1}
}
`
	file := parseValid(t, input)
	ts := file.TagSets[0]

	if ts.Width != "u8" {
		t.Errorf("width = %q, want u8", ts.Width)
	}
	if ts.WidthPos.Line != 4 {
		t.Errorf("width pos line = %d, want 4", ts.WidthPos.Line)
	}
	if ts.EffectiveWidth() != "u8" {
		t.Errorf("effective width = %q, want u8", ts.EffectiveWidth())
	}

	var names []string
	for _, d := range ts.Derives {
		names = append(names, d.Name)
	}
	if got := strings.Join(names, ","); got != "json,text,parse" {
		t.Errorf("derives = %s, want json,text,parse", got)
	}
	if !ts.HasDerive("json") || ts.HasDerive("sql") {
		t.Error("HasDerive gave wrong answers")
	}
}

func TestParseDuplicateWidth(t *testing.T) {
	input := `package p

tagset T {
	width u8
	width u16
	record R {
		V int
	}
	A = R{V: 1}
}
`
	file, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if !strings.Contains(diags[0].Msg, "duplicate width clause in tagset T") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
	if file.TagSets[0].Width != "u8" {
		t.Errorf("width = %q, want first declaration u8", file.TagSets[0].Width)
	}
}

func TestParseVerbatimInitializers(t *testing.T) {
	tests := []struct {
		name string
		init string
	}{
		{"composite", `R{V: 1}`},
		{"forward reference", `R{Next: Undefined}`},
		{"call", `mk(1, "x")`},
		{"string with brace", `R{Name: "has } brace"}`},
		{"shift", `R{V: 1 << 4}`},
		{"selector", `pkgname.Exported`},
		{"nested composites", `R{Pts: []Point{{1, 2}, {3, 4}}}`},
		{"hex", `R{V: 0xFF_FF}`},
	}

	for _, tc := range tests {
		input := "package p\n\ntagset T {\n\trecord R {\n\t\tV int\n\t}\n\tA = " + tc.init + "\n}\n"
		file, diags := Parse(input)
		if len(diags) > 0 {
			t.Errorf("%s: diagnostics: %v", tc.name, diags)
			continue
		}
		got := file.TagSets[0].Tags[0].Init
		if got != tc.init {
			t.Errorf("%s: init = %q, want %q", tc.name, got, tc.init)
		}
	}
}

func TestParseMultilineInitializer(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
		W int
	}
	A = R{
		V: 1,
		W: 2,
	}
	B = R{V: 3}
}
`
	file := parseValid(t, input)
	ts := file.TagSets[0]

	if len(ts.Tags) != 2 {
		t.Fatalf("tags = %d, want 2", len(ts.Tags))
	}
	want := "R{\n\t\tV: 1,\n\t\tW: 2,\n\t}"
	if ts.Tags[0].Init != want {
		t.Errorf("multiline init = %q, want %q", ts.Tags[0].Init, want)
	}
	if ts.Tags[1].Init != "R{V: 3}" {
		t.Errorf("following init = %q", ts.Tags[1].Init)
	}
}

func TestParseTrailingComment(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
	}
	A = R{V: 1} // innermost
	B = R{V: 2}
}
`
	file := parseValid(t, input)
	ts := file.TagSets[0]
	if ts.Tags[0].Init != "R{V: 1}" {
		t.Errorf("init = %q, trailing comment leaked into capture", ts.Tags[0].Init)
	}
	if len(ts.Tags) != 2 {
		t.Errorf("tags = %d, want 2", len(ts.Tags))
	}
}

func TestParseFieldTypesVerbatim(t *testing.T) {
	input := "package p\n\ntagset T {\n\trecord R {\n" +
		"\t\tName   string\n" +
		"\t\tTags   []string\n" +
		"\t\tLookup map[string]int\n" +
		"\t\tNested [4][4]float64\n" +
		"\t\tMass   float64 `json:\"mass\"`\n" +
		"\t}\n\tA = R{}\n}\n"

	file := parseValid(t, input)
	fields := file.TagSets[0].Record.Fields

	want := []struct {
		name, typ, tag string
	}{
		{"Name", "string", ""},
		{"Tags", "[]string", ""},
		{"Lookup", "map[string]int", ""},
		{"Nested", "[4][4]float64", ""},
		{"Mass", "float64", "`json:\"mass\"`"},
	}
	if len(fields) != len(want) {
		t.Fatalf("fields = %d, want %d", len(fields), len(want))
	}
	for i, w := range want {
		f := fields[i]
		if f.Name != w.name || f.Type != w.typ || f.Tag != w.tag {
			t.Errorf("field[%d] = %q %q %q, want %q %q %q", i, f.Name, f.Type, f.Tag, w.name, w.typ, w.tag)
		}
	}
}

func TestParseMissingRecordDefinition(t *testing.T) {
	input := `package p

tagset T {
	A = 1
	B = 2
}
`
	file, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want exactly 1", diags)
	}
	if diags[0].Kind != DiagMissingRecordDef {
		t.Errorf("kind = %v, want %v", diags[0].Kind, DiagMissingRecordDef)
	}
	if diags[0].Span.Start.Line != 4 {
		t.Errorf("diagnostic line = %d, want 4 (first tag)", diags[0].Span.Start.Line)
	}
	// Parsing continues so later diagnostics still surface.
	if len(file.TagSets[0].Tags) != 2 {
		t.Errorf("tags = %d, want 2", len(file.TagSets[0].Tags))
	}
}

func TestParseEmptyTagsetMissingRecord(t *testing.T) {
	input := `package p

tagset T {
}
`
	_, diags := Parse(input)
	if len(diags) != 1 || diags[0].Kind != DiagMissingRecordDef {
		t.Fatalf("diagnostics = %v, want one missing-record-definition", diags)
	}
	if diags[0].Span.Start.Line != 3 {
		t.Errorf("diagnostic line = %d, want 3 (tagset header)", diags[0].Span.Start.Line)
	}
}

func TestParseRecordAfterTags(t *testing.T) {
	input := `package p

tagset T {
	A = 1
	record R {
		V int
	}
}
`
	_, diags := Parse(input)
	if !HasKind(diags, DiagUnexpectedRecordDef) {
		t.Errorf("diagnostics = %v, want unexpected-record-definition", diags)
	}
	if !HasKind(diags, DiagMissingRecordDef) {
		t.Errorf("diagnostics = %v, want missing-record-definition at the first tag too", diags)
	}
}

func TestParseDuplicateRecord(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
	}
	record S {
		W int
	}
	A = R{V: 1}
}
`
	file, diags := Parse(input)
	if len(diags) != 1 || diags[0].Kind != DiagUnexpectedRecordDef {
		t.Fatalf("diagnostics = %v, want one unexpected-record-definition", diags)
	}
	if !strings.Contains(diags[0].Msg, "already has a record definition") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
	if file.TagSets[0].Record.Name != "R" {
		t.Errorf("record = %q, want first declaration R", file.TagSets[0].Record.Name)
	}
}

func TestParseMissingPackageClause(t *testing.T) {
	input := `tagset T {
	record R {
		V int
	}
	A = R{V: 1}
}
`
	file, diags := Parse(input)
	if len(diags) != 1 || diags[0].Kind != DiagSyntax {
		t.Fatalf("diagnostics = %v, want one syntax error", diags)
	}
	if !strings.Contains(diags[0].Msg, "expected package clause") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
	// The tagset is still parsed so one mistake yields one diagnostic.
	if len(file.TagSets) != 1 {
		t.Errorf("tagsets = %d, want 1", len(file.TagSets))
	}
}

func TestParseRecoversWithinTagset(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
	}
	A = R{V: 1}
	= bogus
	B = R{V: 2}
}
`
	file, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	ts := file.TagSets[0]
	if len(ts.Tags) != 2 || ts.Tags[1].Name != "B" {
		t.Errorf("recovery lost entries: %d tags", len(ts.Tags))
	}
}

func TestParseRecoversAtTopLevel(t *testing.T) {
	input := `package p

}

tagset T {
	record R {
		V int
	}
	A = R{V: 1}
}
`
	file, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if !strings.Contains(diags[0].Msg, "expected tagset or import") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
	if len(file.TagSets) != 1 {
		t.Errorf("tagsets = %d, want 1", len(file.TagSets))
	}
}

func TestParseUnterminatedTagset(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
	}
	A = R{V: 1}
`
	_, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if !strings.Contains(diags[0].Msg, "unterminated tagset T") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
}

func TestParseTagMissingInitializer(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
	}
	A =
	B = R{V: 2}
}
`
	file, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if !strings.Contains(diags[0].Msg, "tag A is missing an initializer expression") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
	// The malformed entry is dropped; the next one survives.
	ts := file.TagSets[0]
	if len(ts.Tags) != 1 || ts.Tags[0].Name != "B" {
		t.Errorf("tags = %+v, want only B", ts.Tags)
	}
}

func TestParseTagMissingAssign(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
	}
	A 42
}
`
	_, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if !strings.Contains(diags[0].Msg, "expected = after tag name A") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
}

func TestParseFieldMissingType(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V
	}
	A = R{}
}
`
	_, diags := Parse(input)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if !strings.Contains(diags[0].Msg, "field V is missing a type") {
		t.Errorf("msg = %q", diags[0].Msg)
	}
}

func TestParseLexErrorBecomesDiagnostic(t *testing.T) {
	input := `package p

tagset T {
	record R {
		V int
	}
	A = R{V: 1$}
}
`
	_, diags := Parse(input)
	if len(diags) == 0 {
		t.Fatal("expected a diagnostic for the stray character")
	}
	found := false
	for _, d := range diags {
		if strings.Contains(d.Msg, "unexpected character") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %v, want unexpected character", diags)
	}
}

func TestParseMultipleTagsets(t *testing.T) {
	input := `package p

tagset A {
	record RA {
		V int
	}
	One = RA{V: 1}
}

tagset B {
	width u16
	record RB {
		W string
	}
	Two = RB{W: "two"}
}
`
	file := parseValid(t, input)
	if len(file.TagSets) != 2 {
		t.Fatalf("tagsets = %d, want 2", len(file.TagSets))
	}
	if file.TagSets[0].Name != "A" || file.TagSets[1].Name != "B" {
		t.Errorf("names = %q, %q", file.TagSets[0].Name, file.TagSets[1].Name)
	}
	if file.TagSets[1].EffectiveWidth() != "u16" {
		t.Errorf("B width = %q, want u16", file.TagSets[1].EffectiveWidth())
	}
	if file.FindTagSet("C") != nil {
		t.Error("FindTagSet(C) should be nil")
	}
}
