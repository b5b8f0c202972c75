package compiler

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/tools/imports"
)

// ---------------------------------------------------------------------------
// Code generation: Go source emission for validated tagsets
// ---------------------------------------------------------------------------

// Options control code generation.
type Options struct {
	Source      string // path of the .tags source, recorded in the header
	Output      string // path the caller will write, used as a context hint
	Fingerprint string // source fingerprint stamped in the header, "" to omit
	SkipFormat  bool   // emit raw text, skipping the goimports pass
}

// Generator emits Go source for a validated file. Callers run the parser
// and the validator first; the generator assumes a well-formed AST.
type Generator struct {
	buf  bytes.Buffer
	file *File
	opts Options
}

// NewGenerator creates a generator for the given file.
func NewGenerator(file *File, opts Options) *Generator {
	return &Generator{file: file, opts: opts}
}

// Generate emits the Go source for a validated file. The emitted text is
// passed through goimports, which both formats it and resolves imports
// referenced only inside verbatim initializer expressions.
func Generate(file *File, opts Options) ([]byte, error) {
	g := NewGenerator(file, opts)
	return g.Generate()
}

// Generate runs the emission pass.
func (g *Generator) Generate() ([]byte, error) {
	if g.file.Package == "" {
		return nil, fmt.Errorf("cannot generate: file has no package clause")
	}

	g.genHeader()
	g.genImports()
	for _, ts := range g.file.TagSets {
		g.genTagSet(ts)
	}

	if g.opts.SkipFormat {
		return g.buf.Bytes(), nil
	}

	hint := g.opts.Output
	if hint == "" {
		hint = "generated.go"
	}
	out, err := imports.Process(hint, g.buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("formatting generated code: %w", err)
	}
	return out, nil
}

// Printf appends formatted text to the output buffer.
func (g *Generator) Printf(format string, args ...interface{}) {
	fmt.Fprintf(&g.buf, format, args...)
}

// ---------------------------------------------------------------------------
// File skeleton
// ---------------------------------------------------------------------------

// genHeader emits the generated-code marker, the package doc carried over
// from the source file, and the package clause.
func (g *Generator) genHeader() {
	g.Printf("// Code generated by consttab. DO NOT EDIT.\n")
	if g.opts.Source != "" {
		g.Printf("// Source: %s\n", g.opts.Source)
	}
	if g.opts.Fingerprint != "" {
		g.Printf("// Fingerprint: %s\n", g.opts.Fingerprint)
	}
	g.Printf("\n")
	for _, line := range g.file.Doc {
		g.Printf("%s\n", line)
	}
	g.Printf("package %s\n", g.file.Package)
}

// genImports emits the import block: what the generated declarations need
// plus every import forwarded from the source file.
func (g *Generator) genImports() {
	type imp struct {
		alias string
		path  string
	}
	set := make(map[string]imp)
	add := func(alias, path string) {
		if _, ok := set[path]; !ok {
			set[path] = imp{alias: alias, path: path}
		}
	}

	add("", "iter")
	add("", "strconv")
	for _, ts := range g.file.TagSets {
		if ts.HasDerive(DeriveParse) || ts.HasDerive(DeriveText) || ts.HasDerive(DeriveJSON) || ts.HasDerive(DeriveSQL) {
			add("", "fmt")
		}
		if ts.HasDerive(DeriveJSON) {
			add("", "encoding/json")
		}
		if ts.HasDerive(DeriveSQL) {
			add("", "database/sql/driver")
		}
	}
	for _, d := range g.file.Imports {
		add(d.Name, d.Path)
	}

	var std, ext []imp
	for _, i := range set {
		if isExternalImport(i.path) {
			ext = append(ext, i)
		} else {
			std = append(std, i)
		}
	}
	sort.Slice(std, func(a, b int) bool { return std[a].path < std[b].path })
	sort.Slice(ext, func(a, b int) bool { return ext[a].path < ext[b].path })

	g.Printf("\nimport (\n")
	for _, i := range std {
		if i.alias != "" {
			g.Printf("\t%s %q\n", i.alias, i.path)
		} else {
			g.Printf("\t%q\n", i.path)
		}
	}
	if len(std) > 0 && len(ext) > 0 {
		g.Printf("\n")
	}
	for _, i := range ext {
		if i.alias != "" {
			g.Printf("\t%s %q\n", i.alias, i.path)
		} else {
			g.Printf("\t%q\n", i.path)
		}
	}
	g.Printf(")\n")
}

// isExternalImport reports whether a path looks like a module path rather
// than a standard library package.
func isExternalImport(path string) bool {
	first := path
	if i := strings.IndexByte(path, '/'); i >= 0 {
		first = path[:i]
	}
	return strings.Contains(first, ".")
}

// ---------------------------------------------------------------------------
// Tagset emission
// ---------------------------------------------------------------------------

// genTagSet emits every artifact for one tagset.
func (g *Generator) genTagSet(ts *TagSet) {
	g.genTagType(ts)
	g.genConsts(ts)
	g.genCount(ts)
	g.genRecordType(ts)
	g.genTable(ts)
	g.genAccessor(ts)
	g.genNames(ts)
	g.genString(ts)
	g.genIteration(ts)
	g.genConversion(ts)
	g.genDerived(ts)
}

// backingType returns the Go type for a tagset's backing width.
func backingType(ts *TagSet) string {
	return backingTypes[ts.EffectiveWidth()]
}

// receiverName returns the receiver letter used by a tagset's methods.
func receiverName(name string) string {
	for _, r := range name {
		l := unicode.ToLower(r)
		if l >= 'a' && l <= 'z' {
			return string(l)
		}
		break
	}
	return "x"
}

// genDoc emits a carried-over comment block at the given indent.
func (g *Generator) genDoc(indent string, doc []string) {
	for _, line := range doc {
		g.Printf("%s%s\n", indent, line)
	}
}

// genTagType emits the tag type declaration.
func (g *Generator) genTagType(ts *TagSet) {
	g.Printf("\n")
	if len(ts.Doc) > 0 {
		g.genDoc("", ts.Doc)
	} else {
		g.Printf("// %s identifies one member of its tagset.\n", ts.Name)
	}
	g.Printf("type %s %s\n", ts.Name, backingType(ts))
}

// genConsts emits the tag constants in declaration order. Ordinals are
// assigned linearly from zero by iota.
func (g *Generator) genConsts(ts *TagSet) {
	g.Printf("\nconst (\n")
	for i, t := range ts.Tags {
		g.genDoc("\t", t.Doc)
		if i == 0 {
			g.Printf("\t%s %s = iota\n", t.Name, ts.Name)
		} else {
			g.Printf("\t%s\n", t.Name)
		}
	}
	g.Printf(")\n")
}

// genCount emits the tag count. The constant is untyped so it serves as
// an array length, a loop bound, and an operand of any integer type,
// including the case where the count itself exceeds the backing type.
func (g *Generator) genCount(ts *TagSet) {
	g.Printf("\n// %sCount is the number of tags in the %s tagset.\nconst %sCount = %d\n",
		ts.Name, ts.Name, ts.Name, len(ts.Tags))
}

// genRecordType emits the record struct with verbatim field types, tags,
// and docs.
func (g *Generator) genRecordType(ts *TagSet) {
	rec := ts.Record
	g.Printf("\n")
	if len(rec.Doc) > 0 {
		g.genDoc("", rec.Doc)
	} else {
		g.Printf("// %s is the record type of the %s tagset.\n", rec.Name, ts.Name)
	}
	if len(rec.Fields) == 0 {
		g.Printf("type %s struct{}\n", rec.Name)
		return
	}

	nameW, typeW := 0, 0
	for _, f := range rec.Fields {
		if len(f.Name) > nameW {
			nameW = len(f.Name)
		}
		if len(f.Type) > typeW {
			typeW = len(f.Type)
		}
	}

	g.Printf("type %s struct {\n", rec.Name)
	for _, f := range rec.Fields {
		g.genDoc("\t", f.Doc)
		if f.Tag != "" {
			g.Printf("\t%-*s %-*s %s\n", nameW, f.Name, typeW, f.Type, f.Tag)
		} else {
			g.Printf("\t%-*s %s\n", nameW, f.Name, f.Type)
		}
	}
	g.Printf("}\n")
}

// genTable emits the lookup table. Entries are keyed by tag constant, so
// each lands at its own ordinal, and the stored initializer text is
// re-emitted verbatim. Initializers may reference any tag constant in the
// file, including ones declared later: constants exist before variable
// initialization runs.
func (g *Generator) genTable(ts *TagSet) {
	keyW := 0
	for _, t := range ts.Tags {
		if len(t.Name) > keyW {
			keyW = len(t.Name)
		}
	}
	g.Printf("\n// _%s_table holds one %s per tag, indexed by ordinal.\n", ts.Name, ts.Record.Name)
	g.Printf("var _%s_table = [%sCount]%s{\n", ts.Name, ts.Name, ts.Record.Name)
	for _, t := range ts.Tags {
		if strings.ContainsRune(t.Init, '\n') {
			g.Printf("\t%s: %s,\n", t.Name, t.Init)
		} else {
			g.Printf("\t%-*s %s,\n", keyW+1, t.Name+":", t.Init)
		}
	}
	g.Printf("}\n")
}

// genAccessor emits the record accessor. It indexes the table without a
// bounds check: every value this package hands out is below the count,
// since ordinals are linear and gap-free and the only integer entry point
// is the range-checked FromOrdinal conversion.
func (g *Generator) genAccessor(ts *TagSet) {
	r := receiverName(ts.Name)
	g.Printf("\n// Record returns the %s for %s. The returned pointer refers into a\n", ts.Record.Name, r)
	g.Printf("// shared table that lives for the whole process and must not be\n")
	g.Printf("// written through.\n")
	g.Printf("func (%s %s) Record() *%s {\n", r, ts.Name, ts.Record.Name)
	g.Printf("\treturn &_%s_table[%s]\n", ts.Name, r)
	g.Printf("}\n")
}

// genNames emits the tag name table.
func (g *Generator) genNames(ts *TagSet) {
	keyW := 0
	for _, t := range ts.Tags {
		if len(t.Name) > keyW {
			keyW = len(t.Name)
		}
	}
	g.Printf("\n// _%s_names holds the declared name of each tag.\n", ts.Name)
	g.Printf("var _%s_names = [%sCount]string{\n", ts.Name, ts.Name)
	for _, t := range ts.Tags {
		g.Printf("\t%-*s %q,\n", keyW+1, t.Name+":", t.Name)
	}
	g.Printf("}\n")
}

// genString emits the String method with the conventional out-of-range
// fallback form.
func (g *Generator) genString(ts *TagSet) {
	r := receiverName(ts.Name)
	g.Printf("\n// String returns the declared name of %s, or an ordinal form for\n", r)
	g.Printf("// values outside the tagset.\n")
	g.Printf("func (%s %s) String() string {\n", r, ts.Name)
	g.Printf("\tif uint64(%s) < %sCount {\n", r, ts.Name)
	g.Printf("\t\treturn _%s_names[%s]\n", ts.Name, r)
	g.Printf("\t}\n")
	g.Printf("\treturn \"%s(\" + strconv.FormatUint(uint64(%s), 10) + \")\"\n", ts.Name, r)
	g.Printf("}\n")
}

// genIteration emits the forward and backward iterators. Both map the
// ordinal range through the ordinary conversion; the loop bounds keep
// every ordinal in range.
func (g *Generator) genIteration(ts *TagSet) {
	g.Printf("\n// %sAll returns an iterator over every tag in declaration order.\n", ts.Name)
	g.Printf("// The sequence is restartable: each range over it starts fresh.\n")
	g.Printf("func %sAll() iter.Seq[%s] {\n", ts.Name, ts.Name)
	g.Printf("\treturn func(yield func(%s) bool) {\n", ts.Name)
	g.Printf("\t\tfor i := 0; i < %sCount; i++ {\n", ts.Name)
	g.Printf("\t\t\tif !yield(%s(i)) {\n", ts.Name)
	g.Printf("\t\t\t\treturn\n")
	g.Printf("\t\t\t}\n")
	g.Printf("\t\t}\n")
	g.Printf("\t}\n")
	g.Printf("}\n")

	g.Printf("\n// %sBackward returns an iterator over every tag in reverse\n", ts.Name)
	g.Printf("// declaration order.\n")
	g.Printf("func %sBackward() iter.Seq[%s] {\n", ts.Name, ts.Name)
	g.Printf("\treturn func(yield func(%s) bool) {\n", ts.Name)
	g.Printf("\t\tfor i := %sCount - 1; i >= 0; i-- {\n", ts.Name)
	g.Printf("\t\t\tif !yield(%s(i)) {\n", ts.Name)
	g.Printf("\t\t\t\treturn\n")
	g.Printf("\t\t\t}\n")
	g.Printf("\t\t}\n")
	g.Printf("\t}\n")
	g.Printf("}\n")
}

// genConversion emits the error type and the fallible ordinal conversion,
// the only integer entry point into the tagset. Range comparisons widen
// to uint64 so a tagset filling its whole backing range still compiles.
func (g *Generator) genConversion(ts *TagSet) {
	bt := backingType(ts)

	g.Printf("\n// Invalid%sError reports a value outside the %s ordinal range.\n", ts.Name, ts.Name)
	g.Printf("type Invalid%sError struct {\n", ts.Name)
	g.Printf("\tValue %s\n", bt)
	g.Printf("}\n")

	g.Printf("\nfunc (e *Invalid%sError) Error() string {\n", ts.Name)
	g.Printf("\treturn \"invalid %s ordinal \" + strconv.FormatUint(uint64(e.Value), 10)\n", ts.Name)
	g.Printf("}\n")

	g.Printf("\n// %sFromOrdinal converts a bare ordinal to a %s. It fails on values\n", ts.Name, ts.Name)
	g.Printf("// at or above %sCount, reporting the rejected value.\n", ts.Name)
	g.Printf("func %sFromOrdinal(v %s) (%s, error) {\n", ts.Name, bt, ts.Name)
	g.Printf("\tif uint64(v) >= %sCount {\n", ts.Name)
	g.Printf("\t\treturn 0, &Invalid%sError{Value: v}\n", ts.Name)
	g.Printf("\t}\n")
	g.Printf("\treturn %s(v), nil\n", ts.Name)
	g.Printf("}\n")
}

// ---------------------------------------------------------------------------
// Derived capabilities
// ---------------------------------------------------------------------------

// genDerived emits the requested extra capabilities.
func (g *Generator) genDerived(ts *TagSet) {
	needByName := ts.HasDerive(DeriveParse) || ts.HasDerive(DeriveText) ||
		ts.HasDerive(DeriveJSON) || ts.HasDerive(DeriveSQL)
	if needByName {
		g.genByName(ts)
	}
	if ts.HasDerive(DeriveParse) {
		g.genParse(ts)
	}
	if ts.HasDerive(DeriveText) {
		g.genText(ts)
	}
	if ts.HasDerive(DeriveJSON) {
		g.genJSON(ts)
	}
	if ts.HasDerive(DeriveSQL) {
		g.genSQL(ts)
	}
}

// genByName emits the shared name lookup map.
func (g *Generator) genByName(ts *TagSet) {
	keyW := 0
	for _, t := range ts.Tags {
		if len(t.Name) > keyW {
			keyW = len(t.Name)
		}
	}
	g.Printf("\n// _%s_byName maps declared names to tags.\n", ts.Name)
	g.Printf("var _%s_byName = map[string]%s{\n", ts.Name, ts.Name)
	for _, t := range ts.Tags {
		g.Printf("\t%-*s %s,\n", keyW+3, fmt.Sprintf("%q:", t.Name), t.Name)
	}
	g.Printf("}\n")
}

// genParse emits the name lookup function.
func (g *Generator) genParse(ts *TagSet) {
	g.Printf("\n// Parse%s returns the tag whose declared name is s.\n", ts.Name)
	g.Printf("func Parse%s(s string) (%s, error) {\n", ts.Name, ts.Name)
	g.Printf("\tif v, ok := _%s_byName[s]; ok {\n", ts.Name)
	g.Printf("\t\treturn v, nil\n")
	g.Printf("\t}\n")
	g.Printf("\treturn 0, fmt.Errorf(\"unknown %s name %%q\", s)\n", ts.Name)
	g.Printf("}\n")
}

// genText emits encoding.TextMarshaler and TextUnmarshaler.
func (g *Generator) genText(ts *TagSet) {
	r := receiverName(ts.Name)
	g.Printf("\n// MarshalText implements encoding.TextMarshaler using the tag name.\n")
	g.Printf("func (%s %s) MarshalText() ([]byte, error) {\n", r, ts.Name)
	g.Printf("\tif uint64(%s) >= %sCount {\n", r, ts.Name)
	g.Printf("\t\treturn nil, &Invalid%sError{Value: %s(%s)}\n", ts.Name, backingType(ts), r)
	g.Printf("\t}\n")
	g.Printf("\treturn []byte(%s.String()), nil\n", r)
	g.Printf("}\n")

	g.Printf("\n// UnmarshalText implements encoding.TextUnmarshaler from the tag name.\n")
	g.Printf("func (%s *%s) UnmarshalText(text []byte) error {\n", r, ts.Name)
	g.Printf("\tv, ok := _%s_byName[string(text)]\n", ts.Name)
	g.Printf("\tif !ok {\n")
	g.Printf("\t\treturn fmt.Errorf(\"unknown %s name %%q\", string(text))\n", ts.Name)
	g.Printf("\t}\n")
	g.Printf("\t*%s = v\n", r)
	g.Printf("\treturn nil\n")
	g.Printf("}\n")
}

// genJSON emits json.Marshaler and json.Unmarshaler using the quoted name.
func (g *Generator) genJSON(ts *TagSet) {
	r := receiverName(ts.Name)
	g.Printf("\n// MarshalJSON implements json.Marshaler as the quoted tag name.\n")
	g.Printf("func (%s %s) MarshalJSON() ([]byte, error) {\n", r, ts.Name)
	g.Printf("\tif uint64(%s) >= %sCount {\n", r, ts.Name)
	g.Printf("\t\treturn nil, &Invalid%sError{Value: %s(%s)}\n", ts.Name, backingType(ts), r)
	g.Printf("\t}\n")
	g.Printf("\treturn json.Marshal(%s.String())\n", r)
	g.Printf("}\n")

	g.Printf("\n// UnmarshalJSON implements json.Unmarshaler from the quoted tag name.\n")
	g.Printf("func (%s *%s) UnmarshalJSON(data []byte) error {\n", r, ts.Name)
	g.Printf("\tvar name string\n")
	g.Printf("\tif err := json.Unmarshal(data, &name); err != nil {\n")
	g.Printf("\t\treturn fmt.Errorf(\"%s should be a string, got %%s\", data)\n", ts.Name)
	g.Printf("\t}\n")
	g.Printf("\tv, ok := _%s_byName[name]\n", ts.Name)
	g.Printf("\tif !ok {\n")
	g.Printf("\t\treturn fmt.Errorf(\"unknown %s name %%q\", name)\n", ts.Name)
	g.Printf("\t}\n")
	g.Printf("\t*%s = v\n", r)
	g.Printf("\treturn nil\n")
	g.Printf("}\n")
}

// genSQL emits driver.Valuer and sql.Scanner.
func (g *Generator) genSQL(ts *TagSet) {
	r := receiverName(ts.Name)
	g.Printf("\n// Value implements driver.Valuer as the tag name.\n")
	g.Printf("func (%s %s) Value() (driver.Value, error) {\n", r, ts.Name)
	g.Printf("\tif uint64(%s) >= %sCount {\n", r, ts.Name)
	g.Printf("\t\treturn nil, &Invalid%sError{Value: %s(%s)}\n", ts.Name, backingType(ts), r)
	g.Printf("\t}\n")
	g.Printf("\treturn %s.String(), nil\n", r)
	g.Printf("}\n")

	g.Printf("\n// Scan implements sql.Scanner from a name, a byte slice, or an\n")
	g.Printf("// ordinal.\n")
	g.Printf("func (%s *%s) Scan(src any) error {\n", r, ts.Name)
	g.Printf("\tswitch s := src.(type) {\n")
	g.Printf("\tcase string:\n")
	g.Printf("\t\tv, ok := _%s_byName[s]\n", ts.Name)
	g.Printf("\t\tif !ok {\n")
	g.Printf("\t\t\treturn fmt.Errorf(\"unknown %s name %%q\", s)\n", ts.Name)
	g.Printf("\t\t}\n")
	g.Printf("\t\t*%s = v\n", r)
	g.Printf("\tcase []byte:\n")
	g.Printf("\t\tv, ok := _%s_byName[string(s)]\n", ts.Name)
	g.Printf("\t\tif !ok {\n")
	g.Printf("\t\t\treturn fmt.Errorf(\"unknown %s name %%q\", string(s))\n", ts.Name)
	g.Printf("\t\t}\n")
	g.Printf("\t\t*%s = v\n", r)
	g.Printf("\tcase int64:\n")
	g.Printf("\t\tif s < 0 || uint64(s) >= %sCount {\n", ts.Name)
	g.Printf("\t\t\treturn fmt.Errorf(\"invalid %s ordinal %%d\", s)\n", ts.Name)
	g.Printf("\t\t}\n")
	g.Printf("\t\t*%s = %s(s)\n", r, ts.Name)
	g.Printf("\tdefault:\n")
	g.Printf("\t\treturn fmt.Errorf(\"cannot scan %%T into %s\", src)\n", ts.Name)
	g.Printf("\t}\n")
	g.Printf("\treturn nil\n")
	g.Printf("}\n")
}
