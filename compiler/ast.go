package compiler

// ---------------------------------------------------------------------------
// AST: parsed representation of .tags source
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// File represents one parsed .tags file.
type File struct {
	SpanVal Span
	Doc     []string // raw comment lines above the package clause
	Package string
	Imports []*ImportDecl
	TagSets []*TagSet
}

func (n *File) Span() Span { return n.SpanVal }
func (n *File) node()      {}

// FindTagSet returns the tagset with the given name, or nil.
func (n *File) FindTagSet(name string) *TagSet {
	for _, ts := range n.TagSets {
		if ts.Name == name {
			return ts
		}
	}
	return nil
}

// ImportDecl represents one import forwarded to the generated file.
type ImportDecl struct {
	SpanVal Span
	Name    string // local alias, "" if none
	Path    string // unquoted import path
}

func (n *ImportDecl) Span() Span { return n.SpanVal }
func (n *ImportDecl) node()      {}

// TagSet represents one tagset declaration.
type TagSet struct {
	SpanVal  Span
	Doc      []string
	Name     string
	Width    string   // as written; "" means the default applies
	WidthPos Position // position of the width value, for diagnostics
	Derives  []*Derive
	Record   *RecordDef
	Tags     []*TagEntry
}

func (n *TagSet) Span() Span { return n.SpanVal }
func (n *TagSet) node()      {}

// EffectiveWidth returns the declared backing width or the default.
func (n *TagSet) EffectiveWidth() string {
	if n.Width == "" {
		return DefaultWidth
	}
	return n.Width
}

// HasDerive reports whether the named capability was requested.
func (n *TagSet) HasDerive(name string) bool {
	for _, d := range n.Derives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// FindTag returns the tag entry with the given name, or nil.
func (n *TagSet) FindTag(name string) *TagEntry {
	for _, t := range n.Tags {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Ordinal returns the zero-based position of the named tag, or -1.
func (n *TagSet) Ordinal(name string) int {
	for i, t := range n.Tags {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Derive represents one requested extra capability.
type Derive struct {
	SpanVal Span
	Name    string
}

func (n *Derive) Span() Span { return n.SpanVal }
func (n *Derive) node()      {}

// RecordDef represents the record layout shared by every tag in a set.
type RecordDef struct {
	SpanVal Span
	Doc     []string
	Name    string
	Fields  []*Field
}

func (n *RecordDef) Span() Span { return n.SpanVal }
func (n *RecordDef) node()      {}

// Field represents one record field. Type and Tag are verbatim source
// text so any Go type and struct tag round-trip unchanged.
type Field struct {
	SpanVal Span
	Doc     []string
	Name    string
	Type    string
	Tag     string // includes the backquotes, "" if none
}

func (n *Field) Span() Span { return n.SpanVal }
func (n *Field) node()      {}

// TagEntry represents one tag and its initializer expression. Init is
// verbatim source text, re-emitted unchanged into the lookup table.
type TagEntry struct {
	SpanVal Span
	Doc     []string
	Name    string
	Init    string
}

func (n *TagEntry) Span() Span { return n.SpanVal }
func (n *TagEntry) node()      {}

// ---------------------------------------------------------------------------
// Widths and capabilities
// ---------------------------------------------------------------------------

// DefaultWidth is the backing width used when a tagset does not choose one.
const DefaultWidth = "u32"

// backingTypes maps supported backing widths to Go types.
var backingTypes = map[string]string{
	"u8":  "uint8",
	"u16": "uint16",
	"u32": "uint32",
	"u64": "uint64",
}

// SupportedWidths returns the backing widths a tagset may declare.
func SupportedWidths() []string {
	return []string{"u8", "u16", "u32", "u64"}
}

// Extra capabilities a tagset can request with derive.
const (
	DeriveText  = "text"
	DeriveJSON  = "json"
	DeriveSQL   = "sql"
	DeriveParse = "parse"
)

// SupportedDerives returns the capability names derive accepts.
func SupportedDerives() []string {
	return []string{DeriveJSON, DeriveParse, DeriveSQL, DeriveText}
}

// ---------------------------------------------------------------------------
// Span helpers
// ---------------------------------------------------------------------------

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// ZeroSpan returns an empty span.
func ZeroSpan() Span {
	return Span{}
}
