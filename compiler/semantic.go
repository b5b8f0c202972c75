package compiler

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Validator: pre-codegen structural checks
// ---------------------------------------------------------------------------

// Validator checks structural invariants of a parsed file before code
// generation. It never mutates the AST; validation is all-or-nothing and
// generation refuses to run while any error diagnostic exists.
type Validator struct {
	errors   []*Diagnostic
	warnings []*Diagnostic

	// Package-scope names already claimed in this file, mapped to a
	// description of the claiming declaration. Tag constants, type
	// names, and generated declarations all share one Go namespace.
	seen map[string]seenDecl
}

type seenDecl struct {
	pos  Position
	what string
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{seen: make(map[string]seenDecl)}
}

// Errors returns accumulated validation errors.
func (v *Validator) Errors() []*Diagnostic {
	return v.errors
}

// Warnings returns accumulated validation warnings.
func (v *Validator) Warnings() []*Diagnostic {
	return v.warnings
}

// errorAt records an error with position information.
func (v *Validator) errorAt(kind DiagKind, pos Position, format string, args ...interface{}) {
	v.errors = append(v.errors, &Diagnostic{
		Kind: kind,
		Span: MakeSpan(pos, pos),
		Msg:  fmt.Sprintf(format, args...),
	})
}

// warnAt records a warning with position information.
func (v *Validator) warnAt(kind DiagKind, pos Position, format string, args ...interface{}) {
	v.warnings = append(v.warnings, &Diagnostic{
		Kind: kind,
		Span: MakeSpan(pos, pos),
		Msg:  fmt.Sprintf(format, args...),
	})
}

// widthLimits maps each supported width to its highest representable
// ordinal.
var widthLimits = map[string]uint64{
	"u8":  math.MaxUint8,
	"u16": math.MaxUint16,
	"u32": math.MaxUint32,
	"u64": math.MaxUint64,
}

// mandatoryDerives are capability names every tagset carries intrinsically;
// requesting one again is an error, mirroring a conflicting derive.
var mandatoryDerives = map[string]bool{
	"copy":       true,
	"clone":      true,
	"eq":         true,
	"equal":      true,
	"comparable": true,
	"hash":       true,
	"string":     true,
	"stringer":   true,
	"debug":      true,
}

// supportedDerives is the set form of SupportedDerives.
var supportedDerives = map[string]bool{
	DeriveText:  true,
	DeriveJSON:  true,
	DeriveSQL:   true,
	DeriveParse: true,
}

// Validate checks a parsed file and returns its error diagnostics.
func Validate(file *File) []*Diagnostic {
	v := NewValidator()
	v.ValidateFile(file)
	return v.Errors()
}

// ValidateFile checks every tagset in the file.
func (v *Validator) ValidateFile(file *File) {
	for _, ts := range file.TagSets {
		v.validateTagSet(ts)
	}
}

// validateTagSet checks one tagset.
func (v *Validator) validateTagSet(ts *TagSet) {
	v.claim(ts.Name, ts.SpanVal.Start, fmt.Sprintf("tagset %s", ts.Name))

	v.checkWidth(ts)
	v.checkDerives(ts)
	v.checkRecord(ts)
	v.checkTags(ts)
	v.claimGenerated(ts)
}

// checkWidth validates the backing width declaration and its capacity.
func (v *Validator) checkWidth(ts *TagSet) {
	width := ts.EffectiveWidth()
	limit, ok := widthLimits[width]
	if !ok {
		v.errorAt(DiagUnsupportedWidth, ts.WidthPos,
			"unsupported backing width %s: expected one of u8, u16, u32 or u64 (the default is u32)", ts.Width)
		return
	}
	if len(ts.Tags) == 0 {
		return
	}
	highest := uint64(len(ts.Tags) - 1)
	if highest > limit {
		pos := ts.WidthPos
		if ts.Width == "" {
			pos = ts.SpanVal.Start
		}
		v.errorAt(DiagWidthOverflow, pos,
			"backing width %s cannot represent ordinal %d of tagset %s", width, highest, ts.Name)
	}
}

// checkDerives validates requested capabilities.
func (v *Validator) checkDerives(ts *TagSet) {
	requested := make(map[string]bool)
	for _, d := range ts.Derives {
		switch {
		case mandatoryDerives[d.Name]:
			v.errorAt(DiagDuplicateDerive, d.SpanVal.Start,
				"the %s capability is already provided for every tagset", d.Name)
		case !supportedDerives[d.Name]:
			v.errorAt(DiagUnknownDerive, d.SpanVal.Start,
				"unknown derive capability %s (supported: json, parse, sql, text)", d.Name)
		case requested[d.Name]:
			v.errorAt(DiagDuplicateDerive, d.SpanVal.Start,
				"capability %s requested more than once", d.Name)
		}
		requested[d.Name] = true
	}
}

// checkRecord validates the record definition.
func (v *Validator) checkRecord(ts *TagSet) {
	rec := ts.Record
	if rec == nil {
		// the parser already reported the missing record definition
		return
	}
	v.claim(rec.Name, rec.SpanVal.Start, fmt.Sprintf("record %s", rec.Name))

	if len(rec.Fields) == 0 {
		v.warnAt(DiagEmptyRecord, rec.SpanVal.Start, "record %s has no fields", rec.Name)
	}

	fields := make(map[string]Position)
	for _, f := range rec.Fields {
		if prev, ok := fields[f.Name]; ok {
			v.errorAt(DiagDuplicateField, f.SpanVal.Start,
				"duplicate field %s in record %s (first declared at line %d)", f.Name, rec.Name, prev.Line)
			continue
		}
		fields[f.Name] = f.SpanVal.Start
	}
}

// checkTags validates tag count and name uniqueness.
func (v *Validator) checkTags(ts *TagSet) {
	if ts.Record != nil && len(ts.Tags) == 0 {
		v.errorAt(DiagTooFewTags, ts.SpanVal.Start,
			"tagset %s needs at least one tag besides its record definition", ts.Name)
		return
	}
	for _, t := range ts.Tags {
		v.claim(t.Name, t.SpanVal.Start, fmt.Sprintf("tag %s", t.Name))
	}
}

// claim registers a package-scope name, reporting a collision when the
// name is already taken by anything else in the file.
func (v *Validator) claim(name string, pos Position, what string) {
	if prev, ok := v.seen[name]; ok {
		v.errorAt(DiagDuplicateTag, pos,
			"%s collides with %s declared at line %d", what, prev.what, prev.pos.Line)
		return
	}
	v.seen[name] = seenDecl{pos: pos, what: what}
}

// claimGenerated registers the declarations code generation will add for
// this tagset, so a tag in a later set cannot collide with them.
func (v *Validator) claimGenerated(ts *TagSet) {
	pos := ts.SpanVal.Start
	for _, name := range generatedNames(ts) {
		v.claim(name, pos, fmt.Sprintf("a declaration generated for tagset %s", ts.Name))
	}
}

// generatedNames lists the exported declarations emitted for a tagset
// beyond the tag and record types themselves.
func generatedNames(ts *TagSet) []string {
	names := []string{
		ts.Name + "Count",
		ts.Name + "All",
		ts.Name + "Backward",
		ts.Name + "FromOrdinal",
		"Invalid" + ts.Name + "Error",
	}
	if ts.HasDerive(DeriveParse) {
		names = append(names, "Parse"+ts.Name)
	}
	return names
}
