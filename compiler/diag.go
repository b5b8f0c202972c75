package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// DiagKind classifies a diagnostic.
type DiagKind int

const (
	// Parse failures
	DiagSyntax              DiagKind = iota // malformed input
	DiagMissingRecordDef                    // no record definition before the first tag
	DiagUnexpectedRecordDef                 // record definition after tags, or a second one

	// Validation failures
	DiagTooFewTags       // record definition plus zero tags
	DiagDuplicateTag     // two tags share a name
	DiagWidthOverflow    // backing width cannot hold the highest ordinal
	DiagUnsupportedWidth // width outside u8/u16/u32/u64
	DiagUnknownDerive    // derive names an unknown capability
	DiagDuplicateDerive  // derive repeats a capability or names a built-in one
	DiagDuplicateField   // two record fields share a name

	// Warnings
	DiagEmptyRecord // record definition with no fields
)

var diagKindNames = map[DiagKind]string{
	DiagSyntax:              "syntax",
	DiagMissingRecordDef:    "missing-record-definition",
	DiagUnexpectedRecordDef: "unexpected-record-definition",
	DiagTooFewTags:          "too-few-tags",
	DiagDuplicateTag:        "duplicate-tag-name",
	DiagWidthOverflow:       "width-overflow",
	DiagUnsupportedWidth:    "unsupported-width",
	DiagUnknownDerive:       "unknown-derive",
	DiagDuplicateDerive:     "duplicate-derive",
	DiagDuplicateField:      "duplicate-field",
	DiagEmptyRecord:         "empty-record",
}

func (k DiagKind) String() string {
	if name, ok := diagKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DiagKind(%d)", k)
}

// Diagnostic is one parse or validation finding, located in the source.
type Diagnostic struct {
	Kind DiagKind
	Span Span
	Msg  string
}

// String renders the diagnostic as line:col: message.
func (d *Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Span.Start.Line, d.Span.Start.Column, d.Msg)
}

// Error makes a Diagnostic usable as an error value.
func (d *Diagnostic) Error() string {
	return d.String()
}

// FormatDiagnostics renders diagnostics one per line, prefixed with the
// file name when one is given.
func FormatDiagnostics(filename string, diags []*Diagnostic) string {
	var sb strings.Builder
	for _, d := range diags {
		if filename != "" {
			sb.WriteString(filename)
			sb.WriteString(":")
		}
		sb.WriteString(d.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// HasKind reports whether any diagnostic in the list has the given kind.
func HasKind(diags []*Diagnostic, kind DiagKind) bool {
	for _, d := range diags {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
