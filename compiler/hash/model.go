package hash

// ---------------------------------------------------------------------------
// Frozen hashing model.
//
// These are stripped-down parallels of compiler/ast.go with no position or
// comment data. Two sources that differ only in whitespace, comments, or
// derive spelling normalize to the same model and carry the same
// fingerprint.
//
// IMPORTANT: The CBOR field numbers are FROZEN. Once assigned, a number must
// never change meaning. Adding new fields is fine; renumbering existing ones
// silently changes every previously computed fingerprint.
// ---------------------------------------------------------------------------

// HashVersion prefixes the encoded model before hashing. Bumping it
// invalidates all existing fingerprints.
const HashVersion byte = 1

// HFile is the hashing model of one source file.
type HFile struct {
	Package string    `cbor:"1,keyasint"`
	Imports []HImport `cbor:"2,keyasint,omitempty"`
	TagSets []HTagSet `cbor:"3,keyasint"`
}

// HImport is one import spec. Name is empty unless the import is aliased.
type HImport struct {
	Name string `cbor:"1,keyasint,omitempty"`
	Path string `cbor:"2,keyasint"`
}

// HTagSet is the hashing model of one tagset. Width is always the effective
// width, so an explicit u32 and the default hash identically. Derives are
// sorted and deduplicated.
type HTagSet struct {
	Name    string   `cbor:"1,keyasint"`
	Width   string   `cbor:"2,keyasint"`
	Derives []string `cbor:"3,keyasint,omitempty"`
	Record  HRecord  `cbor:"4,keyasint"`
	Tags    []HTag   `cbor:"5,keyasint"`
}

// HRecord is the hashing model of a record definition. Field order is
// significant because it is the declared struct layout.
type HRecord struct {
	Name   string   `cbor:"1,keyasint"`
	Fields []HField `cbor:"2,keyasint,omitempty"`
}

// HField keeps the field type and struct tag text verbatim.
type HField struct {
	Name string `cbor:"1,keyasint"`
	Type string `cbor:"2,keyasint"`
	Tag  string `cbor:"3,keyasint,omitempty"`
}

// HTag keeps the initializer expression verbatim. Tag order is significant
// because it fixes the ordinals.
type HTag struct {
	Name string `cbor:"1,keyasint"`
	Init string `cbor:"2,keyasint"`
}
