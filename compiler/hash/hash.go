package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/chazu/consttab/compiler"
	"github.com/fxamacker/cbor/v2"
)

// cborEncMode encodes the hashing model in canonical CBOR so the same model
// always produces the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("hash: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// HashFile computes the SHA-256 content hash of a parsed source file.
//
// The hash covers a canonical CBOR encoding of the file's normalized model,
// prefixed with HashVersion. Two sources that differ only in comments,
// whitespace or derive spelling produce the same hash; renaming a tag,
// editing an initializer, or changing the effective width changes it.
func HashFile(file *compiler.File) ([32]byte, error) {
	enc, err := cborEncMode.Marshal(Normalize(file))
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash: marshal model: %w", err)
	}
	data := make([]byte, 0, len(enc)+1)
	data = append(data, HashVersion)
	data = append(data, enc...)
	return sha256.Sum256(data), nil
}

// Fingerprint renders the content hash of file in the form stamped into
// generated headers: "sha256:" followed by 64 hex digits.
func Fingerprint(file *compiler.File) (string, error) {
	sum, err := HashFile(file)
	if err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
