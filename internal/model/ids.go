// Package model defines the entities, relations and identifiers of the
// provenance index: immutable content-addressed nodes of a Merkle DAG
// (content, directory, revision, release, snapshot) plus the origin layer
// that names remote repositories.
package model

import (
	"encoding/hex"
	"fmt"
)

// IDSize is the width in bytes of every entity identifier in the archive.
const IDSize = 20

// ID is a 20-byte content-addressed identifier (a git-style SHA-1), used for
// content, directory, revision, release, snapshot and origin nodes alike.
type ID [IDSize]byte

// String renders the id as lowercase hex, the conventional SWHID core.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value (never a valid archive id).
func (id ID) IsZero() bool {
	return id == ID{}
}

// ParseID decodes a hex string into an ID, rejecting anything that is not
// exactly IDSize bytes once decoded.
func ParseID(hexStr string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return id, fmt.Errorf("parse id %q: %w", hexStr, err)
	}
	if len(b) != IDSize {
		return id, fmt.Errorf("parse id %q: expected %d bytes, got %d", hexStr, IDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MustParseID is ParseID but panics on error; reserved for tests and literal
// fixtures where the hex is known to be well-formed.
func MustParseID(hexStr string) ID {
	id, err := ParseID(hexStr)
	if err != nil {
		panic(err)
	}
	return id
}
