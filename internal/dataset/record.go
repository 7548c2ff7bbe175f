package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash is the SHA-256 digest of a record's normalized identity text.
type ContentHash [32]byte

func (hash ContentHash) String() string {
	return hex.EncodeToString(hash[:])
}

// Record is one evaluation sample. Index is its position across every input
// file of the run, in file order. Raw keeps the source line so the output
// corpus has the input schema.
type Record struct {
	Index    int
	Path     string
	Line     int
	Input    string
	Output   string
	Context  string
	Metadata map[string]string
	Raw      []byte

	identity string
	hash     ContentHash
}

// IdentityText is the normalized text used for hashing and similarity.
func (record *Record) IdentityText() string {
	return record.identity
}

func (record *Record) Hash() ContentHash {
	return record.hash
}

func buildIdentity(fields []string, input string, context string, output string) string {
	parts := make([]string, 0, len(fields))
	empty := true
	for _, field := range fields {
		value := ""
		switch field {
		case FieldInput:
			value = input
		case FieldContext:
			value = context
		case FieldOutput:
			value = output
		}
		if value != "" {
			empty = false
		}
		parts = append(parts, value)
	}
	// Normalized fields never contain a newline, so the separator is unambiguous.
	if empty {
		return ""
	}
	return strings.Join(parts, "\n")
}

func hashIdentity(identity string) ContentHash {
	return ContentHash(sha256.Sum256([]byte(identity)))
}
