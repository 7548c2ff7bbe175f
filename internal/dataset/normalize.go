package dataset

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes record text before hashing: Unicode NFC, collapsed
// whitespace runs, trimmed ends and an optional case fold.
type Normalizer struct {
	CaseFold bool
}

func (normalizer Normalizer) Normalize(text string) string {
	normalized := norm.NFC.String(text)
	if normalizer.CaseFold {
		normalized = cases.Fold().String(normalized)
	}
	return collapseWhitespace(normalized)
}

func collapseWhitespace(text string) string {
	builder := strings.Builder{}
	builder.Grow(len(text))
	pendingSpace := false
	for _, character := range text {
		if unicode.IsSpace(character) {
			pendingSpace = builder.Len() > 0
			continue
		}
		if pendingSpace {
			builder.WriteByte(' ')
			pendingSpace = false
		}
		builder.WriteRune(character)
	}
	return builder.String()
}
