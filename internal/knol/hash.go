package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/tango/internal/domain"
)

// Normalize concatenates the card's fields after cleaning each one.
// Each field is lowercased, trimmed and given unix line endings.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		p = strings.ToLower(p)
		return strings.TrimSpace(p)
	}

	// Newline separators keep "ねこ"+"cat" distinct from "ね"+"こcat".
	return strings.Join([]string{
		normalizePart(card.Word),
		normalizePart(card.Reading),
		normalizePart(card.Meaning),
		normalizePart(card.Example),
	}, "\n")
}

// Hash returns the SHA-256 of the normalized card as a hex string.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", sum)
}
