// Package normalize owns identifier canonicalization shared by the list
// store and the matcher. Both sides of a comparison must go through the same
// folding or equal identifiers stop being equal.
package normalize

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	foldCaser = cases.Fold()

	// stripMarks removes combining marks after NFD decomposition so that
	// "Müller" and "Muller" fold to the same key.
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Name folds an entity name for comparison: case folding, diacritic
// stripping, punctuation to spaces, whitespace collapse.
func Name(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	folded := foldCaser.String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Address canonicalizes a chain address: trim and lowercase. Lowercasing
// makes EIP-55 checksum variants of the same address compare equal; base58
// addresses are case-sensitive on chain but sanctions feeds publish one
// canonical form, so the fold is safe for list comparison.
func Address(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tokens splits a folded name into its word tokens.
func Tokens(name string) []string {
	return strings.Fields(name)
}

// BlockingKeys returns the phonetic bucket keys for a folded entity name:
// one Soundex code per alphabetic token. Fuzzy matching only compares names
// sharing at least one key, which bounds the candidate set.
func BlockingKeys(name string) []string {
	seen := make(map[string]struct{}, 4)
	var keys []string
	for _, tok := range Tokens(name) {
		key := soundexKey(tok)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func soundexKey(token string) string {
	// Soundex is defined over ASCII letters; for numeric or non-Latin
	// tokens fall back to the literal token so they still bucket exactly.
	ascii := true
	hasLetter := false
	for _, r := range token {
		if r > unicode.MaxASCII {
			ascii = false
			break
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !ascii || !hasLetter {
		return token
	}
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, token)
	if letters == "" {
		return token
	}
	return matchr.Soundex(letters)
}
