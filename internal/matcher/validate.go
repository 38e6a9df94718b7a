package matcher

import (
	"strings"

	"chainscreen/internal/liststore"
	"chainscreen/internal/normalize"
	dErrors "chainscreen/pkg/domain-errors"
)

const (
	base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	bech32Alphabet = "023456789acdefghjklmnpqrstuvwxyz"
	hexAlphabet    = "0123456789abcdef"
)

// normalizeSubject canonicalizes and validates an identifier for its
// declared type. Syntax checks only: no checksum or on-chain verification.
func normalizeSubject(identifier string, t liststore.EntryType) (string, error) {
	switch t {
	case liststore.EntryTypeAddress:
		addr := normalize.Address(identifier)
		if !validAddress(addr) {
			return "", dErrors.NewField(dErrors.CodeInvalidInput, "identifier", "malformed address")
		}
		return addr, nil
	case liststore.EntryTypeEntity:
		name := normalize.Name(identifier)
		if len(name) < 2 {
			return "", dErrors.NewField(dErrors.CodeInvalidInput, "identifier", "entity name too short")
		}
		return name, nil
	default:
		return "", dErrors.NewField(dErrors.CodeInvalidInput, "type", "unknown subject type")
	}
}

// validAddress accepts the address shapes the supported chains use:
// 0x-prefixed 40-hex (ethereum family), bech32 (bitcoin segwit), and
// base58 (bitcoin legacy, tron, solana).
func validAddress(addr string) bool {
	switch {
	case strings.HasPrefix(addr, "0x"):
		return len(addr) == 42 && onlyChars(addr[2:], hexAlphabet)
	case strings.HasPrefix(addr, "bc1") || strings.HasPrefix(addr, "tb1"):
		return len(addr) >= 14 && len(addr) <= 74 && onlyChars(addr[3:], bech32Alphabet)
	default:
		// Base58 alphabets are case-sensitive; addresses were lowercased
		// during canonicalization, so compare case-insensitively.
		return len(addr) >= 25 && len(addr) <= 62 && onlyChars(addr, strings.ToLower(base58Alphabet))
	}
}

func onlyChars(s, alphabet string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
