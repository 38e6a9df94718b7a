// Package canonical produces byte-stable encodings of decision payloads.
// Reproducibility is a regulatory requirement: the same request screened
// against the same list snapshot under the same policy must serialize to the
// same bytes, so records are hashed and compared across re-screens.
package canonical

import (
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"

	dErrors "chainscreen/pkg/domain-errors"
)

// Marshal encodes v as RFC 8785 canonical JSON: sorted object members,
// normalized number forms, no insignificant whitespace.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal canonical payload")
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "canonicalize payload")
	}
	return out, nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of v's canonical encoding.
func Fingerprint(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the hex BLAKE2b-256 digest of raw bytes. Used for list
// snapshot content hashes as well as decision fingerprints.
func HashBytes(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
