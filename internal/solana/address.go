package solana

import (
	"filippo.io/edwards25519"
	"github.com/cockroachdb/errors"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that addr is a base58 ed25519 public key, i.e. a
// wallet address rather than a program-derived address.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("empty address")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return errors.Wrapf(err, "decode address %q", addr)
	}
	if len(raw) != 32 {
		return errors.Newf("address %q decodes to %d bytes, want 32", addr, len(raw))
	}
	if !isOnCurve(raw) {
		return errors.Newf("address %q is not on the ed25519 curve", addr)
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// IsSignatureShape reports whether sig looks like a base58 transaction
// signature of 86 to 88 characters.
func IsSignatureShape(sig string) bool {
	if len(sig) < 86 || len(sig) > 88 {
		return false
	}
	_, err := base58.Decode(sig)
	return err == nil
}
