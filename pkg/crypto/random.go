// Package crypto provides the cryptographic primitives used by the
// handshake and session pipeline: RSA-2048 key management, RSA PKCS1v15
// wrapping, AES-256-GCM sealing, SHA-256 hashing, and CSPRNG access.
package crypto

import (
	"crypto/rand"
	"io"

	qerrors "github.com/blockrelay/filerelay/internal/errors"
)

// RandomBytes returns n cryptographically secure random bytes, sourced from
// the platform CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, qerrors.New(qerrors.CryptoError, "random_bytes", err)
	}
	return b, nil
}

// Reader is an io.Reader over the platform CSPRNG.
var Reader = rand.Reader

// ConstantTimeCompare compares two byte slices in constant time, returning
// true only if they are equal.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := range a {
		result |= a[i] ^ b[i]
	}
	return result == 0
}

// Zeroize overwrites b with zeros. Called on transient AES keys and
// challenge material once they are no longer needed.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple zeroizes each slice in slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
