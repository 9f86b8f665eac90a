// aead.go implements the symmetric half of the hybrid encryption pipeline:
// AES-256-GCM with an explicit, caller-supplied nonce. The protocol
// generates a fresh AES-256 key per message (see transfer.Send; rsa.go
// wraps it for the peer), so nonce
// uniqueness only needs to hold within a single key's lifetime — a single
// Seal call — which a random 12-byte nonce satisfies with overwhelming
// probability.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
)

// Seal encrypts and authenticates plaintext under key with nonce, using
// AES-256-GCM and empty additional data. key must be 32 bytes and nonce
// must be 12 bytes.
func Seal(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != constants.AESNonceSize {
		return nil, qerrors.New(qerrors.CryptoError, "aes_seal", errInvalidNonceSize)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open verifies and decrypts ciphertext (which includes the appended GCM
// tag) under key with nonce. Returns a CryptoError on tag mismatch.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != constants.AESNonceSize {
		return nil, qerrors.New(qerrors.CryptoError, "aes_open", errInvalidNonceSize)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, qerrors.New(qerrors.CryptoError, "aes_open", errTagMismatch)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != constants.AESKeySize {
		return nil, qerrors.New(qerrors.CryptoError, "aes_new", errInvalidKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, qerrors.New(qerrors.CryptoError, "aes_new", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, qerrors.New(qerrors.CryptoError, "aes_new", err)
	}
	return aead, nil
}
