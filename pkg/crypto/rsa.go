// rsa.go implements RSA-2048 key pair generation, PEM (PKCS#1) persistence,
// and PKCS1v15 encrypt/decrypt used to wrap the per-message AES key.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/samber/oops"

	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
)

const (
	pemTypePrivateKey = "RSA PRIVATE KEY"
	pemTypePublicKey  = "RSA PUBLIC KEY"

	// privateKeyFileMode restricts the private key to owner read/write
	// only, per the data model's "readable only by its owner" invariant.
	privateKeyFileMode = 0o600
)

// GenerateKeyPair creates a fresh RSA-2048 key pair, sourced from the
// platform CSPRNG.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, constants.RSAKeyBits)
	if err != nil {
		return nil, qerrors.New(qerrors.CryptoError, "generate_keypair",
			oops.Errorf("rsa key generation failed: %w", err))
	}
	return key, nil
}

// SavePrivateKey writes priv to path as a PEM-wrapped PKCS#1 block,
// restricting the file to owner-only access.
func SavePrivateKey(priv *rsa.PrivateKey, path string) error {
	der := x509.MarshalPKCS1PrivateKey(priv)
	block := &pem.Block{Type: pemTypePrivateKey, Bytes: der}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, privateKeyFileMode)
	if err != nil {
		return qerrors.New(qerrors.ConfigError, "save_private",
			oops.Errorf("opening private key file %q: %w", path, err))
	}
	defer f.Close()

	if err := pem.Encode(f, block); err != nil {
		return qerrors.New(qerrors.ConfigError, "save_private",
			oops.Errorf("encoding private key to %q: %w", path, err))
	}
	return nil
}

// SavePublicKey writes the public half of priv to path as a PEM-wrapped
// PKCS#1 block.
func SavePublicKey(pub *rsa.PublicKey, path string) error {
	der := x509.MarshalPKCS1PublicKey(pub)
	block := &pem.Block{Type: pemTypePublicKey, Bytes: der}

	data := pem.EncodeToMemory(block)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return qerrors.New(qerrors.ConfigError, "save_public",
			oops.Errorf("writing public key to %q: %w", path, err))
	}
	return nil
}

// LoadPrivateKey reads and parses a PEM-wrapped PKCS#1 RSA private key from
// path.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerrors.New(qerrors.ConfigError, "load_private",
			oops.Errorf("reading private key file %q: %w", path, err))
	}
	return ParsePrivateKeyPEM(data)
}

// LoadPublicKey reads and parses a PEM-wrapped PKCS#1 RSA public key from
// path.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerrors.New(qerrors.ConfigError, "load_public",
			oops.Errorf("reading public key file %q: %w", path, err))
	}
	return ParsePublicKeyPEM(data)
}

// ParsePrivateKeyPEM parses a PEM-wrapped PKCS#1 RSA private key from raw
// bytes, e.g. data received over the wire or read from a non-file source.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, qerrors.New(qerrors.ConfigError, "parse_private", errMalformedPEM)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, qerrors.New(qerrors.ConfigError, "parse_private",
			oops.Errorf("parsing PKCS1 private key: %w", err))
	}
	return key, nil
}

// ParsePublicKeyPEM parses a PEM-wrapped PKCS#1 RSA public key from raw
// bytes. This is the form exchanged on the wire in PublicKeyExchange
// frames.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, qerrors.New(qerrors.ConfigError, "parse_public", errMalformedPEM)
	}
	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, qerrors.New(qerrors.ConfigError, "parse_public",
			oops.Errorf("parsing PKCS1 public key: %w", err))
	}
	return key, nil
}

// EncodePublicKeyPEM renders pub as a PEM-wrapped PKCS#1 block, the form
// sent in a PublicKeyExchange frame.
func EncodePublicKeyPEM(pub *rsa.PublicKey) []byte {
	block := &pem.Block{Type: pemTypePublicKey, Bytes: x509.MarshalPKCS1PublicKey(pub)}
	return pem.EncodeToMemory(block)
}

// RSAEncrypt encrypts plaintext (at most constants.RSAMaxPlaintextSize
// bytes) under pub using PKCS1v15 padding.
func RSAEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if len(plaintext) > constants.RSAMaxPlaintextSize {
		return nil, qerrors.New(qerrors.PolicyError, "rsa_encrypt", errPlaintextTooLarge)
	}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	if err != nil {
		return nil, qerrors.New(qerrors.CryptoError, "rsa_encrypt",
			oops.Errorf("PKCS1v15 encrypt: %w", err))
	}
	return ciphertext, nil
}

// RSADecrypt decrypts ciphertext with priv using PKCS1v15 padding.
func RSADecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return nil, qerrors.New(qerrors.CryptoError, "rsa_decrypt",
			oops.Errorf("PKCS1v15 decrypt: %w: %v", errPaddingFailure, err))
	}
	return plaintext, nil
}
