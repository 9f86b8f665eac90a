package crypto

import "errors"

// Sentinel causes wrapped into qerrors.CryptoError / qerrors.ConfigError
// (and, for an oversized RSA plaintext, qerrors.PolicyError) by the
// functions in this package, matching the distinct variants the core
// protocol requires: padding failure, tag mismatch, key-size mismatch, and
// malformed PEM.
var (
	errInvalidKeySize    = errors.New("invalid key size")
	errInvalidNonceSize  = errors.New("invalid nonce size")
	errTagMismatch       = errors.New("authentication tag mismatch")
	errPaddingFailure    = errors.New("rsa padding failure")
	errMalformedPEM      = errors.New("malformed PEM block")
	errPlaintextTooLarge = errors.New("plaintext exceeds RSA PKCS1v15 bound")
)
