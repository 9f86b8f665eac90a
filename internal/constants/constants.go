// Package constants defines the fixed sizes, timeouts, and defaults of the
// filerelay wire protocol and crypto primitives.
package constants

import "time"

// Protocol identification.
const (
	// ProtocolName identifies this wire protocol in logs and error context.
	ProtocolName = "filerelay-v1"
)

// RSA parameters.
const (
	// RSAKeyBits is the modulus size of generated key pairs.
	RSAKeyBits = 2048

	// RSAMaxPlaintextSize is the largest plaintext RSAEncrypt accepts. It
	// is below the 245 bytes PKCS1v15 itself allows under a 2048-bit key
	// and comfortably larger than a 32-byte AES key.
	RSAMaxPlaintextSize = 190
)

// AES-256-GCM parameters.
const (
	// AESKeySize is the size of a generated AES-256 key in bytes.
	AESKeySize = 32

	// AESNonceSize is the size of an AES-GCM nonce in bytes (96 bits).
	AESNonceSize = 12

	// AESTagSize is the size of the AES-GCM authentication tag in bytes.
	AESTagSize = 16
)

// SHA256Size is the output size of SHA-256 in bytes.
const SHA256Size = 32

// ChallengeSize is the size of the acceptor's handshake challenge N.
const ChallengeSize = 32

// Framing limits.
const (
	// FrameLengthPrefixSize is the size of the big-endian length prefix
	// preceding every wire frame.
	FrameLengthPrefixSize = 4

	// MaxFrameSize is the hard upper bound on a single frame's payload.
	MaxFrameSize = 16 * 1024 * 1024

	// MaxPlaintextSize bounds the blob a connector may seal and send;
	// derived from MaxFrameSize minus a 1 KiB allowance that covers the
	// encrypted-payload envelope's worst-case non-plaintext overhead (GCM
	// tag, nonce, encrypted key, checksum, a 255-byte filename, encoding
	// lengths; 579 bytes with a 2048-bit peer key).
	MaxPlaintextSize = MaxFrameSize - 1024
)

// Timeouts.
const (
	// IOTimeout bounds any single socket read or write.
	IOTimeout = 30 * time.Second

	// HandshakeTimeout bounds the entire handshake, start to Ready.
	HandshakeTimeout = 60 * time.Second
)

// DefaultPort is the default TCP port for the acceptor's listening socket.
const DefaultPort = 8080

// DefaultKeysDir and the default key filenames.
const (
	DefaultKeysDir          = "keys"
	DefaultPrivateKeyFile   = "private_key.pem"
	DefaultPublicKeyFile    = "public_key.pem"
	DefaultWhitelistFile    = "whitelist.txt"
	ReceivedBlobsFileSuffix = ".ftt"
)
