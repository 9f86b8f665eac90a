// Package protocol defines the wire message types and framing used by the
// handshake and session pipeline:
//
//	Acceptor                                   Connector
//	    | ----- PublicKeyExchange ------------> |
//	    | <---- PublicKeyExchange ------------- |
//	    | ----- AuthChallenge -----------------> |
//	    | <---- AuthResponse ------------------- |
//	    | ----- AuthSuccess / AuthFailure -----> |
//	    | <---- EncryptedPayload --------------- |
//	    | ----- TransferResult ----------------> |
//
// Every message is carried inside a length-prefixed frame (see framing.go);
// the tag byte identifying the variant is the first byte of the frame's
// payload, so a message's encoded form already starts with its own type.
package protocol

import (
	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
)

// MessageType tags a wire message variant.
type MessageType uint8

// Message variants, tagged A through G in the protocol design.
const (
	// MessageTypeAuthChallenge carries the acceptor's RSA-encrypted
	// challenge (tag A).
	MessageTypeAuthChallenge MessageType = 0x01
	// MessageTypeAuthResponse carries the connector's key hash and
	// challenge proof (tag B).
	MessageTypeAuthResponse MessageType = 0x02
	// MessageTypeAuthSuccess signals successful authentication (tag C).
	MessageTypeAuthSuccess MessageType = 0x03
	// MessageTypeAuthFailure signals failed authentication with a short
	// operator-facing reason (tag D).
	MessageTypeAuthFailure MessageType = 0x04
	// MessageTypePublicKeyExchange carries a PEM-encoded RSA public key,
	// sent in both directions (tag E).
	MessageTypePublicKeyExchange MessageType = 0x05
	// MessageTypeEncryptedPayload carries a hybrid-encrypted message
	// block (tag F).
	MessageTypeEncryptedPayload MessageType = 0x06
	// MessageTypeTransferResult carries the acceptor's success/failure
	// verdict on a delivered payload (tag G).
	MessageTypeTransferResult MessageType = 0x07
)

// String returns a human-readable name for the message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeAuthChallenge:
		return "AuthChallenge"
	case MessageTypeAuthResponse:
		return "AuthResponse"
	case MessageTypeAuthSuccess:
		return "AuthSuccess"
	case MessageTypeAuthFailure:
		return "AuthFailure"
	case MessageTypePublicKeyExchange:
		return "PublicKeyExchange"
	case MessageTypeEncryptedPayload:
		return "EncryptedPayload"
	case MessageTypeTransferResult:
		return "TransferResult"
	default:
		return "Unknown"
	}
}

// TagSize is the size in bytes of the leading message-type tag.
const TagSize = 1

// AuthChallenge carries the acceptor's challenge N, RSA-encrypted to the
// connector's public key (see DESIGN.md for why the payload is ciphertext
// rather than raw bytes).
type AuthChallenge struct {
	EncryptedChallenge []byte
}

// Validate reports whether the challenge ciphertext is non-empty and fits
// the frame bound; its exact length is not checked against the RSA key
// size.
func (m *AuthChallenge) Validate() error {
	if len(m.EncryptedChallenge) == 0 || len(m.EncryptedChallenge) > constants.MaxFrameSize {
		return qerrors.New(qerrors.ProtocolError, "AuthChallenge.Validate", qerrors.ErrUnexpectedMessageType)
	}
	return nil
}

// AuthResponse carries the connector's proof of possessing a whitelisted
// connect key: the SHA-256 digest of that key, plus the plaintext
// challenge recovered by RSA-decrypting AuthChallenge.
type AuthResponse struct {
	KeyHash        [constants.SHA256Size]byte
	ChallengeProof []byte
}

// Validate checks the response's challenge proof has the expected
// challenge length.
func (m *AuthResponse) Validate() error {
	if len(m.ChallengeProof) != constants.ChallengeSize {
		return qerrors.New(qerrors.ProtocolError, "AuthResponse.Validate", qerrors.ErrUnexpectedMessageType)
	}
	return nil
}

// AuthFailure carries a short, operator-facing reason for a rejected
// handshake. Never includes library-internal detail.
type AuthFailure struct {
	Reason string
}

// PublicKeyExchange carries a PEM-encoded RSA public key.
type PublicKeyExchange struct {
	PublicKeyPEM []byte
}

// EncryptedPayload carries one hybrid-encrypted message block: the
// structured record from the data model (§3).
type EncryptedPayload struct {
	Ciphertext   []byte
	Nonce        [constants.AESNonceSize]byte
	EncryptedKey []byte
	Checksum     [constants.SHA256Size]byte
	Filename     string
}

// Validate checks the payload's field sizes and the overall frame bound.
func (m *EncryptedPayload) Validate() error {
	if len(m.Filename) > 255 {
		return qerrors.New(qerrors.ProtocolError, "EncryptedPayload.Validate", qerrors.ErrUnexpectedMessageType)
	}
	total := TagSize + 4 + len(m.Ciphertext) + constants.AESNonceSize +
		2 + len(m.EncryptedKey) + constants.SHA256Size + 1 + len(m.Filename)
	if total > constants.MaxFrameSize {
		return qerrors.New(qerrors.PolicyError, "EncryptedPayload.Validate", qerrors.ErrFrameTooLarge)
	}
	return nil
}

// TransferResult carries the acceptor's verdict on a delivered payload.
type TransferResult struct {
	Success bool
	Reason  string
}
