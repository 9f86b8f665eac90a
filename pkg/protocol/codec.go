// codec.go implements the canonical binary encoding for each tagged message
// variant. All multi-byte integers are big-endian, matching the frame
// length prefix in framing.go; the spec leaves the internal encoding free
// as long as it is fixed, so this follows the simpler big-endian-everywhere
// convention rather than mixing endiannesses.
package protocol

import (
	"encoding/binary"

	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
)

// Codec encodes and decodes wire messages. It holds no state; the type
// exists so call sites read consistently with the rest of the package
// (transport, handshake) and to leave room for future per-connection
// options (e.g. a stricter size cap) without changing call signatures.
type Codec struct{}

// NewCodec returns a ready-to-use Codec.
func NewCodec() *Codec {
	return &Codec{}
}

// EncodeAuthChallenge encodes an AuthChallenge message.
func (c *Codec) EncodeAuthChallenge(m *AuthChallenge) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, TagSize+4+len(m.EncryptedChallenge))
	out[0] = byte(MessageTypeAuthChallenge)
	binary.BigEndian.PutUint32(out[TagSize:], uint32(len(m.EncryptedChallenge)))
	copy(out[TagSize+4:], m.EncryptedChallenge)
	return out, nil
}

// DecodeAuthChallenge decodes an AuthChallenge message from payload
// (including its leading tag byte).
func (c *Codec) DecodeAuthChallenge(payload []byte) (*AuthChallenge, error) {
	if len(payload) < TagSize+4 {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_challenge", qerrors.ErrUnexpectedMessageType)
	}
	if MessageType(payload[0]) != MessageTypeAuthChallenge {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_challenge", qerrors.ErrUnexpectedMessageType)
	}
	n := binary.BigEndian.Uint32(payload[TagSize:])
	rest := payload[TagSize+4:]
	if uint32(len(rest)) != n {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_challenge", qerrors.ErrUnexpectedMessageType)
	}
	m := &AuthChallenge{EncryptedChallenge: append([]byte(nil), rest...)}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeAuthResponse encodes an AuthResponse message.
func (c *Codec) EncodeAuthResponse(m *AuthResponse) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, TagSize+constants.SHA256Size+constants.ChallengeSize)
	out[0] = byte(MessageTypeAuthResponse)
	copy(out[TagSize:], m.KeyHash[:])
	copy(out[TagSize+constants.SHA256Size:], m.ChallengeProof)
	return out, nil
}

// DecodeAuthResponse decodes an AuthResponse message.
func (c *Codec) DecodeAuthResponse(payload []byte) (*AuthResponse, error) {
	want := TagSize + constants.SHA256Size + constants.ChallengeSize
	if len(payload) != want {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_response", qerrors.ErrUnexpectedMessageType)
	}
	if MessageType(payload[0]) != MessageTypeAuthResponse {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_response", qerrors.ErrUnexpectedMessageType)
	}
	m := &AuthResponse{}
	copy(m.KeyHash[:], payload[TagSize:TagSize+constants.SHA256Size])
	m.ChallengeProof = append([]byte(nil), payload[TagSize+constants.SHA256Size:]...)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeAuthSuccess encodes an AuthSuccess message, which carries no
// payload besides its tag.
func (c *Codec) EncodeAuthSuccess() []byte {
	return []byte{byte(MessageTypeAuthSuccess)}
}

// DecodeAuthSuccess validates an AuthSuccess message.
func (c *Codec) DecodeAuthSuccess(payload []byte) error {
	if len(payload) != TagSize || MessageType(payload[0]) != MessageTypeAuthSuccess {
		return qerrors.New(qerrors.ProtocolError, "decode_auth_success", qerrors.ErrUnexpectedMessageType)
	}
	return nil
}

// EncodeAuthFailure encodes an AuthFailure message.
func (c *Codec) EncodeAuthFailure(m *AuthFailure) ([]byte, error) {
	reason := []byte(m.Reason)
	if len(reason) > 0xFFFF {
		return nil, qerrors.New(qerrors.ProtocolError, "encode_auth_failure", qerrors.ErrUnexpectedMessageType)
	}
	out := make([]byte, TagSize+2+len(reason))
	out[0] = byte(MessageTypeAuthFailure)
	binary.BigEndian.PutUint16(out[TagSize:], uint16(len(reason)))
	copy(out[TagSize+2:], reason)
	return out, nil
}

// DecodeAuthFailure decodes an AuthFailure message.
func (c *Codec) DecodeAuthFailure(payload []byte) (*AuthFailure, error) {
	if len(payload) < TagSize+2 {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_failure", qerrors.ErrUnexpectedMessageType)
	}
	if MessageType(payload[0]) != MessageTypeAuthFailure {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_failure", qerrors.ErrUnexpectedMessageType)
	}
	n := binary.BigEndian.Uint16(payload[TagSize:])
	rest := payload[TagSize+2:]
	if int(n) != len(rest) {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_auth_failure", qerrors.ErrUnexpectedMessageType)
	}
	return &AuthFailure{Reason: string(rest)}, nil
}

// EncodePublicKeyExchange encodes a PublicKeyExchange message.
func (c *Codec) EncodePublicKeyExchange(m *PublicKeyExchange) ([]byte, error) {
	if len(m.PublicKeyPEM) == 0 {
		return nil, qerrors.New(qerrors.ProtocolError, "encode_public_key_exchange", qerrors.ErrUnexpectedMessageType)
	}
	out := make([]byte, TagSize+4+len(m.PublicKeyPEM))
	out[0] = byte(MessageTypePublicKeyExchange)
	binary.BigEndian.PutUint32(out[TagSize:], uint32(len(m.PublicKeyPEM)))
	copy(out[TagSize+4:], m.PublicKeyPEM)
	return out, nil
}

// DecodePublicKeyExchange decodes a PublicKeyExchange message.
func (c *Codec) DecodePublicKeyExchange(payload []byte) (*PublicKeyExchange, error) {
	if len(payload) < TagSize+4 {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_public_key_exchange", qerrors.ErrUnexpectedMessageType)
	}
	if MessageType(payload[0]) != MessageTypePublicKeyExchange {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_public_key_exchange", qerrors.ErrUnexpectedMessageType)
	}
	n := binary.BigEndian.Uint32(payload[TagSize:])
	rest := payload[TagSize+4:]
	if uint32(len(rest)) != n {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_public_key_exchange", qerrors.ErrUnexpectedMessageType)
	}
	return &PublicKeyExchange{PublicKeyPEM: append([]byte(nil), rest...)}, nil
}

// EncodeEncryptedPayload encodes an EncryptedPayload message.
func (c *Codec) EncodeEncryptedPayload(m *EncryptedPayload) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	filename := []byte(m.Filename)

	size := TagSize + 4 + len(m.Ciphertext) + constants.AESNonceSize +
		2 + len(m.EncryptedKey) + constants.SHA256Size + 1 + len(filename)
	out := make([]byte, size)
	off := 0
	out[off] = byte(MessageTypeEncryptedPayload)
	off += TagSize

	binary.BigEndian.PutUint32(out[off:], uint32(len(m.Ciphertext)))
	off += 4
	copy(out[off:], m.Ciphertext)
	off += len(m.Ciphertext)

	copy(out[off:], m.Nonce[:])
	off += constants.AESNonceSize

	binary.BigEndian.PutUint16(out[off:], uint16(len(m.EncryptedKey)))
	off += 2
	copy(out[off:], m.EncryptedKey)
	off += len(m.EncryptedKey)

	copy(out[off:], m.Checksum[:])
	off += constants.SHA256Size

	out[off] = byte(len(filename))
	off++
	copy(out[off:], filename)

	return out, nil
}

// DecodeEncryptedPayload decodes an EncryptedPayload message.
func (c *Codec) DecodeEncryptedPayload(payload []byte) (*EncryptedPayload, error) {
	errInvalid := qerrors.New(qerrors.ProtocolError, "decode_encrypted_payload", qerrors.ErrUnexpectedMessageType)

	if len(payload) < TagSize+4 || MessageType(payload[0]) != MessageTypeEncryptedPayload {
		return nil, errInvalid
	}
	off := TagSize

	ctLen := binary.BigEndian.Uint32(payload[off:])
	off += 4
	if uint32(len(payload)-off) < ctLen {
		return nil, errInvalid
	}
	ciphertext := append([]byte(nil), payload[off:off+int(ctLen)]...)
	off += int(ctLen)

	if len(payload)-off < constants.AESNonceSize {
		return nil, errInvalid
	}
	var nonce [constants.AESNonceSize]byte
	copy(nonce[:], payload[off:off+constants.AESNonceSize])
	off += constants.AESNonceSize

	if len(payload)-off < 2 {
		return nil, errInvalid
	}
	keyLen := binary.BigEndian.Uint16(payload[off:])
	off += 2
	if int(len(payload)-off) < int(keyLen) {
		return nil, errInvalid
	}
	encKey := append([]byte(nil), payload[off:off+int(keyLen)]...)
	off += int(keyLen)

	if len(payload)-off < constants.SHA256Size {
		return nil, errInvalid
	}
	var checksum [constants.SHA256Size]byte
	copy(checksum[:], payload[off:off+constants.SHA256Size])
	off += constants.SHA256Size

	if len(payload)-off < 1 {
		return nil, errInvalid
	}
	nameLen := int(payload[off])
	off++
	if len(payload)-off != nameLen {
		return nil, errInvalid
	}
	filename := string(payload[off : off+nameLen])

	m := &EncryptedPayload{
		Ciphertext:   ciphertext,
		Nonce:        nonce,
		EncryptedKey: encKey,
		Checksum:     checksum,
		Filename:     filename,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeTransferResult encodes a TransferResult message.
func (c *Codec) EncodeTransferResult(m *TransferResult) ([]byte, error) {
	reason := []byte(m.Reason)
	if len(reason) > 0xFFFF {
		return nil, qerrors.New(qerrors.ProtocolError, "encode_transfer_result", qerrors.ErrUnexpectedMessageType)
	}
	out := make([]byte, TagSize+1+2+len(reason))
	out[0] = byte(MessageTypeTransferResult)
	if m.Success {
		out[TagSize] = 1
	}
	binary.BigEndian.PutUint16(out[TagSize+1:], uint16(len(reason)))
	copy(out[TagSize+3:], reason)
	return out, nil
}

// DecodeTransferResult decodes a TransferResult message.
func (c *Codec) DecodeTransferResult(payload []byte) (*TransferResult, error) {
	if len(payload) < TagSize+3 || MessageType(payload[0]) != MessageTypeTransferResult {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_transfer_result", qerrors.ErrUnexpectedMessageType)
	}
	success := payload[TagSize] != 0
	n := binary.BigEndian.Uint16(payload[TagSize+1:])
	rest := payload[TagSize+3:]
	if int(n) != len(rest) {
		return nil, qerrors.New(qerrors.ProtocolError, "decode_transfer_result", qerrors.ErrUnexpectedMessageType)
	}
	return &TransferResult{Success: success, Reason: string(rest)}, nil
}
