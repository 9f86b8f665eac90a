// pipeline.go implements the one-shot message transfer that follows a
// completed handshake: the connector seals a plaintext blob, frames it,
// and transmits it; the acceptor opens it, verifies its checksum, and
// hands it to a Sink.
package transfer

import (
	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
	pcrypto "github.com/blockrelay/filerelay/pkg/crypto"
	"github.com/blockrelay/filerelay/pkg/protocol"
)

// Sink persists a delivered plaintext blob under a caller-chosen name:
// the sender's declared filename, or Receive's filenameOverride when that
// is non-empty.
type Sink interface {
	Store(filename string, data []byte) error
}

// Send seals plaintext under a fresh per-message AES-256-GCM key, wraps
// that key for the peer's RSA public key learned during the handshake,
// and transmits the result. It blocks for the acceptor's TransferResult
// and returns an error if the acceptor reports failure. A session may
// carry at most one Send.
func Send(rw deadlineConn, session *Session, plaintext []byte, filename string) error {
	if len(plaintext) > constants.MaxPlaintextSize {
		return qerrors.New(qerrors.PolicyError, "transfer.Send", qerrors.ErrBlobTooLarge)
	}
	if err := session.claim(); err != nil {
		return err
	}

	key, err := pcrypto.RandomBytes(constants.AESKeySize)
	if err != nil {
		return err
	}
	defer pcrypto.Zeroize(key)

	nonce, err := pcrypto.RandomBytes(constants.AESNonceSize)
	if err != nil {
		return err
	}

	ciphertext, err := pcrypto.Seal(key, nonce, plaintext)
	if err != nil {
		return err
	}

	encryptedKey, err := pcrypto.RSAEncrypt(session.PeerPublicKey, key)
	if err != nil {
		return err
	}

	checksum := pcrypto.SHA256(plaintext)

	msg := &protocol.EncryptedPayload{
		Ciphertext:   ciphertext,
		EncryptedKey: encryptedKey,
		Checksum:     checksum,
		Filename:     filename,
	}
	copy(msg.Nonce[:], nonce)

	payload, err := codec.EncodeEncryptedPayload(msg)
	if err != nil {
		return err
	}
	if err := protocol.WriteFrame(rw, payload); err != nil {
		return err
	}

	frame, err := protocol.ReadFrame(rw)
	if err != nil {
		return err
	}
	result, err := codec.DecodeTransferResult(frame)
	if err != nil {
		return err
	}
	if !result.Success {
		rejectErr := qerrors.New(qerrors.PolicyError, "transfer.Send", &transferRejectedError{reason: result.Reason})
		if session.observer != nil {
			session.observer.OnTransferFailed(session.ID, remoteAddrString(session), rejectErr)
		}
		return rejectErr
	}

	if session.observer != nil {
		session.observer.OnTransferComplete(session.ID, remoteAddrString(session), filename, len(plaintext))
	}
	return nil
}

// Receive reads exactly one EncryptedPayload from rw, decrypts and
// verifies it, hands the plaintext to sink, and replies with a
// TransferResult. filenameOverride, if non-empty, is used in place of the
// sender's declared filename when calling sink.Store.
func Receive(rw deadlineConn, session *Session, sink Sink, filenameOverride string) error {
	if err := session.claim(); err != nil {
		return err
	}

	frame, err := protocol.ReadFrame(rw)
	if err != nil {
		return err
	}
	msg, err := codec.DecodeEncryptedPayload(frame)
	if err != nil {
		return err
	}

	key, err := pcrypto.RSADecrypt(session.LocalPrivateKey, msg.EncryptedKey)
	if err != nil {
		return replyFailure(rw, session, qerrors.CryptoError, "unable to unwrap message key")
	}
	defer pcrypto.Zeroize(key)

	plaintext, err := pcrypto.Open(key, msg.Nonce[:], msg.Ciphertext)
	if err != nil {
		return replyFailure(rw, session, qerrors.CryptoError, "decryption failed")
	}

	if pcrypto.SHA256(plaintext) != msg.Checksum {
		return replyFailure(rw, session, qerrors.CryptoError, "checksum mismatch")
	}

	filename := msg.Filename
	if filenameOverride != "" {
		filename = filenameOverride
	}
	if err := sink.Store(filename, plaintext); err != nil {
		return replyFailure(rw, session, qerrors.IoError, "storage failure")
	}

	successPayload, err := codec.EncodeTransferResult(&protocol.TransferResult{Success: true})
	if err != nil {
		return err
	}
	if err := protocol.WriteFrame(rw, successPayload); err != nil {
		return err
	}

	if session.observer != nil {
		session.observer.OnTransferComplete(session.ID, remoteAddrString(session), filename, len(plaintext))
	}
	return nil
}

// replyFailure sends a TransferResult{Success: false} back to the peer and
// returns an error tagged with kind, the taxonomy classification a
// collaborator will see via the Observer's OnTransferFailed callback.
func replyFailure(rw deadlineConn, session *Session, kind qerrors.Kind, reason string) error {
	payload, encErr := codec.EncodeTransferResult(&protocol.TransferResult{Success: false, Reason: reason})
	if encErr == nil {
		_ = protocol.WriteFrame(rw, payload)
	}
	rejectErr := qerrors.New(kind, "transfer.Receive", &transferRejectedError{reason: reason})
	if session.observer != nil {
		session.observer.OnTransferFailed(session.ID, remoteAddrString(session), rejectErr)
	}
	return rejectErr
}

// transferRejectedError carries the short reason a transfer failed,
// mirroring the reason string carried by TransferResult.
type transferRejectedError struct {
	reason string
}

func (e *transferRejectedError) Error() string {
	return "transfer rejected: " + e.reason
}
