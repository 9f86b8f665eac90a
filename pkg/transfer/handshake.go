// handshake.go implements the authentication handshake.
//
// Sequence (acceptor on the left, connector on the right):
//
//	Acceptor                                     Connector
//	    | ----------- PublicKeyExchange --------> |   acceptor sends first
//	    | <---------- PublicKeyExchange --------- |   connector replies
//	    | ----------- AuthChallenge -------------> |   RSA(N) under connector's key
//	    | <---------- AuthResponse --------------- |   {SHA256(connect_key), N}
//	    | ----------- AuthSuccess/AuthFailure ---> |
//
// The challenge is RSA-encrypted rather than sent as raw bytes: recovering
// N requires the connector's private key, so returning it in AuthResponse
// proves possession of that key pair as well as the connect key. This is
// only meaningful because the public keys are exchanged first; encrypting
// a challenge to a key the acceptor hasn't verified yet would prove
// nothing.
package transfer

import (
	"io"
	"time"

	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
	"github.com/blockrelay/filerelay/pkg/auth"
	pcrypto "github.com/blockrelay/filerelay/pkg/crypto"
	"github.com/blockrelay/filerelay/pkg/protocol"
)

var codec = protocol.NewCodec()

// deadlineConn is the subset of net.Conn the handshake needs in order to
// bound each round trip; satisfied by net.Conn and by test doubles.
type deadlineConn interface {
	io.Reader
	io.Writer
	SetDeadline(t time.Time) error
}

func exchangePublicKeys(rw deadlineConn, session *Session, localPublic []byte) error {
	if session.Role == RoleAcceptor {
		if err := sendPublicKey(rw, localPublic); err != nil {
			return err
		}
		return recvPublicKey(rw, session)
	}
	if err := recvPublicKey(rw, session); err != nil {
		return err
	}
	return sendPublicKey(rw, localPublic)
}

func sendPublicKey(w io.Writer, pem []byte) error {
	payload, err := codec.EncodePublicKeyExchange(&protocol.PublicKeyExchange{PublicKeyPEM: pem})
	if err != nil {
		return err
	}
	return protocol.WriteFrame(w, payload)
}

func recvPublicKey(r io.Reader, session *Session) error {
	frame, err := protocol.ReadFrame(r)
	if err != nil {
		return err
	}
	msg, err := codec.DecodePublicKeyExchange(frame)
	if err != nil {
		return err
	}
	pub, err := pcrypto.ParsePublicKeyPEM(msg.PublicKeyPEM)
	if err != nil {
		return qerrors.New(qerrors.ProtocolError, "handshake.recvPublicKey", err)
	}
	session.PeerPublicKey = pub
	return nil
}

// ConnectorHandshake performs the handshake as the connecting peer,
// proving possession of connectKey. rw is bound by an overall handshake
// deadline before the first byte is written.
func ConnectorHandshake(rw deadlineConn, session *Session, connectKey string) error {
	session.setState(StateHandshaking)
	if err := rw.SetDeadline(time.Now().Add(constants.HandshakeTimeout)); err != nil {
		return qerrors.New(qerrors.IoError, "handshake.SetDeadline", err)
	}

	localPublic := pcrypto.EncodePublicKeyPEM(&session.LocalPrivateKey.PublicKey)
	if err := exchangePublicKeys(rw, session, localPublic); err != nil {
		session.setState(StateFailed)
		return err
	}

	frame, err := protocol.ReadFrame(rw)
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	challenge, err := codec.DecodeAuthChallenge(frame)
	if err != nil {
		session.setState(StateFailed)
		return err
	}

	proof, err := pcrypto.RSADecrypt(session.LocalPrivateKey, challenge.EncryptedChallenge)
	if err != nil {
		session.setState(StateFailed)
		return qerrors.New(qerrors.CryptoError, "handshake.decrypt_challenge", err)
	}

	response := &protocol.AuthResponse{
		KeyHash:        pcrypto.SHA256([]byte(connectKey)),
		ChallengeProof: proof,
	}
	payload, err := codec.EncodeAuthResponse(response)
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	if err := protocol.WriteFrame(rw, payload); err != nil {
		session.setState(StateFailed)
		return err
	}

	frame, err = protocol.ReadFrame(rw)
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	tag, err := protocol.PeekMessageType(frame)
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	switch tag {
	case protocol.MessageTypeAuthSuccess:
		if err := codec.DecodeAuthSuccess(frame); err != nil {
			session.setState(StateFailed)
			return err
		}
		session.markReady()
		return nil
	case protocol.MessageTypeAuthFailure:
		failure, err := codec.DecodeAuthFailure(frame)
		if err != nil {
			session.setState(StateFailed)
			return err
		}
		session.setState(StateFailed)
		return qerrors.New(qerrors.AuthError, "handshake.rejected", &authRejectedError{reason: failure.Reason})
	default:
		session.setState(StateFailed)
		return qerrors.New(qerrors.ProtocolError, "handshake.connector", qerrors.ErrUnexpectedMessageType)
	}
}

// AcceptorHandshake performs the handshake as the accepting peer,
// challenging the connector and checking the proof against store.
func AcceptorHandshake(rw deadlineConn, session *Session, store *auth.Store) error {
	session.setState(StateHandshaking)
	if err := rw.SetDeadline(time.Now().Add(constants.HandshakeTimeout)); err != nil {
		return qerrors.New(qerrors.IoError, "handshake.SetDeadline", err)
	}

	localPublic := pcrypto.EncodePublicKeyPEM(&session.LocalPrivateKey.PublicKey)
	if err := exchangePublicKeys(rw, session, localPublic); err != nil {
		session.setState(StateFailed)
		return err
	}

	challengeBytes, err := pcrypto.RandomBytes(constants.ChallengeSize)
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	encryptedChallenge, err := pcrypto.RSAEncrypt(session.PeerPublicKey, challengeBytes)
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	payload, err := codec.EncodeAuthChallenge(&protocol.AuthChallenge{EncryptedChallenge: encryptedChallenge})
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	if err := protocol.WriteFrame(rw, payload); err != nil {
		session.setState(StateFailed)
		return err
	}

	frame, err := protocol.ReadFrame(rw)
	if err != nil {
		session.setState(StateFailed)
		return err
	}
	response, err := codec.DecodeAuthResponse(frame)
	if err != nil {
		session.setState(StateFailed)
		return err
	}

	var keyHash [32]byte = response.KeyHash
	if !store.Contains(auth.KeyHash(keyHash)) {
		return acceptorReject(rw, session, "unknown connect key")
	}
	if !pcrypto.ConstantTimeCompare(response.ChallengeProof, challengeBytes) {
		return acceptorReject(rw, session, "challenge proof mismatch")
	}

	successPayload := codec.EncodeAuthSuccess()
	if err := protocol.WriteFrame(rw, successPayload); err != nil {
		session.setState(StateFailed)
		return err
	}

	session.AuthenticatedKeyHash = keyHash
	session.markReady()
	if session.observer != nil {
		session.observer.OnHandshakeComplete(session.ID, remoteAddrString(session), keyHash)
	}
	return nil
}

func acceptorReject(rw deadlineConn, session *Session, reason string) error {
	payload, encErr := codec.EncodeAuthFailure(&protocol.AuthFailure{Reason: reason})
	if encErr == nil {
		_ = protocol.WriteFrame(rw, payload)
	}
	session.setState(StateFailed)
	rejectErr := qerrors.New(qerrors.AuthError, "handshake.acceptor_reject", &authRejectedError{reason: reason})
	if session.observer != nil {
		session.observer.OnAuthFailure(session.ID, remoteAddrString(session), rejectErr)
	}
	return rejectErr
}

func remoteAddrString(session *Session) string {
	if session.RemoteAddr == nil {
		return ""
	}
	return session.RemoteAddr.String()
}

// authRejectedError carries the short, operator-facing reason a
// handshake was rejected, mirroring the reason string sent on the wire.
type authRejectedError struct {
	reason string
}

func (e *authRejectedError) Error() string {
	return "handshake rejected: " + e.reason
}
