// Package errors defines the error taxonomy surfaced by every filerelay
// component to the observer/UI collaborator. Errors carry a Kind so callers
// can react to categories (config vs. auth vs. crypto) without depending on
// wrapped message text, and never carry sensitive material (keys, blobs) in
// their Error() string.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for the observer layer and for propagation
// policy: session-scoped kinds terminate only the session that raised them,
// ConfigError at startup is fatal to the process.
type Kind int

const (
	// ConfigError: missing key files, unreadable whitelist, malformed PEM.
	ConfigError Kind = iota
	// AuthError: unknown connect key, bad challenge proof, unexpected
	// frame during handshake.
	AuthError
	// CryptoError: RSA decrypt failure, GCM tag mismatch, SHA mismatch.
	CryptoError
	// ProtocolError: framing violation, oversized frame, timeout,
	// unexpected frame in state, unexpected close.
	ProtocolError
	// IoError: socket or filesystem failure.
	IoError
	// PolicyError: attempt to send a blob larger than the framing limit.
	PolicyError
)

// String returns the kind's tag as used in structured log/event fields.
func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case AuthError:
		return "AuthError"
	case CryptoError:
		return "CryptoError"
	case ProtocolError:
		return "ProtocolError"
	case IoError:
		return "IoError"
	case PolicyError:
		return "PolicyError"
	default:
		return "UnknownError"
	}
}

// Error is a Kind-tagged, wrapped error. Op names the operation that
// failed (e.g. "rsa_decrypt", "whitelist.Load"); Err is the underlying
// cause, which may itself be an *Error or an oops-wrapped error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err (which may be nil) with a Kind and an operation label.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinel errors used across packages for errors.Is comparisons.
var (
	// ErrChallengeMismatch indicates a handshake response's proof did not
	// match the acceptor's remembered challenge.
	ErrChallengeMismatch = errors.New("filerelay: challenge proof mismatch")

	// ErrUnknownConnectKey indicates the presented connect key hash is not
	// present in the authorization store.
	ErrUnknownConnectKey = errors.New("filerelay: unknown connect key")

	// ErrFrameTooLarge indicates a declared frame length exceeded the
	// maximum allowed frame size.
	ErrFrameTooLarge = errors.New("filerelay: frame exceeds maximum size")

	// ErrUnexpectedMessageType indicates a frame was decoded but did not
	// match the message type expected by the current state.
	ErrUnexpectedMessageType = errors.New("filerelay: unexpected message type")

	// ErrSessionAlreadyUsed indicates a second EncryptedPayload arrived on
	// a session that already delivered one.
	ErrSessionAlreadyUsed = errors.New("filerelay: session already carried a payload")

	// ErrBlobTooLarge indicates a caller attempted to send a plaintext
	// blob larger than the framing limit allows.
	ErrBlobTooLarge = errors.New("filerelay: blob exceeds maximum plaintext size")
)
