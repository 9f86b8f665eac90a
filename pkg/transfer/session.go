// Package transfer implements the handshake state machine and the
// one-shot encrypted message transfer pipeline built on top of it: two
// long-running peers, an acceptor and a connector, exchange exactly one
// hybrid-encrypted message block per TCP connection.
package transfer

import (
	"crypto/rsa"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	qerrors "github.com/blockrelay/filerelay/internal/errors"
)

// Role identifies which side of a connection a Session represents.
type Role int

const (
	// RoleAcceptor is the side that accepted the TCP connection.
	RoleAcceptor Role = iota
	// RoleConnector is the side that dialed the TCP connection.
	RoleConnector
)

func (r Role) String() string {
	if r == RoleAcceptor {
		return "acceptor"
	}
	return "connector"
}

// State is the lifecycle stage of a Session.
type State int32

const (
	StateNew State = iota
	StateHandshaking
	StateReady
	StateUsed
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateHandshaking:
		return "Handshaking"
	case StateReady:
		return "Ready"
	case StateUsed:
		return "Used"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Session holds the authenticated state of one connection: the identity
// material established during the handshake and used by exactly one
// subsequent message transfer.
type Session struct {
	// ID uniquely identifies this session in logs and trace spans. It
	// has no protocol meaning and is never sent on the wire.
	ID uuid.UUID

	Role Role

	RemoteAddr net.Addr

	LocalPrivateKey *rsa.PrivateKey
	PeerPublicKey   *rsa.PublicKey

	// AuthenticatedKeyHash is the SHA-256 digest of the connect key the
	// connector proved possession of. Zero on the connector side, which
	// never learns the acceptor's view of the hash comparison.
	AuthenticatedKeyHash [32]byte

	CreatedAt     time.Time
	EstablishedAt time.Time

	observer Observer

	mu    sync.Mutex
	state State
	used  bool
}

// NewSession creates a fresh, unauthenticated session for the given role.
func NewSession(role Role, localKey *rsa.PrivateKey) *Session {
	return &Session{
		ID:              uuid.New(),
		Role:            role,
		LocalPrivateKey: localKey,
		CreatedAt:       time.Now(),
		state:           StateNew,
	}
}

// SetObserver attaches an observer. Must be called before the handshake
// begins to receive handshake-phase callbacks.
func (s *Session) SetObserver(o Observer) {
	s.observer = o
}

// State returns the session's current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// markReady transitions the session into StateReady once the handshake
// completes successfully.
func (s *Session) markReady() {
	s.mu.Lock()
	s.state = StateReady
	s.EstablishedAt = time.Now()
	s.mu.Unlock()
}

// claim marks the session as carrying its one permitted payload transfer.
// It returns ErrSessionAlreadyUsed if a payload was already claimed.
func (s *Session) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return qerrors.New(qerrors.ProtocolError, "session.claim", qerrors.ErrSessionAlreadyUsed)
	}
	if s.used {
		return qerrors.New(qerrors.ProtocolError, "session.claim", qerrors.ErrSessionAlreadyUsed)
	}
	s.used = true
	s.state = StateUsed
	return nil
}

// Close marks the session closed. It does not close the underlying
// connection; callers own that lifecycle.
func (s *Session) Close() {
	s.setState(StateClosed)
	s.LocalPrivateKey = nil
	s.PeerPublicKey = nil
}
