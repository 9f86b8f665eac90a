// transport.go implements the listen/accept/dial surface: one goroutine
// per accepted connection on the acceptor side; on the connector side,
// Dial runs on the caller's goroutine and returns one connection per send
// (see cmd/filerelay for how callers use this).
package transfer

import (
	"crypto/rsa"
	"errors"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
	"github.com/blockrelay/filerelay/pkg/auth"
)

// errHandshakeRateLimited is the underlying error wrapped when a
// connection is turned away before a Session ever reaches the handshake,
// because Listener's global rate limiter has no budget left.
var errHandshakeRateLimited = errors.New("handshake rate limit exceeded")

// Config configures a Listener.
type Config struct {
	KeyPair   *rsa.PrivateKey
	Store     *auth.Store
	Observer  Observer
	IOTimeout time.Duration

	// HandshakeRateLimit caps the rate of handshake attempts accepted per
	// second, guarding against a connect-flood tying up goroutines in
	// RSA operations. Zero disables the limit.
	HandshakeRateLimit float64
	HandshakeBurst     int
}

func (c Config) ioTimeout() time.Duration {
	if c.IOTimeout > 0 {
		return c.IOTimeout
	}
	return constants.IOTimeout
}

func (c Config) observer() Observer {
	if c.Observer != nil {
		return c.Observer
	}
	return NoopObserver{}
}

// Listener accepts incoming connections and drives the acceptor side of
// the handshake for each one.
type Listener struct {
	ln      net.Listener
	config  Config
	limiter *rate.Limiter
}

// Listen opens a TCP listener on address and returns a Listener configured
// to authenticate incoming connections against cfg.Store.
func Listen(network, address string, cfg Config) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, qerrors.New(qerrors.IoError, "transfer.Listen", err)
	}

	l := &Listener{ln: ln, config: cfg}
	if cfg.HandshakeRateLimit > 0 {
		burst := cfg.HandshakeBurst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.HandshakeRateLimit), burst)
	}
	return l, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close closes the underlying listener.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Handler receives a session that has completed the acceptor handshake
// and the underlying connection, positioned to read the connector's
// EncryptedPayload. The handler owns closing conn.
type Handler func(session *Session, conn net.Conn)

// Serve accepts connections until the listener is closed, running the
// acceptor handshake and dispatching successful sessions to handle on
// their own goroutine. Connections that fail the handshake or exceed the
// rate limit are closed without reaching handle.
func (l *Listener) Serve(handle Handler) error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return qerrors.New(qerrors.IoError, "transfer.Serve", err)
		}
		go l.handleConn(conn, handle)
	}
}

func (l *Listener) handleConn(conn net.Conn, handle Handler) {
	observer := l.config.observer()
	remote := conn.RemoteAddr().String()

	session := NewSession(RoleAcceptor, l.config.KeyPair)
	session.RemoteAddr = conn.RemoteAddr()
	session.SetObserver(observer)
	observer.OnSessionStart(session.ID, RoleAcceptor, remote)

	if l.limiter != nil && !l.limiter.Allow() {
		limitErr := qerrors.New(qerrors.AuthError, "transfer.handshake_rate_limit", errHandshakeRateLimited)
		observer.OnAuthFailure(session.ID, remote, limitErr)
		observer.OnSessionEnd(session.ID, remote)
		_ = conn.Close()
		return
	}

	if err := AcceptorHandshake(conn, session, l.config.Store); err != nil {
		observer.OnProtocolError(session.ID, remote, err)
		observer.OnSessionEnd(session.ID, remote)
		_ = conn.Close()
		return
	}

	if err := conn.SetDeadline(time.Now().Add(l.config.ioTimeout())); err != nil {
		observer.OnProtocolError(session.ID, remote, err)
		observer.OnSessionEnd(session.ID, remote)
		_ = conn.Close()
		return
	}

	handle(session, conn)
}

// DialConfig configures a connector's outbound connection.
type DialConfig struct {
	LocalPrivateKey *rsa.PrivateKey
	ConnectKey      string
	Observer        Observer
	IOTimeout       time.Duration
}

func (c DialConfig) ioTimeout() time.Duration {
	if c.IOTimeout > 0 {
		return c.IOTimeout
	}
	return constants.IOTimeout
}

// Dial connects to address, performs the connector handshake, and returns
// the authenticated session and connection ready for Send.
func Dial(network, address string, cfg DialConfig) (*Session, net.Conn, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, nil, qerrors.New(qerrors.IoError, "transfer.Dial", err)
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NoopObserver{}
	}

	session := NewSession(RoleConnector, cfg.LocalPrivateKey)
	session.RemoteAddr = conn.RemoteAddr()
	session.SetObserver(observer)
	remote := conn.RemoteAddr().String()
	observer.OnSessionStart(session.ID, RoleConnector, remote)

	if err := ConnectorHandshake(conn, session, cfg.ConnectKey); err != nil {
		observer.OnProtocolError(session.ID, remote, err)
		observer.OnSessionEnd(session.ID, remote)
		_ = conn.Close()
		return nil, nil, err
	}

	if err := conn.SetDeadline(time.Now().Add(cfg.ioTimeout())); err != nil {
		_ = conn.Close()
		return nil, nil, qerrors.New(qerrors.IoError, "transfer.Dial", err)
	}

	return session, conn, nil
}
