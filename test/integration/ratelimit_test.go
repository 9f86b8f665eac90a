package integration

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockrelay/filerelay/pkg/auth"
	pcrypto "github.com/blockrelay/filerelay/pkg/crypto"
	"github.com/blockrelay/filerelay/pkg/transfer"
)

// TestHandshakeRateLimit verifies the acceptor's handshake-attempt limiter
// rejects a burst of connections beyond its configured rate, then admits
// new attempts again once the limiter refills.
func TestHandshakeRateLimit(t *testing.T) {
	whitelist := writeWhitelist(t, "branch-042")

	priv, err := pcrypto.GenerateKeyPair()
	require.NoError(t, err)
	store, err := auth.Load(whitelist)
	require.NoError(t, err)

	ln, err := transfer.Listen("tcp", "127.0.0.1:0", transfer.Config{
		KeyPair:            priv,
		Store:              store,
		IOTimeout:          5 * time.Second,
		HandshakeRateLimit: 1.0,
		HandshakeBurst:     1,
	})
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	go func() {
		_ = ln.Serve(func(session *transfer.Session, conn net.Conn) {
			_ = conn.Close()
		})
	}()

	dial := func() error {
		connectorPriv, err := pcrypto.GenerateKeyPair()
		require.NoError(t, err)
		_, conn, err := transfer.Dial("tcp", ln.Addr().String(), transfer.DialConfig{
			LocalPrivateKey: connectorPriv,
			ConnectKey:      "branch-042",
			IOTimeout:       2 * time.Second,
		})
		if conn != nil {
			_ = conn.Close()
		}
		return err
	}

	// First attempt consumes the single burst token.
	require.NoError(t, dial())

	// Second attempt, immediately after, should be rejected by the limiter
	// before the handshake even starts.
	require.Error(t, dial())

	// After the bucket refills, a new attempt should succeed again.
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, dial())
}

// TestNoRateLimitByDefault verifies a Listener configured with a zero
// HandshakeRateLimit never throttles connections.
func TestNoRateLimitByDefault(t *testing.T) {
	whitelist := writeWhitelist(t, "branch-042")
	ln, _ := newListener(t, whitelist)
	defer func() { _ = ln.Close() }()

	go func() {
		_ = ln.Serve(func(session *transfer.Session, conn net.Conn) {
			_ = conn.Close()
		})
	}()

	for i := 0; i < 5; i++ {
		connectorPriv, err := pcrypto.GenerateKeyPair()
		require.NoError(t, err)
		_, conn, err := transfer.Dial("tcp", ln.Addr().String(), transfer.DialConfig{
			LocalPrivateKey: connectorPriv,
			ConnectKey:      "branch-042",
			IOTimeout:       2 * time.Second,
		})
		require.NoError(t, err, "attempt %d", i+1)
		_ = conn.Close()
	}
}
