package transfer

import (
	"bytes"
	"encoding/binary"
	"net"
	"sync"
	"testing"

	"github.com/blockrelay/filerelay/internal/constants"
	"github.com/blockrelay/filerelay/pkg/crypto"
	"github.com/blockrelay/filerelay/pkg/protocol"
)

type memSink struct {
	mu     sync.Mutex
	name   string
	data   []byte
	called bool
}

func (m *memSink) Store(filename string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called = true
	m.name = filename
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memSink) storeCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

func handshakePair(t *testing.T) (acceptorConn, connectorConn net.Conn, acceptorSession, connectorSession *Session) {
	t.Helper()
	acceptorKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair (acceptor): %v", err)
	}
	connectorKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair (connector): %v", err)
	}

	const connectKey = "branch-042-connect-key"
	store := testWhitelist(t, connectKey)

	acceptorConn, connectorConn = net.Pipe()

	acceptorSession = NewSession(RoleAcceptor, acceptorKey)
	connectorSession = NewSession(RoleConnector, connectorKey)

	acceptorErr := make(chan error, 1)
	go func() {
		acceptorErr <- AcceptorHandshake(acceptorConn, acceptorSession, store)
	}()
	if err := ConnectorHandshake(connectorConn, connectorSession, connectKey); err != nil {
		t.Fatalf("ConnectorHandshake: %v", err)
	}
	if err := <-acceptorErr; err != nil {
		t.Fatalf("AcceptorHandshake: %v", err)
	}
	return acceptorConn, connectorConn, acceptorSession, connectorSession
}

func TestSendReceiveRoundTrip(t *testing.T) {
	acceptorConn, connectorConn, acceptorSession, connectorSession := handshakePair(t)
	defer acceptorConn.Close()
	defer connectorConn.Close()

	sink := &memSink{}
	plaintext := []byte("quarterly statement contents")

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- Receive(acceptorConn, acceptorSession, sink, "")
	}()

	if err := Send(connectorConn, connectorSession, plaintext, "statement.pdf"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := <-recvErr; err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if sink.name != "statement.pdf" {
		t.Errorf("stored filename = %q, want %q", sink.name, "statement.pdf")
	}
	if !bytes.Equal(sink.data, plaintext) {
		t.Errorf("stored data = %q, want %q", sink.data, plaintext)
	}
}

func TestSendReceiveHonorsFilenameOverride(t *testing.T) {
	acceptorConn, connectorConn, acceptorSession, connectorSession := handshakePair(t)
	defer acceptorConn.Close()
	defer connectorConn.Close()

	sink := &memSink{}
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- Receive(acceptorConn, acceptorSession, sink, "overridden-name.bin")
	}()

	if err := Send(connectorConn, connectorSession, []byte("payload"), "original-name.bin"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := <-recvErr; err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if sink.name != "overridden-name.bin" {
		t.Errorf("stored filename = %q, want override", sink.name)
	}
}

func TestSendRejectsSecondUseOfSession(t *testing.T) {
	acceptorConn, connectorConn, acceptorSession, connectorSession := handshakePair(t)
	defer acceptorConn.Close()
	defer connectorConn.Close()

	sink := &memSink{}
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- Receive(acceptorConn, acceptorSession, sink, "")
	}()
	if err := Send(connectorConn, connectorSession, []byte("first"), "a.bin"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	<-recvErr

	if err := Send(connectorConn, connectorSession, []byte("second"), "b.bin"); err == nil {
		t.Error("expected error sending a second payload on an already-used session")
	}
}

func TestSendRejectsOversizedPlaintext(t *testing.T) {
	acceptorConn, connectorConn, _, connectorSession := handshakePair(t)
	defer acceptorConn.Close()
	defer connectorConn.Close()

	huge := make([]byte, 20*1024*1024)
	if err := Send(connectorConn, connectorSession, huge, "huge.bin"); err == nil {
		t.Error("expected error sending a blob larger than the framing limit")
	}
}

type failingSink struct{}

func (failingSink) Store(string, []byte) error {
	return &storageError{}
}

type storageError struct{}

func (*storageError) Error() string { return "storage unavailable" }

func TestReceiveReportsStorageFailure(t *testing.T) {
	acceptorConn, connectorConn, acceptorSession, connectorSession := handshakePair(t)
	defer acceptorConn.Close()
	defer connectorConn.Close()

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- Receive(acceptorConn, acceptorSession, failingSink{}, "")
	}()

	sendErr := Send(connectorConn, connectorSession, []byte("payload"), "a.bin")
	if sendErr == nil {
		t.Error("expected Send to observe a failure TransferResult")
	}
	if err := <-recvErr; err == nil {
		t.Error("expected Receive to report the storage failure")
	}
}

// corruptingConn wraps a net.Conn and flips a single byte in the first
// EncryptedPayload frame it sees, in a region chosen by mutate, letting a
// test drive real tamper-in-flight scenarios through the actual pipeline
// instead of exercising crypto.Open in isolation.
type corruptingConn struct {
	net.Conn
	mutate  func([]byte)
	applied bool
}

func (c *corruptingConn) Write(p []byte) (int, error) {
	if !c.applied && len(p) > 0 && p[0] == byte(protocol.MessageTypeEncryptedPayload) {
		c.applied = true
		tampered := append([]byte(nil), p...)
		c.mutate(tampered)
		return c.Conn.Write(tampered)
	}
	return c.Conn.Write(p)
}

// flipCiphertextByte corrupts the first byte of the AES-256-GCM
// ciphertext, which crypto.Open must reject as an authentication failure.
func flipCiphertextByte(payload []byte) {
	off := protocol.TagSize + 4
	payload[off] ^= 0xff
}

// flipChecksumByte corrupts the SHA-256 checksum field while leaving the
// ciphertext and its GCM tag untouched, so crypto.Open succeeds but the
// post-decryption integrity check must still catch the mismatch.
func flipChecksumByte(payload []byte) {
	off := protocol.TagSize + 4
	ctLen := binary.BigEndian.Uint32(payload[protocol.TagSize:])
	off += int(ctLen)
	off += constants.AESNonceSize
	keyLen := binary.BigEndian.Uint16(payload[off:])
	off += 2
	off += int(keyLen)
	payload[off] ^= 0xff
}

func TestReceiveRejectsTamperedCiphertext(t *testing.T) {
	acceptorConn, rawConnectorConn, acceptorSession, connectorSession := handshakePair(t)
	defer acceptorConn.Close()
	defer rawConnectorConn.Close()
	connectorConn := &corruptingConn{Conn: rawConnectorConn, mutate: flipCiphertextByte}

	sink := &memSink{}
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- Receive(acceptorConn, acceptorSession, sink, "")
	}()

	if err := Send(connectorConn, connectorSession, []byte("quarterly statement contents"), "a.bin"); err == nil {
		t.Error("expected Send to observe a failure TransferResult for tampered ciphertext")
	}
	if err := <-recvErr; err == nil {
		t.Error("expected Receive to reject the tampered ciphertext")
	}
	if sink.storeCalled() {
		t.Error("expected sink.Store to never be called for tampered ciphertext")
	}
}

func TestReceiveRejectsChecksumMismatchDespiteValidTag(t *testing.T) {
	acceptorConn, rawConnectorConn, acceptorSession, connectorSession := handshakePair(t)
	defer acceptorConn.Close()
	defer rawConnectorConn.Close()
	connectorConn := &corruptingConn{Conn: rawConnectorConn, mutate: flipChecksumByte}

	sink := &memSink{}
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- Receive(acceptorConn, acceptorSession, sink, "")
	}()

	if err := Send(connectorConn, connectorSession, []byte("quarterly statement contents"), "a.bin"); err == nil {
		t.Error("expected Send to observe a failure TransferResult for a checksum mismatch")
	}
	if err := <-recvErr; err == nil {
		t.Error("expected Receive to reject the checksum mismatch")
	}
	if sink.storeCalled() {
		t.Error("expected sink.Store to never be called on a checksum mismatch")
	}
}
