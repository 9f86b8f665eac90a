package obs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"

	qerrors "github.com/blockrelay/filerelay/internal/errors"
	"github.com/blockrelay/filerelay/pkg/transfer"
)

func TestTransferObserverRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	log := TestLogger(&buf)
	c := NewCollector(nil)
	o := NewTransferObserver(log, c)

	id := uuid.New()
	o.OnSessionStart(id, transfer.RoleAcceptor, "10.0.0.1:5000")
	o.OnHandshakeComplete(id, "10.0.0.1:5000", [32]byte{})
	o.OnTransferComplete(id, "10.0.0.1:5000", "statement.pdf", 4096)
	o.OnSessionEnd(id, "10.0.0.1:5000")

	snap := c.Snapshot()
	if snap.SessionsTotal != 1 {
		t.Errorf("expected 1 total session, got %d", snap.SessionsTotal)
	}
	if snap.SessionsActive != 0 {
		t.Errorf("expected 0 active sessions after end, got %d", snap.SessionsActive)
	}
	if snap.TransfersComplete != 1 {
		t.Errorf("expected 1 completed transfer, got %d", snap.TransfersComplete)
	}
	if snap.BytesSent != 4096 {
		t.Errorf("expected 4096 bytes sent, got %d", snap.BytesSent)
	}
	if snap.HandshakeLatency.Count != 1 {
		t.Errorf("expected 1 handshake latency sample, got %d", snap.HandshakeLatency.Count)
	}
	if buf.Len() == 0 {
		t.Error("expected log output")
	}
	if !bytes.Contains(buf.Bytes(), []byte(id.String())) {
		t.Error("expected log output to carry the session id")
	}
}

func TestTransferObserverRecordsFailures(t *testing.T) {
	var buf bytes.Buffer
	log := TestLogger(&buf)
	c := NewCollector(nil)
	o := NewTransferObserver(log, c)

	id := uuid.New()
	o.OnSessionStart(id, transfer.RoleConnector, "10.0.0.2:5000")
	o.OnAuthFailure(id, "10.0.0.2:5000", qerrors.New(qerrors.AuthError, "handshake.acceptor_reject", errors.New("unknown connect key")))
	o.OnTransferFailed(id, "10.0.0.2:5000", qerrors.New(qerrors.CryptoError, "transfer.Receive", errors.New("checksum mismatch")))
	o.OnProtocolError(id, "10.0.0.2:5000", qerrors.New(qerrors.ProtocolError, "transfer.Receive", errors.New("short frame")))
	o.OnSessionEnd(id, "10.0.0.2:5000")

	snap := c.Snapshot()
	if snap.SessionsFailed != 1 {
		t.Errorf("expected 1 failed session, got %d", snap.SessionsFailed)
	}
	if snap.AuthFailures != 1 {
		t.Errorf("expected 1 auth failure, got %d", snap.AuthFailures)
	}
	if snap.TransfersFailed != 1 {
		t.Errorf("expected 1 failed transfer, got %d", snap.TransfersFailed)
	}
	if snap.ProtocolErrors != 1 {
		t.Errorf("expected 1 protocol error, got %d", snap.ProtocolErrors)
	}

	out := buf.String()
	for _, want := range []string{"kind=AuthError", "kind=CryptoError", "kind=ProtocolError"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("expected log output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestTransferObserverOnAuthFailureWithoutKindTaggedError(t *testing.T) {
	var buf bytes.Buffer
	log := TestLogger(&buf)
	o := NewTransferObserver(log, NewCollector(nil))

	id := uuid.New()
	o.OnSessionStart(id, transfer.RoleAcceptor, "10.0.0.3:5000")
	o.OnAuthFailure(id, "10.0.0.3:5000", errors.New("plain error, not Kind-tagged"))

	if bytes.Contains(buf.Bytes(), []byte("kind=")) {
		t.Error("expected no kind field for a non-Kind-tagged error")
	}
}
