package obs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	qerrors "github.com/blockrelay/filerelay/internal/errors"
	"github.com/blockrelay/filerelay/pkg/transfer"
)

// TransferObserver implements transfer.Observer, recording metrics,
// structured logs, and trace spans for the events of accepted and dialed
// sessions. Safe for concurrent use by a Listener serving many connections
// at once. Every log line it writes carries session_id; lines backed by a
// Kind-tagged error also carry kind, so an operator can filter for
// AuthError/CryptoError/etc. without parsing message text.
type TransferObserver struct {
	logger    *Logger
	collector *Collector
	tracer    Tracer

	mu      sync.Mutex
	started map[uuid.UUID]time.Time
	spans   map[uuid.UUID]SpanEnder
	lastErr map[uuid.UUID]error
}

// NewTransferObserver builds an observer that reports through log and c,
// and traces sessions through the OpenTelemetry integration selected at
// build time (see otel_enabled.go / otel_disabled.go).
func NewTransferObserver(log *Logger, c *Collector) *TransferObserver {
	if log == nil {
		log = NullLogger()
	}
	if c == nil {
		c = Global()
	}
	return &TransferObserver{
		logger:    log.Named("transfer"),
		collector: c,
		tracer:    NewOTelTracer("filerelay"),
		started:   make(map[uuid.UUID]time.Time),
		spans:     make(map[uuid.UUID]SpanEnder),
		lastErr:   make(map[uuid.UUID]error),
	}
}

func (o *TransferObserver) OnSessionStart(id uuid.UUID, role transfer.Role, remote string) {
	o.collector.SessionStarted()

	_, end := o.tracer.StartSpan(context.Background(), "filerelay.session",
		WithSpanKind(SpanKindServer),
		WithAttributes(Fields{FieldSessionID: id.String(), FieldRole: role.String(), FieldRemoteAddr: remote}))

	o.mu.Lock()
	o.started[id] = time.Now()
	o.spans[id] = end
	o.mu.Unlock()

	o.logger.Info("session started", Fields{FieldSessionID: id.String(), FieldRole: role.String(), FieldRemoteAddr: remote})
}

func (o *TransferObserver) OnHandshakeComplete(id uuid.UUID, remote string, keyHash [32]byte) {
	o.mu.Lock()
	start, ok := o.started[id]
	o.mu.Unlock()
	if ok {
		o.collector.RecordHandshakeLatency(time.Since(start))
	}
	o.logger.Info("handshake complete", Fields{
		FieldSessionID:  id.String(),
		FieldRemoteAddr: remote,
		FieldKeyHash:    keyHashHex(keyHash),
	})
}

func (o *TransferObserver) OnAuthFailure(id uuid.UUID, remote string, err error) {
	o.collector.SessionFailed()
	o.collector.RecordAuthFailure()
	o.logFailure("auth failure", id, remote, err)
}

func (o *TransferObserver) OnTransferComplete(id uuid.UUID, remote string, filename string, bytes int) {
	o.collector.RecordTransferComplete()
	o.collector.RecordBytesSent(uint64(bytes))
	o.logger.Info("transfer complete", Fields{
		FieldSessionID:  id.String(),
		FieldRemoteAddr: remote,
		FieldFilename:   filename,
		FieldBytes:      bytes,
	})
}

func (o *TransferObserver) OnTransferFailed(id uuid.UUID, remote string, err error) {
	o.collector.RecordTransferFailed()
	o.logFailure("transfer failed", id, remote, err)
}

func (o *TransferObserver) OnProtocolError(id uuid.UUID, remote string, err error) {
	o.collector.RecordProtocolError()
	o.logFailure("protocol error", id, remote, err)
}

func (o *TransferObserver) OnSessionEnd(id uuid.UUID, remote string) {
	o.collector.SessionEnded()

	o.mu.Lock()
	delete(o.started, id)
	end, hasSpan := o.spans[id]
	delete(o.spans, id)
	err := o.lastErr[id]
	delete(o.lastErr, id)
	o.mu.Unlock()

	if hasSpan {
		end(err)
	}
	o.logger.Debug("session ended", Fields{FieldSessionID: id.String(), FieldRemoteAddr: remote})
}

// logFailure writes msg with the session and remote address, adding a
// kind field whenever err (or something it wraps) is a *qerrors.Error,
// and remembers err so the session's trace span ends with it recorded.
func (o *TransferObserver) logFailure(msg string, id uuid.UUID, remote string, err error) {
	fields := Fields{
		FieldSessionID:  id.String(),
		FieldRemoteAddr: remote,
		FieldError:      err.Error(),
	}
	if kind, ok := qerrors.KindOf(err); ok {
		fields[FieldKind] = kind.String()
	}
	o.logger.Warn(msg, fields)

	o.mu.Lock()
	o.lastErr[id] = err
	o.mu.Unlock()
}

func keyHashHex(h [32]byte) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, len(h)*2)
	for i, b := range h {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}

var _ transfer.Observer = (*TransferObserver)(nil)
