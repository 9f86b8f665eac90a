// Package obs provides observability primitives for the filerelay service.
//
// The package includes:
//   - A Collector of atomic counters and gauges, and a Histogram type
//   - Prometheus-compatible metrics export
//   - OpenTelemetry tracing support
//   - Structured logging with levels
//   - Health check functionality
package obs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockrelay/filerelay/internal/constants"
)

// handshakeLatencyDegradedMillis flags a Collector as degraded once its
// p99 handshake latency crosses half of the overall handshake deadline:
// still succeeding, but close enough to the timeout that a health check
// should surface it before connectors start seeing failures outright.
var handshakeLatencyDegradedMillis = float64(constants.HandshakeTimeout.Milliseconds()) / 2

// Collector aggregates metrics from accepted and dialed sessions.
type Collector struct {
	// Session metrics
	sessionsActive   atomic.Uint64
	sessionsTotal    atomic.Uint64
	sessionsFailed   atomic.Uint64
	handshakeLatency *Histogram

	// Transfer metrics
	bytesSent         atomic.Uint64
	bytesReceived     atomic.Uint64
	transfersComplete atomic.Uint64
	transfersFailed   atomic.Uint64

	// Security metrics
	authFailures atomic.Uint64

	// Error metrics
	sealErrors     atomic.Uint64
	openErrors     atomic.Uint64
	protocolErrors atomic.Uint64

	// Performance histograms
	sealLatency *Histogram
	openLatency *Histogram

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		sealLatency:      NewHistogram(LatencyBuckets),
		openLatency:      NewHistogram(LatencyBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// Default bucket configurations for histograms.
var (
	// HandshakeLatencyBuckets for handshake duration (milliseconds).
	HandshakeLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// LatencyBuckets for seal/open operations (microseconds).
	LatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

// --- Session Metrics ---

// SessionStarted increments active and total session counters.
func (c *Collector) SessionStarted() {
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionEnded decrements active session counter.
func (c *Collector) SessionEnded() {
	for {
		current := c.sessionsActive.Load()
		if current == 0 {
			return
		}
		if c.sessionsActive.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// SessionFailed records a failed session attempt.
func (c *Collector) SessionFailed() {
	c.sessionsFailed.Add(1)
}

// RecordHandshakeLatency records a handshake duration.
func (c *Collector) RecordHandshakeLatency(d time.Duration) {
	c.handshakeLatency.Observe(float64(d.Milliseconds()))
}

// HandshakeLatencyDegraded reports whether p99 handshake latency is
// running high enough to warrant a degraded health status, ahead of
// connectors actually timing out.
func (c *Collector) HandshakeLatencyDegraded() bool {
	return c.handshakeLatency.ExceedsThreshold(0.99, handshakeLatencyDegradedMillis)
}

// --- Transfer Metrics ---

// RecordBytesSent adds to the bytes sent counter.
func (c *Collector) RecordBytesSent(n uint64) {
	c.bytesSent.Add(n)
}

// RecordBytesReceived adds to the bytes received counter.
func (c *Collector) RecordBytesReceived(n uint64) {
	c.bytesReceived.Add(n)
}

// RecordTransferComplete increments the completed-transfer counter.
func (c *Collector) RecordTransferComplete() {
	c.transfersComplete.Add(1)
}

// RecordTransferFailed increments the failed-transfer counter.
func (c *Collector) RecordTransferFailed() {
	c.transfersFailed.Add(1)
}

// --- Security Metrics ---

// RecordAuthFailure increments the authentication failure counter.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Add(1)
}

// --- Error Metrics ---

// RecordSealError increments the AES-GCM seal error counter.
func (c *Collector) RecordSealError() {
	c.sealErrors.Add(1)
}

// RecordOpenError increments the AES-GCM open error counter.
func (c *Collector) RecordOpenError() {
	c.openErrors.Add(1)
}

// RecordProtocolError increments protocol error counter.
func (c *Collector) RecordProtocolError() {
	c.protocolErrors.Add(1)
}

// --- Performance Metrics ---

// RecordSealLatency records seal operation latency.
func (c *Collector) RecordSealLatency(d time.Duration) {
	c.sealLatency.Observe(float64(d.Microseconds()))
}

// RecordOpenLatency records open operation latency.
func (c *Collector) RecordOpenLatency(d time.Duration) {
	c.openLatency.Observe(float64(d.Microseconds()))
}

// --- Snapshot ---

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Session metrics
	SessionsActive uint64
	SessionsTotal  uint64
	SessionsFailed uint64

	// Transfer metrics
	BytesSent         uint64
	BytesReceived     uint64
	TransfersComplete uint64
	TransfersFailed   uint64

	// Security metrics
	AuthFailures uint64

	// Error metrics
	SealErrors     uint64
	OpenErrors     uint64
	ProtocolErrors uint64

	// Histogram summaries
	HandshakeLatency HistogramSummary
	SealLatency      HistogramSummary
	OpenLatency      HistogramSummary

	// Labels
	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:         time.Now(),
		Uptime:            time.Since(c.createdAt),
		SessionsActive:    c.sessionsActive.Load(),
		SessionsTotal:     c.sessionsTotal.Load(),
		SessionsFailed:    c.sessionsFailed.Load(),
		BytesSent:         c.bytesSent.Load(),
		BytesReceived:     c.bytesReceived.Load(),
		TransfersComplete: c.transfersComplete.Load(),
		TransfersFailed:   c.transfersFailed.Load(),
		AuthFailures:      c.authFailures.Load(),
		SealErrors:        c.sealErrors.Load(),
		OpenErrors:        c.openErrors.Load(),
		ProtocolErrors:    c.protocolErrors.Load(),
		HandshakeLatency:  c.handshakeLatency.Summary(),
		SealLatency:       c.sealLatency.Summary(),
		OpenLatency:       c.openLatency.Summary(),
		Labels:            c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.sessionsActive.Store(0)
	c.sessionsTotal.Store(0)
	c.sessionsFailed.Store(0)
	c.bytesSent.Store(0)
	c.bytesReceived.Store(0)
	c.transfersComplete.Store(0)
	c.transfersFailed.Store(0)
	c.authFailures.Store(0)
	c.sealErrors.Store(0)
	c.openErrors.Store(0)
	c.protocolErrors.Store(0)
	c.handshakeLatency.Reset()
	c.sealLatency.Reset()
	c.openLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
