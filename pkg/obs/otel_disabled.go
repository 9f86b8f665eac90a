//go:build !otel
// +build !otel

package obs

import "context"

// OTelTracer is the stub NewTransferObserver wires in when built without
// OpenTelemetry support: every session span becomes a no-op so
// TransferObserver's span bookkeeping (start/end pairing per session ID)
// still runs unchanged, it just costs nothing.
type OTelTracer struct {
	serviceName string
}

// NewOTelTracer returns a no-op tracer when OpenTelemetry is not enabled.
// serviceName is retained rather than discarded so a future otel-enabled
// rebuild and this stub report the same identity to callers inspecting it.
func NewOTelTracer(serviceName string) *OTelTracer {
	if serviceName == "" {
		serviceName = "filerelay"
	}
	return &OTelTracer{serviceName: serviceName}
}

// ServiceName reports the name this tracer was constructed with.
func (t *OTelTracer) ServiceName() string {
	return t.serviceName
}

// StartSpan returns a no-op span; TransferObserver still calls end(err)
// exactly once per session so behavior matches the otel-enabled build.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(err error) {}
}

// OTelEnabled reports whether OpenTelemetry support is built in.
func OTelEnabled() bool {
	return false
}
