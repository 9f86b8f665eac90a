package transfer

import "github.com/google/uuid"

// Observer provides hooks for handshake and transfer lifecycle events, for
// a UI or metrics collaborator to hang off of. Implementations should be
// lightweight; callbacks may run on the connection's own goroutine. id
// identifies the session throughout its lifetime, so a collaborator can
// correlate the start of a session with however it eventually ends.
//
// OnAuthFailure and OnTransferFailed carry the actual error the caller
// would otherwise return, not just its message, so a collaborator can
// recover its Kind (see internal/errors) for structured logging instead
// of re-deriving one from a free-text reason string.
type Observer interface {
	OnSessionStart(id uuid.UUID, role Role, remote string)
	OnHandshakeComplete(id uuid.UUID, remote string, keyHash [32]byte)
	OnAuthFailure(id uuid.UUID, remote string, err error)
	OnTransferComplete(id uuid.UUID, remote string, filename string, bytes int)
	OnTransferFailed(id uuid.UUID, remote string, err error)
	OnProtocolError(id uuid.UUID, remote string, err error)
	OnSessionEnd(id uuid.UUID, remote string)
}

// NoopObserver implements Observer with no-op methods, for callers that
// have no UI or metrics collaborator wired up.
type NoopObserver struct{}

func (NoopObserver) OnSessionStart(uuid.UUID, Role, string)            {}
func (NoopObserver) OnHandshakeComplete(uuid.UUID, string, [32]byte)   {}
func (NoopObserver) OnAuthFailure(uuid.UUID, string, error)            {}
func (NoopObserver) OnTransferComplete(uuid.UUID, string, string, int) {}
func (NoopObserver) OnTransferFailed(uuid.UUID, string, error)         {}
func (NoopObserver) OnProtocolError(uuid.UUID, string, error)          {}
func (NoopObserver) OnSessionEnd(uuid.UUID, string)                    {}
