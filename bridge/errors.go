// Package bridge implements the correlation layer between the synchronous
// control plane and the asynchronous data-plane connection to the remote
// executor. It owns the only real concurrency in the repository: the pending
// call table and the current-connection slot.
package bridge

import "fmt"

// ErrorKind classifies why a dispatched call failed. Every kind is fatal to
// that call only; the bridge never retries and never exits on a call failure.
type ErrorKind int

const (
	// ErrUnknownOperation — requested name absent from the catalog.
	ErrUnknownOperation ErrorKind = iota
	// ErrInvalidArguments — arguments rejected by the catalog schema before dispatch.
	ErrInvalidArguments
	// ErrNotConnected — no active data-plane connection at call time.
	ErrNotConnected
	// ErrSendFailure — transport rejected the outbound call; registration rolled back.
	ErrSendFailure
	// ErrTimeout — deadline elapsed with no matching reply.
	ErrTimeout
	// ErrConnectionLost — the owning connection closed while the call was pending.
	ErrConnectionLost
	// ErrRemote — the executor explicitly reported a failure for a matched reply.
	ErrRemote
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownOperation:
		return "UNKNOWN_OPERATION"
	case ErrInvalidArguments:
		return "INVALID_ARGUMENTS"
	case ErrNotConnected:
		return "NOT_CONNECTED"
	case ErrSendFailure:
		return "SEND_FAILURE"
	case ErrTimeout:
		return "TIMEOUT"
	case ErrConnectionLost:
		return "CONNECTION_LOST"
	case ErrRemote:
		return "REMOTE_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// DispatchError is the structured outcome of a failed call. It is a value
// returned across the dispatcher boundary, never a fault that propagates
// past the control-plane server.
type DispatchError struct {
	Kind      ErrorKind
	Operation string
	Message   string
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case ErrUnknownOperation:
		return fmt.Sprintf("unknown operation %q", e.Operation)
	case ErrInvalidArguments:
		return fmt.Sprintf("invalid arguments for %q: %s", e.Operation, e.Message)
	case ErrNotConnected:
		return fmt.Sprintf("cannot call %q: no executor connection", e.Operation)
	case ErrSendFailure:
		return fmt.Sprintf("failed to send %q: %s", e.Operation, e.Message)
	case ErrTimeout:
		return fmt.Sprintf("call %q timed out", e.Operation)
	case ErrConnectionLost:
		if e.Message != "" {
			return fmt.Sprintf("call %q aborted: %s", e.Operation, e.Message)
		}
		return fmt.Sprintf("call %q aborted: connection lost", e.Operation)
	case ErrRemote:
		return fmt.Sprintf("executor rejected %q: %s", e.Operation, e.Message)
	default:
		return fmt.Sprintf("call %q failed: %s", e.Operation, e.Message)
	}
}

func newError(kind ErrorKind, operation, message string) *DispatchError {
	return &DispatchError{Kind: kind, Operation: operation, Message: message}
}
