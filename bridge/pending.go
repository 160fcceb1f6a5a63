package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome is the single resolution of a pending call: either a success
// payload or a DispatchError, never both.
type Outcome struct {
	Data json.RawMessage
	Err  *DispatchError
}

// pendingCall is one outstanding invocation awaiting exactly one resolution.
// It is owned by the table and referenced only by id from inbound replies
// and the deadline timer.
type pendingCall struct {
	id        string
	operation string
	createdAt time.Time
	timer     *time.Timer
	done      chan Outcome // buffered 1; written at most once
}

// PendingTable is the single source of truth for outstanding calls. All
// mutations — register, resolve, the timer callback, and FailAll — go
// through one mutex so that remove-and-resolve is indivisible; whichever of
// the racing paths (reply, deadline, connection loss) removes the entry is
// the one that resolves it.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingCall
	logger  *zap.Logger
}

// NewPendingTable creates an empty table.
func NewPendingTable(logger *zap.Logger) *PendingTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingTable{
		entries: make(map[string]*pendingCall),
		logger:  logger.Named("pending"),
	}
}

// Register creates an entry with a fresh unique id and arms its deadline
// timer. The returned channel yields the call's one Outcome.
func (t *PendingTable) Register(operation string, timeout time.Duration) (string, <-chan Outcome) {
	call := &pendingCall{
		id:        uuid.NewString(),
		operation: operation,
		createdAt: time.Now(),
		done:      make(chan Outcome, 1),
	}

	t.mu.Lock()
	t.entries[call.id] = call
	// Armed inside the critical section so no other path can observe the
	// entry before its timer field is written.
	call.timer = time.AfterFunc(timeout, func() {
		// If the reply won the race the entry is already gone and this
		// resolves nothing.
		t.Resolve(call.id, Outcome{Err: newError(ErrTimeout, operation, "")})
	})
	t.mu.Unlock()

	return call.id, call.done
}

// Resolve removes the entry by id and completes its waitable. An absent id
// — already resolved, expired, or never known — is a silent no-op so
// duplicate and late replies are discarded rather than treated as errors.
// Reports whether an entry was actually resolved.
func (t *PendingTable) Resolve(id string, out Outcome) bool {
	t.mu.Lock()
	call, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("discarding stray resolution", zap.String("id", id))
		return false
	}

	if call.timer != nil {
		call.timer.Stop()
	}
	call.done <- out
	return true
}

// Cancel removes an entry without resolving it. Used to roll back a
// registration whose send failed synchronously; the caller reports the
// failure itself.
func (t *PendingTable) Cancel(id string) bool {
	t.mu.Lock()
	call, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	if call.timer != nil {
		call.timer.Stop()
	}
	return true
}

// FailAll atomically removes every entry and resolves each with err. Used
// when the active connection is lost or the bridge shuts down.
func (t *PendingTable) FailAll(err *DispatchError) int {
	t.mu.Lock()
	failed := make([]*pendingCall, 0, len(t.entries))
	for id, call := range t.entries {
		failed = append(failed, call)
		delete(t.entries, id)
	}
	t.mu.Unlock()

	for _, call := range failed {
		if call.timer != nil {
			call.timer.Stop()
		}
		out := *err
		out.Operation = call.operation
		call.done <- Outcome{Err: &out}
	}

	if len(failed) > 0 {
		t.logger.Info("failed all pending calls",
			zap.Int("count", len(failed)),
			zap.String("reason", err.Kind.String()))
	}
	return len(failed)
}

// Len returns the number of outstanding calls.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
