package bridge

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/studiomesh/canvasbridge-go/catalog"
	"github.com/studiomesh/canvasbridge-go/wire"
)

// DefaultCallTimeout bounds a call when the caller does not supply a
// deadline of its own.
const DefaultCallTimeout = 5 * time.Second

// Dispatcher validates and executes one named call end to end. It is
// stateless between calls; all shared state lives in the catalog, the
// pending table, and the connection manager.
type Dispatcher struct {
	catalog *catalog.Registry
	conns   *ConnManager
	table   *PendingTable
	timeout time.Duration
	logger  *zap.Logger
}

// NewDispatcher wires a dispatcher. A non-positive timeout selects
// DefaultCallTimeout.
func NewDispatcher(reg *catalog.Registry, conns *ConnManager, table *PendingTable, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		catalog: reg,
		conns:   conns,
		table:   table,
		timeout: timeout,
		logger:  logger.Named("dispatch"),
	}
}

// Timeout returns the configured per-call deadline.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Invoke runs one operation against the remote executor and blocks until a
// matching reply, the deadline, or connection loss resolves it. Exactly one
// table entry is created and eventually removed per accepted call; there
// are no retries.
//
// Failure ordering is deliberate: an unknown or malformed call fails before
// the connection check, and a disconnected bridge fails before any table
// slot or timer is taken, so impossible calls never occupy resources.
func (d *Dispatcher) Invoke(ctx context.Context, operation string, args json.RawMessage, timeout time.Duration) (json.RawMessage, *DispatchError) {
	def, ok := d.catalog.Lookup(operation)
	if !ok {
		return nil, newError(ErrUnknownOperation, operation, "")
	}
	if err := catalog.ValidateArgs(def, args); err != nil {
		return nil, newError(ErrInvalidArguments, operation, err.Error())
	}

	if !d.conns.Connected() {
		return nil, newError(ErrNotConnected, operation, "")
	}

	if timeout <= 0 {
		timeout = d.timeout
	}

	id, done := d.table.Register(operation, timeout)

	frame, err := wire.EncodeCall(id, operation, args)
	if err != nil {
		d.table.Cancel(id)
		return nil, newError(ErrSendFailure, operation, err.Error())
	}

	if err := d.conns.Send(ctx, frame); err != nil {
		d.table.Cancel(id)
		if derr, ok := err.(*DispatchError); ok && derr.Kind == ErrNotConnected {
			return nil, newError(ErrNotConnected, operation, "")
		}
		return nil, newError(ErrSendFailure, operation, err.Error())
	}

	d.logger.Debug("call dispatched",
		zap.String("operation", operation),
		zap.String("id", id),
		zap.Duration("timeout", timeout))

	select {
	case out := <-done:
		if out.Err != nil {
			if out.Err.Operation == "" {
				out.Err.Operation = operation
			}
			return nil, out.Err
		}
		return out.Data, nil

	case <-ctx.Done():
		// The caller gave up; release the slot so the entry does not ride
		// out its deadline.
		d.table.Cancel(id)
		return nil, newError(ErrTimeout, operation, ctx.Err().Error())
	}
}
