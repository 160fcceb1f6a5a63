package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studiomesh/canvasbridge-go/catalog"
)

// Options configures a Bridge.
type Options struct {
	// Catalog is the set of dispatchable operations. Nil selects the
	// standard built-in catalog.
	Catalog *catalog.Registry
	// CallTimeout is the default per-call deadline. Non-positive selects
	// DefaultCallTimeout.
	CallTimeout time.Duration
	// Events receives unsolicited executor events. Nil selects a log-only sink.
	Events EventSink
	// Logger is the root logger. Nil selects a nop logger.
	Logger *zap.Logger
}

// Bridge is the owned root object tying the correlation table, connection
// manager, and dispatcher together, with an explicit shutdown path. No
// bridge state lives outside this struct.
type Bridge struct {
	catalog    *catalog.Registry
	table      *PendingTable
	conns      *ConnManager
	dispatcher *Dispatcher
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
}

// New constructs a Bridge from opts.
func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Catalog
	if reg == nil {
		reg = catalog.StandardRegistry()
	}

	table := NewPendingTable(logger)
	conns := NewConnManager(table, opts.Events, logger)
	dispatcher := NewDispatcher(reg, conns, table, opts.CallTimeout, logger)

	return &Bridge{
		catalog:    reg,
		table:      table,
		conns:      conns,
		dispatcher: dispatcher,
		logger:     logger.Named("bridge"),
	}
}

// Catalog returns the operation registry.
func (b *Bridge) Catalog() *catalog.Registry { return b.catalog }

// Conns returns the connection manager, the surface the data-plane listener
// drives.
func (b *Bridge) Conns() *ConnManager { return b.conns }

// Dispatcher returns the request dispatcher, the surface the control plane
// drives.
func (b *Bridge) Dispatcher() *Dispatcher { return b.dispatcher }

// Status is a point-in-time snapshot for health reporting.
type Status struct {
	Connected bool `json:"connected"`
	Pending   int  `json:"pending"`
}

// Status reports the current connection state and pending-call count.
func (b *Bridge) Status() Status {
	return Status{
		Connected: b.conns.Connected(),
		Pending:   b.table.Len(),
	}
}

// StatusJSON renders Status for the health endpoint.
func (b *Bridge) StatusJSON() []byte {
	data, _ := json.Marshal(b.Status())
	return data
}

// Close shuts the bridge down: the connection slot is cleared and every
// pending call resolves with a distinguishable shutdown reason. Close is
// idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.conns.Shutdown()
	failed := b.table.FailAll(newError(ErrConnectionLost, "", "bridge shutting down"))
	b.logger.Info("bridge closed", zap.Int("cancelled_calls", failed))
	return nil
}
