package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/studiomesh/canvasbridge-go/wire"
)

// Conn is the transport-side surface of one data-plane connection. The
// WebSocket listener adapts its connections to this; tests use in-memory
// fakes.
type Conn interface {
	// Write sends one message frame. It must be safe for concurrent use.
	Write(ctx context.Context, data []byte) error
}

// EventSink receives unsolicited executor events. Events never touch the
// pending-call table.
type EventSink interface {
	OnEvent(name string, data json.RawMessage)
}

// logSink is the default sink: events are observed in the log and dropped.
type logSink struct {
	logger *zap.Logger
}

func (s *logSink) OnEvent(name string, data json.RawMessage) {
	s.logger.Info("executor event", zap.String("event", name), zap.Int("bytes", len(data)))
}

// ConnManager holds zero-or-one active data-plane connection and routes
// inbound messages. A second connection replaces the first by assignment:
// the superseded handle is not closed and its outstanding calls are left to
// resolve via their own deadlines. Close notifications for superseded
// handles are ignored so they can never clear a newer connection.
type ConnManager struct {
	mu     sync.Mutex
	active Conn

	table  *PendingTable
	events EventSink
	logger *zap.Logger
}

// NewConnManager creates a manager routing replies into table. A nil sink
// installs the log-only default.
func NewConnManager(table *PendingTable, events EventSink, logger *zap.Logger) *ConnManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("conn")
	if events == nil {
		events = &logSink{logger: logger}
	}
	return &ConnManager{
		table:  table,
		events: events,
		logger: logger,
	}
}

// OnConnect installs c as the active connection, replacing any prior one.
func (m *ConnManager) OnConnect(c Conn) {
	m.mu.Lock()
	replaced := m.active != nil
	m.active = c
	m.mu.Unlock()

	if replaced {
		m.logger.Warn("executor connection replaced; calls pending on the old connection will time out")
	} else {
		m.logger.Info("executor connected")
	}
}

// OnClose handles a transport close or error for handle c. Only the
// currently active handle clears the slot and fails the pending calls; a
// stale handle's close is a no-op.
func (m *ConnManager) OnClose(c Conn) {
	m.mu.Lock()
	if m.active != c {
		m.mu.Unlock()
		m.logger.Debug("ignoring close of superseded connection")
		return
	}
	m.active = nil
	m.mu.Unlock()

	m.logger.Info("executor disconnected")
	m.table.FailAll(newError(ErrConnectionLost, "", ""))
}

// OnMessage decodes one inbound frame and routes it. Replies are resolved
// by id regardless of which handle delivered them; parse errors are logged
// and dropped without touching the connection.
func (m *ConnManager) OnMessage(c Conn, data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		m.logger.Warn("dropping malformed message", zap.Error(err))
		return
	}

	switch env.Kind {
	case wire.KindResult:
		res := env.Result
		out := Outcome{Data: res.Data}
		if !res.Success {
			out = Outcome{Err: newError(ErrRemote, "", res.Error)}
		}
		if !m.table.Resolve(res.ID, out) {
			m.logger.Debug("reply for unknown or already-resolved call",
				zap.String("id", res.ID))
		}

	case wire.KindEvent:
		m.events.OnEvent(env.Event.Event, env.Event.Data)

	case wire.KindWelcome:
		m.logger.Debug("welcome from peer", zap.String("message", env.Welcome.Message))

	default:
		// tool_request is outbound-only; an inbound one is dropped.
		m.logger.Warn("dropping message with unexpected direction",
			zap.String("kind", env.Kind.String()))
	}
}

// Connected reports whether a connection is currently active.
func (m *ConnManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Send writes data on the active connection. It fails synchronously when no
// connection is active and never waits for one to appear. A transport write
// error after the connection slot was read is an ordinary send failure, not
// a race to detect.
func (m *ConnManager) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	c := m.active
	m.mu.Unlock()

	if c == nil {
		return newError(ErrNotConnected, "", "")
	}
	return c.Write(ctx, data)
}

// Shutdown drops the active connection without failing pending calls; the
// bridge's Close decides how outstanding work is resolved.
func (m *ConnManager) Shutdown() {
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
}
