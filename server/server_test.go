package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiomesh/canvasbridge-go/bridge"
	"github.com/studiomesh/canvasbridge-go/catalog"
	"github.com/studiomesh/canvasbridge-go/wire"
)

type recordSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordSink) OnEvent(name string, _ json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}

func (s *recordSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type testHarness struct {
	bridge *bridge.Bridge
	sink   *recordSink
	http   *httptest.Server
	wsURL  string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	sink := &recordSink{}
	b := bridge.New(bridge.Options{
		CallTimeout: 5 * time.Second,
		Events:      sink,
	})
	srv := NewServer(b, "127.0.0.1:0", nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = b.Close()
		ts.Close()
	})
	return &testHarness{
		bridge: b,
		sink:   sink,
		http:   ts,
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// dial connects a fake executor and consumes the welcome frame.
func (h *testHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, h.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)

	env, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.KindWelcome, env.Kind)
	assert.NotEmpty(t, env.Welcome.Message)
	return conn
}

func readCall(t *testing.T, conn *websocket.Conn) *wire.Call {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	env, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.KindCall, env.Kind)
	return env.Call
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestWelcomeAndConnectedState(t *testing.T) {
	h := newHarness(t)
	require.False(t, h.bridge.Status().Connected)

	h.dial(t)
	require.Eventually(t, func() bool { return h.bridge.Status().Connected },
		2*time.Second, 5*time.Millisecond)
}

func TestHealthzReflectsStatus(t *testing.T) {
	h := newHarness(t)

	fetch := func() map[string]any {
		resp, err := http.Get(h.http.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var st map[string]any
		require.NoError(t, json.Unmarshal(body, &st))
		return st
	}

	assert.Equal(t, false, fetch()["connected"])

	h.dial(t)
	require.Eventually(t, func() bool { return fetch()["connected"] == true },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(0), fetch()["pending"])
}

func TestDispatchOverWebSocket(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	require.Eventually(t, func() bool { return h.bridge.Status().Connected },
		2*time.Second, 5*time.Millisecond)

	type invokeResult struct {
		data json.RawMessage
		derr *bridge.DispatchError
	}
	done := make(chan invokeResult, 1)
	go func() {
		data, derr := h.bridge.Dispatcher().Invoke(context.Background(),
			catalog.OpPing, json.RawMessage(`{"message":"hi"}`), 0)
		done <- invokeResult{data, derr}
	}()

	call := readCall(t, conn)
	assert.Equal(t, catalog.OpPing, call.Tool)
	assert.JSONEq(t, `{"message":"hi"}`, string(call.Args))
	require.NotEmpty(t, call.ID)

	writeJSON(t, conn, &wire.Result{
		ID:      call.ID,
		Type:    wire.TypeResult,
		Success: true,
		Data:    json.RawMessage(`{"message":"hi","pong":true}`),
	})

	res := <-done
	require.Nil(t, res.derr)
	assert.JSONEq(t, `{"message":"hi","pong":true}`, string(res.data))
	assert.Equal(t, 0, h.bridge.Status().Pending)
}

func TestRemoteFailureOverWebSocket(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	require.Eventually(t, func() bool { return h.bridge.Status().Connected },
		2*time.Second, 5*time.Millisecond)

	done := make(chan *bridge.DispatchError, 1)
	go func() {
		_, derr := h.bridge.Dispatcher().Invoke(context.Background(),
			catalog.OpDeleteNode, json.RawMessage(`{"nodeId":"9:9"}`), 0)
		done <- derr
	}()

	call := readCall(t, conn)
	writeJSON(t, conn, &wire.Result{
		ID:      call.ID,
		Type:    wire.TypeResult,
		Success: false,
		Error:   "node not found",
	})

	derr := <-done
	require.NotNil(t, derr)
	assert.Equal(t, bridge.ErrRemote, derr.Kind)
	assert.Contains(t, derr.Message, "node not found")
}

func TestDisconnectFailsPendingCalls(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	require.Eventually(t, func() bool { return h.bridge.Status().Connected },
		2*time.Second, 5*time.Millisecond)

	done := make(chan *bridge.DispatchError, 1)
	go func() {
		_, derr := h.bridge.Dispatcher().Invoke(context.Background(),
			catalog.OpPing, json.RawMessage(`{"message":"hi"}`), 0)
		done <- derr
	}()

	readCall(t, conn) // call is in flight, never answered
	require.Eventually(t, func() bool { return h.bridge.Status().Pending == 1 },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	derr := <-done
	require.NotNil(t, derr)
	assert.Equal(t, bridge.ErrConnectionLost, derr.Kind)
	require.Eventually(t, func() bool { return !h.bridge.Status().Connected },
		2*time.Second, 5*time.Millisecond)
}

func TestEventsReachSink(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	writeJSON(t, conn, &wire.Event{
		Type:  wire.TypeEvent,
		Event: "selection_changed",
		Data:  json.RawMessage(`{"nodeIds":["1:2"]}`),
	})

	require.Eventually(t, func() bool {
		names := h.sink.names()
		return len(names) == 1 && names[0] == "selection_changed"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.bridge.Status().Pending)
}

func TestMalformedFramesKeepConnection(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	require.Eventually(t, func() bool { return h.bridge.Status().Connected },
		2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`not json`)))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"bogus"}`)))

	// The connection must survive and still carry traffic.
	done := make(chan *bridge.DispatchError, 1)
	go func() {
		_, derr := h.bridge.Dispatcher().Invoke(context.Background(),
			catalog.OpPing, json.RawMessage(`{"message":"still here"}`), 0)
		done <- derr
	}()

	call := readCall(t, conn)
	writeJSON(t, conn, &wire.Result{
		ID: call.ID, Type: wire.TypeResult, Success: true,
		Data: json.RawMessage(`{}`),
	})
	require.Nil(t, <-done)
}

func TestSecondConnectionTakesOver(t *testing.T) {
	h := newHarness(t)
	h.dial(t)
	require.Eventually(t, func() bool { return h.bridge.Status().Connected },
		2*time.Second, 5*time.Millisecond)

	second := h.dial(t)

	// Traffic now lands on the newer connection.
	done := make(chan *bridge.DispatchError, 1)
	go func() {
		_, derr := h.bridge.Dispatcher().Invoke(context.Background(),
			catalog.OpPing, json.RawMessage(`{"message":"hi"}`), 0)
		done <- derr
	}()

	call := readCall(t, second)
	writeJSON(t, second, &wire.Result{
		ID: call.ID, Type: wire.TypeResult, Success: true,
		Data: json.RawMessage(`{}`),
	})
	require.Nil(t, <-done)
	assert.True(t, h.bridge.Status().Connected)
}
