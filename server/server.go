// Package server hosts the data plane: a WebSocket endpoint the executor
// plugin dials into, plus a health endpoint on the same listener. The
// package is a thin transport adapter; all correlation logic lives in the
// bridge package.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studiomesh/canvasbridge-go/bridge"
	"github.com/studiomesh/canvasbridge-go/wire"
)

// maxFrameBytes bounds one inbound frame. Export payloads carry base64 image
// data, so this is deliberately generous.
const maxFrameBytes = 16 << 20

const shutdownGrace = 5 * time.Second

// welcomeMessage is sent as the first frame on every new connection.
const welcomeMessage = "canvasbridge ready"

// wsConn adapts one accepted WebSocket to the bridge's Conn surface. The
// underlying connection serializes concurrent writers itself.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Server is the data-plane HTTP/WebSocket listener.
type Server struct {
	bridge *bridge.Bridge
	addr   string
	logger *zap.Logger
}

// NewServer creates a listener for b on addr.
func NewServer(b *bridge.Bridge, addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		bridge: b,
		addr:   addr,
		logger: logger.Named("server"),
	}
}

// Handler returns the HTTP surface: /ws for the executor connection and
// /healthz for liveness checks.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("data plane listening", zap.String("addr", s.addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})
	return g.Wait()
}

// handleWS upgrades the request and pumps frames into the bridge until the
// peer goes away. Read errors end this connection only, never the server.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The listener binds loopback; origin checks add nothing there.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	handle := &wsConn{conn: conn}
	defer conn.CloseNow()

	ctx := r.Context()
	mgr := s.bridge.Conns()
	mgr.OnConnect(handle)
	defer mgr.OnClose(handle)

	// The greeting is the first frame; a peer that has read it is talking to
	// the registered connection.
	welcome, err := wire.EncodeWelcome(welcomeMessage)
	if err == nil {
		err = handle.Write(ctx, welcome)
	}
	if err != nil {
		s.logger.Warn("failed to greet executor", zap.Error(err))
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Info("executor closed connection")
			} else {
				s.logger.Warn("read failed", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			s.logger.Warn("dropping non-text frame")
			continue
		}
		mgr.OnMessage(handle, data)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.bridge.StatusJSON())
}
