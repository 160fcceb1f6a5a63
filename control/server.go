// Package control exposes the bridge to the calling agent: a strictly
// serialized request/response loop speaking newline-delimited JSON-RPC 2.0.
// One request is read, handled to completion, and answered before the next
// is read, so no interleaving between control-plane calls ever occurs.
package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/studiomesh/canvasbridge-go/bridge"
)

// JSON-RPC error codes used on the control plane. A failed operation call is
// NOT one of these — it is a successful response carrying isError.
const (
	errCodeParse          = -32700
	errCodeInvalidRequest = -32600
	errCodeMethodNotFound = -32601
)

// maxLineBytes bounds one control-plane request line.
const maxLineBytes = 4 * 1024 * 1024

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OperationDescriptor is one catalog entry as presented to the caller.
type OperationDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// CallResult is the outcome of operations/call. Failures are structured
// values, never transport-level faults.
type CallResult struct {
	Content string `json:"content"`
	IsError bool   `json:"isError"`
}

// Server is the control-plane surface. It owns no state beyond the bridge
// reference; serialization comes from the single read-handle-respond loop.
type Server struct {
	bridge *bridge.Bridge
	logger *zap.Logger
}

// NewServer creates a control-plane server for b.
func NewServer(b *bridge.Bridge, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		bridge: b,
		logger: logger.Named("control"),
	}
}

// Run serves requests from r until EOF or ctx is done. Malformed and
// oversized lines get a parse-error response; the loop itself only stops on
// transport EOF.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReaderSize(r, 64*1024)
	enc := json.NewEncoder(w)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, tooLong, readErr := readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("control plane read: %w", readErr)
		}

		var resp *rpcResponse
		switch {
		case tooLong:
			resp = parseErrorResponse("request line exceeds size limit")
		case len(line) > 0:
			resp = s.handle(ctx, line)
		}
		// A nil resp is a blank line or a notification; nothing to answer.
		if resp != nil {
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("control plane write: %w", err)
			}
		}
		if readErr != nil {
			return nil // EOF, possibly after a final unterminated line
		}
	}
}

// readLine reads up to the next newline. A line longer than maxLineBytes is
// consumed to its end and reported oversized instead of buffered, so one bad
// request can never take the loop down.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > maxLineBytes {
				tooLong = true
				line = nil
			}
		}
		switch {
		case err == nil:
			return bytes.TrimSuffix(line, []byte("\n")), tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return line, tooLong, err
		}
	}
}

// parseErrorResponse is the -32700 answer for input that never yielded a
// request. JSON-RPC 2.0 wants an explicit null id when the id is unknowable.
func parseErrorResponse(message string) *rpcResponse {
	return &rpcResponse{
		JSONRPC: "2.0",
		ID:      json.RawMessage("null"),
		Error:   &rpcError{Code: errCodeParse, Message: message},
	}
}

// handle processes one raw request line.
func (s *Server) handle(ctx context.Context, line []byte) *rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return parseErrorResponse("parse error")
	}

	id, hasID := decodeID(req.ID)
	if req.JSONRPC != "2.0" || req.Method == "" {
		if !hasID {
			return nil
		}
		return &rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &rpcError{Code: errCodeInvalidRequest, Message: "invalid JSON-RPC request"},
		}
	}

	s.logger.Debug("control request", zap.String("method", req.Method))

	var result any
	var rpcErr *rpcError

	switch req.Method {
	case "operations/list":
		result = map[string]any{"operations": s.listOperations()}

	case "operations/call":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
			rpcErr = &rpcError{Code: errCodeInvalidRequest, Message: "name is required"}
			break
		}
		result = s.callOperation(ctx, p.Name, p.Arguments)

	case "bridge/status":
		result = s.bridge.Status()

	default:
		rpcErr = &rpcError{
			Code:    errCodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
	}

	if !hasID {
		return nil
	}
	if rpcErr != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// listOperations is a pure read of the catalog; no dispatch involved.
func (s *Server) listOperations() []OperationDescriptor {
	defs := s.bridge.Catalog().List()
	out := make([]OperationDescriptor, 0, len(defs))
	for i := range defs {
		schema, err := defs[i].SchemaJSON()
		if err != nil {
			s.logger.Warn("unrenderable schema",
				zap.String("operation", defs[i].Name), zap.Error(err))
			schema = nil
		}
		out = append(out, OperationDescriptor{
			Name:        defs[i].Name,
			Description: defs[i].Description,
			Schema:      schema,
		})
	}
	return out
}

// callOperation delegates to the dispatcher with its default deadline and
// converts any DispatchError into a user-facing failure value. The caller
// always receives a well-formed success-or-failure result.
func (s *Server) callOperation(ctx context.Context, name string, args json.RawMessage) CallResult {
	data, derr := s.bridge.Dispatcher().Invoke(ctx, name, args, 0)
	if derr != nil {
		s.logger.Info("operation failed",
			zap.String("operation", name),
			zap.String("kind", derr.Kind.String()))
		return CallResult{Content: derr.Error(), IsError: true}
	}
	return CallResult{Content: renderPayload(data)}
}

// renderPayload turns a success payload into the textual form the control
// plane returns.
func renderPayload(data json.RawMessage) string {
	if len(data) == 0 {
		return "ok"
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return string(data)
}

func decodeID(raw json.RawMessage) (any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	return generic, true
}
