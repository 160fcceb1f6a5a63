package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ParseError reports a malformed inbound envelope. The caller is expected to
// log and drop the offending message; a ParseError never justifies tearing
// down the connection and is never surfaced to a pending call.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("envelope parse error: %s", e.Reason)
}

// NewCallID mints a fresh correlation identifier for an outbound Call.
func NewCallID() string {
	return uuid.NewString()
}

// EncodeCall encodes an outbound Call envelope.
func EncodeCall(id, tool string, args json.RawMessage) ([]byte, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return json.Marshal(&Call{
		ID:   id,
		Type: TypeCall,
		Tool: tool,
		Args: args,
	})
}

// EncodeWelcome encodes the connection greeting.
func EncodeWelcome(message string) ([]byte, error) {
	return json.Marshal(&Welcome{
		Type:    TypeWelcome,
		Message: message,
	})
}

// probe carries the superset of all envelope fields so the discriminant can
// be inspected after a single unmarshal.
type probe struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Tool    string          `json:"tool"`
	Args    json.RawMessage `json:"args"`
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Event   string          `json:"event"`
	Message string          `json:"message"`
}

// Decode classifies one data-plane message by its "type" discriminant.
// A message that is not a JSON object, lacks the discriminant, or carries an
// unrecognized discriminant yields a *ParseError.
func Decode(data []byte) (*Envelope, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	switch p.Type {
	case TypeCall:
		return &Envelope{
			Kind: KindCall,
			Call: &Call{ID: p.ID, Type: p.Type, Tool: p.Tool, Args: p.Args},
		}, nil

	case TypeResult:
		if p.Success == nil {
			return nil, &ParseError{Reason: "tool_response missing success flag"}
		}
		return &Envelope{
			Kind: KindResult,
			Result: &Result{
				ID:      p.ID,
				Type:    p.Type,
				Success: *p.Success,
				Data:    p.Data,
				Error:   p.Error,
			},
		}, nil

	case TypeEvent:
		if p.Event == "" {
			return nil, &ParseError{Reason: "event envelope missing event name"}
		}
		return &Envelope{
			Kind:  KindEvent,
			Event: &Event{Type: p.Type, Event: p.Event, Data: p.Data},
		}, nil

	case TypeWelcome:
		return &Envelope{
			Kind:    KindWelcome,
			Welcome: &Welcome{Type: p.Type, Message: p.Message},
		}, nil

	case "":
		return nil, &ParseError{Reason: "missing type discriminant"}

	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unrecognized type %q", p.Type)}
	}
}
