package wire

import "encoding/json"

// Envelope type discriminants. Every data-plane message carries exactly one
// of these in its "type" field.
const (
	TypeCall    = "tool_request"
	TypeResult  = "tool_response"
	TypeEvent   = "event"
	TypeWelcome = "welcome"
)

// Kind classifies a decoded envelope.
type Kind uint8

const (
	KindCall Kind = iota
	KindResult
	KindEvent
	KindWelcome
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindCall:
		return "CALL"
	case KindResult:
		return "RESULT"
	case KindEvent:
		return "EVENT"
	case KindWelcome:
		return "WELCOME"
	default:
		return "UNKNOWN"
	}
}

// Call is an outbound operation request (bridge → remote executor).
type Call struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Result is the remote executor's reply to a Call, matched back to the
// originating request by ID.
type Result struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Event is an unsolicited notification from the remote executor. It carries
// no ID and never participates in correlation.
type Event struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Welcome is the informational greeting sent when a connection is accepted.
// Not correlated.
type Welcome struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Envelope is one decoded data-plane message. Kind selects which of the
// variant fields is populated; the others are nil.
type Envelope struct {
	Kind    Kind
	Call    *Call
	Result  *Result
	Event   *Event
	Welcome *Welcome
}
