package cdpcore

import (
	"encoding/json"

	"github.com/mailru/easyjson"
)

// emptyParams is the wire representation of a command with no parameters.
var emptyParams = easyjson.RawMessage([]byte(`{}`))

// Message is the single wire envelope shape used in both directions: an
// outbound command carries ID+Method+Params (+SessionID), an inbound reply
// carries ID+Result-or-Error, and an inbound event carries Method+Params
// (+SessionID). easyjson.RawMessage defers decoding of the opaque
// params/result payload to the caller's expected shape, exactly as the
// teacher's cdproto.Message does, so the wire layer itself never inspects
// command or event contents.
type Message struct {
	ID        int64               `json:"id,omitempty"`
	SessionID SessionID           `json:"sessionId,omitempty"`
	Method    MethodType          `json:"method,omitempty"`
	Params    easyjson.RawMessage `json:"params,omitempty"`
	Result    easyjson.RawMessage `json:"result,omitempty"`
	Error     *ProtocolError      `json:"error,omitempty"`
}

// IsResponse reports whether the message is a reply to an outbound request
// (has a nonzero id and no method).
func (m *Message) IsResponse() bool { return m.ID != 0 && m.Method == "" }

// IsEvent reports whether the message is an unsolicited event.
func (m *Message) IsEvent() bool { return m.Method != "" }

// Request is the outbound-only view of a Message, built by the Dispatcher
// from a typed Command.
type Request struct {
	ID        int64
	SessionID SessionID
	Method    MethodType
	Params    easyjson.RawMessage
}

func (r *Request) message() *Message {
	return &Message{ID: r.ID, SessionID: r.SessionID, Method: r.Method, Params: r.Params}
}

// Command is any value carrying a stable method identifier and serializing
// to JSON params. The core never inspects command contents beyond this
// capability; response decoding is parameterized by the caller's res
// target, not by the command type.
type Command interface {
	Method() string
}

// marshalParams serializes cmd to its wire params, per the "command
// polymorphism" capability in the design notes: if cmd implements
// json.Marshaler that is used directly (so e.g. a command with no fields
// can report literal "{}"), otherwise encoding/json reflects over it.
func marshalParams(cmd Command) (easyjson.RawMessage, error) {
	if cmd == nil {
		return emptyParams, nil
	}
	var buf []byte
	var err error
	if m, ok := cmd.(json.Marshaler); ok {
		buf, err = m.MarshalJSON()
	} else {
		buf, err = json.Marshal(cmd)
	}
	if err != nil {
		return nil, &SerializationError{Cause: err}
	}
	if len(buf) == 0 || string(buf) == "null" {
		return emptyParams, nil
	}
	return easyjson.RawMessage(buf), nil
}

// decodeResult decodes a response's result payload into res, the caller's
// expected shape. A nil res discards the result.
func decodeResult(raw easyjson.RawMessage, res interface{}) error {
	if res == nil {
		return nil
	}
	if len(raw) == 0 {
		raw = emptyParams
	}
	if u, ok := res.(json.Unmarshaler); ok {
		if err := u.UnmarshalJSON(raw); err != nil {
			return &SerializationError{Cause: err}
		}
		return nil
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return &SerializationError{Cause: err}
	}
	return nil
}
