package ocpp

import (
	"encoding/json"
	"fmt"
)

// DecodeErrorKind classifies codec failures so the session layer can choose
// between dropping the frame and answering with a CallError.
type DecodeErrorKind int

const (
	// MalformedFrame means the bytes are not a well-formed message array.
	MalformedFrame DecodeErrorKind = iota
	// UnknownAction means the Call named an action this system does not accept.
	UnknownAction
	// SchemaViolation means the payload failed action-specific validation.
	SchemaViolation
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MalformedFrame:
		return "malformed frame"
	case UnknownAction:
		return "unknown action"
	case SchemaViolation:
		return "schema violation"
	default:
		return "decode error"
	}
}

// DecodeError is a structured codec failure.
type DecodeError struct {
	Kind   DecodeErrorKind
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func decodeErr(kind DecodeErrorKind, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Decode parses one raw wire frame into a Frame. Call payloads stay raw;
// use DecodeRequest to obtain the typed payload.
func Decode(raw []byte) (*Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, decodeErr(MalformedFrame, "not a JSON array: %v", err)
	}
	if len(elems) < 3 {
		return nil, decodeErr(MalformedFrame, "array has %d elements, need at least 3", len(elems))
	}
	var mt int
	if err := json.Unmarshal(elems[0], &mt); err != nil {
		return nil, decodeErr(MalformedFrame, "message type tag: %v", err)
	}
	var id string
	if err := json.Unmarshal(elems[1], &id); err != nil {
		return nil, decodeErr(MalformedFrame, "message id: %v", err)
	}
	if id == "" {
		return nil, decodeErr(MalformedFrame, "empty message id")
	}

	f := &Frame{Type: MessageType(mt), ID: id}
	switch f.Type {
	case MessageCall:
		if len(elems) != 4 {
			return nil, decodeErr(MalformedFrame, "Call has %d elements, need 4", len(elems))
		}
		var action string
		if err := json.Unmarshal(elems[2], &action); err != nil {
			return nil, decodeErr(MalformedFrame, "action: %v", err)
		}
		f.Action = Action(action)
		f.Payload = elems[3]
	case MessageCallResult:
		f.Payload = elems[2]
	case MessageCallError:
		if len(elems) < 4 {
			return nil, decodeErr(MalformedFrame, "CallError has %d elements, need at least 4", len(elems))
		}
		var code, desc string
		if err := json.Unmarshal(elems[2], &code); err != nil {
			return nil, decodeErr(MalformedFrame, "error code: %v", err)
		}
		if err := json.Unmarshal(elems[3], &desc); err != nil {
			return nil, decodeErr(MalformedFrame, "error description: %v", err)
		}
		f.ErrorCode = ErrorCode(code)
		f.ErrorDescription = desc
	default:
		return nil, decodeErr(MalformedFrame, "unknown message type tag %d", mt)
	}
	return f, nil
}

// DecodeRequest resolves a Call frame's payload through the static dispatch
// table and validates it.
func DecodeRequest(f *Frame) (Request, error) {
	factory, ok := inboundRequests[f.Action]
	if !ok {
		return nil, decodeErr(UnknownAction, "%s", f.Action)
	}
	req := factory()
	payload := f.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, req); err != nil {
		return nil, decodeErr(SchemaViolation, "%s payload: %v", f.Action, err)
	}
	if err := req.Validate(); err != nil {
		return nil, decodeErr(SchemaViolation, "%s: %v", f.Action, err)
	}
	return req, nil
}

// EncodeCall renders a Call frame for the given action and correlation id.
func EncodeCall(id string, action Action, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	return json.Marshal([]any{int(MessageCall), id, string(action), payload})
}

// EncodeResult renders a CallResult answering the given correlation id.
func EncodeResult(id string, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	return json.Marshal([]any{int(MessageCallResult), id, payload})
}

// EncodeError renders a CallError answering the given correlation id.
func EncodeError(id string, code ErrorCode, description string) ([]byte, error) {
	return json.Marshal([]any{int(MessageCallError), id, string(code), description, struct{}{}})
}
