// Package ocpp implements the OCPP 1.6J wire message shapes and a pure codec
// for them. A message is a JSON array whose first element tags the shape:
// Call [2, id, action, payload], CallResult [3, id, payload] and CallError
// [4, id, code, description, details]. The codec has no side effects; frame
// handling and dispatch live in the session layer.
package ocpp

import "encoding/json"

// MessageType tags the three wire message shapes.
type MessageType int

const (
	MessageCall       MessageType = 2
	MessageCallResult MessageType = 3
	MessageCallError  MessageType = 4
)

// ErrorCode is the machine-readable code carried by a CallError.
type ErrorCode string

const (
	ErrCodeNotImplemented      ErrorCode = "NotImplemented"
	ErrCodeNotSupported        ErrorCode = "NotSupported"
	ErrCodeInternalError       ErrorCode = "InternalError"
	ErrCodeProtocolError       ErrorCode = "ProtocolError"
	ErrCodeSecurityError       ErrorCode = "SecurityError"
	ErrCodeFormationViolation  ErrorCode = "FormationViolation"
	ErrCodePropertyViolation   ErrorCode = "PropertyConstraintViolation"
	ErrCodeOccurrenceViolation ErrorCode = "OccurenceConstraintViolation"
	ErrCodeTypeConstraintError ErrorCode = "TypeConstraintViolation"
	ErrCodeGenericError        ErrorCode = "GenericError"
)

// Frame is one decoded wire message. Action and Payload are set for Calls,
// Payload alone for CallResults, and the error fields for CallErrors. The
// payload stays raw so action-specific decoding can be applied by the
// dispatch table.
type Frame struct {
	Type             MessageType
	ID               string
	Action           Action
	Payload          json.RawMessage
	ErrorCode        ErrorCode
	ErrorDescription string
}

// IsReply reports whether the frame answers an earlier Call.
func (f *Frame) IsReply() bool {
	return f.Type == MessageCallResult || f.Type == MessageCallError
}
