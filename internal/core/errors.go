package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomExists    = "room_exists"
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeRoomNotEmpty  = "room_not_empty"
	ErrCodeSendFailed    = "send_failed"
	ErrCodeBrokerClosed  = "broker_closed"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternalError = "internal_error"
)

var (
	ErrRoomExists   = coreError(ErrCodeRoomExists, "room already exists")
	ErrRoomNotFound = coreError(ErrCodeRoomNotFound, "room not found")
	ErrRoomNotEmpty = coreError(ErrCodeRoomNotEmpty, "room not empty")
	ErrSendFailed   = coreError(ErrCodeSendFailed, "broadcast failed")
	ErrBrokerClosed = coreError(ErrCodeBrokerClosed, "broker closed")
	ErrBadRequest   = coreError(ErrCodeBadRequest, "bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// Code returns the machine-readable code of the first CoreError in err's
// chain, or ErrCodeInternalError for anything else.
func Code(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternalError
}
