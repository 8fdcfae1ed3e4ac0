package api

import "fmt"

// Error codes reported to operation callbacks
const (
	ErrCodeOK         = 0
	ErrCodePermission = 11 // permission and transport errors share the platform's generic code
	ErrCodeAuth       = 12
)

// Error is a platform error delivered through an operation's callback
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// Is reports errors with the same code and message as equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Fixed errors of the client operations
var (
	ErrPublishPermission = &Error{Code: ErrCodePermission, Message: "Permission error: can't publish on the given resource!"}
	ErrPublishFailed     = &Error{Code: ErrCodePermission, Message: "Error while publishing message!"}
	ErrWritePermission   = &Error{Code: ErrCodePermission, Message: "Permission error: can't write on the given resource!"}
	ErrWriteFailed       = &Error{Code: ErrCodePermission, Message: "Error while writing message!"}
	ErrAuthFailed        = &Error{Code: ErrCodeAuth, Message: "Unable to authenticate client"}
	ErrReadFailed        = &Error{Code: ErrCodePermission, Message: "Error"}
	ErrNotConnected      = &Error{Code: ErrCodePermission, Message: "No connection with server"}
)
