package response

import (
	"fmt"
	"net/http"
)

// Error carries an HTTP status code plus the messages rendered into the
// response envelope. The fallback Message is used only when no detail
// messages were added.
type Error struct {
	StatusCode int
	Message    string
	Messages   []string
	Result     interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// AddMessages appends detail messages shown to the API consumer
func (e *Error) AddMessages(msgs ...string) *Error {
	e.Messages = append(e.Messages, msgs...)
	return e
}

func newError(status int, fallback string) *Error {
	return &Error{
		StatusCode: status,
		Message:    fallback,
		Messages:   make([]string, 0),
		Result:     []string{},
	}
}

func ErrUnexpected() *Error {
	return newError(http.StatusInternalServerError, "An unexpected error has occured")
}

func ErrBadRequest() *Error {
	return newError(http.StatusBadRequest, "Bad request")
}

func ErrUnauthorized() *Error {
	return newError(http.StatusUnauthorized, "Unauthorized")
}

func ErrNotFound() *Error {
	return newError(http.StatusNotFound, "Requested resources not found")
}

func ErrInvalidJson() *Error {
	return ErrBadRequest().AddMessages("Invalid JSON body")
}

func ErrNoBearer() *Error {
	return ErrUnauthorized().AddMessages("No valid Bearer token found in header")
}
