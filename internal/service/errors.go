package service

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks request validation failures
var ErrInvalidRequest = errors.New("invalid request")

// RequestError describes why a request was rejected
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Is reports whether target is ErrInvalidRequest
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalidf(format string, args ...interface{}) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}
