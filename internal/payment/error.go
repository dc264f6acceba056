package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid request data")
	ErrInvalidInvoice = errors.New("invalid invoice")
	ErrInvalidClient  = errors.New("invalid client")
)

// TransportError means the gateway was never reached or the response could
// not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("zwitch %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is an upstream rejection: a non-success status or a payload
// missing the fields the operation needs.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zwitch error (status %d): %s", e.StatusCode, string(e.Body))
}
