package api

import (
	"encoding/json"
	"fmt"
)

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorPayload is the body the backend sends with a non-success status.
// Non-JSON bodies are wrapped as {error: <text>}.
type ErrorPayload struct {
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// StatusError is returned for a non-success status other than 401.
type StatusError struct {
	Method   string
	Endpoint string
	Status   int
	Message  string
	Payload  *ErrorPayload
}

func (e *StatusError) Error() string { return e.Message }

// TransportError is returned when no usable response was obtained: the request
// could not be built or sent, or a JSON-declared body did not parse.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// errInvalidJSON reports a body that declared JSON but did not parse.
type errInvalidJSON struct {
	cause error
}

func (e errInvalidJSON) Error() string { return "invalid JSON response: " + e.cause.Error() }

func (e errInvalidJSON) Unwrap() error { return e.cause }

func validateJSON(b []byte) error {
	var v json.RawMessage
	if err := json.Unmarshal(b, &v); err != nil {
		return errInvalidJSON{cause: err}
	}
	return nil
}
