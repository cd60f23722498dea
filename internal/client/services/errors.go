package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dulo/internal/client/client"
)

// MessageError carries a user-facing message in front of the underlying
// failure, which stays reachable with errors.Is and errors.As.
type MessageError struct {
	Message string
	Err     error
}

func (e *MessageError) Error() string { return e.Message }

func (e *MessageError) Unwrap() error { return e.Err }

// explain turns an API failure into a MessageError using the forgiving body
// parser, falling back to "<action> failed (<status>)".
func explain(action string, err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", action, err)
	}
	msg := client.ExtractMessage(apiErr.Body)
	if msg == "" {
		msg = fmt.Sprintf("%s failed (%d)", action, apiErr.Status)
	}
	return &MessageError{Message: msg, Err: err}
}
