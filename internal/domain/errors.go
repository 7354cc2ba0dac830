package domain

import "errors"

// Validation and authorization failures returned by services. Handlers map
// them to status codes or ack texts; anything else is an internal error.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrRecipientRequired = errors.New("recipient id is required")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("resource already exists")
)
