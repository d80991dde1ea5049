package email

import "errors"

var (
	// ErrInvalidFromAddress is returned when the from address is invalid.
	ErrInvalidFromAddress = errors.New("email: invalid from address")

	// ErrInvalidToAddress is returned when no valid recipient is given.
	ErrInvalidToAddress = errors.New("email: invalid to address")

	// ErrTemplateNotFound is returned when a template name is not embedded.
	ErrTemplateNotFound = errors.New("email: template not found")
)
