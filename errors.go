package foodlog

import "errors"

// Error kinds shared by every component. Components wrap one of these so the
// HTTP boundary can pick a status code with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrStorage    = errors.New("storage error")
	ErrAgent      = errors.New("agent error")
)
