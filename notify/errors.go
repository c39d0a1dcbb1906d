package notify

import "errors"

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrStorageFailure    = errors.New("notification storage failed")
	ErrNotFound          = errors.New("notification not found")
)
