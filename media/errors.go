package media

import "errors"

var (
	ErrNotFound        = errors.New("no results found")
	ErrUpstreamFailure = errors.New("media source failed")
)
