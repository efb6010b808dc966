package internal

import "errors"

var (
	// Refresh errors
	ErrLiveNodesUnavailable = errors.New("live node listing unavailable")
	ErrMalformedLiveNodes   = errors.New("malformed live node listing")

	// Entry validation errors
	ErrInvalidHostname = errors.New("invalid hostname")
	ErrInvalidAddress  = errors.New("invalid address")
)
