package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrRequestRequired = errors.New("request is required")
	ErrIDRequired      = errors.New("id is required")
	ErrEmptyKey        = errors.New("key cannot be empty")
)
