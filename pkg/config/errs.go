package config

import "errors"

var (
	// ErrBusy indicates the store lock could not be acquired within the
	// caller's timeout. Retryable; nothing was read or written.
	ErrBusy = errors.New("config: store busy")
)
