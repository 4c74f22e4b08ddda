package profile

import "errors"

var (
	// ErrUnknownProfile indicates a profile name not present in the registry.
	ErrUnknownProfile = errors.New("profile: unknown profile")
)
