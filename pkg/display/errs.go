package display

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolUnavailable indicates the display-mode tool binary is not
	// installed.
	ErrToolUnavailable = errors.New("display: display-mode tool not available")

	// ErrNoLinkedProfile indicates "auto" was requested without a profile
	// to take the suggested rate from.
	ErrNoLinkedProfile = errors.New("display: auto rate requires a linked profile")
)

// InvalidRateError reports a requested rate the panel does not support,
// carrying the supported set for the user. The display is left unchanged.
type InvalidRateError struct {
	RateHz    int
	Supported []int
}

func (e *InvalidRateError) Error() string {
	rates := make([]string, 0, len(e.Supported))
	for _, r := range e.Supported {
		rates = append(rates, fmt.Sprintf("%d", r))
	}
	return fmt.Sprintf("display: unsupported refresh rate %d Hz (supported: %s)",
		e.RateHz, strings.Join(rates, ", "))
}
