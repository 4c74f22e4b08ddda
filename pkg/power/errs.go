package power

import "errors"

var (
	// ErrToolUnavailable indicates the power-limit tool binary is not
	// installed. Non-fatal for profile selection: configuration intent is
	// still recorded, hardware keeps its previous limits.
	ErrToolUnavailable = errors.New("power: power-limit tool not available")

	// ErrPermissionDenied indicates the caller lacks the privilege to
	// write power limits. Fatal for apply; status and list never need it.
	ErrPermissionDenied = errors.New("power: permission denied (root required)")

	// ErrPartialApply indicates some but not all limits were written.
	// Already-applied limits are not rolled back; the marker stays on the
	// previous profile so the next apply retries all three.
	ErrPartialApply = errors.New("power: limits partially applied")
)
