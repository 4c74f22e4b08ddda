//go:build linux

// Package power writes a profile's processor power ceilings through
// ryzenadj.
//
// Tool contract: ryzenadj accepts milliwatt values via
// --stapm-limit=<mW> (sustained), --slow-limit=<mW> (slow boost) and
// --fast-limit=<mW> (fast boost). The three limits are written in that
// order, one invocation each, so a mid-sequence failure is attributable to
// a specific limit. The binary defaults to "ryzenadj" and can be overridden
// with the GZ302_RYZENADJ environment variable.
package power

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/th3cavalry/gz302-pwrcfg/pkg/config"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/profile"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/system/run"
)

const (
	// DefaultTool is the power-limit tool binary, EnvTool its override.
	DefaultTool = "ryzenadj"
	EnvTool     = "GZ302_RYZENADJ"
)

// Limit names one of the three power ceilings, in apply order.
type Limit string

const (
	LimitSustained Limit = "sustained"
	LimitSlowBoost Limit = "slow-boost"
	LimitFastBoost Limit = "fast-boost"
)

// Result reports what an Apply actually did.
type Result struct {
	Profile string
	Skipped bool // marker matched, no tool invocations
	Applied []Limit
	Failed  []Limit
}

// Applier writes power limits idempotently, using the store's applied
// marker to skip re-applies of the current profile.
type Applier struct {
	runner run.Runner
	bin    string
	log    *slog.Logger

	// injectable for tests
	euid func() int
	now  func() time.Time
}

// Option customizes an Applier.
type Option func(*Applier)

// WithBinary overrides the tool binary (default ryzenadj / GZ302_RYZENADJ).
func WithBinary(bin string) Option {
	return func(a *Applier) { a.bin = bin }
}

// WithPrivilegeCheck overrides the effective-uid check. Tests use it to
// simulate running as root.
func WithPrivilegeCheck(euid func() int) Option {
	return func(a *Applier) { a.euid = euid }
}

// WithClock overrides the marker timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) { a.now = now }
}

// NewApplier builds an Applier on the given runner. A nil logger falls
// back to slog.Default().
func NewApplier(r run.Runner, log *slog.Logger, opts ...Option) *Applier {
	if log == nil {
		log = slog.Default()
	}
	bin := os.Getenv(EnvTool)
	if bin == "" {
		bin = DefaultTool
	}
	a := &Applier{
		runner: r,
		bin:    bin,
		log:    log,
		euid:   os.Geteuid,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply writes p's three limits unless the marker already records p and
// force is false. It must run inside the caller's store transaction: the
// marker read and the marker update share the caller's critical section.
//
// On full success the marker is staged to p with the apply time. On partial
// failure nothing is staged, so the next apply retries all three limits;
// already-written limits are deliberately left in place.
func (a *Applier) Apply(ctx context.Context, tx *config.Tx, p profile.Profile, force bool) (Result, error) {
	res := Result{Profile: string(p.Name)}

	if !force && tx.Marker().Profile == string(p.Name) {
		res.Skipped = true
		return res, nil
	}

	if a.euid() != 0 {
		return res, ErrPermissionDenied
	}

	steps := []struct {
		limit Limit
		arg   string
	}{
		{LimitSustained, "--stapm-limit=" + p.SustainedMw.Arg()},
		{LimitSlowBoost, "--slow-limit=" + p.SlowBoostMw.Arg()},
		{LimitFastBoost, "--fast-limit=" + p.FastBoostMw.Arg()},
	}

	for i, st := range steps {
		out, err := a.runner.Run(ctx, a.bin, st.arg)
		if err != nil {
			if run.IsNotFound(err) && i == 0 {
				return res, fmt.Errorf("%w: %s", ErrToolUnavailable, a.bin)
			}
			a.log.Warn("power: limit write failed",
				"profile", p.Name, "limit", st.limit, "err", err)
			res.Failed = append(res.Failed, st.limit)
			continue
		}
		if out != "" {
			a.log.Debug("power: tool output", "limit", st.limit, "out", out)
		}
		res.Applied = append(res.Applied, st.limit)
	}

	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: applied %v, failed %v", ErrPartialApply, res.Applied, res.Failed)
	}

	tx.SetMarker(config.Marker{Profile: string(p.Name), AppliedAt: a.now()})
	a.log.Info("power: profile applied",
		"profile", p.Name,
		"sustained", p.SustainedMw, "slow", p.SlowBoostMw, "fast", p.FastBoostMw)
	return res, nil
}
