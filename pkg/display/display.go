//go:build linux

// Package display sets and queries the panel refresh rate through an
// external display-mode tool.
//
// Tool contract (default binary "gz302-display", override with the
// GZ302_DISPLAY_TOOL environment variable):
//
//	modes     print the supported refresh rates in Hz, one per line
//	current   print the active refresh rate in Hz
//	set <hz>  switch the panel to <hz>
package display

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/th3cavalry/gz302-pwrcfg/pkg/profile"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/system/run"
)

const (
	// DefaultTool is the display-mode tool binary, EnvTool its override.
	DefaultTool = "gz302-display"
	EnvTool     = "GZ302_DISPLAY_TOOL"
)

// ModeTool is the display-mode tool surface the applier needs. The exec
// implementation follows the package contract above; tests use fakes.
type ModeTool interface {
	Modes(ctx context.Context) ([]int, error)
	Current(ctx context.Context) (int, error)
	Set(ctx context.Context, hz int) error
}

// NewTool returns the exec-backed ModeTool.
func NewTool(r run.Runner) ModeTool {
	bin := os.Getenv(EnvTool)
	if bin == "" {
		bin = DefaultTool
	}
	return &execTool{runner: r, bin: bin}
}

type execTool struct {
	runner run.Runner
	bin    string
}

func (t *execTool) Modes(ctx context.Context) ([]int, error) {
	out, err := t.runner.Run(ctx, t.bin, "modes")
	if err != nil {
		return nil, t.wrap(err)
	}
	var modes []int
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hz, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("display: bad mode line %q from %s", line, t.bin)
		}
		modes = append(modes, hz)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("display: %s reported no modes", t.bin)
	}
	sort.Ints(modes)
	return modes, nil
}

func (t *execTool) Current(ctx context.Context) (int, error) {
	out, err := t.runner.Run(ctx, t.bin, "current")
	if err != nil {
		return 0, t.wrap(err)
	}
	hz, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("display: bad current rate %q from %s", out, t.bin)
	}
	return hz, nil
}

func (t *execTool) Set(ctx context.Context, hz int) error {
	if _, err := t.runner.Run(ctx, t.bin, "set", strconv.Itoa(hz)); err != nil {
		return t.wrap(err)
	}
	return nil
}

func (t *execTool) wrap(err error) error {
	if run.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrToolUnavailable, t.bin)
	}
	return err
}

// Result reports what an Apply actually did.
type Result struct {
	RateHz  int
	Skipped bool // panel already ran at the requested rate
}

// Applier validates and applies refresh rates. The supported-mode set is
// queried once and cached for the lifetime of the process only; every new
// invocation of the tool re-queries the panel.
type Applier struct {
	tool ModeTool
	log  *slog.Logger

	modes []int // intra-process cache
}

// NewApplier builds an Applier on the given tool. A nil logger falls back
// to slog.Default().
func NewApplier(tool ModeTool, log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{tool: tool, log: log}
}

// Apply switches the panel to rate, validating it against the supported
// mode set first. An already-active rate is a no-op success.
func (a *Applier) Apply(ctx context.Context, rate int) (Result, error) {
	modes, err := a.supported(ctx)
	if err != nil {
		return Result{}, err
	}
	if !contains(modes, rate) {
		return Result{}, &InvalidRateError{RateHz: rate, Supported: modes}
	}

	current, err := a.tool.Current(ctx)
	if err != nil {
		return Result{}, err
	}
	if current == rate {
		return Result{RateHz: rate, Skipped: true}, nil
	}

	if err := a.tool.Set(ctx, rate); err != nil {
		return Result{}, err
	}
	a.log.Info("display: refresh rate set", "hz", rate, "previous", current)
	return Result{RateHz: rate}, nil
}

// ApplyAuto switches the panel to the profile's suggested rate.
func (a *Applier) ApplyAuto(ctx context.Context, p profile.Profile) (Result, error) {
	return a.Apply(ctx, p.RefreshHz)
}

// Resolve maps a CLI rate argument ("auto" or an integer) to a concrete
// rate. linked may be nil unless the argument is "auto".
func Resolve(arg string, linked *profile.Profile) (int, error) {
	if strings.EqualFold(strings.TrimSpace(arg), "auto") {
		if linked == nil {
			return 0, ErrNoLinkedProfile
		}
		return linked.RefreshHz, nil
	}
	hz, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || hz <= 0 {
		return 0, fmt.Errorf("display: not a refresh rate: %q", arg)
	}
	return hz, nil
}

// Status returns the current rate and the supported set.
func (a *Applier) Status(ctx context.Context) (current int, supported []int, err error) {
	supported, err = a.supported(ctx)
	if err != nil {
		return 0, nil, err
	}
	current, err = a.tool.Current(ctx)
	if err != nil {
		return 0, nil, err
	}
	return current, supported, nil
}

func (a *Applier) supported(ctx context.Context) ([]int, error) {
	if a.modes != nil {
		return a.modes, nil
	}
	modes, err := a.tool.Modes(ctx)
	if err != nil {
		return nil, err
	}
	a.modes = modes
	return modes, nil
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
