//go:build linux

// Package autoswitch reacts to AC/battery transitions. Handle is invoked
// once per OS power-source-change event by the pwrcfg event hook; it is not
// a resident process, so overlapping invocations from a bouncing connector
// are serialized only by the configuration store's lock.
package autoswitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/th3cavalry/gz302-pwrcfg/pkg/config"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/display"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/power"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/profile"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/system/powersrc"
)

// DebounceWindow suppresses switching to a different profile when hardware
// was written less than this long ago, so a bouncing power connector does
// not churn the power registers. The marker mismatch left behind makes the
// next event re-apply, so a settled source converges.
const DebounceWindow = time.Second

// ErrMissingAutoConfig indicates auto-switch is on (or being enabled) but
// the AC or battery profile mapping is unset.
var ErrMissingAutoConfig = errors.New("autoswitch: AC/battery profile not configured")

// Handler wires the event path's collaborators together. All dependencies
// are explicit so the decision logic is testable without hardware.
type Handler struct {
	Store   *config.Store
	Power   *power.Applier
	Display *display.Applier
	Log     *slog.Logger

	now func() time.Time
}

// NewHandler builds a Handler. A nil logger falls back to slog.Default().
func NewHandler(store *config.Store, pw *power.Applier, disp *display.Applier, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Store: store, Power: pw, Display: disp, Log: log, now: time.Now}
}

// Handle processes one power-source event under the store lock: pick the
// configured profile for src, apply it, follow with the linked refresh rate
// when enabled, and record the new current profile.
//
// The caller (the OS hook boundary) decides what to do with the returned
// error; pwrcfg event logs it and exits 0 so the hook never fails.
func (h *Handler) Handle(ctx context.Context, src powersrc.Source) error {
	return h.Store.WithLock(config.DefaultLockTimeout, func(tx *config.Tx) error {
		cfg := tx.Config()
		if !cfg.AutoSwitch {
			h.Log.Info("autoswitch: disabled, ignoring event", "source", src)
			return nil
		}

		name := cfg.ACProfile
		if src == powersrc.Battery {
			name = cfg.BatteryProfile
		}
		if name == "" {
			return fmt.Errorf("%w: no profile for %s", ErrMissingAutoConfig, src)
		}

		p, err := profile.Lookup(name)
		if err != nil {
			// Load sanitizes profile names, so this means the config was
			// corrupted after the read; treat like a missing mapping.
			return fmt.Errorf("%w: %v", ErrMissingAutoConfig, err)
		}

		if m := tx.Marker(); !m.IsZero() && m.Profile != string(p.Name) &&
			h.now().Sub(m.AppliedAt) < DebounceWindow {
			h.Log.Warn("autoswitch: debounced rapid profile flip",
				"source", src, "target", p.Name, "last", m.Profile)
			return nil
		}

		res, err := h.Power.Apply(ctx, tx, p, false)
		switch {
		case err == nil:
			if res.Skipped {
				h.Log.Info("autoswitch: profile already applied", "profile", p.Name)
			}
		case errors.Is(err, power.ErrToolUnavailable):
			// record intent anyway; hardware keeps its previous limits
			h.Log.Warn("autoswitch: power-limit tool missing, recording profile only",
				"profile", p.Name)
		default:
			return err
		}

		if cfg.RefreshLink {
			if _, derr := h.Display.ApplyAuto(ctx, p); derr != nil {
				// refresh is cosmetic next to power limits; log and move on
				h.Log.Warn("autoswitch: refresh link failed", "profile", p.Name, "err", derr)
			}
		}

		cfg.CurrentProfile = string(p.Name)
		tx.SetConfig(cfg)
		h.Log.Info("autoswitch: switched", "source", src, "profile", p.Name)
		return nil
	})
}
