//go:build linux

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/th3cavalry/gz302-pwrcfg/pkg/autoswitch"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/config"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/display"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/power"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/profile"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/system/powersrc"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/system/run"
)

// Exit codes, stable for scripting and the OS power hook.
const (
	exitOK    = 0
	exitUsage = 1 // unknown profile, bad arguments
	exitTool  = 2 // power-limit tool unavailable or permission denied
	exitBusy  = 3 // store lock held by another invocation
)

type app struct {
	store *config.Store
	power *power.Applier
	disp  *display.Applier
	log   *slog.Logger

	force bool
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	runner := run.New()
	a := &app{
		store: config.NewStore("", log),
		power: power.NewApplier(runner, log),
		disp:  display.NewApplier(display.NewTool(runner), log),
		log:   log,
	}

	root := &cobra.Command{
		Use:   "pwrcfg [profile]",
		Short: "GZ302 power profile control",
		Long: `pwrcfg applies named power profiles (processor sustained/slow-boost/
fast-boost limits via ryzenadj) on the ASUS ROG Flow Z13 (GZ302) and manages
automatic AC/battery profile switching.

Profiles in escalation order: ` + strings.Join(profile.Names(), ", ") + `.

State lives in ` + config.DefaultDir + ` (override with ` + config.EnvStateDir + `).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.applyProfile(cmd.Context(), args[0])
		},
	}
	root.Flags().BoolVarP(&a.force, "force", "f", false, "re-apply even if the profile is already active")

	root.AddCommand(
		a.listCmd(),
		a.statusCmd(),
		a.configCmd(),
		a.autoCmd(),
		a.eventCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrBusy):
		return exitBusy
	case errors.Is(err, power.ErrToolUnavailable),
		errors.Is(err, power.ErrPermissionDenied),
		errors.Is(err, display.ErrToolUnavailable):
		return exitTool
	default:
		return exitUsage
	}
}

// applyProfile is the manual selection path: records the choice and pushes
// it to hardware. It never toggles auto-switch; the next power event in
// auto mode recomputes from the AC/battery mapping.
func (a *app) applyProfile(ctx context.Context, name string) error {
	p, err := profile.Lookup(name)
	if err != nil {
		return err
	}

	var toolErr error
	err = a.store.WithLock(config.DefaultLockTimeout, func(tx *config.Tx) error {
		res, aerr := a.power.Apply(ctx, tx, p, a.force)
		if aerr != nil {
			if !errors.Is(aerr, power.ErrToolUnavailable) {
				return aerr
			}
			// degraded mode: record the selection, hardware keeps its limits
			toolErr = aerr
		} else if res.Skipped {
			fmt.Printf("profile %s already applied\n", p.Name)
		} else {
			fmt.Printf("profile %s applied (sustained %s, slow %s, fast %s)\n",
				p.Name, p.SustainedMw, p.SlowBoostMw, p.FastBoostMw)
		}

		cfg := tx.Config()
		if cfg.RefreshLink {
			if _, derr := a.disp.ApplyAuto(ctx, p); derr != nil {
				a.log.Warn("refresh link failed", "err", derr)
			}
		}
		cfg.CurrentProfile = string(p.Name)
		tx.SetConfig(cfg)
		return nil
	})
	if err != nil {
		return err
	}
	return toolErr
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles in escalation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.store.Load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PROFILE\tSUSTAINED\tSLOW BOOST\tFAST BOOST\tREFRESH\t")
			for _, p := range profile.List() {
				mark := ""
				if string(p.Name) == cfg.CurrentProfile {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%d Hz\t\n",
					p.Name, mark, p.SustainedMw, p.SlowBoostMw, p.FastBoostMw, p.RefreshHz)
			}
			return tw.Flush()
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current profile, auto-switch state and AC/battery mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.store.Load()
			if err != nil {
				return err
			}
			marker, err := a.store.LoadMarker()
			if err != nil {
				return err
			}

			applied := "none"
			if !marker.IsZero() {
				applied = fmt.Sprintf("%s (at %s)", marker.Profile,
					marker.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			source := "unknown"
			if src, serr := powersrc.Detect(); serr == nil {
				source = string(src)
			}

			fmt.Printf("Current profile:   %s\n", cfg.CurrentProfile)
			fmt.Printf("Hardware applied:  %s\n", applied)
			fmt.Printf("Auto-switch:       %s\n", onOff(cfg.AutoSwitch))
			fmt.Printf("AC profile:        %s\n", orUnset(cfg.ACProfile))
			fmt.Printf("Battery profile:   %s\n", orUnset(cfg.BatteryProfile))
			fmt.Printf("Refresh link:      %s\n", onOff(cfg.RefreshLink))
			fmt.Printf("Power source:      %s\n", source)
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Configure AC/battery profiles and the refresh link interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.store.Load()
			if err != nil {
				return err
			}

			// prompt outside the lock so a slow answer never starves the
			// event handler; last-writer-wins on the merge is acceptable
			rd := bufio.NewReader(os.Stdin)
			fmt.Printf("Profiles: %s\n", strings.Join(profile.Names(), ", "))
			fmt.Println("Enter a profile name, '-' to clear, or leave empty to keep the current value.")

			ac, err := promptProfile(rd, "AC profile", cfg.ACProfile)
			if err != nil {
				return err
			}
			bat, err := promptProfile(rd, "Battery profile", cfg.BatteryProfile)
			if err != nil {
				return err
			}
			link, err := promptBool(rd, "Link refresh rate to profile", cfg.RefreshLink)
			if err != nil {
				return err
			}

			return a.store.WithLock(config.DefaultLockTimeout, func(tx *config.Tx) error {
				c := tx.Config()
				c.ACProfile = ac
				c.BatteryProfile = bat
				c.RefreshLink = link
				tx.SetConfig(c)
				fmt.Printf("saved: ac=%s battery=%s refresh_link=%s\n",
					orUnset(ac), orUnset(bat), onOff(link))
				return nil
			})
		},
	}
}

func (a *app) autoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto <on|off>",
		Short: "Enable or disable automatic AC/battery switching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable bool
			switch strings.ToLower(args[0]) {
			case "on":
				enable = true
			case "off":
				enable = false
			default:
				return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
			}

			return a.store.WithLock(config.DefaultLockTimeout, func(tx *config.Tx) error {
				cfg := tx.Config()
				if enable && (cfg.ACProfile == "" || cfg.BatteryProfile == "") {
					return fmt.Errorf("%w: run 'pwrcfg config' first", autoswitch.ErrMissingAutoConfig)
				}
				cfg.AutoSwitch = enable
				tx.SetConfig(cfg)
				fmt.Printf("auto-switch %s\n", onOff(enable))
				return nil
			})
		},
	}
}

// eventCmd is the OS power hook entry point. Whatever happens, it exits 0:
// a failing hook must never break the power-source transition itself.
func (a *app) eventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "event [AC|Battery]",
		Short: "Handle a power-source change (invoked by the udev/systemd hook)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src powersrc.Source
			var err error
			if len(args) == 1 {
				src, err = powersrc.Parse(args[0])
			} else {
				src, err = powersrc.Detect()
			}
			if err != nil {
				a.log.Error("event: cannot determine power source", "err", err)
				return nil
			}

			h := autoswitch.NewHandler(a.store, a.power, a.disp, a.log)
			if err := h.Handle(cmd.Context(), src); err != nil {
				a.log.Error("event: handling failed", "source", src, "err", err)
			}
			return nil
		},
	}
}

func promptProfile(rd *bufio.Reader, label, current string) (string, error) {
	for {
		fmt.Printf("%s [%s]: ", label, orUnset(current))
		line, err := rd.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			return current, nil
		case line == "-":
			return "", nil
		default:
			p, err := profile.Lookup(line)
			if err != nil {
				fmt.Printf("unknown profile %q\n", line)
				continue
			}
			return string(p.Name), nil
		}
	}
}

func promptBool(rd *bufio.Reader, label string, current bool) (bool, error) {
	for {
		fmt.Printf("%s (y/n) [%s]: ", label, onOff(current))
		line, err := rd.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("read input: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return current, nil
		case "y", "yes", "on", "true":
			return true, nil
		case "n", "no", "off", "false":
			return false, nil
		default:
			fmt.Println("please answer y or n")
		}
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
