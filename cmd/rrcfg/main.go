//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/th3cavalry/gz302-pwrcfg/pkg/config"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/display"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/profile"
	"github.com/th3cavalry/gz302-pwrcfg/pkg/system/run"
)

const (
	exitOK    = 0
	exitUsage = 1 // invalid or unsupported rate
	exitTool  = 2 // display-mode tool unavailable
	exitBusy  = 3
)

type app struct {
	store *config.Store
	disp  *display.Applier
	log   *slog.Logger
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	a := &app{
		store: config.NewStore("", log),
		disp:  display.NewApplier(display.NewTool(run.New()), log),
		log:   log,
	}

	root := &cobra.Command{
		Use:   "rrcfg <rate>|auto",
		Short: "GZ302 display refresh rate control",
		Long: `rrcfg sets and queries the panel refresh rate. 'auto' follows the
suggested rate of the currently selected power profile.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.applyRate(cmd.Context(), args[0])
		},
	}

	root.AddCommand(a.listCmd(), a.statusCmd())

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrBusy):
		return exitBusy
	case errors.Is(err, display.ErrToolUnavailable):
		return exitTool
	default:
		return exitUsage
	}
}

func (a *app) applyRate(ctx context.Context, arg string) error {
	var linked *profile.Profile
	if arg == "auto" {
		cfg, err := a.store.Load()
		if err != nil {
			return err
		}
		p, err := profile.Lookup(cfg.CurrentProfile)
		if err != nil {
			return err
		}
		linked = &p
	}

	hz, err := display.Resolve(arg, linked)
	if err != nil {
		return err
	}
	res, err := a.disp.Apply(ctx, hz)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Printf("display already at %d Hz\n", res.RateHz)
	} else {
		fmt.Printf("refresh rate set to %d Hz\n", res.RateHz)
	}
	return nil
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List refresh rates supported by the panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, supported, err := a.disp.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, hz := range supported {
				mark := ""
				if hz == current {
					mark = " *"
				}
				fmt.Printf("%d Hz%s\n", hz, mark)
			}
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active refresh rate and the refresh link state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, supported, err := a.disp.Status(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := a.store.Load()
			if err != nil {
				return err
			}

			suggested := "unknown"
			if p, perr := profile.Lookup(cfg.CurrentProfile); perr == nil {
				suggested = fmt.Sprintf("%d Hz", p.RefreshHz)
			}

			fmt.Printf("Current rate:      %d Hz\n", current)
			fmt.Printf("Supported rates:   %s\n", joinHz(supported))
			fmt.Printf("Refresh link:      %s\n", onOff(cfg.RefreshLink))
			fmt.Printf("Profile suggests:  %s (%s)\n", suggested, cfg.CurrentProfile)
			return nil
		},
	}
}

func joinHz(rates []int) string {
	out := ""
	for i, hz := range rates {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", hz)
	}
	return out
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
