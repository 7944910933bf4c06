package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/maplesync/internal/store"
	"github.com/roach88/maplesync/internal/syncer"
)

// NewGuildsCommand creates the guilds command.
func NewGuildsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guilds <guild-name>...",
		Short: "Add guild members to the work set",
		Long: `Resolve each guild on the configured world and add its member names to
the sync work set. Names already present or blocklisted are left alone.

Example:
  maplesync guilds 楓之谷公會 另一個公會`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuilds(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runGuilds(cmd *cobra.Command, opts *RootOptions, guilds []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	api, err := newAPIClient(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build API client", err)
	}

	coord := syncer.New(syncer.Config{World: cfg.World}, api, st, nil, slog.Default())

	ctx, cancel := signalContext(cmd)
	defer cancel()

	added, err := coord.ExpandGuilds(ctx, guilds)
	if err != nil {
		return WrapExitError(ExitFailure, "guild expansion failed", err)
	}
	return formatter(cmd, opts).Success(fmt.Sprintf("added %d new members from %d guilds", added, len(guilds)))
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "add <name>...",
		Short:         "Add character names to the work set",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runAdd(cmd *cobra.Command, opts *RootOptions, names []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	added, err := st.AddToWorkSet(ctx, cfg.World, names)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to add names", err)
	}
	return formatter(cmd, opts).Success(fmt.Sprintf("added %d of %d names", added, len(names)))
}
