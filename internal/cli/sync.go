package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/maplesync/internal/config"
	"github.com/roach88/maplesync/internal/nexon"
	"github.com/roach88/maplesync/internal/store"
	"github.com/roach88/maplesync/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Force      bool
	StatDates  []string
	EquipDates []string
	Limit      int
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [name...]",
		Short: "Fetch and reconcile character data",
		Long: `Run one fetch-and-reconcile pass over the work set.

With no arguments every non-blocklisted character in the work set is
processed; arguments restrict the pass to the named characters. Equipment
for the most recent snapshot is always refreshed unless --equip-date
narrows it; stat history is fetched only for dates given via --stat-date.

Example:
  maplesync sync
  maplesync sync 小鋼鐵人 --force
  maplesync sync --stat-date 2026-08-20 --stat-date 2026-08-21`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "bypass staleness checks and re-resolve identities")
	cmd.Flags().StringArrayVar(&opts.StatDates, "stat-date", nil, "ISO date to fetch stat history for (repeatable)")
	cmd.Flags().StringArrayVar(&opts.EquipDates, "equip-date", nil, "ISO date to fetch equipment for (repeatable; default latest)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "process at most N characters (0 = all)")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions, args []string) error {
	cfg, err := loadConfig(opts.RootOptions)
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

	names := args
	if len(names) == 0 {
		names, err = st.WorkSet(ctx, cfg.World)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read work set", err)
		}
	}
	if opts.Limit > 0 && len(names) > opts.Limit {
		names = names[:opts.Limit]
	}
	if len(names) == 0 {
		return formatter(cmd, opts.RootOptions).Success("work set is empty, nothing to sync")
	}

	equipDates := opts.EquipDates
	if len(equipDates) == 0 {
		equipDates = []string{""}
	}
	items := make([]syncer.WorkItem, len(names))
	for i, n := range names {
		items[i] = syncer.WorkItem{
			Name:       n,
			Force:      opts.Force,
			StatDates:  opts.StatDates,
			EquipDates: equipDates,
		}
	}

	api, err := newAPIClient(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build API client", err)
	}

	coord := syncer.New(syncer.Config{
		World:         cfg.World,
		Workers:       cfg.Sync.Workers,
		QueueCap:      cfg.Sync.QueueCap,
		Batch:         cfg.Sync.Batch,
		RefreshDays:   cfg.Sync.RefreshDays,
		SkipExisting:  cfg.Sync.SkipExisting,
		FailListLimit: cfg.Sync.FailListLimit,
	}, api, st, nil, slog.Default())

	progress := func(done, total int, name string, failed bool) {
		if opts.Verbose {
			slog.Debug("progress", "done", done, "total", total, "name", name, "failed", failed)
		}
	}

	sum, err := coord.Run(ctx, items, progress)
	if err != nil {
		return WrapExitError(ExitFailure, "sync aborted", err)
	}

	f := formatter(cmd, opts.RootOptions)
	if opts.Format == "json" {
		return f.Success(sum)
	}
	printSummary(cmd, sum)
	return nil
}

func newAPIClient(cfg *config.Config) (*nexon.Client, error) {
	return nexon.New(nexon.Options{
		APIKey:   cfg.Nexon.APIKey,
		BaseURL:  cfg.Nexon.BaseURL,
		Timeout:  time.Duration(cfg.Nexon.TimeoutSeconds) * time.Second,
		MaxConns: cfg.Nexon.MaxConns,
	})
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func printSummary(cmd *cobra.Command, sum *syncer.Summary) {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Fprintf(out, "Sync %s (%s)\n", sum.RunID, sum.World)
	fmt.Fprintf(out, "  processed:       %d/%d\n", sum.Processed, sum.Total)
	green.Fprintf(out, "  profile updates: %d\n", sum.ProfileUpdates)
	fmt.Fprintf(out, "  stat writes:     %d\n", sum.StatWrites)
	fmt.Fprintf(out, "  equip writes:    %d\n", sum.EquipWrites)
	fmt.Fprintf(out, "  intents applied: %d (skipped %d)\n", sum.IntentsApplied, sum.IntentsSkipped)
	if sum.SkippedFresh > 0 {
		fmt.Fprintf(out, "  skipped fresh:   %d\n", sum.SkippedFresh)
	}
	if sum.Unresolved > 0 {
		yellow.Fprintf(out, "  unresolved:      %d\n", sum.Unresolved)
	}

	if len(sum.ByReason) > 0 {
		red.Fprintln(out, "  failures:")
		reasons := make([]string, 0, len(sum.ByReason))
		for r := range sum.ByReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(out, "    %-24s %d\n", r, sum.ByReason[r])
		}
	}
	if len(sum.Failed) > 0 {
		fmt.Fprintf(out, "  failing: %v\n", sum.Failed)
	}
	fmt.Fprintf(out, "  elapsed: %s\n", sum.Finished.Sub(sum.Started).Round(time.Millisecond))
}
