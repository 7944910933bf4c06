package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/maplesync/internal/blocklist"
	"github.com/roach88/maplesync/internal/store"
)

// NewBlocklistCommand creates the blocklist command.
func NewBlocklistCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocklist",
		Short: "Sync the official blocklist into the local exclusion set",
		Long: `Incrementally sync the official site's daily block listings.

The sync resumes from the persisted cursor: only days after the last
fully-applied one are fetched. Blocked names stay in the database as an
exclusion set; they are never deleted, they just stop appearing in the
sync work set.

Example:
  maplesync blocklist`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocklist(cmd, rootOpts)
		},
	}
	return cmd
}

func runBlocklist(cmd *cobra.Command, opts *RootOptions) error {
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

	client, err := blocklist.NewClient(blocklist.ClientOptions{
		ServerName: cfg.Blocklist.ServerName,
		BaseURL:    cfg.Blocklist.BaseURL,
		Delay:      time.Duration(cfg.Blocklist.DelayMS) * time.Millisecond,
		Logger:     slog.Default(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build blocklist client", err)
	}

	sync := blocklist.NewSyncer(blocklist.Config{
		World:      cfg.World,
		ServerName: cfg.Blocklist.ServerName,
		FirstStart: cfg.Blocklist.FirstStart,
	}, client, st, nil, slog.Default())

	ctx, cancel := signalContext(cmd)
	defer cancel()

	progress := func(done, total int, label string) {
		slog.Info("fetching day", "done", done, "total", total, "date", label)
	}

	res, err := sync.Run(ctx, progress)
	if err != nil {
		return WrapExitError(ExitFailure, "blocklist sync failed", err)
	}

	f := formatter(cmd, opts)
	if opts.Format == "json" {
		return f.Success(res)
	}
	printBlocklistResult(cmd, res)
	return nil
}

func printBlocklistResult(cmd *cobra.Command, res *blocklist.Result) {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)

	if !res.Ran {
		fmt.Fprintf(out, "Nothing to do: %s\n", res.Reason)
		return
	}
	bold.Fprintf(out, "Blocklist %s (%s)\n", res.World, res.Server)
	fmt.Fprintf(out, "  range:   %s .. %s (%d days)\n", res.Start, res.End, res.Days)
	fmt.Fprintf(out, "  scanned: %d records\n", res.Scanned)
	fmt.Fprintf(out, "  applied: %d entries\n", res.Applied)
}
