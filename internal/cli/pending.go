package cli

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/maplesync/internal/store"
)

// PendingOptions holds flags for the pending command.
type PendingOptions struct {
	*RootOptions
	Limit  int
	Clear  bool
	Reason string
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show or clear the cross-run failure list",
		Long: `List characters whose sync steps keep failing, ordered by attempt count,
so a specific failure class can be re-driven without rescanning everything.

Example:
  maplesync pending
  maplesync pending --clear --reason resolve:not_found`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "show at most N entries (0 = all)")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "clear entries instead of listing them")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "restrict --clear to one failure reason")

	return cmd
}

func runPending(cmd *cobra.Command, opts *PendingOptions) error {
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

	f := formatter(cmd, opts.RootOptions)

	if opts.Clear {
		n, err := st.ClearFailures(ctx, cfg.World, opts.Reason)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to clear failures", err)
		}
		return f.Success(fmt.Sprintf("cleared %d entries", n))
	}

	failures, err := st.PendingFailures(ctx, cfg.World, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read failures", err)
	}
	if opts.Format == "json" {
		return f.Success(failures)
	}

	out := cmd.OutOrStdout()
	if len(failures) == 0 {
		fmt.Fprintln(out, "no pending failures")
		return nil
	}
	color.New(color.Bold).Fprintf(out, "%-20s %-24s %8s  %s\n", "NAME", "REASON", "ATTEMPTS", "LAST ERROR")
	for _, fl := range failures {
		fmt.Fprintf(out, "%-20s %-24s %8d  %s\n", fl.Name, fl.Reason, fl.Attempts, fl.LastError)
	}
	return nil
}
