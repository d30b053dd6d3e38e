package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/clinitrace/internal/adapters/driving/inbox"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

var (
	watchSettle  time.Duration
	watchInitial bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest files dropped into a directory",
	Long: `Watches a directory and ingests every supported file that appears or
changes in it, once the file has stopped changing. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", inbox.DefaultSettle, "how long a file must be unchanged")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "also ingest the files already in the directory")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	opts := []inbox.Option{
		inbox.WithSettle(watchSettle),
		inbox.WithNotify(func(path string, job domain.IngestionJob, err error) {
			if err == nil {
				cmd.Printf("Queued %s\n", job.Name)
			}
		}),
	}
	if watchInitial {
		opts = append(opts, inbox.WithInitialScan())
	}
	w, err := inbox.New(args[0], ingestionService, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Watching is long-running, so maintenance tasks run alongside it.
	if scheduler != nil {
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				cmd.PrintErrf("scheduler stopped: %v\n", err)
			}
		}()
		defer func() { _ = scheduler.Stop() }()
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", w.Dir())
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	cmd.Println("Stopped.")
	return nil
}
