package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// progressInterval is how often a terminal progress line is redrawn.
const progressInterval = 200 * time.Millisecond

var (
	ingestTUI    bool
	ingestDetach bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <files...>",
	Short: "Extract and reconcile medical documents",
	Long: `Submits each file for ingestion: the file is copied to the workspace,
its facts are extracted and then merged into the patient record.

Supported files: PDF, Word, HTML, Markdown and text documents, photos
(JPEG, PNG, WebP, HEIC) and recordings (MP3, M4A, WAV, MP4, MOV).

Files are processed in parallel. Submitting a file again retries it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestTUI, "tui", false, "show a live progress dashboard")
	ingestCmd.Flags().BoolVar(&ingestDetach, "detach", false, "queue the files and return immediately")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	ctx := cmd.Context()

	var ids []string
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", arg, err)
		}
		job, err := ingestionService.Submit(ctx, domain.Upload{
			FileID: domain.UploadID(path),
			Name:   filepath.Base(path),
			Path:   path,
		})
		if errors.Is(err, domain.ErrJobInProgress) {
			cmd.Printf("%s is already being processed\n", filepath.Base(path))
			ids = append(ids, domain.UploadID(path))
			continue
		}
		if err != nil {
			return fmt.Errorf("submit %s: %w", arg, err)
		}
		cmd.Printf("Queued %s (attempt %d)\n", job.Name, job.Attempt)
		ids = append(ids, job.FileID)
	}

	if ingestDetach {
		cmd.Println("Use 'clinitrace jobs' to follow progress.")
		return nil
	}

	if ingestTUI {
		if err := runIngestTUI(ctx, ids); err != nil {
			return err
		}
	} else if isTerminal(cmd) {
		if err := followProgress(ctx, cmd, ids); err != nil {
			return err
		}
	}

	return reportJobs(ctx, cmd, ids)
}

func runIngestTUI(ctx context.Context, ids []string) error {
	app, err := tui.NewApp(&tui.Ports{
		Ingestion: ingestionService,
		Timeline:  timelineService,
	}, tui.WithWatch(ids...), tui.WithExitWhenDone())
	if err != nil {
		return err
	}
	if err := app.WithContext(ctx).Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return app.Err()
}

// followProgress redraws one status line until every job is terminal.
func followProgress(ctx context.Context, cmd *cobra.Command, ids []string) error {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		line, settled := progressLine(ctx, ids)
		cmd.Printf("\r%-78s", line)
		if settled {
			cmd.Println()
			return nil
		}
		select {
		case <-ctx.Done():
			cmd.Println()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func progressLine(ctx context.Context, ids []string) (string, bool) {
	settled := true
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		job, err := ingestionService.Status(ctx, id)
		if err != nil {
			continue
		}
		if !job.Stage.IsTerminal() {
			settled = false
		}
		parts = append(parts, fmt.Sprintf("%s %s %3.0f%%", truncate(job.Name, 16), job.Stage, job.Progress()*100))
	}
	return strings.Join(parts, " | "), settled
}

// reportJobs waits for each job, archives it and prints the outcome.
func reportJobs(ctx context.Context, cmd *cobra.Command, ids []string) error {
	failed := 0
	for _, id := range ids {
		if _, err := ingestionService.Await(ctx, id); err != nil {
			return fmt.Errorf("wait for %s: %w", id, err)
		}
		job, err := ingestionService.Consume(ctx, id)
		if err != nil {
			return fmt.Errorf("archive %s: %w", id, err)
		}
		printJobOutcome(cmd, job)
		if job.Stage != domain.StageDone {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files did not complete", failed, len(ids))
	}
	return nil
}

func printJobOutcome(cmd *cobra.Command, job *domain.IngestionJob) {
	switch job.Stage {
	case domain.StageDone:
		cmd.Printf("✓ %s: %d facts", job.Name, job.Candidates)
		if n := len(job.Conflicts); n > 0 {
			cmd.Printf(", %d need review", n)
		}
		cmd.Println()
		for _, c := range job.Conflicts {
			cmd.Printf("    - %s\n", c.Error())
		}
	case domain.StageFailed:
		cmd.Printf("✗ %s: failed while %s: %s\n", job.Name, job.FailedStage, job.Error)
	default:
		cmd.Printf("- %s: %s\n", job.Name, job.Stage)
	}
}

func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
