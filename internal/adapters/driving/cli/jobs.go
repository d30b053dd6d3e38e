package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show ingestion jobs",
	Long: `Lists the ingestion jobs tracked by this process. Finished jobs are
archived; use 'jobs history' to see them.`,
	RunE: runJobsList,
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history [file]",
	Short: "Show archived jobs, most recent first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJobsHistory,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <file>",
	Short: "Cancel a job at its next stage boundary",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Reload the record and lift an ingestion halt",
	Long: `Ingestion halts when the stored record fails validation. After the
record has been repaired, resume reloads it and accepts uploads again.`,
	RunE: runJobsResume,
}

func init() {
	jobsHistoryCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "maximum number of jobs")
	jobsCmd.AddCommand(jobsHistoryCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsResumeCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	jobs := ingestionService.List(cmd.Context())
	if len(jobs) == 0 {
		cmd.Println("No active jobs.")
		return nil
	}

	cmd.Printf("%-24s %-12s %8s %s\n", "FILE", "STAGE", "PROGRESS", "DETAIL")
	for _, j := range jobs {
		cmd.Printf("%-24s %-12s %7.0f%% %s\n", truncate(j.Name, 24), j.Stage, j.Progress()*100, jobDetail(j))
	}
	return nil
}

func runJobsHistory(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	var fileID string
	if len(args) == 1 {
		fileID = resolveFileID(args[0])
	}

	jobs, err := ingestionService.History(cmd.Context(), fileID, jobsLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(jobs) == 0 {
		cmd.Println("No archived jobs.")
		return nil
	}

	for _, j := range jobs {
		cmd.Printf("%s  %-24s #%d %-10s %s\n",
			j.FinishedAt.Format("2006-01-02 15:04"), truncate(j.Name, 24), j.Attempt, j.Stage, jobDetail(j))
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestionService.Cancel(cmd.Context(), resolveFileID(args[0])); err != nil {
		return fmt.Errorf("failed to cancel: %w", err)
	}
	cmd.Printf("Cancellation requested for %s\n", args[0])
	return nil
}

func runJobsResume(cmd *cobra.Command, _ []string) error {
	if ledgerService == nil {
		return errors.New("ledger service not configured")
	}

	if ledgerService.Halted() == nil {
		cmd.Println("Ingestion is not halted.")
		return nil
	}
	if err := ledgerService.Resume(cmd.Context()); err != nil {
		return fmt.Errorf("record still invalid: %w", err)
	}
	cmd.Println("Record reloaded; ingestion resumed.")
	return nil
}

func jobDetail(j domain.IngestionJob) string {
	switch j.Stage {
	case domain.StageFailed:
		return fmt.Sprintf("%s: %s", j.FailedStage, j.Error)
	case domain.StageDone:
		if n := len(j.Conflicts); n > 0 {
			return fmt.Sprintf("%d facts, %d conflicts", j.Candidates, n)
		}
		return fmt.Sprintf("%d facts", j.Candidates)
	default:
		return ""
	}
}

// resolveFileID maps a path to its upload ID. Anything that is not an
// existing file is taken as an ID already.
func resolveFileID(arg string) string {
	if _, err := os.Stat(arg); err != nil {
		return arg
	}
	path, err := filepath.Abs(arg)
	if err != nil {
		return arg
	}
	return domain.UploadID(path)
}
