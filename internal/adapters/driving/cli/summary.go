package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

// summaryNoteLimit bounds the notes printed per event.
const summaryNoteLimit = 200

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a patient summary",
	Long: `Prints every event of the timeline with its description and a preview of
its notes, followed by the medication totals.`,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}

	s := timelineService.Summary()

	cmd.Println("Patient Summary")
	cmd.Println("===============")
	cmd.Println()

	if len(s.Events) == 0 {
		cmd.Println("No events recorded.")
	} else {
		cmd.Printf("%d events from %s to %s\n\n", len(s.Events), s.First, s.Last)
		for _, e := range s.Events {
			cmd.Printf("%s  %s\n", e.Date, e.Title)
			if e.Description != "" {
				cmd.Printf("    %s\n", e.Description)
			}
			if notes := strings.TrimSpace(e.Notes); notes != "" {
				cmd.Printf("    Notes: %s\n", truncate(strings.Join(strings.Fields(notes), " "), summaryNoteLimit))
			}
		}
	}
	cmd.Println()

	cmd.Println("[Medications]")
	cmd.Printf("  Courses: %d\n", s.Medications)
	cmd.Printf("  Ongoing: %d\n", s.Ongoing)
	if len(s.Ingredients) > 0 {
		cmd.Printf("  Ingredients: %s\n", strings.Join(s.Ingredients, ", "))
	}
	if s.Conflicts > 0 {
		cmd.Printf("  Conflicts: %d (see 'clinitrace meds conflicts')\n", s.Conflicts)
	}
	return nil
}
