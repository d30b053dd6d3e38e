package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

var (
	medName       string
	medIngredient string
	medStart      string
	medEnd        string
	medDosage     string
	medRoute      string
	medNotes      string
)

var medsCmd = &cobra.Command{
	Use:     "meds",
	Aliases: []string{"medications"},
	Short:   "Manage the medication ledger",
	RunE:    runMedsList,
}

var medsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active medication courses",
	RunE:  runMedsList,
}

var medsOverlappingCmd = &cobra.Command{
	Use:   "overlapping <start> [end]",
	Short: "List courses active during a period",
	Long: `Lists the courses that share at least one day with the period. Without
an end date the period is a single day.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMedsOverlapping,
}

var medsCloseCmd = &cobra.Command{
	Use:   "close <id> <end>",
	Short: "Set the end date of an ongoing course",
	Args:  cobra.ExactArgs(2),
	RunE:  runMedsClose,
}

var medsArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Remove a course from the ledger, keeping it for audit",
	Args:  cobra.ExactArgs(1),
	RunE:  runMedsArchive,
}

var medsConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List overlapping courses that need review",
	RunE:  runMedsConflicts,
}

var medsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a course by hand",
	RunE:  runMedsAdd,
}

func init() {
	medsAddCmd.Flags().StringVar(&medName, "name", "", "prescribed name")
	medsAddCmd.Flags().StringVar(&medIngredient, "ingredient", "", "active ingredient")
	medsAddCmd.Flags().StringVar(&medStart, "start", "", "first day (required)")
	medsAddCmd.Flags().StringVar(&medEnd, "end", "", "last day; empty means ongoing")
	medsAddCmd.Flags().StringVar(&medDosage, "dosage", "", "dosage")
	medsAddCmd.Flags().StringVar(&medRoute, "route", "", "route of administration")
	medsAddCmd.Flags().StringVar(&medNotes, "notes", "", "notes")

	medsCmd.AddCommand(medsListCmd)
	medsCmd.AddCommand(medsOverlappingCmd)
	medsCmd.AddCommand(medsCloseCmd)
	medsCmd.AddCommand(medsArchiveCmd)
	medsCmd.AddCommand(medsConflictsCmd)
	medsCmd.AddCommand(medsAddCmd)
	rootCmd.AddCommand(medsCmd)
}

func runMedsList(cmd *cobra.Command, _ []string) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}

	meds := timelineService.Record().ActiveMedications()
	if len(meds) == 0 {
		cmd.Println("No medications recorded.")
		return nil
	}
	printMedications(cmd, meds)
	return nil
}

func runMedsOverlapping(cmd *cobra.Command, args []string) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}

	start, err := dateParser.Parse(args[0])
	if err != nil {
		return err
	}
	end := start
	if len(args) == 2 {
		if end, err = dateParser.Parse(args[1]); err != nil {
			return err
		}
	}
	period := domain.DateRange{Start: start, End: end}
	if err := period.Validate(); err != nil {
		return err
	}

	meds := timelineService.MedicationsOverlapping(period)
	if len(meds) == 0 {
		cmd.Printf("No medications during %s.\n", period)
		return nil
	}
	printMedications(cmd, meds)
	return nil
}

func runMedsClose(cmd *cobra.Command, args []string) error {
	if ledgerService == nil {
		return errors.New("ledger service not configured")
	}

	end, err := dateParser.Parse(args[1])
	if err != nil {
		return err
	}
	med, err := ledgerService.CloseMedication(cmd.Context(), args[0], end)
	if err != nil {
		return fmt.Errorf("failed to close course: %w", err)
	}
	cmd.Printf("Closed %s: %s\n", med.DisplayName(), med.Period)
	return nil
}

func runMedsArchive(cmd *cobra.Command, args []string) error {
	if ledgerService == nil {
		return errors.New("ledger service not configured")
	}

	if err := ledgerService.ArchiveMedication(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to archive course: %w", err)
	}
	cmd.Printf("Archived %s\n", args[0])
	return nil
}

func runMedsConflicts(cmd *cobra.Command, _ []string) error {
	if ledgerService == nil {
		return errors.New("ledger service not configured")
	}

	conflicts := ledgerService.Conflicts()
	if len(conflicts) == 0 {
		cmd.Println("No conflicts.")
		return nil
	}
	printConflicts(cmd, conflicts)
	return nil
}

func runMedsAdd(cmd *cobra.Command, _ []string) error {
	if ledgerService == nil {
		return errors.New("ledger service not configured")
	}
	if medStart == "" {
		return errors.New("--start is required")
	}
	if strings.TrimSpace(medName) == "" && strings.TrimSpace(medIngredient) == "" {
		return errors.New("--name or --ingredient is required")
	}

	start, err := dateParser.Parse(medStart)
	if err != nil {
		return err
	}
	period := domain.DateRange{Start: start}
	if medEnd != "" {
		if period.End, err = dateParser.Parse(medEnd); err != nil {
			return err
		}
	}

	med, conflicts, err := ledgerService.AddMedication(cmd.Context(), domain.Medication{
		Name:             strings.TrimSpace(medName),
		ActiveIngredient: strings.TrimSpace(medIngredient),
		Period:           period,
		Dosage:           medDosage,
		Route:            medRoute,
		Notes:            medNotes,
	})
	if err != nil {
		return fmt.Errorf("failed to add course: %w", err)
	}
	cmd.Printf("Added %s (%s), id %s\n", med.DisplayName(), med.Period, med.ID)
	if len(conflicts) > 0 {
		cmd.Println()
		cmd.Println("Overlaps with existing courses:")
		printConflicts(cmd, conflicts)
	}
	return nil
}

func printMedications(cmd *cobra.Command, meds []domain.Medication) {
	for _, m := range meds {
		period := m.Period.String()
		if m.Period.IsOpen() {
			period += " (ongoing)"
		}
		cmd.Printf("%-20s %s\n", truncate(m.DisplayName(), 20), period)
		var details []string
		if m.ActiveIngredient != "" && m.ActiveIngredient != m.Name {
			details = append(details, m.ActiveIngredient)
		}
		if m.Dosage != "" {
			details = append(details, m.Dosage)
		}
		if m.Route != "" {
			details = append(details, m.Route)
		}
		if len(details) > 0 {
			cmd.Printf("    %s\n", strings.Join(details, ", "))
		}
		cmd.Printf("    id %s, cycle %s, %s\n", m.ID, m.CycleID, m.Provenance)
	}
}

func printConflicts(cmd *cobra.Command, conflicts []domain.Conflict) {
	for _, c := range conflicts {
		cmd.Printf("- %s\n", c.Error())
		if c.SourceFile != "" && len(c.RecordIDs) > 0 {
			cmd.Printf("    courses: %s\n", strings.Join(c.RecordIDs, ", "))
		}
	}
}
