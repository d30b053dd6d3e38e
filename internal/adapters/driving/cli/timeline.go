package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

var (
	timelineWindow   int
	timelineBackward bool
	exportFormat     string
	exportOutput     string

	eventDate        string
	eventTitle       string
	eventDescription string
	eventNotes       string
	eventKeywords    []string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Browse the clinical timeline",
	Long: `Navigate the reconciled record by date. Dates can be written as
2023-03-12, 12/03/2023 or "12 de março de 2023".`,
	RunE: runTimelineList,
}

var timelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every date with events",
	RunE:  runTimelineList,
}

var timelineShowCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show the events of a date",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimelineShow,
}

var timelineJumpCmd = &cobra.Command{
	Use:   "jump <date>",
	Short: "Show the nearest date with events",
	Long: `Finds the nearest date on or after the given date, or on or before it
with --backward, and shows its events.`,
	Args: cobra.ExactArgs(1),
	RunE: runTimelineJump,
}

var timelineNextCmd = &cobra.Command{
	Use:   "next [date]",
	Short: "Show the date after the given one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimelineStep(cmd, args, domain.Forward)
	},
}

var timelinePrevCmd = &cobra.Command{
	Use:   "prev <date>",
	Short: "Show the date before the given one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimelineStep(cmd, args, domain.Backward)
	},
}

var timelineExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the record as YAML or JSON",
	RunE:  runTimelineExport,
}

var timelineAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an event by hand",
	RunE:  runTimelineAdd,
}

func init() {
	timelineShowCmd.Flags().IntVarP(&timelineWindow, "window", "w", 0, "also show events up to N days away")
	timelineJumpCmd.Flags().BoolVarP(&timelineBackward, "backward", "b", false, "search towards earlier dates")
	timelineExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "output format: yaml or json")
	timelineExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to a file instead of stdout")

	timelineAddCmd.Flags().StringVar(&eventDate, "date", "", "event date (required)")
	timelineAddCmd.Flags().StringVar(&eventTitle, "title", "", "short title (required)")
	timelineAddCmd.Flags().StringVar(&eventDescription, "description", "", "finding")
	timelineAddCmd.Flags().StringVar(&eventNotes, "notes", "", "clinical narrative")
	timelineAddCmd.Flags().StringSliceVar(&eventKeywords, "keyword", nil, "keyword (repeatable)")

	timelineCmd.AddCommand(timelineListCmd)
	timelineCmd.AddCommand(timelineShowCmd)
	timelineCmd.AddCommand(timelineJumpCmd)
	timelineCmd.AddCommand(timelineNextCmd)
	timelineCmd.AddCommand(timelinePrevCmd)
	timelineCmd.AddCommand(timelineExportCmd)
	timelineCmd.AddCommand(timelineAddCmd)
	rootCmd.AddCommand(timelineCmd)
}

func runTimelineList(cmd *cobra.Command, _ []string) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}

	dates := timelineService.Dates()
	if len(dates) == 0 {
		cmd.Println("The timeline is empty. Use 'clinitrace ingest' to add documents.")
		return nil
	}

	for _, d := range dates {
		events := timelineService.EventsOn(d)
		titles := make([]string, 0, len(events))
		for _, e := range events {
			titles = append(titles, e.Title)
		}
		cmd.Printf("%s  %s\n", d, truncate(strings.Join(titles, "; "), 64))
	}
	cmd.Printf("\n%d dates\n", len(dates))
	return nil
}

func runTimelineShow(cmd *cobra.Command, args []string) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}
	date, err := dateParser.Parse(args[0])
	if err != nil {
		return err
	}

	if timelineWindow > 0 {
		events := timelineService.EventsWithin(date, timelineWindow)
		if len(events) == 0 {
			cmd.Printf("No events within %d days of %s.\n", timelineWindow, date)
			return nil
		}
		cmd.Printf("Events within %d days of %s\n\n", timelineWindow, date)
		printEvents(cmd, events, true)
		return nil
	}

	events := timelineService.EventsOn(date)
	if len(events) == 0 {
		cmd.Printf("No events on %s.\n", date)
		return nil
	}
	printDate(cmd, timelineService.Cursor(date), events)
	return nil
}

func runTimelineJump(cmd *cobra.Command, args []string) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}
	target, err := dateParser.Parse(args[0])
	if err != nil {
		return err
	}

	dir := domain.Forward
	if timelineBackward {
		dir = domain.Backward
	}
	found, ok := timelineService.Jump(target, dir)
	if !ok {
		cmd.Printf("No events %s %s.\n", directionWord(dir), target)
		return nil
	}
	printDate(cmd, timelineService.Cursor(found), timelineService.EventsOn(found))
	return nil
}

func runTimelineStep(cmd *cobra.Command, args []string, dir domain.Direction) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}

	var from domain.Date
	if len(args) == 1 {
		d, err := dateParser.Parse(args[0])
		if err != nil {
			return err
		}
		from = d
	}

	cursor := timelineService.Cursor(from)
	moved := timelineService.Next(cursor)
	if dir == domain.Backward {
		moved = timelineService.Prev(cursor)
	}
	if !moved.HasSelection() {
		cmd.Println("Give a date to step back from.")
		return nil
	}
	if moved.Selected == cursor.Selected {
		cmd.Printf("No events %s %s.\n", directionWord(dir), cursor.Selected)
		return nil
	}
	printDate(cmd, moved, timelineService.EventsOn(moved.Selected))
	return nil
}

func runTimelineAdd(cmd *cobra.Command, _ []string) error {
	if ledgerService == nil {
		return errors.New("ledger service not configured")
	}
	if eventDate == "" || strings.TrimSpace(eventTitle) == "" {
		return errors.New("--date and --title are required")
	}
	date, err := dateParser.Parse(eventDate)
	if err != nil {
		return err
	}

	event, err := ledgerService.AddEvent(cmd.Context(), domain.MedicalEvent{
		Date:        date,
		Title:       strings.TrimSpace(eventTitle),
		Description: eventDescription,
		Notes:       eventNotes,
		Keywords:    eventKeywords,
	})
	if err != nil {
		return fmt.Errorf("failed to add event: %w", err)
	}
	cmd.Printf("Added event %s on %s\n", event.ID, event.Date)
	return nil
}

// ==================== Output ====================

func printDate(cmd *cobra.Command, cursor domain.TimelineCursor, events []domain.MedicalEvent) {
	nav := ""
	if cursor.HasPrev() {
		nav += "◀ "
	}
	nav += cursor.Selected.String()
	if cursor.HasNext() {
		nav += " ▶"
	}
	cmd.Println(nav)
	cmd.Println(strings.Repeat("─", len([]rune(nav))))
	printEvents(cmd, events, false)
}

func printEvents(cmd *cobra.Command, events []domain.MedicalEvent, withDate bool) {
	for _, e := range events {
		prefix := "•"
		if withDate {
			prefix = e.Date.String()
		}
		cmd.Printf("%s %s", prefix, e.Title)
		if e.Provenance == domain.ProvenanceHuman {
			cmd.Print(" (edited)")
		}
		cmd.Println()
		if e.Description != "" {
			cmd.Printf("    %s\n", e.Description)
		}
		if len(e.Keywords) > 0 {
			cmd.Printf("    keywords: %s\n", strings.Join(e.Keywords, ", "))
		}
		cmd.Printf("    sources: %d, confidence %.2f, id %s\n", len(e.SourceFiles), e.Confidence, e.ID)
	}
}

func directionWord(dir domain.Direction) string {
	if dir == domain.Backward {
		return "before"
	}
	return "after"
}

// ==================== Export ====================

type exportedEvent struct {
	ID          string   `yaml:"id" json:"id"`
	Date        string   `yaml:"date" json:"date"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Notes       string   `yaml:"notes,omitempty" json:"notes,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Sources     []string `yaml:"sources" json:"sources"`
	Confidence  float64  `yaml:"confidence" json:"confidence"`
	Provenance  string   `yaml:"provenance" json:"provenance"`
}

type exportedMedication struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	ActiveIngredient string   `yaml:"active_ingredient,omitempty" json:"active_ingredient,omitempty"`
	Start            string   `yaml:"start" json:"start"`
	End              string   `yaml:"end,omitempty" json:"end,omitempty"`
	Dosage           string   `yaml:"dosage,omitempty" json:"dosage,omitempty"`
	Route            string   `yaml:"route,omitempty" json:"route,omitempty"`
	Cycle            string   `yaml:"cycle,omitempty" json:"cycle,omitempty"`
	Sources          []string `yaml:"sources" json:"sources"`
	Confidence       float64  `yaml:"confidence" json:"confidence"`
	Provenance       string   `yaml:"provenance" json:"provenance"`
}

type exportedRecord struct {
	Events      []exportedEvent      `yaml:"events" json:"events"`
	Medications []exportedMedication `yaml:"medications" json:"medications"`
}

func exportRecord(rec domain.Record) exportedRecord {
	out := exportedRecord{
		Events:      []exportedEvent{},
		Medications: []exportedMedication{},
	}
	for _, e := range rec.ActiveEvents() {
		out.Events = append(out.Events, exportedEvent{
			ID:          e.ID,
			Date:        e.Date.String(),
			Title:       e.Title,
			Description: e.Description,
			Notes:       e.Notes,
			Keywords:    e.Keywords,
			Sources:     e.SourceFiles,
			Confidence:  e.Confidence,
			Provenance:  string(e.Provenance),
		})
	}
	for _, m := range rec.ActiveMedications() {
		out.Medications = append(out.Medications, exportedMedication{
			ID:               m.ID,
			Name:             m.DisplayName(),
			ActiveIngredient: m.ActiveIngredient,
			Start:            m.Period.Start.String(),
			End:              m.Period.End.String(),
			Dosage:           m.Dosage,
			Route:            m.Route,
			Cycle:            m.CycleID,
			Sources:          m.SourceFiles,
			Confidence:       m.Confidence,
			Provenance:       string(m.Provenance),
		})
	}
	return out
}

func runTimelineExport(cmd *cobra.Command, _ []string) error {
	if timelineService == nil {
		return errors.New("timeline service not configured")
	}

	doc := exportRecord(timelineService.Record())

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(exportFormat) {
	case "yaml", "yml":
		data, err = yaml.Marshal(doc)
	case "json":
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("%w: unknown format %q (use yaml or json)", domain.ErrInvalidInput, exportFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	if exportOutput != "" {
		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutput, err)
		}
		cmd.Printf("Exported %d events and %d medications to %s\n",
			len(doc.Events), len(doc.Medications), exportOutput)
		return nil
	}

	cmd.Print(string(data))
	return nil
}
