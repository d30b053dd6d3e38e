package cli

import (
	"errors"
	"fmt"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

var (
	noteAuthor  string
	noteStart   int
	noteEnd     int
	noteText    string
	noteYes     bool
	noteMarkers bool
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Review and edit clinical notes",
	Long: `Clinical notes keep track of who wrote each part of the text. Edits are
marked as human, approval marks the whole note as reviewed, and reprocessing
runs the cleanup again over the text, discarding human edits.`,
	RunE: runNoteList,
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	RunE:  runNoteList,
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteShow,
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace a range of a note",
	Long: `Replaces the characters from --start up to --end with --text. Positions
count characters from 0; --start equal to --end inserts.`,
	Args: cobra.ExactArgs(1),
	RunE: runNoteEdit,
}

var noteApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Mark a note as reviewed",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteApprove,
}

var noteReprocessCmd = &cobra.Command{
	Use:   "reprocess <id>",
	Short: "Run cleanup again, discarding human edits",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteReprocess,
}

func init() {
	for _, c := range []*cobra.Command{noteEditCmd, noteApproveCmd, noteReprocessCmd} {
		c.Flags().StringVar(&noteAuthor, "author", "", "who makes the change (default: current user)")
	}
	noteShowCmd.Flags().BoolVar(&noteMarkers, "markers", false, "mark human and approved text")
	noteEditCmd.Flags().IntVar(&noteStart, "start", 0, "first character to replace")
	noteEditCmd.Flags().IntVar(&noteEnd, "end", 0, "character after the last one to replace")
	noteEditCmd.Flags().StringVar(&noteText, "text", "", "replacement text")
	noteReprocessCmd.Flags().BoolVarP(&noteYes, "yes", "y", false, "confirm that human edits will be lost")

	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteShowCmd)
	noteCmd.AddCommand(noteEditCmd)
	noteCmd.AddCommand(noteApproveCmd)
	noteCmd.AddCommand(noteReprocessCmd)
	rootCmd.AddCommand(noteCmd)
}

func runNoteList(cmd *cobra.Command, _ []string) error {
	if editorService == nil {
		return errors.New("editor service not configured")
	}

	notes, err := editorService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	if len(notes) == 0 {
		cmd.Println("No notes.")
		return nil
	}

	for _, n := range notes {
		status := "draft"
		if n.Approved {
			status = "approved"
		}
		cmd.Printf("%-36s %-8s v%-3d %s\n", n.ID, status, n.Version, truncate(firstLine(n.Text()), 40))
	}
	return nil
}

func runNoteShow(cmd *cobra.Command, args []string) error {
	if editorService == nil {
		return errors.New("editor service not configured")
	}

	note, err := editorService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	printNote(cmd, note)
	return nil
}

func runNoteEdit(cmd *cobra.Command, args []string) error {
	if editorService == nil {
		return errors.New("editor service not configured")
	}

	note, err := editorService.ApplyEdit(cmd.Context(), args[0],
		domain.PositionRange{Start: noteStart, End: noteEnd}, noteText, authorOrDefault(noteAuthor))
	if err != nil {
		return fmt.Errorf("failed to edit note: %w", err)
	}
	cmd.Printf("Note %s updated (version %d)\n", note.ID, note.Version)
	return nil
}

func runNoteApprove(cmd *cobra.Command, args []string) error {
	if editorService == nil {
		return errors.New("editor service not configured")
	}

	note, err := editorService.Approve(cmd.Context(), args[0], authorOrDefault(noteAuthor))
	if err != nil {
		return fmt.Errorf("failed to approve note: %w", err)
	}
	cmd.Printf("Note %s approved (version %d)\n", note.ID, note.Version)
	return nil
}

func runNoteReprocess(cmd *cobra.Command, args []string) error {
	if editorService == nil {
		return errors.New("editor service not configured")
	}

	note, err := editorService.Reprocess(cmd.Context(), args[0], domain.Confirmation{
		Confirmed: noteYes,
		Author:    authorOrDefault(noteAuthor),
	})
	if errors.Is(err, domain.ErrConfirmationRequired) {
		return fmt.Errorf("reprocessing discards every human edit; rerun with --yes: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to reprocess note: %w", err)
	}
	cmd.Printf("Note %s reprocessed (version %d)\n", note.ID, note.Version)
	return nil
}

func printNote(cmd *cobra.Command, note *domain.Artifact) {
	status := "draft"
	if note.Approved {
		status = "approved"
	}
	cmd.Printf("Note %s (%s, version %d)\n\n", note.ID, status, note.Version)

	if !noteMarkers {
		cmd.Println(note.Text())
	} else {
		var b strings.Builder
		for _, s := range note.Segments {
			switch s.Origin {
			case domain.OriginHuman:
				fmt.Fprintf(&b, "[%s: %s]", s.EditedBy, s.Text)
			case domain.OriginApproved:
				fmt.Fprintf(&b, "{%s}", s.Text)
			default:
				b.WriteString(s.Text)
			}
		}
		cmd.Println(b.String())
	}

	if len(note.Audit) > 0 {
		cmd.Println()
		cmd.Println("History:")
		for _, a := range note.Audit {
			cmd.Printf("  %s  %-11s %s\n", a.At.Format("2006-01-02 15:04"), a.Action, a.Author)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func authorOrDefault(author string) string {
	if author = strings.TrimSpace(author); author != "" {
		return author
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
