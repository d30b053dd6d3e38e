// Package cli provides the clinitrace command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
	"github.com/custodia-labs/clinitrace/internal/logger"
	"github.com/custodia-labs/clinitrace/internal/normalisers/dates"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

var verbose bool

// Services wired by main.
var (
	settingsService  driving.SettingsService
	timelineService  driving.TimelineService
	ledgerService    driving.LedgerService
	ingestionService driving.IngestionService
	editorService    driving.EditorService
	scheduler        driving.Scheduler

	dateParser = dates.New()
)

var rootCmd = &cobra.Command{
	Use:   "clinitrace",
	Short: "Build a clinical timeline from medical documents",
	Long: `clinitrace extracts dated clinical events and medication courses from
exam reports, discharge letters, photos and recordings, and reconciles them
into one patient record you can browse as a timeline.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
}

// Services holds the driving ports the commands use. Nil fields leave the
// matching commands unavailable.
type Services struct {
	Settings  driving.SettingsService
	Timeline  driving.TimelineService
	Ledger    driving.LedgerService
	Ingestion driving.IngestionService
	Editor    driving.EditorService
	Scheduler driving.Scheduler

	// Dates parses dates typed on the command line. Nil keeps the default
	// pivot.
	Dates *dates.Normaliser
}

// SetServices installs the services for every command.
func SetServices(s Services) {
	settingsService = s.Settings
	timelineService = s.Timeline
	ledgerService = s.Ledger
	ingestionService = s.Ingestion
	editorService = s.Editor
	scheduler = s.Scheduler
	if s.Dates != nil {
		dateParser = s.Dates
	}
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
