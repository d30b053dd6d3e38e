package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the extraction provider, ingestion and storage.

Use subcommands to change a single setting or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Change one setting",
	Long: `Change one setting.

Keys:
  provider      extraction provider (openai, gemini); prompts for the API key
  model         extraction model
  api-key       provider API key; prompts when no value is given
  workers       number of files processed at once
  threshold     similarity in (0,1] above which same-day events are merged
  pivot         two-digit years up to this value are 20yy (-1 = next year)
  storage       sqlite or postgres
  postgres-url  connection string for the postgres backend`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the extraction provider step by step.`,
	RunE:  runSettingsWizard,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Extraction]")
	cmd.Printf("  Provider: %s\n", settings.Extraction.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Extraction.Model)
	if settings.Extraction.Provider == domain.AIProviderOpenAI {
		cmd.Printf("  Transcription: %s\n", settings.Extraction.TranscriptionModel)
	}
	if settings.Extraction.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Extraction.BaseURL)
	}
	switch {
	case settings.Extraction.APIKey != "":
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Extraction.APIKey))
	case !settings.Extraction.Provider.RequiresAPIKey():
		cmd.Printf("  API Key: (not needed)\n")
	default:
		cmd.Printf("  API Key: (not set)\n")
	}
	cmd.Printf("  Requests/minute: %s\n", limitOrOff(settings.Extraction.RequestsPerMinute))
	cmd.Printf("  Cache size: %s\n", limitOrOff(settings.Extraction.CacheSize))
	cmd.Println()

	cmd.Println("[Ingestion]")
	cmd.Printf("  Workers: %d\n", settings.Ingest.Workers)
	if settings.Ingest.MaxFileSize > 0 {
		cmd.Printf("  Max file size: %d MB\n", settings.Ingest.MaxFileSize>>20)
	}
	cmd.Printf("  Create notes: %t\n", settings.Ingest.CreateNotes)
	cmd.Printf("  History retention: %s\n", settings.Ingest.HistoryRetention)
	cmd.Println()

	cmd.Println("[Reconciliation]")
	cmd.Printf("  Similarity threshold: %.2f\n", settings.Reconcile.SimilarityThreshold)
	if settings.Dates.Pivot < 0 {
		cmd.Printf("  Two-digit year pivot: next year\n")
	} else {
		cmd.Printf("  Two-digit year pivot: %02d\n", settings.Dates.Pivot)
	}
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	if settings.Storage.Backend == domain.StoragePostgres {
		cmd.Printf("  URL: %s\n", maskURL(settings.Storage.PostgresURL))
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'clinitrace settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := strings.ToLower(args[0])
	value := ""
	if len(args) == 2 {
		value = strings.TrimSpace(args[1])
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	switch key {
	case "provider":
		provider := domain.AIProvider(strings.ToLower(value))
		if !provider.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
		apiKey := settings.Extraction.APIKey
		if provider != settings.Extraction.Provider {
			apiKey = ""
		}
		if apiKey == "" && provider.RequiresAPIKey() {
			cmd.Printf("API key for %s: ", provider.Description())
			apiKey = readPassword()
			cmd.Println()
		}
		err = settingsService.SetExtractionProvider(provider, "", apiKey)

	case "model":
		if value == "" {
			return errors.New("model name required")
		}
		err = settingsService.SetExtractionProvider(settings.Extraction.Provider, value, settings.Extraction.APIKey)

	case "api-key":
		if value == "" {
			cmd.Print("API key: ")
			value = readPassword()
			cmd.Println()
		}
		err = settingsService.SetExtractionProvider(settings.Extraction.Provider, settings.Extraction.Model, value)

	case "workers":
		var n int
		if n, err = strconv.Atoi(value); err != nil {
			return fmt.Errorf("%w: workers must be a number", domain.ErrInvalidInput)
		}
		err = settingsService.SetWorkers(n)

	case "threshold":
		var f float64
		if f, err = strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%w: threshold must be a number", domain.ErrInvalidInput)
		}
		err = settingsService.SetSimilarityThreshold(f)

	case "pivot":
		var n int
		if n, err = strconv.Atoi(value); err != nil {
			return fmt.Errorf("%w: pivot must be a number", domain.ErrInvalidInput)
		}
		err = settingsService.SetDatePivot(n)

	case "storage":
		err = settingsService.SetStorage(domain.StorageBackend(strings.ToLower(value)), settings.Storage.PostgresURL)

	case "postgres-url":
		err = settingsService.SetStorage(domain.StoragePostgres, value)

	default:
		return fmt.Errorf("%w: unknown setting %q (keys: %s)", domain.ErrInvalidInput, key, strings.Join(settingKeys(), ", "))
	}
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	cmd.Printf("Updated %s.\n", key)
	return nil
}

func settingKeys() []string {
	keys := []string{"provider", "model", "api-key", "workers", "threshold", "pivot", "storage", "postgres-url"}
	sort.Strings(keys)
	return keys
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("Clinitrace Settings Wizard")
	cmd.Println("==========================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	current, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	// Step 1: Provider
	cmd.Println("Step 1: Select Extraction Provider")
	cmd.Println("----------------------------------")
	providers := domain.AllAIProviders()
	defaultIdx := 1
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
		if p == current.Extraction.Provider {
			defaultIdx = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", defaultIdx)
	provider := providers[parseChoice(readLine(reader), len(providers), defaultIdx)-1]

	// Step 2: Model
	defaultModel := domain.DefaultExtractionModels()[provider]
	if provider == current.Extraction.Provider && current.Extraction.Model != "" {
		defaultModel = current.Extraction.Model
	}
	cmd.Printf("\nModel [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Step 3: API key, or the server address for local providers
	apiKey, baseURL := "", ""
	if provider == current.Extraction.Provider {
		apiKey, baseURL = current.Extraction.APIKey, current.Extraction.BaseURL
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("\nAPI key [%s] (enter to keep): ", maskAPIKey(apiKey))
		} else {
			cmd.Print("\nAPI key: ")
		}
		if input := readLine(reader); input != "" {
			apiKey = input
		}
		if apiKey == "" {
			return fmt.Errorf("%w: an API key is required", domain.ErrInvalidInput)
		}
	} else {
		apiKey = ""
		cmd.Printf("\nServer URL [%s]: ", valueOr(baseURL, "default"))
		if input := readLine(reader); input != "" {
			baseURL = input
		}
	}

	if err := settingsService.SetExtractionProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	if baseURL != "" && !provider.RequiresAPIKey() {
		saved, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		saved.Extraction.BaseURL = baseURL
		if err := settingsService.Save(saved); err != nil {
			return fmt.Errorf("failed to save server URL: %w", err)
		}
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateExtractionConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("extraction configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	// Step 4: Workers
	cmd.Printf("\nFiles processed at once [%d]: ", current.Ingest.Workers)
	if input := readLine(reader); input != "" {
		n, err := strconv.Atoi(input)
		if err != nil {
			return fmt.Errorf("%w: workers must be a number", domain.ErrInvalidInput)
		}
		if err := settingsService.SetWorkers(n); err != nil {
			return fmt.Errorf("failed to save workers: %w", err)
		}
	}

	cmd.Println()
	cmd.Printf("Saved: %s, model %s.\n", provider.Description(), model)
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func limitOrOff(n int) string {
	if n <= 0 {
		return "off"
	}
	return strconv.Itoa(n)
}

// maskURL hides the password of a connection string.
func maskURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	creds := url[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":****"
	}
	return url[:scheme+3] + creds + url[at:]
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
