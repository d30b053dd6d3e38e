package driven

// PromptStore provides access to extraction prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. These constants define the contract between
// prompt consumers and providers.
const (
	// PromptClinicalExtract pulls dated events and medications out of a
	// clinical document. The template expects a %s placeholder for the text.
	PromptClinicalExtract = "clinical_extract"

	// PromptMedicationExtract pulls medication courses out of a transcript.
	// The template expects a %s placeholder for the transcript.
	PromptMedicationExtract = "medication_extract"

	// PromptCleanup tidies OCR or transcription text without changing its
	// meaning. The template expects a %s placeholder for the text.
	PromptCleanup = "cleanup"

	// PromptIngredient resolves a medication name to its active
	// ingredient. The template expects a %s placeholder for the name.
	PromptIngredient = "ingredient"

	// PromptSystem is the system prompt for every extraction call.
	// This prompt has no format placeholders.
	PromptSystem = "system"
)
