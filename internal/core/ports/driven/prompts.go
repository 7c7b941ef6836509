package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAnswerWithSources asks for an answer citing [Source N] markers.
	// The template expects two %s placeholders: context, then question.
	PromptAnswerWithSources = "answer_with_sources"

	// PromptAnswer asks for an answer without citations.
	// The template expects two %s placeholders: context, then question.
	PromptAnswer = "answer"

	// PromptSystem is the system instruction for answer generation.
	// This prompt has no format placeholders.
	PromptSystem = "system"
)

// TokenCounter estimates how many model tokens a text uses.
type TokenCounter interface {
	Count(text string) int
}
