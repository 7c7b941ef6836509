// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Produces fixed-dimension vectors. Failure to create it is fatal.
//   - Cache: Namespaced key/value cache with TTL (Redis or in-process).
//   - DocumentStore, EmbeddingStore, ProjectStore, ConversationStore: Persistence (SQLite).
//   - PostProcessorPipeline: Chunking and metadata enrichment.
//   - ConfigStore: Application configuration.
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer generation. Without it, answers are extractive.
//   - PromptStore: Custom prompt templates. Without it, built-in prompts are used.
//   - TokenCounter: Usage estimation. Without it, estimates use a character heuristic.
//   - NormaliserRegistry: File to text conversion for the ingest command.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
