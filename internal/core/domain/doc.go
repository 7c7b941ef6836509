// Package domain defines the core business entities for docqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Ingested text with typed source metadata
//   - Chunk: A sentence-aligned segment of a document
//   - Embedding: The vector stored for a chunk
//   - QueryRequest / QueryResponse: A grounded question and its answer
//   - Project, Conversation, Message: Scoping and chat history
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
