// Package normalisers turns raw file bytes into documents ready for
// ingestion. Each subpackage implements the Normaliser interface for a
// family of MIME types; Registry dispatches to the highest priority match.
package normalisers
