// Package metadata provides post-processors that attach source-specific
// positional metadata to chunks: page numbers for paginated sources,
// section and heading path for structured pages, and time ranges for
// transcripts.
//
// Each processor ignores documents of other source types and passes the
// chunks through unchanged.
package metadata
