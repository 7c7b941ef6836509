// Package html provides a Normaliser implementation for HTML documents.
// It extracts readable text content from HTML, stripping tags, scripts,
// styles, and decoding entities for clean retrievable content.
package html
