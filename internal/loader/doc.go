// Package loader reads files from disk and turns them into ingest requests.
//
// A directory walk honours .gitignore, a .docqaignore file and a built-in
// list of build, vendor and media patterns. File types are detected with
// go-enry and the bytes are handed to a NormaliserRegistry.
package loader
