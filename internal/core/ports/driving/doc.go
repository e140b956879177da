// Package driving defines interfaces that external actors (CLI, MCP, TUI)
// use to interact with core services. These are the "driving" ports in
// hexagonal architecture terminology - they drive the application.
//
// Three ports cover the exposed surface: Indexer (write path),
// Retriever (read path) and DocumentService (corpus management).
// Implementations of these interfaces live in internal/core/services.
package driving
