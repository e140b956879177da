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
//   - Loader: Streams raw documents from the source root
//   - Normaliser: Transforms raw documents into plain text
//   - NormaliserRegistry: Selects the appropriate normaliser
//   - PostProcessorPipeline: Produces chunks (chunker and friends)
//   - DocumentStore: Document, chunk and index-metadata persistence
//   - VectorIndex: Vector storage and nearest-neighbour search
//   - EmbeddingService: Generates vector embeddings
//   - ConfigStore: Application configuration
//
// DocumentStore and VectorIndex are usually two faces of the same
// storage backend so that a document replacement commits chunks,
// vectors and the content hash in one transaction.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, loader, or normaliser package
package driven
