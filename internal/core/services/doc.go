// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Indexer drives the write path (load, chunk, embed, store),
// Retriever the read path (embed query, rank, hydrate), and
// DocumentService explicit corpus management.
package services
