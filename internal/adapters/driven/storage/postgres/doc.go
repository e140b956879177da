// Package postgres provides a PostgreSQL-backed implementation of the
// DocumentStore and VectorIndex port interfaces.
//
// This adapter uses the pgx stdlib driver with the pgvector extension.
// Embeddings live in a vector column; nearest-neighbour search runs in
// the database via the <=> cosine-distance operator, backed by an HNSW
// index created once the corpus dimension is known.
//
// # Schema
//
// The database schema is managed through versioned migrations embedded
// from the migrations/ directory. The initial migration creates the
// pgvector extension.
//
// # Thread Safety
//
// All operations are thread-safe. MVCC gives readers the old or the new
// chunk set during a replacement transaction, never a mixture.
package postgres
