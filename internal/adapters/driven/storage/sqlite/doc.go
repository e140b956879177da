// Package sqlite provides a SQLite-backed implementation of the
// DocumentStore and VectorIndex port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. Documents,
// chunks and the corpus index metadata live in a single database file;
// embeddings are stored as little-endian float32 BLOBs and scored in Go.
//
// # Schema
//
// The database schema is managed through versioned migrations embedded
// from the migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.quarry/data/index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode: a replacement transaction is invisible
// to readers until it commits, so they observe the old chunk set or the
// new one, never a mixture.
package sqlite
