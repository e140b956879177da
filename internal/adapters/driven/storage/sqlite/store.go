package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure Store implements both storage interfaces.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.VectorIndex   = (*Store)(nil)
)

// Store is a SQLite-backed implementation of driven.DocumentStore and
// driven.VectorIndex sharing a single database file.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.quarry/data/index.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quarry", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_init.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// SaveDocument stores or updates a document record.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, content_hash, mod_time, status, metadata, created_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			status = excluded.status,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			indexed_at = excluded.indexed_at
	`, doc.ID, doc.Title, doc.Content, doc.ContentHash, doc.ModTime,
		string(doc.Status), string(metadataJSON), doc.CreatedAt, doc.IndexedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID, content included.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, content_hash, mod_time, status, metadata, created_at, indexed_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// GetDocumentHash returns the stored content hash for a document.
func (s *Store) GetDocumentHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT content_hash FROM documents WHERE id = ?", id).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("getting document hash: %w", err)
	}
	return hash, nil
}

// SetDocumentHash records a document's content hash.
func (s *Store) SetDocumentHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET content_hash = ? WHERE id = ?", hash, id)
	if err != nil {
		return fmt.Errorf("setting document hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateDocumentStatus moves a document through its lifecycle.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceDocument atomically swaps a document's chunks and commits its
// record in a single transaction. The existing record's created_at is
// preserved on conflict.
func (s *Store) ReplaceDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Enforce the corpus dimension before touching any rows.
	meta, err := getMetaTx(ctx, tx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if meta != nil {
		for i := range chunks {
			if len(chunks[i].Embedding) != meta.Dimensions {
				return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
					domain.ErrInvalidInput, chunks[i].ID, len(chunks[i].Embedding), meta.Dimensions)
			}
		}
	}

	// created_at deliberately missing from the update list: a
	// replacement keeps the original discovery time.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, content_hash, mod_time, status, metadata, created_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			status = excluded.status,
			metadata = excluded.metadata,
			indexed_at = excluded.indexed_at
	`, doc.ID, doc.Title, doc.Content, doc.ContentHash, doc.ModTime,
		string(doc.Status), string(metadataJSON), doc.CreatedAt, doc.IndexedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset, embedding, model_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			embeddingBlob := float32SliceToBytes(chunk.Embedding)
			if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
				chunk.Position, chunk.StartOffset, chunk.EndOffset, embeddingBlob, chunk.ModelID); err != nil {
				return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, position, start_offset, end_offset, embedding, model_id
		FROM chunks WHERE id = ?
	`, id)

	return scanChunkRow(row)
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, start_offset, end_offset, embedding, model_id
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// GetChunkRange retrieves a document's chunks with positions in
// [from, to], ordered by position.
func (s *Store) GetChunkRange(ctx context.Context, documentID string, from, to int) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, start_offset, end_offset, embedding, model_id
		FROM chunks WHERE document_id = ? AND position BETWEEN ? AND ?
		ORDER BY position
	`, documentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying chunk range: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// DeleteDocument removes a document record and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	// Chunks go with the document via ON DELETE CASCADE.
	return nil
}

// ListDocuments returns document records without content, ordered by ID.
// Zero limit means no limit.
func (s *Store) ListDocuments(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT disables the bound
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, '', content_hash, mod_time, status, metadata, created_at, indexed_at
		FROM documents
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Stats returns corpus totals.
func (s *Store) Stats(ctx context.Context) (*domain.CorpusStats, error) {
	var stats domain.CorpusStats
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents").Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks").Scan(&stats.Chunks); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	return &stats, nil
}

// GetMeta returns the recorded index metadata.
func (s *Store) GetMeta(ctx context.Context) (*domain.IndexMeta, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT model_id, dimensions FROM index_meta WHERE id = 1")

	var meta domain.IndexMeta
	if err := row.Scan(&meta.ModelID, &meta.Dimensions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning index meta: %w", err)
	}
	return &meta, nil
}

// SetMeta records the index metadata.
func (s *Store) SetMeta(ctx context.Context, meta domain.IndexMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (id, model_id, dimensions)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model_id = excluded.model_id,
			dimensions = excluded.dimensions
	`, meta.ModelID, meta.Dimensions)
	if err != nil {
		return fmt.Errorf("saving index meta: %w", err)
	}
	return nil
}

// ==================== Vector Index ====================

// UpsertChunk inserts or replaces a chunk and its vector.
func (s *Store) UpsertChunk(ctx context.Context, chunk domain.Chunk) error {
	meta, err := s.GetMeta(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if meta != nil && len(chunk.Embedding) != meta.Dimensions {
		return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
			domain.ErrInvalidInput, chunk.ID, len(chunk.Embedding), meta.Dimensions)
	}

	embeddingBlob := float32SliceToBytes(chunk.Embedding)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset, embedding, model_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			embedding = excluded.embedding,
			model_id = excluded.model_id
	`, chunk.ID, chunk.DocumentID, chunk.Content, chunk.Position,
		chunk.StartOffset, chunk.EndOffset, embeddingBlob, chunk.ModelID)

	if err != nil {
		return fmt.Errorf("upserting chunk: %w", err)
	}
	return nil
}

// DeleteChunks removes all chunks for a document.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// Search finds the k nearest chunks to the query vector by brute-force
// cosine similarity over model-filtered rows.
func (s *Store) Search(ctx context.Context, query []float32, params driven.SearchParams) ([]driven.VectorHit, error) {
	q := `
		SELECT id, document_id, position, embedding
		FROM chunks WHERE embedding IS NOT NULL
	`
	args := []any{}
	if params.ModelID != "" {
		q += " AND model_id = ?"
		args = append(args, params.ModelID)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	type scored struct {
		chunkID    string
		documentID string
		position   int
		score      float64
	}

	var candidates []scored
	for rows.Next() {
		var c scored
		var embeddingBlob []byte
		if err := rows.Scan(&c.chunkID, &c.documentID, &c.position, &embeddingBlob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}

		embedding := bytesToFloat32Slice(embeddingBlob)
		if len(embedding) == 0 {
			continue
		}
		c.score = domain.CosineSimilarity(query, embedding)
		if params.Threshold != nil && c.score < *params.Threshold {
			continue
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	// Order by similarity descending, ties by (document ID, position).
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].documentID != candidates[j].documentID {
			return candidates[i].documentID < candidates[j].documentID
		}
		return candidates[i].position < candidates[j].position
	})

	if params.K > 0 && len(candidates) > params.K {
		candidates = candidates[:params.K]
	}

	hits := make([]driven.VectorHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, driven.VectorHit{ChunkID: c.chunkID, Similarity: c.score})
	}
	return hits, nil
}

// ==================== Helper Functions ====================

// getMetaTx reads the index metadata inside a transaction.
func getMetaTx(ctx context.Context, tx *sql.Tx) (*domain.IndexMeta, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT model_id, dimensions FROM index_meta WHERE id = 1")

	var meta domain.IndexMeta
	if err := row.Scan(&meta.ModelID, &meta.Dimensions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning index meta: %w", err)
	}
	return &meta, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var status, metadataJSON string

	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ContentHash,
		&doc.ModTime, &status, &metadataJSON, &doc.CreatedAt, &doc.IndexedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if err := unmarshalMetadata(metadataJSON, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var status, metadataJSON string

	if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ContentHash,
		&doc.ModTime, &status, &metadataJSON, &doc.CreatedAt, &doc.IndexedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if err := unmarshalMetadata(metadataJSON, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// unmarshalMetadata decodes the metadata column into the document.
func unmarshalMetadata(metadataJSON string, doc *domain.Document) error {
	if metadataJSON == "" || metadataJSON == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return nil
}

// scanChunkRow scans a chunk from *sql.Row.
func scanChunkRow(row *sql.Row) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
		&chunk.StartOffset, &chunk.EndOffset, &embeddingBlob, &chunk.ModelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &chunk, nil
}

// collectChunks scans all chunk rows.
func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte

		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
			&chunk.StartOffset, &chunk.EndOffset, &embeddingBlob, &chunk.ModelID); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}
