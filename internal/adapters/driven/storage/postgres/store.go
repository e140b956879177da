package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure Store implements both storage interfaces.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.VectorIndex   = (*Store)(nil)
)

// Store is a PostgreSQL-backed implementation of driven.DocumentStore
// and driven.VectorIndex using the pgvector extension.
type Store struct {
	db *sql.DB
}

// NewStore connects to PostgreSQL with the given DSN and runs pending
// migrations. The connected role needs rights to create the pgvector
// extension on first run.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: postgres DSN is empty", domain.ErrInvalidInput)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs all pending migrations. Files hold one statement per
// semicolon: the pgx extended protocol rejects multi-statement strings.
func (s *Store) migrate(ctx context.Context, fsys embed.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		for _, stmt := range strings.Split(string(content), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("executing migration %s: %w", name, err)
			}
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
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
		FROM documents WHERE id = $1
	`, id)

	return scanDocument(row)
}

// GetDocumentHash returns the stored content hash for a document.
func (s *Store) GetDocumentHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT content_hash FROM documents WHERE id = $1", id).Scan(&hash)
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
		"UPDATE documents SET content_hash = $1 WHERE id = $2", hash, id)
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
		"UPDATE documents SET status = $1 WHERE id = $2", string(status), id)
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
	meta, err := getMetaRow(tx.QueryRowContext(ctx,
		"SELECT model_id, dimensions FROM index_meta WHERE id = 1"))
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = $1", doc.ID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset, embedding, model_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
				chunk.Position, chunk.StartOffset, chunk.EndOffset,
				embeddingValue(chunk.Embedding), chunk.ModelID); err != nil {
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
		SELECT id, document_id, content, position, start_offset, end_offset, embedding::text, model_id
		FROM chunks WHERE id = $1
	`, id)

	return scanChunkRow(row)
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, start_offset, end_offset, embedding::text, model_id
		FROM chunks WHERE document_id = $1
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
		SELECT id, document_id, content, position, start_offset, end_offset, embedding::text, model_id
		FROM chunks WHERE document_id = $1 AND position BETWEEN $2 AND $3
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
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
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
	q := `
		SELECT id, title, '', content_hash, mod_time, status, metadata, created_at, indexed_at
		FROM documents
		ORDER BY id
		OFFSET $1
	`
	args := []any{offset}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
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
	return getMetaRow(s.db.QueryRowContext(ctx,
		"SELECT model_id, dimensions FROM index_meta WHERE id = 1"))
}

// SetMeta records the index metadata and ensures the HNSW index exists
// for the now-known dimension. The vector column itself is untyped; the
// index is built over a cast expression.
func (s *Store) SetMeta(ctx context.Context, meta domain.IndexMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (id, model_id, dimensions)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			model_id = excluded.model_id,
			dimensions = excluded.dimensions
	`, meta.ModelID, meta.Dimensions)
	if err != nil {
		return fmt.Errorf("saving index meta: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DROP INDEX IF EXISTS idx_chunks_embedding_hnsw"); err != nil {
		return fmt.Errorf("dropping stale vector index: %w", err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE INDEX idx_chunks_embedding_hnsw ON chunks USING hnsw ((embedding::vector(%d)) vector_cosine_ops)",
		meta.Dimensions))
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset, embedding, model_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			embedding = excluded.embedding,
			model_id = excluded.model_id
	`, chunk.ID, chunk.DocumentID, chunk.Content, chunk.Position,
		chunk.StartOffset, chunk.EndOffset, embeddingValue(chunk.Embedding), chunk.ModelID)

	if err != nil {
		return fmt.Errorf("upserting chunk: %w", err)
	}
	return nil
}

// DeleteChunks removes all chunks for a document.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// Search finds the k nearest chunks to the query vector via the <=>
// cosine-distance operator. Ties are broken in the ORDER BY clause.
func (s *Store) Search(ctx context.Context, query []float32, params driven.SearchParams) ([]driven.VectorHit, error) {
	meta, err := s.GetMeta(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		// No commits yet, nothing to search.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// The dimension is interpolated into the cast so the expression
	// matches the HNSW index; it is our own recorded integer.
	distance := fmt.Sprintf("embedding::vector(%d) <=> $1", meta.Dimensions)

	q := fmt.Sprintf(`
		SELECT id, 1 - (%s) AS similarity
		FROM chunks
		WHERE embedding IS NOT NULL
	`, distance)
	args := []any{pgvector.NewVector(query)}

	if params.ModelID != "" {
		args = append(args, params.ModelID)
		q += fmt.Sprintf(" AND model_id = $%d", len(args))
	}
	if params.Threshold != nil {
		args = append(args, *params.Threshold)
		q += fmt.Sprintf(" AND 1 - (%s) >= $%d", distance, len(args))
	}

	q += fmt.Sprintf(" ORDER BY %s ASC, document_id ASC, position ASC", distance)

	if params.K > 0 {
		args = append(args, params.K)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.VectorHit
		if err := rows.Scan(&hit.ChunkID, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("scanning vector hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector hits: %w", err)
	}

	return hits, nil
}

// ==================== Helper Functions ====================

// embeddingValue maps an embedding to its column value. Empty
// embeddings are stored as NULL: pgvector rejects zero-dimension
// vectors.
func embeddingValue(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// getMetaRow scans an index_meta row.
func getMetaRow(row *sql.Row) (*domain.IndexMeta, error) {
	var meta domain.IndexMeta
	if err := row.Scan(&meta.ModelID, &meta.Dimensions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning index meta: %w", err)
	}
	return &meta, nil
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
	var embedding sql.NullString

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
		&chunk.StartOffset, &chunk.EndOffset, &embedding, &chunk.ModelID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	if err := parseEmbedding(embedding, &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// collectChunks scans all chunk rows.
func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embedding sql.NullString

		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
			&chunk.StartOffset, &chunk.EndOffset, &embedding, &chunk.ModelID); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		if err := parseEmbedding(embedding, &chunk); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// parseEmbedding decodes a nullable vector column into the chunk.
func parseEmbedding(embedding sql.NullString, chunk *domain.Chunk) error {
	if !embedding.Valid {
		return nil
	}
	var vec pgvector.Vector
	if err := vec.Parse(embedding.String); err != nil {
		return fmt.Errorf("parsing embedding for chunk %s: %w", chunk.ID, err)
	}
	chunk.Embedding = vec.Slice()
	return nil
}
