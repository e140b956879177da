package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.Indexer = (*Indexer)(nil)

// DefaultWorkers is the default document-level parallelism.
const DefaultWorkers = 4

// IndexerConfig tunes an Indexer.
type IndexerConfig struct {
	// DefaultRoot is used when IndexOptions.SourceRoot is empty.
	DefaultRoot string

	// Workers bounds document-level parallelism. Zero means DefaultWorkers.
	Workers int

	// DocumentPrefix is prepended to chunk text before embedding
	// (e.g., "passage: " for e5-style models). Never applied twice.
	DocumentPrefix string
}

// Indexer coordinates corpus indexing: it drives documents from the
// loader through normalisation, chunking and embedding into the store.
// Documents are processed in parallel on a bounded worker pool; chunks
// within one document stay sequential to preserve position order.
type Indexer struct {
	factory  driven.LoaderFactory
	registry driven.NormaliserRegistry
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	docStore driven.DocumentStore
	cfg      IndexerConfig

	// Status tracking
	mu      sync.RWMutex
	running bool
	status  *domain.IndexStatus
}

// NewIndexer creates a new indexer.
func NewIndexer(
	factory driven.LoaderFactory,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	docStore driven.DocumentStore,
	cfg IndexerConfig,
) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Indexer{
		factory:  factory,
		registry: registry,
		pipeline: pipeline,
		embedder: embedder,
		docStore: docStore,
		cfg:      cfg,
	}
}

// runState accumulates a run's report and status across workers.
type runState struct {
	mu     sync.Mutex
	report *domain.IndexReport
	status *domain.IndexStatus
	abort  error
}

func (s *runState) recordIndexed(chunks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.DocumentsIndexed++
	s.report.ChunksWritten += chunks
	s.status.DocumentsProcessed++
	s.status.ChunksWritten += chunks
}

func (s *runState) recordSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.DocumentsSkipped++
	s.status.DocumentsProcessed++
}

func (s *runState) recordFailed(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.DocumentsFailed++
	s.report.Errors = append(s.report.Errors, fmt.Sprintf("%s: %v", path, err))
	s.status.DocumentsProcessed++
	s.status.ErrorCount++
}

func (s *runState) setAbort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abort == nil {
		s.abort = err
	}
}

func (s *runState) abortErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abort
}

// Index runs the full pipeline over the source root.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (i *Indexer) Index(ctx context.Context, opts domain.IndexOptions) (*domain.IndexReport, error) {
	// 1. Resolve the source root
	root := opts.SourceRoot
	if root == "" {
		root = i.cfg.DefaultRoot
	}
	if root == "" {
		return nil, fmt.Errorf("%w: no source root configured", domain.ErrInvalidInput)
	}

	// 2. One run at a time
	report, status, err := i.beginRun()
	if err != nil {
		return nil, err
	}
	defer i.endRun()

	// 3. Create and validate the loader
	loader, err := i.factory.Create(root)
	if err != nil {
		return report, fmt.Errorf("create loader: %w", err)
	}
	defer loader.Close()

	if err := loader.Validate(ctx); err != nil {
		return report, fmt.Errorf("validate source root: %w", err)
	}

	// 4. Reconcile embedding model identity with the stored corpus
	if err := i.ensureMeta(ctx, opts.Incremental); err != nil {
		return report, err
	}

	logger.Info("Starting index run %s (root: %s, incremental: %v)", report.RunID, root, opts.Incremental)

	// 5. Stream documents through the worker pool
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := &runState{report: report, status: status}
	jobs := make(chan domain.RawDocument)

	var wg sync.WaitGroup
	for w := 0; w < i.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				i.handleOne(runCtx, cancel, &raw, opts, st)
			}
		}()
	}

	docsCh, errsCh := loader.Load(runCtx)
	feedErr := i.feed(runCtx, jobs, docsCh, errsCh, st)
	close(jobs)
	wg.Wait()

	// 6. Finalise the report
	report.Duration = time.Since(report.StartedAt)
	i.finishStatus()

	if abort := st.abortErr(); abort != nil {
		logger.Warn("Index run %s aborted: %v", report.RunID, abort)
		return report, abort
	}
	if feedErr != nil {
		return report, feedErr
	}

	logger.Info("Index run %s complete: %d indexed, %d skipped, %d failed, %d chunks",
		report.RunID, report.DocumentsIndexed, report.DocumentsSkipped,
		report.DocumentsFailed, report.ChunksWritten)
	return report, nil
}

// feed moves loader output into the worker pool. Per-file load errors
// are recorded as failed documents; any other loader error ends the run.
//
//nolint:gocognit // Orchestration function coordinating multiple async operations
func (i *Indexer) feed(
	ctx context.Context,
	jobs chan<- domain.RawDocument,
	docsCh <-chan domain.RawDocument,
	errsCh <-chan error,
	st *runState,
) error {
	complete := false

	for docsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if _, done := driven.IsLoadComplete(err); done {
				complete = true
				continue
			}
			var loadErr *domain.LoadError
			if errors.As(err, &loadErr) {
				logger.Debug("Skipping %s: %v", loadErr.Path, loadErr.Err)
				st.recordFailed(loadErr.Path, loadErr.Err)
				continue
			}
			return fmt.Errorf("loader error: %w", err)

		case raw, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			select {
			case jobs <- raw:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if !complete {
		return fmt.Errorf("loader error: scan ended without completion")
	}
	return nil
}

// handleOne classifies the outcome of one document. An unavailable
// embedder cancels the remaining run: every document after it would
// fail the same way.
func (i *Indexer) handleOne(
	ctx context.Context,
	cancel context.CancelFunc,
	raw *domain.RawDocument,
	opts domain.IndexOptions,
	st *runState,
) {
	chunks, skipped, err := i.processOne(ctx, raw, opts)
	switch {
	case err == nil && skipped:
		logger.Debug("Unchanged: %s", raw.Path)
		st.recordSkipped()
	case err == nil:
		logger.Debug("Indexed %s (%d chunks)", raw.Path, chunks)
		st.recordIndexed(chunks)
	case errors.Is(err, domain.ErrEmbedderUnavailable):
		st.recordFailed(raw.Path, err)
		st.setAbort(domain.ErrEmbedderUnavailable)
		cancel()
	case errors.Is(err, context.Canceled):
		// Cancelled mid-document: nothing was committed for it.
	default:
		logger.Debug("Failed to index %s: %v", raw.Path, err)
		st.recordFailed(raw.Path, err)
	}
}

// processOne handles the per-document pipeline. All-or-nothing: the
// store commit replaces chunks and records the content hash in one
// transaction, and nothing is written when any step fails.
//
//nolint:gocognit,gocyclo // Pipeline orchestration with sequential steps
func (i *Indexer) processOne(
	ctx context.Context,
	raw *domain.RawDocument,
	opts domain.IndexOptions,
) (int, bool, error) {
	// 1. COMPARE CONTENT HASH
	storedHash, err := i.docStore.GetDocumentHash(ctx, raw.Path)
	isNew := errors.Is(err, domain.ErrNotFound)
	if err != nil && !isNew {
		return 0, false, fmt.Errorf("get document hash: %w", err)
	}
	if opts.Incremental && !isNew && storedHash == raw.Hash {
		return 0, true, nil
	}

	// 2. MARK THE DOCUMENT AS IN FLIGHT
	// A crash from here on leaves it flagged for re-processing.
	if isNew {
		discovered := &domain.Document{
			ID:        raw.Path,
			Status:    domain.StatusUnprocessed,
			ModTime:   raw.ModTime,
			CreatedAt: time.Now(),
		}
		if err := i.docStore.SaveDocument(ctx, discovered); err != nil {
			return 0, false, fmt.Errorf("save document: %w", err)
		}
	} else if err := i.docStore.UpdateDocumentStatus(ctx, raw.Path, domain.StatusStale); err != nil {
		return 0, false, fmt.Errorf("mark document stale: %w", err)
	}

	// 3. NORMALISE (produces Document with Content)
	result, err := i.registry.Normalise(ctx, raw)
	if err != nil {
		return 0, false, &domain.LoadError{Path: raw.Path, Err: err}
	}
	doc := result.Document

	// 4. RUN POST-PROCESSOR PIPELINE (produces Chunks)
	chunks, err := i.pipeline.Process(ctx, &doc)
	if err != nil {
		return 0, false, fmt.Errorf("chunk: %w", err)
	}

	// 5. GENERATE EMBEDDINGS, sequential within the document
	modelID := i.embedder.ModelName()
	for idx := range chunks {
		text := applyEmbedPrefix(i.cfg.DocumentPrefix, chunks[idx].Content)
		text = truncateForEmbedding(text, i.embedder.MaxInputLength())

		embedding, err := i.embedder.Embed(ctx, text)
		if err != nil {
			return 0, false, &domain.EmbedError{ChunkID: chunks[idx].ID, Err: err}
		}
		chunks[idx].Embedding = embedding
		chunks[idx].ModelID = modelID
	}

	// 6. COMMIT: replace chunks and record the hash atomically
	doc.ContentHash = raw.Hash
	doc.ModTime = raw.ModTime
	doc.Status = domain.StatusProcessed
	doc.IndexedAt = time.Now()
	if err := i.docStore.ReplaceDocument(ctx, &doc, chunks); err != nil {
		return 0, false, &domain.StoreError{Op: "replace document", Err: err}
	}

	return len(chunks), false, nil
}

// ensureMeta records or verifies the corpus embedding parameters.
// An incremental run against a corpus embedded with a different model
// is refused; a full run re-embeds everything and rewrites the record.
func (i *Indexer) ensureMeta(ctx context.Context, incremental bool) error {
	current := domain.IndexMeta{
		ModelID:    i.embedder.ModelName(),
		Dimensions: i.embedder.Dimensions(),
	}

	meta, err := i.docStore.GetMeta(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return i.docStore.SetMeta(ctx, current)
	}
	if err != nil {
		return fmt.Errorf("get index meta: %w", err)
	}

	if meta.ModelID == current.ModelID && meta.Dimensions == current.Dimensions {
		return nil
	}
	if incremental {
		return fmt.Errorf("%w: corpus indexed with %s (%dd), configured %s (%dd); run a full index to switch",
			domain.ErrConfigMismatch, meta.ModelID, meta.Dimensions, current.ModelID, current.Dimensions)
	}
	return i.docStore.SetMeta(ctx, current)
}

// Watch re-indexes documents as the source root changes. Deletions are
// mirrored into the store; watch is an explicit, opt-in mode.
func (i *Indexer) Watch(ctx context.Context, opts domain.IndexOptions) error {
	root := opts.SourceRoot
	if root == "" {
		root = i.cfg.DefaultRoot
	}
	if root == "" {
		return fmt.Errorf("%w: no source root configured", domain.ErrInvalidInput)
	}

	loader, err := i.factory.Create(root)
	if err != nil {
		return fmt.Errorf("create loader: %w", err)
	}
	defer loader.Close()

	if err := loader.Validate(ctx); err != nil {
		return fmt.Errorf("validate source root: %w", err)
	}
	if err := i.ensureMeta(ctx, true); err != nil {
		return err
	}

	changes, err := loader.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch source root: %w", err)
	}

	logger.Info("Watching %s for changes", root)

	incremental := domain.IndexOptions{SourceRoot: root, Incremental: true}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case change, ok := <-changes:
			if !ok {
				return nil
			}
			i.handleChange(ctx, &change, incremental)
		}
	}
}

// handleChange applies a single watch event.
func (i *Indexer) handleChange(ctx context.Context, change *domain.RawDocumentChange, opts domain.IndexOptions) {
	path := change.Document.Path

	switch change.Type {
	case domain.ChangeCreated, domain.ChangeUpdated:
		chunks, skipped, err := i.processOne(ctx, &change.Document, opts)
		switch {
		case err != nil:
			logger.Warn("Failed to re-index %s: %v", path, err)
		case skipped:
			logger.Debug("Unchanged: %s", path)
		default:
			logger.Info("Re-indexed %s (%d chunks)", path, chunks)
		}

	case domain.ChangeDeleted:
		if err := i.docStore.DeleteDocument(ctx, path); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Failed to remove %s: %v", path, err)
			return
		}
		logger.Info("Removed %s", path)
	}
}

// Status returns progress for the current or most recent run.
func (i *Indexer) Status(_ context.Context) (*domain.IndexStatus, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.status == nil {
		return &domain.IndexStatus{}, nil
	}
	// Return a copy to avoid race conditions
	copied := *i.status
	return &copied, nil
}

// beginRun claims the single run slot and seeds report and status.
func (i *Indexer) beginRun() (*domain.IndexReport, *domain.IndexStatus, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return nil, nil, domain.ErrIndexInProgress
	}
	i.running = true

	report := &domain.IndexReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	i.status = &domain.IndexStatus{RunID: report.RunID, Running: true}
	return report, i.status, nil
}

func (i *Indexer) endRun() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = false
}

func (i *Indexer) finishStatus() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status != nil {
		i.status.Running = false
	}
}

// applyEmbedPrefix prepends an embedding prefix unless the text already
// carries it (case-insensitive).
func applyEmbedPrefix(prefix, text string) string {
	if prefix == "" {
		return text
	}
	if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
		return text
	}
	return prefix + text
}

// truncateForEmbedding cuts text to at most max bytes without splitting
// a multi-byte rune. Zero or negative max means no limit.
func truncateForEmbedding(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
