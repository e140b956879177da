// Package filesystem loads documents from a local directory tree.
//
// The loader walks a source root and streams every regular file as a
// RawDocument carrying a slash-separated relative path, a SHA-256
// content hash and an extension-derived MIME type. Hidden path
// components are skipped and doublestar glob patterns filter the walk.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

// Loader streams documents from a directory tree.
type Loader struct {
	root    string
	include []string
	exclude []string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates a loader rooted at the given directory. Patterns use
// doublestar syntax matched against slash-separated relative paths;
// an empty include list matches everything.
func New(root string, include, exclude []string) *Loader {
	if len(include) == 0 {
		include = []string{"**/*"}
	}
	return &Loader{
		root:    root,
		include: include,
		exclude: exclude,
	}
}

// Root returns the source root the loader scans.
func (l *Loader) Root() string {
	return l.root
}

// Validate checks the source root exists and is a readable directory.
func (l *Loader) Validate(ctx context.Context) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()

	if closed {
		return domain.ErrLoaderClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return checkRoot(l.root)
}

// Load streams every matching file under the source root. Files that
// cannot be read are reported as *domain.LoadError on the error channel
// and the walk continues. A completed scan sends a LoadComplete
// sentinel before both channels close.
func (l *Loader) Load(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := l.Validate(ctx); err != nil {
			errs <- err
			return
		}

		streamed, err := l.walk(ctx, docs, errs)
		if err != nil {
			// An aborted scan sends no completion sentinel.
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				sendError(ctx, errs, fmt.Errorf("walking %s: %w", l.root, err))
			}
			return
		}

		sendError(ctx, errs, &driven.LoadComplete{Documents: streamed})
	}()

	return docs, errs
}

// walk visits every entry under the root in lexical order, so repeated
// scans of an unchanged tree yield the same stream.
func (l *Loader) walk(ctx context.Context, docs chan<- domain.RawDocument, errs chan<- error) (int, error) {
	streamed := 0

	err := filepath.WalkDir(l.root, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// The entry itself could not be read. Report and move on.
			if !sendError(ctx, errs, &domain.LoadError{Path: l.relPath(path), Err: err}) {
				return ctx.Err()
			}
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel := l.relPath(path)

		if entry.IsDir() {
			if path != l.root && isHidden(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if isHidden(rel) || !l.matches(rel) {
			return nil
		}

		doc, err := l.readDocument(path, rel)
		if err != nil {
			if !sendError(ctx, errs, &domain.LoadError{Path: rel, Err: err}) {
				return ctx.Err()
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case docs <- doc:
			streamed++
		}
		return nil
	})

	return streamed, err
}

// Watch listens for filesystem changes under the source root.
// Only one watch may be active per loader.
func (l *Loader) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, domain.ErrLoaderClosed
	}
	if l.watcher != nil {
		return nil, fmt.Errorf("watch already active for %s", l.root)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := checkRoot(l.root); err != nil {
		return nil, fmt.Errorf("source root error: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	// fsnotify does not watch recursively. The root and every visible
	// subdirectory join the watch up front; directories created later
	// are added as their create events arrive.
	if err := watchTree(watcher, l.root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", l.root, err)
	}

	l.watcher = watcher

	changes := make(chan domain.RawDocumentChange)
	go l.watchLoop(ctx, watcher, changes)

	return changes, nil
}

func (l *Loader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- domain.RawDocumentChange) {
	defer func() {
		l.mu.Lock()
		if l.watcher == watcher {
			l.watcher = nil
		}
		l.mu.Unlock()
		_ = watcher.Close()
		close(changes)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			change := l.handleEvent(watcher, event)
			if change == nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case changes <- *change:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Debug("Watch error on %s: %v", l.root, err)
		}
	}
}

// handleEvent translates a filesystem event into a document change.
// Returns nil for events that should not reach the consumer.
func (l *Loader) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) *domain.RawDocumentChange {
	rel, err := filepath.Rel(l.root, event.Name)
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)

	if isHidden(rel) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			// New directories must join the watch themselves.
			_ = watcher.Add(event.Name)
			return nil
		}
		return l.changeFor(domain.ChangeCreated, event.Name, rel)

	case event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return l.changeFor(domain.ChangeUpdated, event.Name, rel)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !l.matches(rel) {
			return nil
		}
		// The file is gone; only the path identifies it.
		return &domain.RawDocumentChange{
			Type:     domain.ChangeDeleted,
			Document: domain.RawDocument{Path: rel},
		}

	default:
		return nil
	}
}

func (l *Loader) changeFor(changeType domain.ChangeType, path, rel string) *domain.RawDocumentChange {
	if !l.matches(rel) {
		return nil
	}
	doc, err := l.readDocument(path, rel)
	if err != nil {
		return nil
	}
	return &domain.RawDocumentChange{Type: changeType, Document: doc}
}

// Close releases resources. Close is idempotent.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.watcher != nil {
		err := l.watcher.Close()
		l.watcher = nil
		return err
	}
	return nil
}

// readDocument reads a file into a RawDocument. The relative path
// doubles as the document identifier; the hash is computed from the
// bytes actually read.
func (l *Loader) readDocument(path, rel string) (domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.RawDocument{}, err
	}

	sum := sha256.Sum256(content)

	return domain.RawDocument{
		Path:     rel,
		MIMEType: detectMIMEType(path),
		Content:  content,
		Hash:     hex.EncodeToString(sum[:]),
		ModTime:  info.ModTime(),
	}, nil
}

// matches reports whether a relative path passes the glob filters.
// Exclude patterns win over include patterns.
func (l *Loader) matches(rel string) bool {
	for _, pattern := range l.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return false
		}
	}
	for _, pattern := range l.include {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (l *Loader) relPath(path string) string {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// checkRoot verifies the root is an existing readable directory.
func checkRoot(root string) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("source root %s does not exist", root)
	}
	if err != nil {
		return fmt.Errorf("stat source root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source root %s is not a directory", root)
	}

	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("source root %s is not readable: %w", root, err)
	}
	_ = f.Close()

	return nil
}

// watchTree adds the root and every visible subdirectory to the watch.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// isHidden reports whether any component of the path is dot-prefixed.
// The current and parent directory references do not count as hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// sendError delivers an error unless the context ends first.
// Returns false if the send was abandoned.
func sendError(ctx context.Context, errs chan<- error, err error) bool {
	select {
	case <-ctx.Done():
		return false
	case errs <- err:
		return true
	}
}
