package domain

import "time"

// RawDocument represents opaque bytes read by a loader.
// It is the loader's output before normalisation.
type RawDocument struct {
	// Path is the slash-separated path relative to the source root.
	// It doubles as the document identifier.
	Path string

	// MIMEType is the detected content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Hash is the hex SHA-256 of Content, computed at read time.
	Hash string

	// ModTime is the file's last-modified timestamp.
	ModTime time.Time
}

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// RawDocumentChange represents a change event from a loader watch.
type RawDocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Document is the affected document. For ChangeDeleted only the
	// Path is populated.
	Document RawDocument
}
