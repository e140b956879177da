package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRawDocument_Fields tests RawDocument structure fields
func TestRawDocument_Fields(t *testing.T) {
	mtime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := RawDocument{
		Path:     "manuals/intro.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Intro\n\nSome text."),
		Hash:     "deadbeef",
		ModTime:  mtime,
	}

	assert.Equal(t, "manuals/intro.md", raw.Path)
	assert.Equal(t, "text/markdown", raw.MIMEType)
	assert.Equal(t, []byte("# Intro\n\nSome text."), raw.Content)
	assert.Equal(t, "deadbeef", raw.Hash)
	assert.Equal(t, mtime, raw.ModTime)
}

// TestRawDocument_EmptyContent tests RawDocument with empty content
func TestRawDocument_EmptyContent(t *testing.T) {
	raw := RawDocument{
		Path:     "empty.txt",
		MIMEType: "text/plain",
		Content:  []byte{},
	}

	assert.NotNil(t, raw.Content)
	assert.Empty(t, raw.Content)
}

// TestChangeType_Values tests the change type constants
func TestChangeType_Values(t *testing.T) {
	assert.Equal(t, ChangeType(0), ChangeCreated)
	assert.Equal(t, ChangeType(1), ChangeUpdated)
	assert.Equal(t, ChangeType(2), ChangeDeleted)
}

// TestRawDocumentChange_DeleteCarriesPathOnly tests delete change shape
func TestRawDocumentChange_DeleteCarriesPathOnly(t *testing.T) {
	change := RawDocumentChange{
		Type:     ChangeDeleted,
		Document: RawDocument{Path: "gone.txt"},
	}

	assert.Equal(t, ChangeDeleted, change.Type)
	assert.Equal(t, "gone.txt", change.Document.Path)
	assert.Nil(t, change.Document.Content)
}
