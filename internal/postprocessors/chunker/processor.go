// Package chunker provides a boundary-aware text chunking processor.
package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// Processor splits document content into chunks of roughly the target
// size. It prefers paragraph boundaries, falls back to sentence
// boundaries inside oversized paragraphs, and hard-splits only when a
// single sentence exceeds the target. Consecutive chunks overlap by
// repeating the trailing content of the predecessor.
//
// Chunks carry byte offsets into the document content and tile it
// completely: every byte belongs to at least one chunk.
type Processor struct {
	cfg domain.ChunkingConfig
}

// New creates a new chunker processor. The configuration is validated
// up front; an overlap equal to or larger than the size is rejected.
func New(cfg domain.ChunkingConfig) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg}, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		// Empty content produces no chunks
		return nil, nil
	}

	var spans []span
	if len(content) < p.cfg.MinSize {
		// Too short to split: the whole document is one chunk
		spans = []span{{start: 0, end: len(content)}}
	} else {
		spans = p.assemble(content, p.units(content))
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, domain.Chunk{
			ID:          domain.ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			Content:     content[sp.start:sp.end],
			Position:    i,
			StartOffset: sp.start,
			EndOffset:   sp.end,
		})
	}
	return chunks, nil
}

// span is a half-open [start, end) byte range into the document content.
type span struct {
	start int
	end   int
}

// units breaks content into indivisible spans no longer than the target
// size. Spans tile the content: each one ends where the next begins.
func (p *Processor) units(content string) []span {
	var units []span
	for _, para := range paragraphSpans(content) {
		if para.end-para.start <= p.cfg.Size {
			units = append(units, para)
			continue
		}
		for _, sent := range sentenceSpans(content[para.start:para.end], para.start) {
			if sent.end-sent.start <= p.cfg.Size {
				units = append(units, sent)
				continue
			}
			units = append(units, hardSpans(content, sent.start, sent.end, p.cfg.Size)...)
		}
	}
	return units
}

// assemble packs units into chunks of at most the target size, starting
// each chunk after the first at the predecessor's end minus the overlap.
// A chunk always takes at least one unit, so a unit at the size limit
// still lands somewhere.
func (p *Processor) assemble(content string, units []span) []span {
	var chunks []span
	start := units[0].start
	cursor := start
	taken := 0

	for _, unit := range units {
		if taken > 0 && unit.end-start > p.cfg.Size {
			chunks = append(chunks, span{start: start, end: cursor})
			next := cursor - p.cfg.Overlap
			if next < start {
				next = start
			}
			// The overlap is a byte count; nudge forward off a rune tail
			for next < cursor && !utf8.RuneStart(content[next]) {
				next++
			}
			start = next
			taken = 0
		}
		cursor = unit.end
		taken++
	}
	chunks = append(chunks, span{start: start, end: cursor})

	// A tail below the minimum folds into its predecessor.
	if n := len(chunks); n > 1 && chunks[n-1].end-chunks[n-1].start < p.cfg.MinSize {
		chunks[n-2].end = chunks[n-1].end
		chunks = chunks[:n-1]
	}
	return chunks
}

// paragraphSpans splits content at blank lines. Each span extends
// through its trailing newlines to the start of the next paragraph.
func paragraphSpans(content string) []span {
	var spans []span
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] != '\n' || i+1 >= len(content) || content[i+1] != '\n' {
			continue
		}
		j := i
		for j < len(content) && (content[j] == '\n' || content[j] == '\r') {
			j++
		}
		spans = append(spans, span{start: start, end: j})
		start = j
		i = j - 1
	}
	if start < len(content) {
		spans = append(spans, span{start: start, end: len(content)})
	}
	return spans
}

// sentenceSpans splits content at common sentence terminators. The base
// offset shifts spans back into document coordinates.
func sentenceSpans(content string, base int) []span {
	var spans []span
	start := 0
	for i := 0; i < len(content); i++ {
		c := content[i]
		if c != '.' && c != '!' && c != '?' && c != '\n' {
			continue
		}
		j := i + 1
		for j < len(content) && (content[j] == '.' || content[j] == '!' || content[j] == '?') {
			j++
		}
		for j < len(content) && (content[j] == ' ' || content[j] == '\t' || content[j] == '\n') {
			j++
		}
		spans = append(spans, span{start: base + start, end: base + j})
		start = j
		i = j - 1
	}
	if start < len(content) {
		spans = append(spans, span{start: base + start, end: base + len(content)})
	}
	return spans
}

// hardSpans cuts [start, end) into pieces of at most size bytes without
// splitting a multi-byte rune.
func hardSpans(content string, start, end, size int) []span {
	var spans []span
	for s := start; s < end; {
		e := s + size
		if e >= end {
			spans = append(spans, span{start: s, end: end})
			break
		}
		for e > s && !utf8.RuneStart(content[e]) {
			e--
		}
		if e == s {
			// A single rune wider than the size limit: take it whole
			_, n := utf8.DecodeRuneInString(content[s:])
			e = s + n
		}
		spans = append(spans, span{start: s, end: e})
		s = e
	}
	return spans
}
