// Package ingest turns uploaded documents into indexed, searchable chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/tech-vaibhav/RAG-API/internal/core"
	"github.com/tech-vaibhav/RAG-API/internal/index"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// ErrInvalidFilename reports an upload whose filename reduces to nothing
// usable after sanitization.
var ErrInvalidFilename = errors.New("invalid filename")

// Pipeline orchestrates one ingestion: persist the upload, extract its
// text, chunk, embed, and rebuild the vector index with the full new set.
// Each successful ingestion replaces the entire corpus; there is no
// incremental-add path.
type Pipeline struct {
	mu           sync.Mutex // serializes ingestions; TryLock, never blocks
	embedder     core.Embedder
	index        *index.Index
	documentsDir string
	chunkSize    int
	chunkOverlap int
}

func NewPipeline(embedder core.Embedder, ix *index.Index, documentsDir string, chunkSize, chunkOverlap int) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Pipeline{
		embedder:     embedder,
		index:        ix,
		documentsDir: documentsDir,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest processes one uploaded document. A second ingest that starts while
// one is in flight fails with core.ErrBusy. On embedding failure the
// previous index generation is left untouched.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, filename string) error {
	if !p.mu.TryLock() {
		return core.ErrBusy
	}
	defer p.mu.Unlock()

	// Strip any path components from the client-supplied filename.
	name := filepath.Base(filename)
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	if err := os.MkdirAll(p.documentsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create documents dir: %w", err)
	}
	// Same name overwrites: re-uploading a document replaces it.
	path := filepath.Join(p.documentsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to persist upload %s: %w", name, err)
	}

	text, err := ExtractText(data, name)
	if err != nil {
		return err
	}

	chunks := SplitText(text, p.chunkSize, p.chunkOverlap)
	if len(chunks) == 0 {
		log.Printf("Document %s produced no chunks; index replaced with empty corpus", name)
		return p.index.Rebuild(nil)
	}

	vectors, err := p.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", core.ErrEmbeddingFailure, len(vectors), len(chunks))
	}

	documentID := uuid.NewString()
	entries := make([]index.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = index.Entry{
			DocumentID: documentID,
			Seq:        i,
			Text:       chunk,
			Vector:     vectors[i],
		}
	}

	if err := p.index.Rebuild(entries); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	log.Printf("Ingested %s: %d chunks indexed (document %s)", name, len(entries), documentID)
	return nil
}
