package session

import (
	"time"

	"clover/internal/engine"
)

// Chunker feeds a prompt to the engine in batches of at most Size tokens.
type Chunker struct {
	Backend engine.Backend
	// Size defaults to DefaultChunkSize.
	Size int
	Now  func() time.Time
}

// IngestResult describes a finished (or aborted) ingestion.
type IngestResult struct {
	Tokens int
	Chunks int
	// Cursor is the next free position.
	Cursor engine.Pos
	Phase  Phase
}

// Ingest decodes tokens starting at position start, all on sequence 0. Only
// the last token of the last chunk requests logits. Each chunk's batch is
// freed as soon as its decode returns, so at most one batch is live. The
// first failing chunk aborts ingestion with an IngestError.
func (c Chunker) Ingest(ctx engine.Context, tokens []engine.Token, start engine.Pos) (IngestResult, error) {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	tr := NewSpeedTracker(c.Now)
	res := IngestResult{Cursor: start}
	last := len(tokens) - 1
	for off := 0; off < len(tokens); off += size {
		end := min(off+size, len(tokens))
		b := c.Backend.NewBatch(end - off)
		for i := off; i < end; i++ {
			b.Add(tokens[i], res.Cursor+engine.Pos(i-off), 0, i == last)
		}
		err := ctx.Decode(b)
		b.Free()
		if err != nil {
			res.Phase = tr.Stop()
			return res, IngestError{Chunk: res.Chunks, Offset: off, Err: err}
		}
		res.Chunks++
		res.Tokens += end - off
		res.Cursor += engine.Pos(end - off)
		tr.Add(end - off)
	}
	res.Phase = tr.Stop()
	return res, nil
}
