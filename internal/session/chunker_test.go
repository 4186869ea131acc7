package session

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"clover/internal/engine"
	"clover/internal/engine/enginetest"
)

func newFakeContext(t *testing.T, b *enginetest.Backend) engine.Context {
	t.Helper()
	m, err := b.LoadModel("fake.gguf", engine.DefaultModelParams())
	if err != nil {
		t.Fatal(err)
	}
	c, err := m.NewContext(engine.ContextParams{ContextSize: 4096})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func seqTokens(n int) []engine.Token {
	out := make([]engine.Token, n)
	for i := range out {
		out[i] = engine.Token(1000 + i)
	}
	return out
}

func TestChunker_ChunkSizeDoesNotChangeSemantics(t *testing.T) {
	tokens := seqTokens(1200)
	const start = engine.Pos(7)
	var reference []enginetest.Entry
	for _, size := range []int{1, 7, 512, 1199, 1200, 5000} {
		b := enginetest.New()
		ctx := newFakeContext(t, b)
		res, err := Chunker{Backend: b, Size: size, Now: stepClock(time.Millisecond)}.Ingest(ctx, tokens, start)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if res.Cursor != start+engine.Pos(len(tokens)) || res.Tokens != len(tokens) {
			t.Fatalf("size %d: cursor=%d tokens=%d", size, res.Cursor, res.Tokens)
		}
		wantChunks := (len(tokens) + size - 1) / size
		decodes := b.Decodes()
		if res.Chunks != wantChunks || len(decodes) != wantChunks {
			t.Fatalf("size %d: chunks=%d decodes=%d want %d", size, res.Chunks, len(decodes), wantChunks)
		}
		var flat []enginetest.Entry
		outputs := 0
		for _, d := range decodes {
			if len(d) > size {
				t.Fatalf("size %d: chunk of %d tokens", size, len(d))
			}
			for _, e := range d {
				if e.WantsOutput {
					outputs++
				}
				if e.Seq != 0 {
					t.Fatalf("size %d: sequence %d", size, e.Seq)
				}
			}
			flat = append(flat, d...)
		}
		if outputs != 1 || !flat[len(flat)-1].WantsOutput {
			t.Fatalf("size %d: %d output positions, last=%+v", size, outputs, flat[len(flat)-1])
		}
		for i, e := range flat {
			if e.Pos != start+engine.Pos(i) || e.Token != tokens[i] {
				t.Fatalf("size %d: entry %d = %+v", size, i, e)
			}
		}
		if reference == nil {
			reference = flat
		} else if !reflect.DeepEqual(reference, flat) {
			t.Fatalf("size %d: ingested sequence differs", size)
		}
		if b.PeakBatches() != 1 || b.LiveBatches() != 0 {
			t.Fatalf("size %d: peak=%d live=%d", size, b.PeakBatches(), b.LiveBatches())
		}
		if res.Phase.TokensPerSecond() <= 0 {
			t.Fatalf("size %d: no ingest speed", size)
		}
	}
}

func TestChunker_DefaultSize(t *testing.T) {
	b := enginetest.New()
	ctx := newFakeContext(t, b)
	res, err := Chunker{Backend: b}.Ingest(ctx, seqTokens(1025), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 3 {
		t.Fatalf("chunks=%d", res.Chunks)
	}
	d := b.Decodes()
	if len(d[0]) != DefaultChunkSize || len(d[2]) != 1 {
		t.Fatalf("chunk sizes %d,%d,%d", len(d[0]), len(d[1]), len(d[2]))
	}
}

func TestChunker_FailsFastWithoutRetry(t *testing.T) {
	b := enginetest.New()
	b.FailDecodeAt = 2
	ctx := newFakeContext(t, b)
	res, err := Chunker{Backend: b, Size: 10}.Ingest(ctx, seqTokens(35), 0)
	var ie IngestError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IngestError, got %v", err)
	}
	if ie.Chunk != 1 || ie.Offset != 10 {
		t.Fatalf("error location: %+v", ie)
	}
	if res.Chunks != 1 || res.Tokens != 10 || res.Cursor != 10 {
		t.Fatalf("partial result: %+v", res)
	}
	// One successful decode; the failed one is not recorded and nothing
	// follows it.
	if len(b.Decodes()) != 1 {
		t.Fatalf("decodes=%d", len(b.Decodes()))
	}
	if b.LiveBatches() != 0 {
		t.Fatalf("failed chunk batch leaked")
	}
}

func TestChunker_NoTokens(t *testing.T) {
	b := enginetest.New()
	ctx := newFakeContext(t, b)
	res, err := Chunker{Backend: b}.Ingest(ctx, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 0 || res.Cursor != 3 || len(b.Decodes()) != 0 {
		t.Fatalf("unexpected: %+v", res)
	}
}
