package session

import (
	"context"
	"fmt"

	"clover/internal/engine"
)

// Request is one generation call.
type Request struct {
	Prompt string
	// SystemPrompt is handed to the PromptBuilder; RawPrompt ignores it.
	SystemPrompt string
	// MaxTokens caps generated tokens; <= 0 generates nothing.
	MaxTokens int
	// ContextSize is the requested window; <= 0 means DefaultContextSize.
	ContextSize int
	// Threads <= 0 means DefaultThreads.
	Threads int
	// ID tags logs and events; optional.
	ID string
}

// Generate runs one full generation call: tokenize, size the window,
// rebuild context and sampler, ingest the prompt and run the generation
// loop, streaming each fragment to sink (nil disables streaming).
//
// The stop flag is cleared on entry, so a Stop issued while the prompt is
// being ingested still ends the call before the first token. Context
// creation and ingestion failures return an error and no text. A decode
// failure during generation is not an error: the partial text is returned
// with StopDecodeError.
func (s *Session) Generate(ctx context.Context, req Request, sink Sink) (Result, error) {
	s.cancel.Reset()
	if s.model == nil {
		return Result{}, ErrNoModel
	}
	s.setGenerating(true)
	defer s.setGenerating(false)

	log := s.log.With().Str("arch", s.arch).Logger()
	if req.ID != "" {
		log = log.With().Str("id", req.ID).Logger()
	}
	maxNew := max(req.MaxTokens, 0)
	threads := req.Threads
	if threads <= 0 {
		threads = DefaultThreads
	}

	vocab := s.model.Vocab()
	tokens, err := tokenize(vocab, s.prompt.Build(req.SystemPrompt, req.Prompt))
	if err != nil {
		return s.failed(req, "tokenize", err)
	}

	win := ComputeWindow(req.ContextSize, len(tokens), maxNew)
	if win.Adjusted {
		contextAdjustmentsTotal.Inc()
		log.Warn().Int("requested", win.Requested).Int("effective", win.Size).
			Int("prompt_tokens", len(tokens)).Int("max_tokens", maxNew).
			Msg("context window too small, auto-adjusted")
		s.publish(EventContextResized, map[string]any{
			"id":            req.ID,
			"requested":     win.Requested,
			"effective":     win.Size,
			"prompt_tokens": len(tokens),
			"max_tokens":    maxNew,
		})
	}
	if err := s.rebuild(win, threads); err != nil {
		return s.failed(req, "context", err)
	}

	ing, err := Chunker{Backend: s.backend, Size: s.chunkSize, Now: s.now}.Ingest(s.ectx, tokens, 0)
	if err != nil {
		return s.failed(req, "ingest", err)
	}
	tokensTotal.WithLabelValues(phaseIngest).Add(float64(ing.Tokens))
	log.Debug().Int("tokens", ing.Tokens).Int("chunks", ing.Chunks).
		Float64("tps", ing.Phase.TokensPerSecond()).Msg("prompt ingested")
	s.publish(EventIngestDone, map[string]any{"id": req.ID, "tokens": ing.Tokens, "chunks": ing.Chunks})

	l := &loop{
		backend: s.backend,
		ectx:    s.ectx,
		sampler: s.sampler,
		vocab:   vocab,
		cancel:  &s.cancel,
		now:     s.now,
	}
	lr := l.run(ctx, ing.Cursor, maxNew, sink)

	res := Result{
		Text:       string(lr.Text),
		StopReason: lr.Reason,
		Window:     win,
		DecodeErr:  lr.Err,
		Stats: Stats{
			PromptTokens:     ing.Tokens,
			GeneratedTokens:  lr.Tokens,
			Chunks:           ing.Chunks,
			IngestTPS:        ing.Phase.TokensPerSecond(),
			GenerateTPS:      lr.Phase.TokensPerSecond(),
			IngestDuration:   ing.Phase.Elapsed,
			GenerateDuration: lr.Phase.Elapsed,
		},
	}
	s.recordResult(res)
	generationsTotal.WithLabelValues(string(res.StopReason)).Inc()
	tokensTotal.WithLabelValues(phaseGenerate).Add(float64(lr.Tokens))
	tokensPerSecond.WithLabelValues(phaseIngest).Set(res.Stats.IngestTPS)
	tokensPerSecond.WithLabelValues(phaseGenerate).Set(res.Stats.GenerateTPS)

	ev := log.Info()
	if lr.Err != nil {
		ev = log.Warn().Err(lr.Err)
	}
	ev.Int("tokens", lr.Tokens).Str("reason", string(lr.Reason)).
		Float64("ingest_tps", res.Stats.IngestTPS).Float64("gen_tps", res.Stats.GenerateTPS).
		Msg("generation done")
	s.publish(EventGenerationDone, map[string]any{
		"id":     req.ID,
		"tokens": lr.Tokens,
		"reason": string(lr.Reason),
	})
	return res, nil
}

// GenerateBytes is Generate rendered in the legacy wire form: generated text
// followed by the stats marker, or an empty buffer when the call failed.
func (s *Session) GenerateBytes(ctx context.Context, req Request, sink Sink) []byte {
	res, err := s.Generate(ctx, req, sink)
	if err != nil {
		return []byte{}
	}
	return res.Bytes()
}

func (s *Session) failed(req Request, stage string, err error) (Result, error) {
	generationsTotal.WithLabelValues("failed_" + stage).Inc()
	s.setLastError(err.Error())
	s.log.Error().Err(err).Str("id", req.ID).Str("stage", stage).Msg("generation failed")
	s.publish(EventGenerationFailed, map[string]any{"id": req.ID, "stage": stage, "error": err.Error()})
	return Result{}, err
}

// tokenize converts text with special tokens enabled, growing the buffer
// once when the engine reports it too small.
func tokenize(v engine.Vocab, text string) ([]engine.Token, error) {
	buf := make([]engine.Token, len(text)+16)
	n := v.Tokenize(text, buf, true, true)
	if n < 0 {
		buf = make([]engine.Token, -n)
		n = v.Tokenize(text, buf, true, true)
		if n < 0 {
			return nil, TokenizeError{Reason: fmt.Sprintf("buffer of %d tokens still too small (need %d)", len(buf), -n)}
		}
	}
	if n == 0 {
		return nil, TokenizeError{Reason: "prompt produced no tokens"}
	}
	return buf[:n], nil
}
