package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"clover/internal/common/fsutil"
	"clover/internal/config"
	"clover/internal/engine"
	"clover/internal/engine/llamacpp"
	"clover/internal/registry"
	"clover/internal/session"
	"clover/pkg/types"
)

// stack is the assembled runtime: session, service and optional catalog.
type stack struct {
	sess    *session.Session
	svc     *session.Service
	catalog *registry.Catalog
}

func (s *stack) Close(ctx context.Context) error {
	if s.catalog != nil {
		s.catalog.Close()
	}
	return s.svc.Close(ctx)
}

// buildStack wires backend, session, registry and service from cfg.
// A nil backend selects the llama.cpp engine.
func buildStack(cfg config.Config, backend engine.Backend, log zerolog.Logger, pub session.EventPublisher) (*stack, error) {
	prompt, err := session.PromptBuilderFor(cfg.PromptFormat)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		backend = llamacpp.New(cfg.LibPath)
	}
	sessLog := log.With().Str("component", "session").Logger()
	sess := session.NewWithConfig(session.Config{
		Backend:     backend,
		Logger:      &sessLog,
		Publisher:   pub,
		ChunkSize:   cfg.ChunkSize,
		TopK:        cfg.TopK,
		Temperature: float32(cfg.Temperature),
		Prompt:      prompt,
	})
	st := &stack{sess: sess}
	sc := session.ServiceConfig{
		Session:            sess,
		Logger:             &sessLog,
		DefaultMaxTokens:   cfg.MaxTokens,
		DefaultContextSize: cfg.ContextSize,
		DefaultThreads:     cfg.Threads,
	}
	if cfg.ModelsDir != "" {
		st.catalog = registry.NewCatalog(cfg.ModelsDir, registry.NewGGUFScanner())
		sc.Catalog = st.catalog
	}
	st.svc = session.NewService(sc)
	return st, nil
}

// loadRequestFor treats an existing file as a path and anything else as a
// registry id.
func loadRequestFor(ref string) types.LoadRequest {
	ref = strings.TrimSpace(ref)
	if p, err := fsutil.ExpandHome(ref); err == nil && fsutil.PathExists(p) {
		return types.LoadRequest{Path: p}
	}
	return types.LoadRequest{Model: ref}
}
