package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"clover/internal/common/fsutil"
	"clover/pkg/types"
)

// DefaultMaxTokens is used when a request omits max_tokens.
const DefaultMaxTokens = 256

// Catalog resolves registry ids to model files.
type Catalog interface {
	Models() ([]types.Model, error)
	Lookup(id string) (types.Model, bool, error)
}

// ServiceConfig encapsulates all tunables for Service construction.
type ServiceConfig struct {
	Session *Session
	// Catalog is optional; without it only paths can be loaded.
	Catalog Catalog
	Logger  *zerolog.Logger
	// DefaultMaxTokens applies when a request omits max_tokens; nil means
	// DefaultMaxTokens.
	DefaultMaxTokens   *int
	DefaultContextSize int
	DefaultThreads     int
	Now                func() time.Time
	NewID              func() string
}

// Service adapts a Session to network callers. It admits one Load or
// Generate at a time and rejects the rest with a too-busy error instead of
// queueing; Stop and the read-only calls are never blocked.
type Service struct {
	sess      *Session
	catalog   Catalog
	log       zerolog.Logger
	sem       *semaphore.Weighted
	maxTokens int
	ctxSize   int
	threads   int
	now       func() time.Time
	newID     func() string
	startTime time.Time
}

// NewService constructs a Service around cfg.Session.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		sess:      cfg.Session,
		catalog:   cfg.Catalog,
		sem:       semaphore.NewWeighted(1),
		maxTokens: DefaultMaxTokens,
		ctxSize:   cfg.DefaultContextSize,
		threads:   cfg.DefaultThreads,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if cfg.Logger != nil {
		s.log = *cfg.Logger
	} else {
		s.log = zerolog.Nop()
	}
	if cfg.DefaultMaxTokens != nil && *cfg.DefaultMaxTokens >= 0 {
		s.maxTokens = *cfg.DefaultMaxTokens
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	s.startTime = s.now()
	return s
}

func (s *Service) acquire(op string) (func(), error) {
	if !s.sem.TryAcquire(1) {
		s.log.Warn().Str("op", op).Msg("session busy")
		return nil, tooBusyError{op: op}
	}
	return func() { s.sem.Release(1) }, nil
}

// Load resolves req to a path and loads it.
func (s *Service) Load(ctx context.Context, req types.LoadRequest) (types.LoadResponse, error) {
	path, err := s.resolve(req)
	if err != nil {
		return types.LoadResponse{}, err
	}
	release, err := s.acquire("load")
	if err != nil {
		return types.LoadResponse{}, err
	}
	defer release()
	arch, err := s.sess.Load(path)
	if err != nil {
		return types.LoadResponse{}, err
	}
	return types.LoadResponse{Status: "Success|" + arch, Architecture: arch, Path: path}, nil
}

func (s *Service) resolve(req types.LoadRequest) (string, error) {
	if id := strings.TrimSpace(req.Model); id != "" {
		if s.catalog == nil {
			return "", ErrModelNotFound(id)
		}
		m, ok, err := s.catalog.Lookup(id)
		if err != nil {
			return "", fmt.Errorf("look up model %q: %w", id, err)
		}
		if !ok {
			return "", ErrModelNotFound(id)
		}
		return m.Path, nil
	}
	return fsutil.ExpandHome(strings.TrimSpace(req.Path))
}

func (s *Service) request(req types.GenerateRequest, id string) Request {
	r := Request{
		ID:           id,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    s.maxTokens,
		ContextSize:  req.ContextSize,
		Threads:      req.Threads,
	}
	if req.MaxTokens != nil {
		r.MaxTokens = *req.MaxTokens
	}
	if r.ContextSize <= 0 {
		r.ContextSize = s.ctxSize
	}
	if r.Threads <= 0 {
		r.Threads = s.threads
	}
	return r
}

// Generate streams NDJSON to w: one {"id","token"} line per fragment and a
// final {"id","done":true,...} line. Nothing is written when the call fails
// before the first token. A failed write stops the generation. When ctx hits
// its deadline before anything was streamed, ctx.Err() is returned instead of
// a final line.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	release, err := s.acquire("generate")
	if err != nil {
		return err
	}
	defer release()

	id := s.newID()
	var (
		werr     error
		streamed bool
	)
	writeLine := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}
	sink := SinkFunc(func(p []byte) {
		if werr != nil {
			return
		}
		if werr = writeLine(types.TokenLine{ID: id, Token: string(p)}); werr != nil {
			s.log.Warn().Err(werr).Str("id", id).Msg("stream write failed, stopping")
			s.sess.Stop()
			return
		}
		streamed = true
	})
	res, err := s.sess.Generate(ctx, s.request(req, id), sink)
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}
	if !streamed && deadlineHit(ctx, res.StopReason) {
		return ctx.Err()
	}
	return writeLine(types.FinalLine{
		ID:         id,
		Done:       true,
		Content:    res.Text,
		StopReason: string(res.StopReason),
		Stats:      toTypesStats(res),
	})
}

var errEmptyResult = errors.New("generation produced no result")

// GenerateRaw returns the legacy buffer: text followed by the stats marker.
// A failed generation is reported as an error, and so is one cut short
// by ctx's deadline.
func (s *Service) GenerateRaw(ctx context.Context, req types.GenerateRequest) ([]byte, error) {
	release, err := s.acquire("generate")
	if err != nil {
		return nil, err
	}
	defer release()
	if !s.sess.Loaded() {
		return nil, ErrNoModel
	}
	id := s.newID()
	res, err := s.sess.Generate(ctx, s.request(req, id), nil)
	if err != nil {
		s.log.Debug().Err(err).Str("id", id).Msg("raw generation failed")
		return nil, errEmptyResult
	}
	if deadlineHit(ctx, res.StopReason) {
		return nil, ctx.Err()
	}
	buf := res.Bytes()
	if _, in, gen, ok := SplitStats(buf); ok {
		s.log.Debug().Str("id", id).Float64("ingest_tps", in).Float64("gen_tps", gen).Msg("raw generation done")
	}
	return buf, nil
}

func deadlineHit(ctx context.Context, reason StopReason) bool {
	return reason == StopCancelled && errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// Stop forwards to the session; never blocks.
func (s *Service) Stop() { s.sess.Stop() }

// Ready reports whether a model is loaded.
func (s *Service) Ready() bool { return s.sess.Loaded() }

// ListModels returns the catalog contents, or nothing without a catalog.
func (s *Service) ListModels() ([]types.Model, error) {
	if s.catalog == nil {
		return []types.Model{}, nil
	}
	return s.catalog.Models()
}

// Status builds the /status payload.
func (s *Service) Status() types.StatusResponse {
	st := s.sess.Status()
	now := s.now()
	resp := types.StatusResponse{
		Loaded:           st.Loaded,
		ModelPath:        st.Path,
		Architecture:     st.Architecture,
		Generating:       st.Generating,
		LastStopReason:   string(st.LastStop),
		LastError:        st.LastError,
		UptimeSeconds:    int64(now.Sub(s.startTime).Seconds()),
		ServerTimeUnix:   now.Unix(),
		LoadsTotal:       st.LoadsTotal,
		GenerationsTotal: st.Generations,
		TokensTotal:      st.TokensTotal,
	}
	if st.Generations > 0 {
		ls := toTypesStats(Result{Window: st.LastWindow, Stats: st.LastStats})
		resp.LastStats = &ls
	}
	return resp
}

// Close releases the session's engine handles, waiting for a running call.
func (s *Service) Close(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.sess.Close()
}

func toTypesStats(r Result) types.GenerationStats {
	return types.GenerationStats{
		PromptTokens:            r.Stats.PromptTokens,
		GeneratedTokens:         r.Stats.GeneratedTokens,
		Chunks:                  r.Stats.Chunks,
		IngestTokensPerSecond:   r.Stats.IngestTPS,
		GenerateTokensPerSecond: r.Stats.GenerateTPS,
		ContextSize:             r.Window.Size,
		ContextAdjusted:         r.Window.Adjusted,
	}
}
