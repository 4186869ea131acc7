package session

import (
	"time"

	"github.com/rs/zerolog"

	"clover/internal/engine"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultChunkSize   = 512
	DefaultContextSize = 1024
	DefaultThreads     = 4
	DefaultTopK        = 40
	DefaultTemperature = float32(0.8)
	// ContextMargin is added on top of prompt+output when a window is grown.
	ContextMargin = 128

	pieceBufSize = 128
)

// Config encapsulates all tunables for Session construction.
type Config struct {
	Backend engine.Backend
	// Logger defaults to a no-op logger.
	Logger    *zerolog.Logger
	Publisher EventPublisher
	// ChunkSize bounds tokens per ingestion decode. Also used as n_batch.
	ChunkSize   int
	TopK        int
	Temperature float32
	// Prompt assembles the effective prompt; defaults to RawPrompt.
	Prompt PromptBuilder
	// Now and Seed are injectable for tests.
	Now  func() time.Time
	Seed func() uint32
}

// NewWithConfig constructs a Session from Config. No model is loaded.
func NewWithConfig(cfg Config) *Session {
	s := &Session{
		backend:     cfg.Backend,
		chunkSize:   cfg.ChunkSize,
		topK:        cfg.TopK,
		temperature: cfg.Temperature,
		prompt:      cfg.Prompt,
		now:         cfg.Now,
		seed:        cfg.Seed,
		pub:         cfg.Publisher,
	}
	if cfg.Logger != nil {
		s.log = *cfg.Logger
	} else {
		s.log = zerolog.Nop()
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	if s.temperature <= 0 {
		s.temperature = DefaultTemperature
	}
	if s.prompt == nil {
		s.prompt = RawPrompt{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.seed == nil {
		s.seed = timeSeed
	}
	if s.pub == nil {
		s.pub = noopPublisher{}
	}
	return s
}

func timeSeed() uint32 {
	return uint32(time.Now().UnixNano())
}
