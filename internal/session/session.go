package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clover/internal/common/fsutil"
	"clover/internal/engine"
)

// UnknownArch is reported when a model carries no general.architecture.
const UnknownArch = "Unknown"

// Session exclusively owns one model, its context and its sampler chain.
type Session struct {
	backend     engine.Backend
	log         zerolog.Logger
	pub         EventPublisher
	chunkSize   int
	topK        int
	temperature float32
	prompt      PromptBuilder
	now         func() time.Time
	seed        func() uint32

	// Engine handles. Touched only by the single caller of Load/Generate/Close.
	model   engine.Model
	ectx    engine.Context
	sampler engine.Sampler
	path    string
	arch    string

	cancel CancelFlag

	// mu guards the status fields below, which Status reads from other
	// goroutines.
	mu     sync.RWMutex
	status Status
}

// Load releases any held handles (context, model, sampler, in that order)
// and loads path with the fixed engine.DefaultModelParams policy. It returns
// the model's architecture family, or UnknownArch when the file declares
// none. On failure every handle is nil.
func (s *Session) Load(path string) (string, error) {
	if err := s.release(); err != nil {
		s.log.Warn().Err(err).Msg("release previous model")
	}
	s.setLoaded("", "")
	start := s.now()
	s.path = path
	s.publish(EventLoadStart, nil)
	log := s.log.With().Str("path", path).Logger()
	log.Info().Msg("loading model")

	fail := func(err LoadError) (string, error) {
		s.path = ""
		loadsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Dur("dur", s.now().Sub(start)).Msg("model load failed")
		s.pub.Publish(Event{Name: EventModelLoadFailed, Model: path, Fields: map[string]any{"error": err.Error()}})
		s.setLastError(err.Error())
		return "", err
	}

	if strings.TrimSpace(path) == "" {
		return fail(LoadError{Path: path, Reason: "empty model path"})
	}
	if !fsutil.PathExists(path) {
		return fail(LoadError{Path: path, Reason: "model file not found: " + path})
	}
	if fsutil.IsDir(path) {
		return fail(LoadError{Path: path, Reason: "model path is a directory: " + path})
	}
	m, err := s.backend.LoadModel(path, engine.DefaultModelParams())
	if err != nil || m == nil {
		if err == nil {
			err = errors.New("engine returned no model")
		}
		return fail(LoadError{Path: path, Reason: "failed to load model", Err: err})
	}
	arch, ok := m.MetaString("general.architecture")
	if !ok || strings.TrimSpace(arch) == "" {
		arch = UnknownArch
	}
	s.model = m
	s.arch = arch
	s.setLoaded(path, arch)
	loadsTotal.WithLabelValues("success").Inc()
	dur := s.now().Sub(start)
	log.Info().Str("arch", arch).Dur("dur", dur).Msg("model loaded")
	s.publish(EventModelLoaded, map[string]any{"arch": arch, "dur_ms": dur.Milliseconds()})
	return arch, nil
}

// LoadStatus is Load rendered as a status string: "Success|<arch>" or
// "Error: <reason>".
func (s *Session) LoadStatus(path string) string {
	arch, err := s.Load(path)
	if err != nil {
		return "Error: " + err.Error()
	}
	return "Success|" + arch
}

// Loaded reports whether a model is held. Safe from any goroutine.
func (s *Session) Loaded() bool { return s.Status().Loaded }

// Architecture returns the architecture of the loaded model, or "".
func (s *Session) Architecture() string { return s.Status().Architecture }

// Stop asks the running generation call, if any, to end at its next poll.
// Safe to call from any goroutine.
func (s *Session) Stop() {
	s.cancel.RequestStop()
	stopRequestsTotal.Inc()
	s.log.Info().Msg("stop requested")
	s.pub.Publish(Event{Name: EventStopRequested})
}

// Close releases every engine handle. The session can be reused with Load.
func (s *Session) Close() error {
	err := s.release()
	s.setLoaded("", "")
	return err
}

// release frees context, model and sampler in that order. A context must
// never outlive the model it was created from.
func (s *Session) release() error {
	var errs []error
	if s.ectx != nil {
		errs = append(errs, s.ectx.Close())
		s.ectx = nil
	}
	if s.model != nil {
		errs = append(errs, s.model.Close())
		s.model = nil
	}
	if s.sampler != nil {
		errs = append(errs, s.sampler.Close())
		s.sampler = nil
	}
	s.path = ""
	s.arch = ""
	return errors.Join(errs...)
}

// rebuild replaces the context and sampler for a new generation call.
func (s *Session) rebuild(win Window, threads int) error {
	if s.ectx != nil {
		if err := s.ectx.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close context")
		}
		s.ectx = nil
	}
	if s.sampler != nil {
		if err := s.sampler.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close sampler")
		}
		s.sampler = nil
	}
	c, err := s.model.NewContext(engine.ContextParams{
		ContextSize:  win.Size,
		BatchSize:    s.chunkSize,
		Threads:      threads,
		ThreadsBatch: threads,
	})
	if err != nil || c == nil {
		if err == nil {
			err = errors.New("engine returned no context")
		}
		return ContextError{Component: "context", Size: win.Size, Err: err}
	}
	s.ectx = c
	smp, err := s.backend.NewSampler(engine.SamplerParams{
		TopK:        s.topK,
		Temperature: s.temperature,
		Seed:        s.seed(),
	})
	if err != nil || smp == nil {
		if err == nil {
			err = errors.New("engine returned no sampler")
		}
		return ContextError{Component: "sampler", Size: win.Size, Err: err}
	}
	s.sampler = smp
	return nil
}
