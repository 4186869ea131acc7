package session

import "time"

// Status is a point-in-time view of the session.
type Status struct {
	Loaded       bool
	Path         string
	Architecture string
	Generating   bool
	LastWindow   Window
	LastStats    Stats
	LastStop     StopReason
	LastError    string
	LastFinished time.Time
	Generations  uint64
	LoadsTotal   uint64
	TokensTotal  uint64
}

// Status returns a copy of the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setLoaded(path, arch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Loaded = path != ""
	s.status.Path = path
	s.status.Architecture = arch
	if path != "" {
		s.status.LoadsTotal++
		s.status.LastError = ""
	}
}

func (s *Session) setGenerating(v bool) {
	s.mu.Lock()
	s.status.Generating = v
	s.mu.Unlock()
	if v {
		generating.Set(1)
	} else {
		generating.Set(0)
	}
}

func (s *Session) setLastError(msg string) {
	s.mu.Lock()
	s.status.LastError = msg
	s.mu.Unlock()
}

func (s *Session) recordResult(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastWindow = r.Window
	s.status.LastStats = r.Stats
	s.status.LastStop = r.StopReason
	s.status.LastFinished = s.now()
	s.status.Generations++
	s.status.TokensTotal += uint64(r.Stats.GeneratedTokens)
}
