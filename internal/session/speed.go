package session

import "time"

// Phase is the token count and wall time of one measured phase.
type Phase struct {
	Tokens  int
	Elapsed time.Duration
}

// TokensPerSecond is 0 when no time elapsed.
func (p Phase) TokensPerSecond() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Tokens) / p.Elapsed.Seconds()
}

// SpeedTracker measures one phase against a clock.
type SpeedTracker struct {
	now    func() time.Time
	start  time.Time
	tokens int
}

// NewSpeedTracker starts measuring immediately. nil now uses time.Now.
func NewSpeedTracker(now func() time.Time) *SpeedTracker {
	if now == nil {
		now = time.Now
	}
	return &SpeedTracker{now: now, start: now()}
}

// Add counts n processed tokens.
func (t *SpeedTracker) Add(n int) { t.tokens += n }

// Stop returns the phase measured so far.
func (t *SpeedTracker) Stop() Phase {
	return Phase{Tokens: t.tokens, Elapsed: t.now().Sub(t.start)}
}
