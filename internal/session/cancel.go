package session

import "sync/atomic"

// CancelFlag is a cooperative stop request. The generation loop polls it once
// per token; any goroutine may set it.
type CancelFlag struct {
	v atomic.Bool
}

// RequestStop sets the flag.
func (f *CancelFlag) RequestStop() { f.v.Store(true) }

// Stopped reports whether a stop was requested since the last Reset.
func (f *CancelFlag) Stopped() bool { return f.v.Load() }

// Reset clears the flag.
func (f *CancelFlag) Reset() { f.v.Store(false) }
