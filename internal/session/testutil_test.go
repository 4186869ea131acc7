package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clover/internal/engine/enginetest"
)

// stepClock advances by step on every call so every measured phase has a
// positive duration.
func stepClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(step)
		return t
	}
}

func writeModelFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("GGUF"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

func newTestSession(t *testing.T, b *enginetest.Backend) (*Session, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	s := NewWithConfig(Config{
		Backend:   b,
		Publisher: pub,
		Now:       stepClock(time.Millisecond),
		Seed:      func() uint32 { return 7 },
	})
	return s, pub
}

func newLoadedSession(t *testing.T, b *enginetest.Backend) (*Session, *MemoryPublisher) {
	t.Helper()
	s, pub := newTestSession(t, b)
	if _, err := s.Load(writeModelFile(t, "m.gguf")); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s, pub
}

// collector records sink fragments.
type collector struct {
	mu    sync.Mutex
	frags []string
}

func (c *collector) Accept(p []byte) {
	c.mu.Lock()
	c.frags = append(c.frags, string(p))
	c.mu.Unlock()
}

func (c *collector) fragments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frags...)
}
