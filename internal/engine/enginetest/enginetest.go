// Package enginetest provides a scripted in-memory engine for tests.
//
// Tokenization maps every byte of the input to one token (repeated Expand
// times), pieces come from the Pieces table or default to "<id>", and the
// sampler replays Script before falling back to Fill forever.
package enginetest

import (
	"errors"
	"fmt"
	"sync"

	"clover/internal/engine"
)

// Entry is one token of a decoded batch.
type Entry struct {
	Token       engine.Token
	Pos         engine.Pos
	Seq         engine.SeqID
	WantsOutput bool
}

// Backend is a fake engine.Backend. Build it with New and configure fields
// before handing it to the code under test.
type Backend struct {
	mu sync.Mutex

	// Arch is reported for general.architecture; empty means absent.
	Arch string
	// LoadErr fails every LoadModel call when set.
	LoadErr error
	// ContextErr fails every NewContext call when set.
	ContextErr error
	// SamplerErr fails every NewSampler call when set.
	SamplerErr error
	// FailDecodeAt fails the n-th Decode call (1-based) across the backend
	// lifetime. Zero never fails.
	FailDecodeAt int
	// Expand is the number of tokens produced per input byte (default 1).
	Expand int
	// Script is replayed by Sample before Fill is returned.
	Script []engine.Token
	// Fill is sampled once Script is exhausted.
	Fill engine.Token
	// EOS is the end-of-generation token; -1 disables it.
	EOS engine.Token
	// Pieces maps tokens to their text.
	Pieces map[engine.Token]string
	// OnSample runs before every Sample with the 0-based sample count.
	OnSample func(n int)

	decodes      [][]Entry
	decodeCalls  int
	samples      int
	accepted     []engine.Token
	liveModels   int
	liveBatches  int
	peakBatches  int
	contexts     []engine.ContextParams
	samplerSeeds []uint32
	loadParams   []engine.ModelParams
	frees        []string
}

// New returns a Backend whose sampler never emits EOS.
func New() *Backend {
	return &Backend{EOS: -1, Fill: 'x'}
}

// LoadModel implements engine.Backend.
func (b *Backend) LoadModel(path string, params engine.ModelParams) (engine.Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadParams = append(b.loadParams, params)
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	if path == "" {
		return nil, errors.New("empty path")
	}
	b.liveModels++
	return &model{b: b, path: path}, nil
}

// NewSampler implements engine.Backend.
func (b *Backend) NewSampler(params engine.SamplerParams) (engine.Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SamplerErr != nil {
		return nil, b.SamplerErr
	}
	b.samplerSeeds = append(b.samplerSeeds, params.Seed)
	return &sampler{b: b}, nil
}

// NewBatch implements engine.Backend.
func (b *Backend) NewBatch(capacity int) engine.Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.liveBatches++
	if b.liveBatches > b.peakBatches {
		b.peakBatches = b.liveBatches
	}
	return &batch{b: b, capacity: capacity}
}

// Decodes returns a copy of every decoded batch in call order.
func (b *Backend) Decodes() [][]Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]Entry, len(b.decodes))
	for i, d := range b.decodes {
		out[i] = append([]Entry(nil), d...)
	}
	return out
}

// Accepted returns the tokens passed to Sampler.Accept.
func (b *Backend) Accepted() []engine.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]engine.Token(nil), b.accepted...)
}

// LiveModels is the number of loaded, not yet closed models.
func (b *Backend) LiveModels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveModels
}

// LiveBatches is the number of allocated, not yet freed batches.
func (b *Backend) LiveBatches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveBatches
}

// PeakBatches is the highest number of simultaneously live batches.
func (b *Backend) PeakBatches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peakBatches
}

// Contexts returns the params of every created context.
func (b *Backend) Contexts() []engine.ContextParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]engine.ContextParams(nil), b.contexts...)
}

// SamplerSeeds returns the seed of every created sampler.
func (b *Backend) SamplerSeeds() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint32(nil), b.samplerSeeds...)
}

// LoadParams returns the params of every LoadModel call.
func (b *Backend) LoadParams() []engine.ModelParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]engine.ModelParams(nil), b.loadParams...)
}

// Frees returns "context", "model" and "sampler" in release order.
func (b *Backend) Frees() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.frees...)
}

// ResetRecords clears every recorded call, keeping configuration.
func (b *Backend) ResetRecords() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decodes = nil
	b.accepted = nil
	b.contexts = nil
	b.samplerSeeds = nil
	b.loadParams = nil
	b.frees = nil
	b.samples = 0
	b.peakBatches = b.liveBatches
}

func (b *Backend) piece(tok engine.Token) string {
	if p, ok := b.Pieces[tok]; ok {
		return p
	}
	return fmt.Sprintf("<%d>", tok)
}

type model struct {
	b    *Backend
	path string
}

func (m *model) Vocab() engine.Vocab { return vocab{b: m.b} }

func (m *model) MetaString(key string) (string, bool) {
	if key == "general.architecture" && m.b.Arch != "" {
		return m.b.Arch, true
	}
	return "", false
}

func (m *model) NewContext(params engine.ContextParams) (engine.Context, error) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	if m.b.ContextErr != nil {
		return nil, m.b.ContextErr
	}
	m.b.contexts = append(m.b.contexts, params)
	return &context{b: m.b}, nil
}

func (m *model) Close() error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.liveModels--
	m.b.frees = append(m.b.frees, "model")
	return nil
}

type vocab struct{ b *Backend }

func (v vocab) Tokenize(text string, dst []engine.Token, addSpecial, parseSpecial bool) int {
	expand := v.b.Expand
	if expand <= 0 {
		expand = 1
	}
	need := len(text) * expand
	if need > len(dst) {
		return -need
	}
	n := 0
	for i := 0; i < len(text); i++ {
		for j := 0; j < expand; j++ {
			dst[n] = engine.Token(text[i])
			n++
		}
	}
	return n
}

func (v vocab) TokenToPiece(tok engine.Token, buf []byte) int {
	p := v.b.piece(tok)
	if len(p) > len(buf) {
		return -len(p)
	}
	return copy(buf, p)
}

func (v vocab) IsEOG(tok engine.Token) bool {
	return v.b.EOS >= 0 && tok == v.b.EOS
}

type context struct{ b *Backend }

func (c *context) Decode(eb engine.Batch) error {
	bt, ok := eb.(*batch)
	if !ok {
		return fmt.Errorf("enginetest: foreign batch %T", eb)
	}
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if bt.freed {
		return errors.New("enginetest: decode on freed batch")
	}
	c.b.decodeCalls++
	if c.b.FailDecodeAt > 0 && c.b.decodeCalls == c.b.FailDecodeAt {
		return engine.DecodeError{Code: 1}
	}
	c.b.decodes = append(c.b.decodes, append([]Entry(nil), bt.entries...))
	return nil
}

func (c *context) Close() error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.b.frees = append(c.b.frees, "context")
	return nil
}

type sampler struct{ b *Backend }

func (s *sampler) Sample(ctx engine.Context, idx int) engine.Token {
	s.b.mu.Lock()
	n := s.b.samples
	s.b.samples++
	hook := s.b.OnSample
	s.b.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if n < len(s.b.Script) {
		return s.b.Script[n]
	}
	return s.b.Fill
}

func (s *sampler) Accept(tok engine.Token) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.accepted = append(s.b.accepted, tok)
}

func (s *sampler) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.frees = append(s.b.frees, "sampler")
	return nil
}

type batch struct {
	b        *Backend
	entries  []Entry
	capacity int
	freed    bool
}

func (bt *batch) Add(tok engine.Token, pos engine.Pos, seq engine.SeqID, wantsOutput bool) {
	if len(bt.entries) >= bt.capacity {
		return
	}
	bt.entries = append(bt.entries, Entry{Token: tok, Pos: pos, Seq: seq, WantsOutput: wantsOutput})
}

func (bt *batch) Len() int { return len(bt.entries) }

func (bt *batch) Reset() { bt.entries = bt.entries[:0] }

func (bt *batch) Free() {
	if bt.freed {
		return
	}
	bt.freed = true
	bt.b.mu.Lock()
	bt.b.liveBatches--
	bt.b.mu.Unlock()
}
