//go:build llama

package llamacpp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/hybridgroup/yzma/pkg/llama"

	"clover/internal/engine"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

var (
	initOnce sync.Once
	initErr  error
)

// backend loads llama.cpp shared libraries lazily on first use.
type backend struct {
	libPath string
}

// New returns a Backend backed by llama.cpp through yzma. libPath is the
// directory holding the llama.cpp shared libraries; empty uses
// CLOVER_LIB or ./lib/llama.
func New(libPath string) engine.Backend {
	return &backend{libPath: libPath}
}

func (b *backend) init() error {
	initOnce.Do(func() {
		lib := strings.TrimSpace(b.libPath)
		if lib == "" {
			lib = os.Getenv("CLOVER_LIB")
		}
		if lib == "" {
			lib = filepath.Join(".", "lib", "llama")
		}
		if abs, err := filepath.Abs(lib); err == nil {
			lib = abs
		}
		if err := llama.Load(lib); err != nil {
			initErr = engine.ErrDependencyUnavailable(fmt.Sprintf("load llama.cpp libraries from %s: %v", lib, err))
			return
		}
		llama.Init()
	})
	return initErr
}

func (b *backend) LoadModel(path string, params engine.ModelParams) (engine.Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := b.init(); err != nil {
		return nil, err
	}
	mp := llama.ModelDefaultParams()
	mp.NGpuLayers = int32(params.GPULayers)
	mp.UseMmap = boolToU8(params.UseMmap)
	m, err := llama.ModelLoadFromFile(path, mp)
	if err != nil {
		return nil, err
	}
	return &model{m: m, vocab: &vocab{v: llama.ModelGetVocab(m)}}, nil
}

func (b *backend) NewSampler(params engine.SamplerParams) (engine.Sampler, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	chain := llama.SamplerChainInit(llama.SamplerChainDefaultParams())
	llama.SamplerChainAdd(chain, llama.SamplerInitTopK(int32(params.TopK)))
	llama.SamplerChainAdd(chain, llama.SamplerInitTempExt(params.Temperature, 0, 1))
	llama.SamplerChainAdd(chain, llama.SamplerInitDist(params.Seed))
	return &sampler{s: chain}, nil
}

func (b *backend) NewBatch(capacity int) engine.Batch {
	if capacity < 1 {
		capacity = 1
	}
	return &batch{b: llama.BatchInit(int32(capacity), 0, 1), capacity: capacity}
}

type model struct {
	m     llama.Model
	vocab *vocab
}

func (m *model) Vocab() engine.Vocab { return m.vocab }

func (m *model) MetaString(key string) (string, bool) {
	return llama.ModelMetaValStr(m.m, key)
}

func (m *model) NewContext(params engine.ContextParams) (engine.Context, error) {
	cp := llama.ContextDefaultParams()
	cp.NCtx = uint32(params.ContextSize)
	cp.NBatch = uint32(params.BatchSize)
	cp.NThreads = int32(params.Threads)
	cp.NThreadsBatch = int32(params.ThreadsBatch)
	lctx, err := llama.InitFromModel(m.m, cp)
	if err != nil {
		return nil, err
	}
	return &context{c: lctx}, nil
}

func (m *model) Close() error {
	llama.ModelFree(m.m)
	return nil
}

type vocab struct {
	v llama.Vocab
}

func (v *vocab) Tokenize(text string, dst []engine.Token, addSpecial, parseSpecial bool) int {
	toks := llama.Tokenize(v.v, text, addSpecial, parseSpecial)
	if len(toks) > len(dst) {
		return -len(toks)
	}
	for i, t := range toks {
		dst[i] = engine.Token(t)
	}
	return len(toks)
}

func (v *vocab) TokenToPiece(tok engine.Token, buf []byte) int {
	return int(llama.TokenToPiece(v.v, llama.Token(tok), buf, 0, true))
}

func (v *vocab) IsEOG(tok engine.Token) bool {
	return llama.VocabIsEOG(v.v, llama.Token(tok))
}

type context struct {
	c llama.Context
}

func (c *context) Decode(b engine.Batch) error {
	lb, ok := b.(*batch)
	if !ok {
		return fmt.Errorf("llamacpp: foreign batch type %T", b)
	}
	lb.b.NTokens = int32(lb.n)
	status, err := llama.Decode(c.c, lb.b)
	if err != nil {
		return err
	}
	if status != 0 {
		return engine.DecodeError{Code: int(status)}
	}
	return nil
}

func (c *context) Close() error {
	llama.Free(c.c)
	return nil
}

type sampler struct {
	s llama.Sampler
}

func (s *sampler) Sample(ctx engine.Context, idx int) engine.Token {
	c := ctx.(*context)
	return engine.Token(llama.SamplerSample(s.s, c.c, int32(idx)))
}

func (s *sampler) Accept(tok engine.Token) {
	llama.SamplerAccept(s.s, llama.Token(tok))
}

func (s *sampler) Close() error {
	llama.SamplerFree(s.s)
	return nil
}

// batch fills the llama_batch arrays allocated by llama_batch_init.
type batch struct {
	b        llama.Batch
	n        int
	capacity int
}

func (b *batch) Add(tok engine.Token, pos engine.Pos, seq engine.SeqID, wantsOutput bool) {
	if b.n >= b.capacity {
		return
	}
	i := b.n
	unsafe.Slice(b.b.Token, b.capacity)[i] = llama.Token(tok)
	unsafe.Slice(b.b.Pos, b.capacity)[i] = llama.Pos(pos)
	unsafe.Slice(b.b.NSeqId, b.capacity)[i] = 1
	unsafe.Slice(unsafe.Slice(b.b.SeqId, b.capacity)[i], 1)[0] = llama.SeqId(seq)
	unsafe.Slice(b.b.Logits, b.capacity)[i] = int8(boolToU8(wantsOutput))
	b.n++
}

func (b *batch) Len() int { return b.n }

func (b *batch) Reset() { b.n = 0 }

func (b *batch) Free() {
	llama.BatchFree(b.b)
	b.n = 0
	b.capacity = 0
}

func boolToU8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
