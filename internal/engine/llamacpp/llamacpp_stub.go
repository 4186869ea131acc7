//go:build !llama

package llamacpp

// This file provides a no-engine stub compiled when the 'llama' build tag is
// NOT set, keeping default builds and CI free of native libraries. The real
// backend lives in llamacpp.go.

import (
	"clover/internal/engine"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

const unavailable = "llama support not built (missing 'llama' build tag)"

type backend struct {
	libPath string
}

// New returns a Backend that refuses every call.
func New(libPath string) engine.Backend {
	return &backend{libPath: libPath}
}

func (b *backend) LoadModel(path string, params engine.ModelParams) (engine.Model, error) {
	return nil, engine.ErrDependencyUnavailable(unavailable)
}

func (b *backend) NewSampler(params engine.SamplerParams) (engine.Sampler, error) {
	return nil, engine.ErrDependencyUnavailable(unavailable)
}

// NewBatch returns a plain in-memory batch; Decode is never reachable without
// a model so it only has to satisfy the interface.
func (b *backend) NewBatch(capacity int) engine.Batch {
	return &batch{}
}

type batch struct{ n int }

func (b *batch) Add(engine.Token, engine.Pos, engine.SeqID, bool) { b.n++ }
func (b *batch) Len() int                                         { return b.n }
func (b *batch) Reset()                                           { b.n = 0 }
func (b *batch) Free()                                            { b.n = 0 }
