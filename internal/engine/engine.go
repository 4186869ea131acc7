// Package engine defines the boundary between the orchestrator and a native
// inference engine (llama.cpp or a test double). Nothing in here computes;
// implementations own the weights, the KV cache and the sampler internals.
//
// None of the handles are safe for concurrent use. Callers serialize access.
package engine

// Token is a vocabulary id.
type Token int32

// Pos is an absolute token position inside a context window.
type Pos int32

// SeqID identifies a logical sequence inside a context. The orchestrator only
// ever uses sequence 0.
type SeqID int32

// Backend creates the engine handles. One Backend is shared for the lifetime
// of the process.
type Backend interface {
	// LoadModel loads weights from path. A nil Model is never returned
	// together with a nil error.
	LoadModel(path string, params ModelParams) (Model, error)
	// NewSampler builds a sampler chain: top-k, then temperature, then a
	// seeded random draw.
	NewSampler(params SamplerParams) (Sampler, error)
	// NewBatch allocates an engine-resident batch holding up to capacity
	// tokens. Callers must Free it.
	NewBatch(capacity int) Batch
}

// Model is a loaded set of weights.
type Model interface {
	// Vocab returns a read-only view owned by the model. It must not be
	// used after Close.
	Vocab() Vocab
	// MetaString looks up a string metadata value, e.g. "general.architecture".
	MetaString(key string) (string, bool)
	// NewContext creates an inference context bound to this model.
	NewContext(params ContextParams) (Context, error)
	Close() error
}

// Vocab converts between text and tokens.
type Vocab interface {
	// Tokenize writes the ids for text into dst and returns how many were
	// written. When dst is too small it returns the negated required length
	// and dst content is unspecified.
	Tokenize(text string, dst []Token, addSpecial, parseSpecial bool) int
	// TokenToPiece writes the text of tok into buf and returns the byte count.
	// A negative result is the negated required buffer length.
	TokenToPiece(tok Token, buf []byte) int
	// IsEOG reports whether tok ends generation.
	IsEOG(tok Token) bool
}

// Context holds the KV cache of one window.
type Context interface {
	// Decode runs a forward pass over b.
	Decode(b Batch) error
	Close() error
}

// Sampler is a stateful selection pipeline.
type Sampler interface {
	// Sample picks the next token from the logits at output index idx
	// (-1 selects the last output).
	Sample(ctx Context, idx int) Token
	// Accept informs the chain that tok was chosen.
	Accept(tok Token)
	Close() error
}

// Batch is a set of positioned tokens for one Decode call.
type Batch interface {
	// Add appends one token. wantsOutput requests logits for this position.
	Add(tok Token, pos Pos, seq SeqID, wantsOutput bool)
	// Len is the number of tokens added since the last Reset.
	Len() int
	// Reset drops all tokens but keeps the allocation.
	Reset()
	// Free releases the engine memory. The batch must not be used afterwards.
	Free()
}
