package engine

// ModelParams controls how weights are loaded.
type ModelParams struct {
	// GPULayers is the number of layers offloaded to an accelerator.
	GPULayers int
	// UseMmap maps the weights file instead of reading it into memory.
	UseMmap bool
}

// DefaultModelParams returns the fixed load policy: CPU only, no mmap.
// Every load goes through it; change the policy here, not at call sites.
func DefaultModelParams() ModelParams {
	return ModelParams{GPULayers: 0, UseMmap: false}
}

// ContextParams sizes an inference context.
type ContextParams struct {
	// ContextSize is the number of token positions (n_ctx).
	ContextSize int
	// BatchSize is the maximum tokens per Decode call (n_batch).
	BatchSize int
	// Threads is used for single-token generation.
	Threads int
	// ThreadsBatch is used for prompt ingestion.
	ThreadsBatch int
}

// SamplerParams configures the top-k -> temperature -> dist chain.
type SamplerParams struct {
	TopK        int
	Temperature float32
	Seed        uint32
}
