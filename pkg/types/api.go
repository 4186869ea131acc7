package types

// LoadRequest selects a model either by registry id or by path.
type LoadRequest struct {
	// Registry id (file name under the models directory).
	// example: qwen2.5-0.5b-instruct-q4_k_m.gguf
	Model string `json:"model,omitempty" example:"qwen2.5-0.5b-instruct-q4_k_m.gguf"`
	// Filesystem path to a GGUF file. Used when Model is empty.
	// example: /home/user/models/qwen2.5-0.5b-instruct-q4_k_m.gguf
	Path string `json:"path,omitempty" example:"/home/user/models/qwen2.5-0.5b-instruct-q4_k_m.gguf"`
}

// LoadResponse is returned by POST /load.
type LoadResponse struct {
	// Legacy status string: "Success|<arch>".
	// example: Success|qwen2
	Status string `json:"status" example:"Success|qwen2"`
	// Architecture family of the loaded model.
	// example: qwen2
	Architecture string `json:"architecture" example:"qwen2"`
	// Resolved model path.
	Path string `json:"path"`
}

// GenerateRequest represents a generation request payload.
type GenerateRequest struct {
	// Required prompt text.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Optional system prompt, used by the chatml prompt format only.
	// example: You are a helpful assistant.
	SystemPrompt string `json:"system_prompt,omitempty" example:"You are a helpful assistant."`
	// Maximum number of new tokens. Omitted means the server default; 0 generates nothing.
	// example: 128
	MaxTokens *int `json:"max_tokens,omitempty" example:"128"`
	// Requested context window; 0 or omitted means the server default.
	// example: 2048
	ContextSize int `json:"context_size,omitempty" example:"2048"`
	// Worker threads; 0 or omitted means the server default.
	// example: 4
	Threads int `json:"threads,omitempty" example:"4"`
}

// TokenLine is one streamed NDJSON fragment.
type TokenLine struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// GenerationStats carries the throughput figures of one call.
type GenerationStats struct {
	// example: 12
	PromptTokens int `json:"prompt_tokens" example:"12"`
	// example: 128
	GeneratedTokens int `json:"generated_tokens" example:"128"`
	// example: 1
	Chunks int `json:"chunks" example:"1"`
	// example: 24.5
	IngestTokensPerSecond float64 `json:"ingest_tokens_per_second" example:"24.5"`
	// example: 8.32
	GenerateTokensPerSecond float64 `json:"generate_tokens_per_second" example:"8.32"`
	// Effective context window.
	// example: 1024
	ContextSize int `json:"context_size" example:"1024"`
	// True when the requested window was grown to fit prompt and output.
	ContextAdjusted bool `json:"context_adjusted"`
}

// FinalLine terminates a /generate NDJSON stream.
type FinalLine struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
	// Full generated text (no stats marker).
	Content string `json:"content"`
	// One of eos, cancelled, limit, decode_error.
	// example: eos
	StopReason string          `json:"stop_reason" example:"eos"`
	Stats      GenerationStats `json:"stats"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// True when a model is loaded.
	Loaded bool `json:"loaded"`
	// Path of the loaded model.
	ModelPath string `json:"model_path,omitempty"`
	// example: qwen2
	Architecture string `json:"architecture,omitempty" example:"qwen2"`
	// True while a generation call is running.
	Generating bool `json:"generating"`
	// Stop reason of the last finished call.
	// example: eos
	LastStopReason string `json:"last_stop_reason,omitempty" example:"eos"`
	// Stats of the last finished call.
	LastStats *GenerationStats `json:"last_stats,omitempty"`
	// Last error observed by the session (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of successful model loads.
	// example: 2
	LoadsTotal uint64 `json:"loads_total" example:"2"`
	// Total number of finished generation calls.
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	// Total generated tokens.
	// example: 1536
	TokensTotal uint64 `json:"tokens_total" example:"1536"`
}
