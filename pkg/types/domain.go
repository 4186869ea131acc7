package types

// Model represents a discoverable or loadable GGUF model on disk.
type Model struct {
	// Stable identifier for the model (file name).
	// example: qwen2.5-0.5b-instruct-q4_k_m.gguf
	ID string `json:"id" example:"qwen2.5-0.5b-instruct-q4_k_m.gguf"`
	// Human-friendly name from general.name, or the file name.
	// example: Qwen2.5 0.5B Instruct
	Name string `json:"name" example:"Qwen2.5 0.5B Instruct"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/qwen2.5-0.5b-instruct-q4_k_m.gguf
	Path string `json:"path" example:"/home/user/models/qwen2.5-0.5b-instruct-q4_k_m.gguf"`
	// Quantization level decoded from general.file_type.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Architecture family from general.architecture.
	// example: qwen2
	Family string `json:"family,omitempty" example:"qwen2"`
	// Training context length declared by the model, if any.
	// example: 32768
	ContextLength uint64 `json:"context_length,omitempty" example:"32768"`
	// File size in bytes.
	// example: 491400032
	SizeBytes int64 `json:"size_bytes" example:"491400032"`
}
