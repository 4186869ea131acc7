// Package llamacpp binds the engine boundary to llama.cpp.
//
// Build tags:
//
//   - In-process llama.cpp: enabled with `-tags=llama`. Uses yzma (purego
//     FFI, no CGO) and loads the shared libraries from the configured lib
//     directory, CLOVER_LIB, or ./lib/llama on first use.
//   - Default build: a stub whose LoadModel and NewSampler fail with a
//     dependency-unavailable error.
//
// The default build never compiles llamacpp.go. CI vets and tests with
// -tags llama as well.
package llamacpp

// Built reports whether this binary carries the real llama.cpp backend.
func Built() bool { return llamaBuilt }
