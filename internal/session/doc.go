// Package session owns the single active generation session: the loaded
// model, its inference context and its sampler chain.
//
// A Generate call runs synchronously on the calling goroutine:
//
//	tokenize -> ComputeWindow -> rebuild context + sampler -> Chunker.Ingest -> loop
//
// Only Stop may be called concurrently with Generate. Everything else assumes
// one caller at a time; Service enforces that for network callers.
package session
