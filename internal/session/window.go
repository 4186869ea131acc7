package session

// Window is the outcome of context sizing.
type Window struct {
	// Size is the effective n_ctx.
	Size int `json:"size"`
	// Requested is the caller's value before defaults.
	Requested int `json:"requested"`
	// Adjusted is set when Size was grown to fit prompt and output.
	Adjusted bool `json:"adjusted"`
}

// ComputeWindow picks the context size for one generation call. A
// non-positive request falls back to DefaultContextSize. A window that cannot
// hold promptTokens+maxOutput is grown to that sum plus ContextMargin, so the
// result is never smaller than promptTokens+maxOutput.
func ComputeWindow(requested, promptTokens, maxOutput int) Window {
	w := Window{Size: requested, Requested: requested}
	if w.Size <= 0 {
		w.Size = DefaultContextSize
	}
	if promptTokens < 0 {
		promptTokens = 0
	}
	if maxOutput < 0 {
		maxOutput = 0
	}
	need := promptTokens + maxOutput
	if w.Size < need {
		w.Size = need + ContextMargin
		w.Adjusted = true
	}
	return w
}
