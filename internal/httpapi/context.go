package httpapi

import (
	"context"
	"net/http"
	"time"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// Values and deadline come from a. The returned cancel func must be called
// when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// generationContext joins the request with the server lifetime and applies
// the configured generation timeout.
func generationContext(r *http.Request) (context.Context, context.CancelFunc) {
	joined, cancelJoin := joinContexts(r.Context(), serverBaseCtx)
	if generateTimeout <= 0 {
		return joined, cancelJoin
	}
	ctx, cancelTimeout := context.WithTimeout(joined, time.Duration(generateTimeout)*time.Second)
	return ctx, func() {
		cancelTimeout()
		cancelJoin()
	}
}
