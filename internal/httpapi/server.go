package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clover/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Load(ctx context.Context, req types.LoadRequest) (types.LoadResponse, error)
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	GenerateRaw(ctx context.Context, req types.GenerateRequest) ([]byte, error)
	Stop()
	ListModels() ([]types.Model, error)
	Status() types.StatusResponse
	Ready() bool
}

// NewMux builds the HTTP router around svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; NDJSON and raw bytes are left alone.
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsMethods(),
			AllowedHeaders: corsHeaders(),
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	h := &handlers{svc: svc}
	r.Post("/load", h.load)
	r.Post("/generate", h.generate)
	r.Post("/generate/raw", h.generateRaw)
	r.Post("/stop", h.stop)
	r.Get("/models", h.models)
	r.Get("/status", h.status)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no model loaded"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; keep the answer uniform.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func decodeGenerate(w http.ResponseWriter, r *http.Request) (types.GenerateRequest, bool) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return req, false
	}
	if req.MaxTokens != nil && *req.MaxTokens < 0 {
		writeJSONError(w, http.StatusBadRequest, "max_tokens must not be negative")
		return req, false
	}
	if req.ContextSize < 0 || req.Threads < 0 {
		writeJSONError(w, http.StatusBadRequest, "context_size and threads must not be negative")
		return req, false
	}
	return req, true
}

// @Summary      Load a model
// @Description  Loads a GGUF model by registry id or path, replacing the current one.
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        request  body      types.LoadRequest  true  "Model selection"
// @Success      200      {object}  types.LoadResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      422      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /load [post]
func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	var req types.LoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" && strings.TrimSpace(req.Path) == "" {
		writeJSONError(w, http.StatusBadRequest, "model or path is required")
		return
	}
	rl := newRequestLog(r, "load")
	rl.begin(map[string]any{"model": req.Model, "path": req.Path})
	resp, err := h.svc.Load(r.Context(), req)
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	rl.end(http.StatusOK, nil)
}

// @Summary      Generate text (streaming)
// @Description  Streams generated fragments as NDJSON lines, then a final line with stats.
// @Tags         session
// @Accept       json
// @Produce      application/x-ndjson
// @Param        request  body      types.GenerateRequest  true  "Generation request"
// @Success      200      {object}  types.FinalLine
// @Failure      400      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /generate [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenerate(w, r)
	if !ok {
		return
	}
	rl := newRequestLog(r, "generate")
	rl.begin(map[string]any{"prompt_bytes": len(req.Prompt)})

	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	tw := &trackingWriter{w: w}
	var out io.Writer = tw
	if rl.lvl >= LevelDebug {
		out = io.MultiWriter(tw, &loggingLineWriter{rid: rl.rid})
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	ctx, cancel := generationContext(r)
	defer cancel()
	err := h.svc.Generate(ctx, req, out, flush)
	if err == nil {
		rl.end(http.StatusOK, nil)
		return
	}
	// Client went away or the server is shutting down.
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		rl.end(499, err)
		return
	}
	// Once the stream has started the status line is gone.
	if tw.wrote {
		rl.end(http.StatusOK, err)
		return
	}
	rl.end(writeError(w, err), err)
}

// @Summary      Generate text (raw)
// @Description  Returns the generated text followed by the [CLOVER_STATS|ingest|generate] marker.
// @Tags         session
// @Accept       json
// @Produce      octet-stream
// @Param        request  body      types.GenerateRequest  true  "Generation request"
// @Success      200      {string}  string
// @Failure      400      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /generate/raw [post]
func (h *handlers) generateRaw(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenerate(w, r)
	if !ok {
		return
	}
	rl := newRequestLog(r, "generate_raw")
	rl.begin(map[string]any{"prompt_bytes": len(req.Prompt)})
	ctx, cancel := generationContext(r)
	defer cancel()
	buf, err := h.svc.GenerateRaw(ctx, req)
	if err != nil {
		rl.end(writeError(w, err), err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
	rl.end(http.StatusOK, nil)
}

// @Summary      Stop generation
// @Description  Requests the running generation to stop after the current token. Always succeeds.
// @Tags         session
// @Success      204
// @Router       /stop [post]
func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.svc.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// @Summary      List models
// @Description  Lists GGUF files found in the models directory.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
}

// @Summary      Session status
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// trackingWriter records whether any bytes reached the client.
type trackingWriter struct {
	w     io.Writer
	wrote bool
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		t.wrote = true
	}
	return t.w.Write(p)
}
