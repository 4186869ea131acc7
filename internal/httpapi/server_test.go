package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clover/pkg/types"
)

type mockService struct {
	models    []types.Model
	modelsErr error
	status    types.StatusResponse
	ready     bool
	loadErr   error
	genErr    error
	raw       []byte
	stops     int
	lastLoad  types.LoadRequest
	lastGen   types.GenerateRequest
}

func (m *mockService) Load(ctx context.Context, req types.LoadRequest) (types.LoadResponse, error) {
	m.lastLoad = req
	if m.loadErr != nil {
		return types.LoadResponse{}, m.loadErr
	}
	return types.LoadResponse{Status: "Success|llama", Architecture: "llama", Path: req.Path}, nil
}

func (m *mockService) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	m.lastGen = req
	if m.genErr != nil {
		return m.genErr
	}
	enc := json.NewEncoder(w)
	_ = enc.Encode(types.TokenLine{ID: "g", Token: "hi"})
	if flush != nil {
		flush()
	}
	_ = enc.Encode(types.FinalLine{ID: "g", Done: true, Content: "hi", StopReason: "limit"})
	if flush != nil {
		flush()
	}
	return nil
}

func (m *mockService) GenerateRaw(ctx context.Context, req types.GenerateRequest) ([]byte, error) {
	m.lastGen = req
	if m.genErr != nil {
		return nil, m.genErr
	}
	return m.raw, nil
}

func (m *mockService) Stop() { m.stops++ }

func (m *mockService) ListModels() ([]types.Model, error) {
	return append([]types.Model(nil), m.models...), m.modelsErr
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.Model{{ID: "m1"}, {ID: "m2"}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestModelsHandler_ScanError(t *testing.T) {
	svc := &mockService{modelsErr: io.ErrUnexpectedEOF}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Loaded: true, Architecture: "qwen2", TokensTotal: 10}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Loaded || body.Architecture != "qwen2" || body.TokensTotal != 10 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{ready: true}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no model") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestLoad(t *testing.T) {
	svc := &mockService{}
	w := postJSON(NewMux(svc), "/load", `{"path":"/m/a.gguf"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.LoadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "Success|llama" || svc.lastLoad.Path != "/m/a.gguf" {
		t.Fatalf("resp=%+v req=%+v", resp, svc.lastLoad)
	}
}

func TestLoad_RequiresModelOrPath(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/load", `{"model":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateStreams(t *testing.T) {
	svc := &mockService{}
	w := postJSON(NewMux(svc), "/generate", `{"prompt":"hi","max_tokens":4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d", len(lines))
	}
	if svc.lastGen.MaxTokens == nil || *svc.lastGen.MaxTokens != 4 {
		t.Fatalf("max_tokens not forwarded: %+v", svc.lastGen)
	}
}

func TestGenerateBadJSON(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/generate", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateUnsupportedMediaType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateBodyTooLarge(t *testing.T) {
	big := bytes.Repeat([]byte{'a'}, (1<<20)+10)
	w := postJSON(NewMux(&mockService{}), "/generate", string(big))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestGenerateValidation(t *testing.T) {
	for _, body := range []string{
		`{"prompt":"   "}`,
		`{"prompt":"hi","max_tokens":-1}`,
		`{"prompt":"hi","context_size":-5}`,
		`{"prompt":"hi","threads":-1}`,
	} {
		w := postJSON(NewMux(&mockService{}), "/generate", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", body, w.Code)
		}
	}
}

func TestGenerateRaw(t *testing.T) {
	svc := &mockService{raw: []byte("hello[CLOVER_STATS|1.00|2.00]")}
	w := postJSON(NewMux(svc), "/generate/raw", `{"prompt":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("content-type=%q", ct)
	}
	if w.Body.String() != "hello[CLOVER_STATS|1.00|2.00]" {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestStop(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stop", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("status=%d", w.Code)
		}
	}
	if svc.stops != 2 {
		t.Fatalf("stops=%d", svc.stops)
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	rec := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", rec.Code)
	}
}
