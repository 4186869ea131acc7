package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"clover/internal/engine"
	"clover/internal/engine/enginetest"
	"clover/pkg/types"
)

type fakeCatalog struct {
	models []types.Model
	err    error
}

func (c fakeCatalog) Models() ([]types.Model, error) { return c.models, c.err }

func (c fakeCatalog) Lookup(id string) (types.Model, bool, error) {
	if c.err != nil {
		return types.Model{}, false, c.err
	}
	for _, m := range c.models {
		if m.ID == id {
			return m, true, nil
		}
	}
	return types.Model{}, false, nil
}

func newTestService(t *testing.T, b *enginetest.Backend) (*Service, *Session, string) {
	t.Helper()
	s, _ := newTestSession(t, b)
	path := writeModelFile(t, "tiny.gguf")
	svc := NewService(ServiceConfig{
		Session: s,
		Catalog: fakeCatalog{models: []types.Model{{ID: "tiny.gguf", Path: path}}},
		Now:     stepClock(time.Second),
		NewID:   func() string { return "gen-1" },
	})
	return svc, s, path
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestService_LoadByIDAndPath(t *testing.T) {
	b := enginetest.New()
	b.Arch = "qwen2"
	svc, _, path := newTestService(t, b)

	resp, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"})
	if err != nil {
		t.Fatalf("load by id: %v", err)
	}
	if resp.Status != "Success|qwen2" || resp.Architecture != "qwen2" || resp.Path != path {
		t.Fatalf("resp=%+v", resp)
	}
	if _, err := svc.Load(context.Background(), types.LoadRequest{Path: path}); err != nil {
		t.Fatalf("load by path: %v", err)
	}
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "nope"}); !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
	if _, err := svc.Load(context.Background(), types.LoadRequest{}); !IsLoadError(err) {
		t.Fatalf("expected load error for empty request, got %v", err)
	}
	if svc.Ready() {
		t.Fatalf("ready after a failed load")
	}
}

func TestService_GenerateStreamsNDJSON(t *testing.T) {
	b := enginetest.New()
	b.EOS = 0
	b.Script = []engine.Token{'a', 'b', 0}
	b.Pieces = map[engine.Token]string{'a': "Hel", 'b': "lo"}
	svc, _, _ := newTestService(t, b)
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	flushes := 0
	err := svc.Generate(context.Background(), types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(8)}, &buf, func() { flushes++ })
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("lines=%v", lines)
	}
	if lines[0]["token"] != "Hel" || lines[1]["token"] != "lo" || lines[0]["id"] != "gen-1" {
		t.Fatalf("token lines=%v", lines[:2])
	}
	final := lines[2]
	if final["done"] != true || final["content"] != "Hello" || final["stop_reason"] != "eos" {
		t.Fatalf("final=%v", final)
	}
	stats, ok := final["stats"].(map[string]any)
	if !ok || stats["generated_tokens"] != float64(2) || stats["context_size"] != float64(DefaultContextSize) {
		t.Fatalf("stats=%v", final["stats"])
	}
	if flushes != 3 {
		t.Fatalf("flushes=%d", flushes)
	}
}

func TestService_GenerateDefaultsMaxTokens(t *testing.T) {
	b := enginetest.New()
	svc, _, _ := newTestService(t, b)
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := svc.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"}, &buf, nil); err != nil {
		t.Fatal(err)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != DefaultMaxTokens+1 {
		t.Fatalf("lines=%d", len(lines))
	}
	buf.Reset()
	if err := svc.Generate(context.Background(), types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(0)}, &buf, nil); err != nil {
		t.Fatal(err)
	}
	if lines := decodeLines(t, &buf); len(lines) != 1 || lines[0]["content"] != "" {
		t.Fatalf("explicit zero must generate nothing: %v", lines)
	}
}

func TestService_GenerateWithoutModel(t *testing.T) {
	svc, _, _ := newTestService(t, enginetest.New())
	var buf bytes.Buffer
	if err := svc.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"}, &buf, nil); !IsNoModel(err) {
		t.Fatalf("expected no model, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing may be written on failure: %q", buf.String())
	}
	if _, err := svc.GenerateRaw(context.Background(), types.GenerateRequest{Prompt: "hi"}); !IsNoModel(err) {
		t.Fatalf("expected no model from raw, got %v", err)
	}
}

func TestService_GenerateRaw(t *testing.T) {
	b := enginetest.New()
	b.Pieces = map[engine.Token]string{'x': "y"}
	svc, _, _ := newTestService(t, b)
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatal(err)
	}
	buf, err := svc.GenerateRaw(context.Background(), types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(3)})
	if err != nil {
		t.Fatal(err)
	}
	text, _, _, ok := SplitStats(buf)
	if !ok || text != "yyy" {
		t.Fatalf("raw=%q", buf)
	}

	b.FailDecodeAt = len(b.Decodes()) + 1
	if _, err := svc.GenerateRaw(context.Background(), types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(3)}); !errors.Is(err, errEmptyResult) {
		t.Fatalf("expected empty result error, got %v", err)
	}
}

func TestService_SingleFlightAndStop(t *testing.T) {
	b := enginetest.New()
	started := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	b.OnSample = func(n int) {
		if n == 0 {
			once.Do(func() { close(started) })
			<-proceed
		}
	}
	svc, _, _ := newTestService(t, b)
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatal(err)
	}

	var (
		buf  bytes.Buffer
		gerr error
		wg   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		gerr = svc.Generate(context.Background(), types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(1000)}, &buf, nil)
	}()
	<-started

	if err := svc.Generate(context.Background(), types.GenerateRequest{Prompt: "again"}, &bytes.Buffer{}, nil); !IsTooBusy(err) {
		t.Fatalf("expected too busy for concurrent generate, got %v", err)
	}
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); !IsTooBusy(err) {
		t.Fatalf("expected too busy for load during generate, got %v", err)
	}
	if st := svc.Status(); !st.Generating {
		t.Fatalf("status must report generating: %+v", st)
	}
	svc.Stop()
	close(proceed)
	wg.Wait()
	if gerr != nil {
		t.Fatalf("first generate: %v", gerr)
	}
	lines := decodeLines(t, &buf)
	final := lines[len(lines)-1]
	if final["stop_reason"] != "cancelled" || len(lines) != 2 {
		t.Fatalf("expected one token then cancel, got %v", lines)
	}

	// Admission is released afterwards.
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatalf("load after generate: %v", err)
	}
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("client gone")
}

func TestService_WriteFailureStopsGeneration(t *testing.T) {
	b := enginetest.New()
	svc, sess, _ := newTestService(t, b)
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatal(err)
	}
	w := &failingWriter{}
	err := svc.Generate(context.Background(), types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(500)}, w, nil)
	if err == nil || !strings.Contains(err.Error(), "client gone") {
		t.Fatalf("expected write error, got %v", err)
	}
	if w.writes != 1 {
		t.Fatalf("writes=%d", w.writes)
	}
	if st := sess.Status(); st.LastStop != StopCancelled || st.LastStats.GeneratedTokens != 1 {
		t.Fatalf("generation kept running after write failure: %+v", st)
	}
}

func TestService_StatusAndModels(t *testing.T) {
	b := enginetest.New()
	b.Arch = "llama"
	svc, _, path := newTestService(t, b)
	st := svc.Status()
	if st.Loaded || st.LastStats != nil || st.UptimeSeconds != 1 {
		t.Fatalf("initial status=%+v", st)
	}
	if _, err := svc.Load(context.Background(), types.LoadRequest{Path: path}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Generate(context.Background(), types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(2)}, &bytes.Buffer{}, nil); err != nil {
		t.Fatal(err)
	}
	st = svc.Status()
	if !st.Loaded || st.Architecture != "llama" || st.ModelPath != path || st.GenerationsTotal != 1 || st.TokensTotal != 2 {
		t.Fatalf("status=%+v", st)
	}
	if st.LastStats == nil || st.LastStats.GeneratedTokens != 2 || st.LastStopReason != "limit" {
		t.Fatalf("last stats=%+v", st.LastStats)
	}
	models, err := svc.ListModels()
	if err != nil || len(models) != 1 {
		t.Fatalf("models=%v err=%v", models, err)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if svc.Ready() {
		t.Fatalf("ready after close")
	}
}

func TestService_NoCatalog(t *testing.T) {
	s, _ := newTestSession(t, enginetest.New())
	svc := NewService(ServiceConfig{Session: s})
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "x"}); !IsModelNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	models, err := svc.ListModels()
	if err != nil || models == nil || len(models) != 0 {
		t.Fatalf("models=%v err=%v", models, err)
	}
}

func TestService_DeadlineBeforeFirstFragment(t *testing.T) {
	b := enginetest.New()
	b.Pieces = map[engine.Token]string{'x': ""}
	b.OnSample = func(int) { time.Sleep(300 * time.Millisecond) }
	svc, _, _ := newTestService(t, b)
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var buf bytes.Buffer
	err := svc.Generate(ctx, types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(100)}, &buf, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing may be written: %q", buf.String())
	}

	rctx, rcancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer rcancel()
	if _, err := svc.GenerateRaw(rctx, types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(100)}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded from raw, got %v", err)
	}
}

func TestService_DeadlineAfterStreamStartedEndsCancelled(t *testing.T) {
	b := enginetest.New()
	b.OnSample = func(n int) {
		if n == 2 {
			time.Sleep(600 * time.Millisecond)
		}
	}
	svc, _, _ := newTestService(t, b)
	if _, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	var buf bytes.Buffer
	if err := svc.Generate(ctx, types.GenerateRequest{Prompt: "hi", MaxTokens: intPtr(100)}, &buf, nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	lines := decodeLines(t, &buf)
	final := lines[len(lines)-1]
	if final["done"] != true || final["stop_reason"] != "cancelled" || len(lines) != 4 {
		t.Fatalf("lines=%v", lines)
	}
}

func TestService_LoadSurfacesCatalogError(t *testing.T) {
	s, _ := newTestSession(t, enginetest.New())
	svc := NewService(ServiceConfig{Session: s, Catalog: fakeCatalog{err: errors.New("read dir: permission denied")}})
	_, err := svc.Load(context.Background(), types.LoadRequest{Model: "tiny.gguf"})
	if err == nil || IsModelNotFound(err) || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("expected catalog error, got %v", err)
	}
}
