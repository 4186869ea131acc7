package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"clover/internal/engine"
	"clover/internal/gguf"
	"clover/internal/httpapi"
	"clover/internal/registry"
	"clover/internal/session"
)

// createTempModelsDir writes header-only GGUF files carrying an architecture
// key and returns the directory.
func createTempModelsDir(t *testing.T, arch string, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		f, err := os.Create(filepath.Join(dir, n))
		if err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
		err = gguf.Encode(f, []gguf.KV{
			{Key: "general.architecture", Value: arch},
			{Key: "general.name", Value: n},
			{Key: arch + ".context_length", Value: uint32(4096)},
		})
		_ = f.Close()
		if err != nil {
			t.Fatalf("encode %s: %v", n, err)
		}
	}
	return dir
}

type testServer struct {
	*httptest.Server
	svc *session.Service
	pub *session.MemoryPublisher
}

func newServerForDir(t *testing.T, modelsDir string, backend engine.Backend) *testServer {
	t.Helper()
	pub := session.NewMemoryPublisher()
	sess := session.NewWithConfig(session.Config{Backend: backend, Publisher: pub})
	catalog := registry.NewCatalog(modelsDir, registry.NewGGUFScanner())
	t.Cleanup(catalog.Close)
	svc := session.NewService(session.ServiceConfig{Session: sess, Catalog: catalog})
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, svc: svc, pub: pub}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func ndjsonLines(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}
