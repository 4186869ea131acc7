package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clover/internal/gguf"
)

func TestCatalog_ImportCopiesIntoDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Qwen.gguf")
	writeGGUF(t, src, []gguf.KV{{Key: "general.architecture", Value: "qwen2"}})
	dir := filepath.Join(t.TempDir(), "models")
	c := NewCatalog(dir, nil)
	defer c.Close()

	m, err := c.Import(src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if m.ID != "Qwen.gguf" || m.Family != "qwen2" || filepath.Dir(m.Path) != dir {
		t.Fatalf("model=%+v", m)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source removed: %v", err)
	}
	if _, ok, err := c.Lookup("qwen.gguf"); !ok || err != nil {
		t.Fatalf("imported model not listed: %v", err)
	}
	if _, err := c.Import(src); err == nil {
		t.Fatalf("expected error on second import")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("stray files: %v", entries)
	}
}

func TestCatalog_ImportRejects(t *testing.T) {
	d := t.TempDir()
	c := NewCatalog(filepath.Join(d, "models"), nil)
	defer c.Close()
	notGGUF := filepath.Join(d, "x.gguf")
	if err := os.WriteFile(notGGUF, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Import(notGGUF); err == nil {
		t.Fatalf("expected error for non-GGUF file")
	}
	if _, err := c.Import(d); err == nil {
		t.Fatalf("expected error for directory")
	}
	if _, err := c.Import(filepath.Join(d, "missing.gguf")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	empty := NewCatalog("", nil)
	defer empty.Close()
	if _, err := empty.Import(notGGUF); !errors.Is(err, ErrNoModelsDir) {
		t.Fatalf("expected ErrNoModelsDir, got %v", err)
	}
	if err := empty.Remove("x.gguf"); !errors.Is(err, ErrNoModelsDir) {
		t.Fatalf("expected ErrNoModelsDir, got %v", err)
	}
}

func TestCatalog_Remove(t *testing.T) {
	dir := t.TempDir()
	writeGGUF(t, filepath.Join(dir, "a.gguf"), nil)
	writeGGUF(t, filepath.Join(dir, "b.gguf"), nil)
	c := NewCatalog(dir, nil)
	defer c.Close()

	if err := c.Remove("A.gguf"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	models, err := c.Models()
	if err != nil || len(models) != 1 || models[0].ID != "b.gguf" {
		t.Fatalf("models=%v err=%v", models, err)
	}
	if err := c.Remove("a.gguf"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}
