package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clover/internal/common/fsutil"
	"clover/internal/gguf"
	"clover/pkg/types"
)

// ErrNoModelsDir is returned by Import and Remove on a catalog without a
// directory.
var ErrNoModelsDir = errors.New("no models directory configured")

// Import copies the GGUF file at src into the catalog directory under its
// base name and returns the new entry. Existing files are never overwritten.
func (c *Catalog) Import(src string) (types.Model, error) {
	dir, err := c.root()
	if err != nil {
		return types.Model{}, err
	}
	src, err = fsutil.ExpandHome(strings.TrimSpace(src))
	if err != nil {
		return types.Model{}, err
	}
	if fsutil.IsDir(src) {
		return types.Model{}, fmt.Errorf("%s is a directory", src)
	}
	if !gguf.IsGGUF(src) {
		return types.Model{}, fmt.Errorf("%s is not a GGUF file", src)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if fsutil.PathExists(dst) {
		return types.Model{}, fmt.Errorf("%s already exists", dst)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.Model{}, fmt.Errorf("create models dir: %w", err)
	}
	if err := copyFile(src, dst); err != nil {
		return types.Model{}, err
	}
	return c.scanner.Describe(dst)
}

// Remove deletes the file of model id from the catalog directory.
func (c *Catalog) Remove(id string) error {
	if _, err := c.root(); err != nil {
		return err
	}
	m, ok, err := c.Lookup(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model %q: %w", id, os.ErrNotExist)
	}
	if err := os.Remove(m.Path); err != nil {
		return err
	}
	c.scanner.forget(m.Path)
	return nil
}

func (c *Catalog) root() (string, error) {
	if c.dir == "" {
		return "", ErrNoModelsDir
	}
	dir, err := fsutil.ExpandHome(c.dir)
	if err != nil {
		return "", err
	}
	return filepath.Abs(dir)
}

// copyFile writes src to a temporary file next to dst and renames it into
// place, so a partial copy never shows up as a model.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".import-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
