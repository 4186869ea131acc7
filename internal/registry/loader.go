package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"clover/internal/common/fsutil"
	"clover/internal/gguf"
	"clover/pkg/types"
)

// DefaultProbeTTL bounds how long parsed GGUF headers are reused.
const DefaultProbeTTL = 10 * time.Minute

// probe is the cached metadata of one file, valid while size and mtime match.
type probe struct {
	size    int64
	modTime time.Time
	model   types.Model
}

// GGUFScanner lists *.gguf files in a directory and enriches each with the
// metadata in its header. Headers are cached per path.
type GGUFScanner struct {
	cache *ttlcache.Cache[string, probe]
}

// NewGGUFScanner creates a scanner with DefaultProbeTTL.
func NewGGUFScanner() *GGUFScanner { return NewGGUFScannerTTL(DefaultProbeTTL) }

// NewGGUFScannerTTL creates a scanner whose cached headers expire after ttl.
func NewGGUFScannerTTL(ttl time.Duration) *GGUFScanner {
	c := ttlcache.New[string, probe](
		ttlcache.WithTTL[string, probe](ttl),
		ttlcache.WithDisableTouchOnHit[string, probe](),
	)
	go c.Start()
	return &GGUFScanner{cache: c}
}

// Close stops the cache expiration loop.
func (s *GGUFScanner) Close() { s.cache.Stop() }

// Scan returns the models in dir sorted by ID. ID is the file name; files
// whose header cannot be parsed are still listed, without metadata.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	models := make([]types.Model, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		models = append(models, s.describe(filepath.Join(abs, name), info))
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Describe returns the model entry for a single file.
func (s *GGUFScanner) Describe(path string) (types.Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Model{}, err
	}
	if info.IsDir() {
		return types.Model{}, fmt.Errorf("%s is a directory", path)
	}
	return s.describe(path, info), nil
}

func (s *GGUFScanner) describe(path string, info os.FileInfo) types.Model {
	if item := s.cache.Get(path); item != nil {
		p := item.Value()
		if p.size == info.Size() && p.modTime.Equal(info.ModTime()) {
			return p.model
		}
	}
	name := filepath.Base(path)
	m := types.Model{ID: name, Name: name, Path: path, SizeBytes: info.Size()}
	if md, err := gguf.ReadFile(path); err == nil {
		if n := md.Name(); n != "" {
			m.Name = n
		}
		m.Family = md.Architecture()
		m.Quant = md.FileType()
		if n, ok := md.ContextLength(); ok {
			m.ContextLength = n
		}
	}
	s.cache.Set(path, probe{size: info.Size(), modTime: info.ModTime(), model: m}, ttlcache.DefaultTTL)
	return m
}

func (s *GGUFScanner) forget(path string) { s.cache.Delete(path) }

// LoadDir scans dir once with a throwaway scanner.
func LoadDir(dir string) ([]types.Model, error) {
	s := NewGGUFScanner()
	defer s.Close()
	return s.Scan(dir)
}
