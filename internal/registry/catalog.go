package registry

import (
	"strings"

	"clover/pkg/types"
)

// Catalog serves the models of one directory, rescanning on every call so
// files added at runtime show up. Unchanged files hit the scanner cache.
type Catalog struct {
	dir     string
	scanner *GGUFScanner
}

// NewCatalog returns a catalog over dir. An empty dir yields no models.
func NewCatalog(dir string, scanner *GGUFScanner) *Catalog {
	if scanner == nil {
		scanner = NewGGUFScanner()
	}
	return &Catalog{dir: strings.TrimSpace(dir), scanner: scanner}
}

// Models lists the directory.
func (c *Catalog) Models() ([]types.Model, error) {
	if c.dir == "" {
		return []types.Model{}, nil
	}
	return c.scanner.Scan(c.dir)
}

// Lookup finds a model by ID, case-insensitively. A directory that cannot
// be read is an error, not a miss.
func (c *Catalog) Lookup(id string) (types.Model, bool, error) {
	models, err := c.Models()
	if err != nil {
		return types.Model{}, false, err
	}
	for _, m := range models {
		if strings.EqualFold(m.ID, id) {
			return m, true, nil
		}
	}
	return types.Model{}, false, nil
}

// Close releases the scanner.
func (c *Catalog) Close() { c.scanner.Close() }
