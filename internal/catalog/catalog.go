// Package catalog loads the evaluation matrix: which automation libraries to
// exercise and which detection targets to point them at. Both catalogs are
// JSON files with built-in defaults so a bare checkout runs without any
// configuration.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// targetsFile mirrors the on-disk shape of the target catalog.
type targetsFile struct {
	Targets []targetEntry `json:"test_targets"`
}

type targetEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
	BaseWait int    `json:"base_wait_seconds"`
}

// matrixFile mirrors the on-disk shape of the library matrix.
type matrixFile struct {
	Libraries []libraryEntry `json:"library_matrix"`
}

type libraryEntry struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Status   string   `json:"status"`
	Flags    []string `json:"flags,omitempty"`
}

// Catalog holds the loaded matrix and targets in file order.
type Catalog struct {
	targets   []schemas.TestTarget
	libraries []schemas.LibrarySpec
	logger    *zap.Logger
}

// Load reads both catalogs, falling back to the built-in defaults when a path
// is empty or the file is absent. A present but malformed file is an error;
// silently swapping a broken catalog for defaults would skew a whole run.
func Load(targetsPath, matrixPath string, logger *zap.Logger) (*Catalog, error) {
	c := &Catalog{logger: logger.Named("catalog")}

	targets, err := loadTargets(targetsPath, c.logger)
	if err != nil {
		return nil, err
	}
	libraries, err := loadLibraries(matrixPath, c.logger)
	if err != nil {
		return nil, err
	}

	c.targets = targets
	c.libraries = libraries
	c.logger.Info("Catalog loaded.",
		zap.Int("targets", len(targets)), zap.Int("libraries", len(libraries)))
	return c, nil
}

func loadTargets(path string, logger *zap.Logger) ([]schemas.TestTarget, error) {
	if path == "" {
		return defaultTargets(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warn("Target catalog not found, using built-ins.", zap.String("path", path))
		return defaultTargets(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading target catalog: %w", err)
	}

	var file targetsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing target catalog %s: %w", path, err)
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("target catalog %s lists no targets", path)
	}

	targets := make([]schemas.TestTarget, 0, len(file.Targets))
	for _, entry := range file.Targets {
		if entry.Name == "" || entry.URL == "" {
			return nil, fmt.Errorf("target catalog %s: entry missing name or url", path)
		}
		targets = append(targets, schemas.TestTarget{
			Name:     entry.Name,
			URL:      entry.URL,
			Category: schemas.TargetCategory(entry.Category),
			BaseWait: time.Duration(entry.BaseWait) * time.Second,
		})
	}
	return targets, nil
}

func loadLibraries(path string, logger *zap.Logger) ([]schemas.LibrarySpec, error) {
	if path == "" {
		return defaultLibraries(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warn("Library matrix not found, using built-ins.", zap.String("path", path))
		return defaultLibraries(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading library matrix: %w", err)
	}

	var file matrixFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing library matrix %s: %w", path, err)
	}
	if len(file.Libraries) == 0 {
		return nil, fmt.Errorf("library matrix %s lists no libraries", path)
	}

	libraries := make([]schemas.LibrarySpec, 0, len(file.Libraries))
	for _, entry := range file.Libraries {
		if entry.ID == "" {
			return nil, fmt.Errorf("library matrix %s: entry missing id", path)
		}
		libraries = append(libraries, schemas.LibrarySpec{
			ID:       entry.ID,
			Category: entry.Category,
			Status:   entry.Status,
			Flags:    entry.Flags,
		})
	}
	return libraries, nil
}

// Targets returns every target in catalog order.
func (c *Catalog) Targets() []schemas.TestTarget {
	return append([]schemas.TestTarget(nil), c.targets...)
}

// Libraries returns every library in catalog order.
func (c *Catalog) Libraries() []schemas.LibrarySpec {
	return append([]schemas.LibrarySpec(nil), c.libraries...)
}

// Library looks one entry up by id, case-insensitively.
func (c *Catalog) Library(id string) (schemas.LibrarySpec, bool) {
	for _, lib := range c.libraries {
		if strings.EqualFold(lib.ID, id) {
			return lib, true
		}
	}
	return schemas.LibrarySpec{}, false
}

// SelectLibraries resolves the run selection: an explicit id wins, otherwise
// the status filter applies, otherwise everything.
func (c *Catalog) SelectLibraries(id, statusFilter string) ([]schemas.LibrarySpec, error) {
	if id != "" {
		lib, ok := c.Library(id)
		if !ok {
			return nil, fmt.Errorf("library %q not in matrix", id)
		}
		return []schemas.LibrarySpec{lib}, nil
	}

	if statusFilter != "" {
		var out []schemas.LibrarySpec
		for _, lib := range c.libraries {
			if strings.EqualFold(lib.Status, statusFilter) {
				out = append(out, lib)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("no libraries with status %q", statusFilter)
		}
		return out, nil
	}

	return c.Libraries(), nil
}
