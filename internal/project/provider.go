// Package project loads project configurations from YAML or JSON files.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/opslens/internal/model"
)

// ErrNotFound is returned when no project has the requested id.
var ErrNotFound = eris.New("project not found")

// Provider resolves project configurations.
type Provider interface {
	Get(ctx context.Context, id string) (model.ProjectConfig, error)
	List(ctx context.Context, includeArchived bool) ([]model.ProjectConfig, error)
}

// FileProvider reads one file per project from an active and an archived
// directory. Files are re-read on every call so edits apply without restart.
type FileProvider struct {
	dir         string
	archivedDir string
}

// NewFileProvider creates a provider over dir and archivedDir. Either may be
// empty or missing.
func NewFileProvider(dir, archivedDir string) *FileProvider {
	return &FileProvider{dir: dir, archivedDir: archivedDir}
}

// Get returns the project with id, preferring the active directory.
func (p *FileProvider) Get(ctx context.Context, id string) (model.ProjectConfig, error) {
	all, err := p.List(ctx, true)
	if err != nil {
		return model.ProjectConfig{}, err
	}
	for _, cfg := range all {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return model.ProjectConfig{}, eris.Wrapf(ErrNotFound, "project: %s", id)
}

// List returns active projects sorted by id, followed by archived ones when
// includeArchived is set. Unreadable files are logged and skipped.
func (p *FileProvider) List(ctx context.Context, includeArchived bool) ([]model.ProjectConfig, error) {
	out, err := p.loadDir(ctx, p.dir, model.ProjectActive)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		archived, err := p.loadDir(ctx, p.archivedDir, model.ProjectArchived)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(out))
		for _, c := range out {
			seen[c.ID] = true
		}
		for _, c := range archived {
			if !seen[c.ID] {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (p *FileProvider) loadDir(ctx context.Context, dir string, status model.ProjectStatus) ([]model.ProjectConfig, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "project: read dir %s", dir)
	}

	var out []model.ProjectConfig
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "project: list")
		}
		if e.IsDir() || !isProjectFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		cfg, err := LoadFile(path)
		if err != nil {
			zap.L().Warn("project: skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}
		if status == model.ProjectArchived || cfg.Status == "" {
			cfg.Status = status
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadFile decodes one project file. JSON is chosen by extension, anything
// else is parsed as YAML. A missing id falls back to the file name.
func LoadFile(path string) (model.ProjectConfig, error) {
	var cfg model.ProjectConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "project: read %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, eris.Wrapf(err, "project: parse %s", path)
	}
	if cfg.ID == "" {
		cfg.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return cfg, nil
}

func isProjectFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
