package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	store "github.com/jwebster45206/stealth-engine/pkg/storage"
)

// Scenario operations (filesystem-backed)

func isScenarioFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func (r *RedisStorage) ListScenarios(ctx context.Context) (map[string]string, error) {
	scenariosDir := filepath.Join(r.dataDir, "scenarios")
	scenarios := make(map[string]string)

	err := filepath.WalkDir(scenariosDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isScenarioFile(path) {
			return nil
		}

		s, err := scenario.Load(path)
		if err != nil {
			r.logger.Warn("Failed to load scenario file", "path", path, "error", err)
			return nil
		}

		scenarios[s.Name] = filepath.Base(path)
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to walk scenarios directory", "error", err)
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	return scenarios, nil
}

func (r *RedisStorage) GetScenario(ctx context.Context, filename string) (*scenario.Scenario, error) {
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return nil, fmt.Errorf("invalid scenario filename %q", filename)
	}
	path := filepath.Join(r.dataDir, "scenarios", filename)
	r.logger.Debug("Loading scenario", "filename", filename, "full_path", path, "data_dir", r.dataDir)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			r.logger.Error("Scenario file not found", "path", path, "error", err)
			return nil, fmt.Errorf("%w: %s", store.ErrScenarioNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	return scenario.Load(path)
}
