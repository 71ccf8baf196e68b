package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidScenarioFilename(t *testing.T) {
	assert.True(t, isValidScenarioFilename("warehouse"))
	assert.True(t, isValidScenarioFilename("night_shift"))
	assert.True(t, isValidScenarioFilename("x.prototype"))
	assert.False(t, isValidScenarioFilename("Night-Shift"))
	assert.False(t, isValidScenarioFilename("bad_"))
}

func TestValidateFile(t *testing.T) {
	t.Run("sample scenarios are valid", func(t *testing.T) {
		files, err := filepath.Glob("../../data/scenarios/*.*")
		require.NoError(t, err)
		require.NotEmpty(t, files)
		for _, f := range files {
			assert.NoError(t, validateFile(f), f)
		}
	})

	t.Run("reports entity problems", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
name: Broken
player:
  start: {x: 0, y: 0}
npcs:
  - id: clerk
    name: mara
    position: {x: 1, y: 1}
    interaction_radius: 0
    trust: {start: 50, max: 100, low: 20, mid: 50, high: 80}
    dialogue:
      timeout: {label: "(say nothing)", trust_delta: -5}
      layers:
        - npc_line: "Hm?"
          choices:
            - {label: "Hi", trust_delta: 5}
guards:
  - id: g1
    patrol_speed: 1
    vision: {radius: 5, fov_degrees: 90}
`), 0o644))

		err := validateFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NPC clerk (Mara)")
		assert.Contains(t, err.Error(), "interaction_radius must be positive")
		assert.Contains(t, err.Error(), "patrol route is empty")
	})

	t.Run("rejects bad filename", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "Bad-Name.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
		err := validateFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "snake_case")
	})
}
