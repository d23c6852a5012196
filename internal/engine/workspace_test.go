package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "lineage_add", true},
		{"digits and dashes", "run-01.v2", true},
		{"uuid suffix", "add_0190a3b2-7c1e-7f00-8000-000000000000", true},
		{"empty", "", false},
		{"leading dot", ".hidden", false},
		{"parent reference", "a..b", false},
		{"path separator", "dir/name", false},
		{"space", "two words", false},
		{"leading dash", "-flag", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidName), "got %v", err)
		})
	}
}

func TestWorkspace_Lifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tests", "lineage", "temp")
	ws := NewWorkspace(dir)

	assert.Equal(t, dir, ws.Dir())
	assert.Equal(t, filepath.Join(dir, "m.dml"), ws.ScriptPath("m"))
	assert.Equal(t, filepath.Join(dir, "m.txt"), ws.OutputPath("m"))

	require.NoError(t, ws.Ensure())
	require.NoError(t, ws.Ensure(), "existing directory is not an error")
	assert.DirExists(t, dir)

	require.NoError(t, os.WriteFile(ws.OutputPath("m"), []byte("x"), 0o644))
	require.NoError(t, ws.Remove())
	assert.NoDirExists(t, dir)
	require.NoError(t, ws.Remove(), "removing twice is not an error")
}

func TestWorkspace_EnsureFailsUnderFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	err := NewWorkspace(filepath.Join(parent, "temp")).Ensure()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create workspace")
}

func TestWorkspace_ExistingDirKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(foreign, []byte("name: keep"), 0o644))

	drv := newHelperDriver(t)
	drv.ws = NewWorkspace(dir)
	_, err := drv.Execute(context.Background(), addScript, "shared")
	require.NoError(t, err)
	assert.False(t, drv.Workspace().Created())
	assert.FileExists(t, drv.Workspace().ScriptPath("shared"))

	require.NoError(t, drv.Workspace().Remove())
	assert.DirExists(t, dir)
	assert.FileExists(t, foreign)
	assert.NoFileExists(t, drv.Workspace().ScriptPath("shared"))
	assert.NoFileExists(t, drv.Workspace().OutputPath("shared"))
}

func TestWorkspace_CreatedDirIsRemoved(t *testing.T) {
	drv := newHelperDriver(t)
	_, err := drv.Execute(context.Background(), addScript, "owned")
	require.NoError(t, err)
	assert.True(t, drv.Workspace().Created())

	require.NoError(t, drv.Workspace().Remove())
	assert.NoDirExists(t, drv.Workspace().Dir())
}
