package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRecipe(t *testing.T) {
	r := DefaultRecipe()
	require.Len(t, r.Install, 4)
	assert.Equal(t, "python3 -m pip install --no-cache-dir flask", r.Install[0].Command)
	assert.Equal(t, "pip install --no-cache-dir flask", r.Install[3].Command)
	for _, s := range r.Install {
		assert.Equal(t, ExitZero, s.Success, s.Name)
	}
	for _, s := range r.Diagnostics {
		assert.Equal(t, Completed, s.Success, s.Name)
	}
}

func TestPredicateMet(t *testing.T) {
	assert.True(t, ExitZero.Met(ExecResult{ExitCode: 0}))
	assert.False(t, ExitZero.Met(ExecResult{ExitCode: 1}))
	assert.True(t, Completed.Met(ExecResult{ExitCode: 2}))
}

func TestParseRecipeOverridesSections(t *testing.T) {
	r, err := ParseRecipe([]byte(`
install:
  - command: uv pip install flask
  - name: fallback
    command: pip install flask
    success: completed
launch:
  command: python3 app.py
`))
	require.NoError(t, err)

	require.Len(t, r.Install, 2)
	assert.Equal(t, "install-1", r.Install[0].Name)
	assert.Equal(t, ExitZero, r.Install[0].Success)
	assert.Equal(t, "fallback", r.Install[1].Name)
	assert.Equal(t, Completed, r.Install[1].Success)
	assert.Equal(t, "python3 app.py", r.Launch.Command)
	assert.Equal(t, Completed, r.Launch.Success)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, DefaultRecipe().FailureDiagnostics, r.FailureDiagnostics)
}

func TestParseRecipeErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "install: [unclosed"},
		{"empty install", "install: []"},
		{"missing command", "install:\n  - name: x\n"},
		{"unknown predicate", "install:\n  - command: pip install flask\n    success: sometimes\n"},
		{"empty launch", "launch:\n  command: ' '\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecipe([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRecipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diagnostics: []\n"), 0o600))

	r, err := LoadRecipe(path)
	require.NoError(t, err)
	assert.Empty(t, r.Diagnostics)
	assert.Len(t, r.Install, 4)

	_, err = LoadRecipe(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
