package compile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func compiledManifest(t *testing.T) *Manifest {
	t.Helper()
	doc, defs := resolveSample(t)
	m, err := NewCompiler(zap.NewNop()).Compile(context.Background(), doc, defs, Options{})
	require.NoError(t, err)
	return m
}

func TestWriteProjectTree(t *testing.T) {
	dir := t.TempDir()
	m := compiledManifest(t)

	require.NoError(t, NewProjectWriter(zap.NewNop()).Write(dir, m))

	for _, name := range []string{"main.go", "go.mod", "metadata.json", "README.md", "Dockerfile", "run.sh", "prompt.txt"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	// run.sh must be executable.
	info, err := os.Stat(filepath.Join(dir, "run.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)

	mainSrc, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Contains(t, string(mainSrc), "compile.LoadManifest")
	assert.Contains(t, string(mainSrc), `"stdio"`)

	goMod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	require.NoError(t, err)
	assert.Contains(t, string(goMod), "module petstore")

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "listPets")
	assert.Contains(t, string(readme), "https://api.example.com/v1")
}

func TestWriteProjectDeterministic(t *testing.T) {
	m := compiledManifest(t)
	w := NewProjectWriter(zap.NewNop())

	dirA, dirB := t.TempDir(), t.TempDir()
	require.NoError(t, w.Write(dirA, m))
	require.NoError(t, w.Write(dirB, m))

	entries, err := os.ReadDir(dirA)
	require.NoError(t, err)
	for _, entry := range entries {
		a, err := os.ReadFile(filepath.Join(dirA, entry.Name()))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, entry.Name()))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), entry.Name())
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := compiledManifest(t)
	require.NoError(t, m.WriteFile(dir))

	loaded, err := LoadManifest(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, m.Name, loaded.Name)
	assert.Equal(t, m.ToolsCount, loaded.ToolsCount)
	require.Len(t, loaded.Tools, len(m.Tools))
	assert.Equal(t, m.Tools[0].Definition.Name, loaded.Tools[0].Definition.Name)
	assert.Equal(t, m.Tools[0].Handler.PathTemplate, loaded.Tools[0].Handler.PathTemplate)

	// The loaded manifest is directly servable.
	registry, err := loaded.Registry()
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())
	assert.Len(t, loaded.HandlerSpecs(), 2)
}

func TestLoadManifestRejectsInconsistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "name": "x", "version": "1", "base_url": "http://h",
	  "protocols": ["stdio"], "tools_count": 5, "tools": []
	}`), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tools_count")
}

func TestModulePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Petstore", "petstore"},
		{"My API Server!", "my-api-server"},
		{"", "generated-mcp-server"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, modulePath(tc.in), tc.in)
	}
}
