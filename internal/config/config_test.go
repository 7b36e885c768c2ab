package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIncludesBuiltinRoutes(t *testing.T) {
	cfg := Default()
	for _, want := range []string{"/config/(.*)", "/logs/(.*)", "/recorder/(.*)", "/local-traffic-worker.js"} {
		_, ok := cfg.Mapping.Get(want)
		assert.True(t, ok, "missing builtin route %s", want)
	}
}

func TestLoadWritesDefaultOnceWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local-traffic.json")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk Config
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, 8080, onDisk.Port)
}

func TestLoadMissingWithoutWriteIsSilent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "absent.json")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadCorruptJSONFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestMappingOrderSurvivesRoundTrip(t *testing.T) {
	raw := `{"mapping":{"/b/":"https://b.example","/a/":"https://a.example","":"https://default.example"}}`
	dir := t.TempDir()
	path := filepath.Join(dir, "ordered.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path, false)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(cfg.Mapping), 3)
	assert.Equal(t, "/b/", cfg.Mapping[0].Key)
	assert.Equal(t, "/a/", cfg.Mapping[1].Key)
	// default route must have been moved to the very end regardless of
	// its original position.
	assert.Equal(t, "", cfg.Mapping[len(cfg.Mapping)-1].Key)
}

func TestDirectoryDestinationNormalization(t *testing.T) {
	raw := `{"mapping":{"/static-webapp":"file://home/User/i/am/a/folder"}}`
	dir := t.TempDir()
	path := filepath.Join(dir, "dir.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path, false)
	require.NoError(t, err)

	dest, ok := cfg.Mapping.Get("/static-webapp/(.*)")
	require.True(t, ok)
	assert.Equal(t, "file://home/User/i/am/a/folder/$$1", dest.DownstreamURL)
}

func TestApplyPatchIsSparse(t *testing.T) {
	cfg := Default()
	cfg.Port = 9090

	patched, err := ApplyPatch(cfg, []byte(`{"websocket":"true"}`))
	require.NoError(t, err)

	assert.Equal(t, 9090, patched.Port, "unrelated fields must survive a sparse patch")
	assert.True(t, patched.WebSocket)
	assert.Equal(t, 9090, cfg.Port, "ApplyPatch must not mutate its input")
}

func TestApplyPatchReplacesMappingWholesale(t *testing.T) {
	cfg := Default()
	patched, err := ApplyPatch(cfg, []byte(`{"mapping":{"/x/":"https://x.example"}}`))
	require.NoError(t, err)

	_, ok := patched.Mapping.Get("/x/")
	assert.True(t, ok)
}
