package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEmbeddedWorkerScript(t *testing.T) {
	c := NewCoffer(1<<20, "")

	a, ok := c.Get("worker.js")
	require.True(t, ok)
	assert.Contains(t, string(a.Content), "local-traffic-worker.js")
	assert.NotEmpty(t, a.GzippedContent)
}

func TestGetMinifiesHTML(t *testing.T) {
	c := NewCoffer(1<<20, "")

	a, ok := c.Get("logs.html")
	require.True(t, ok)
	assert.Less(t, len(a.Content), 600)
	assert.Equal(t, "text/html", a.MIMEType)
}

func TestGetUnknownAssetReturnsFalse(t *testing.T) {
	c := NewCoffer(1<<20, "")

	_, ok := c.Get("nope.html")
	assert.False(t, ok)
}

func TestGetIsCachedAcrossCalls(t *testing.T) {
	c := NewCoffer(1<<20, "")

	first, _ := c.Get("recorder.html")
	second, _ := c.Get("recorder.html")
	assert.Same(t, first, second)
}

func TestOverrideDirTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recorder.html"), []byte("<html>override</html>"), 0o644))

	c := NewCoffer(1<<20, dir)
	a, ok := c.Get("recorder.html")
	require.True(t, ok)
	assert.Contains(t, string(a.Content), "override")
}
