package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-traffic/internal/mapping"
)

func TestDoFileServesLocalFile(t *testing.T) {
	d := New(1000, 1000, false)
	resp, err := d.doFile("file://testdata/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "hello world")
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header["Content-Type"][0])
}

func TestDoFileMissingReturnsFileNotFound(t *testing.T) {
	d := New(1000, 1000, false)
	_, err := d.doFile("file://testdata/does-not-exist.txt")
	require.Error(t, err)
}

func TestDoDataBase64(t *testing.T) {
	d := New(1000, 1000, false)
	resp, err := d.doData("data:text/plain;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(resp.Body))
	assert.Equal(t, "text/plain", resp.Header["Content-Type"][0])
}

func TestDoDataPercentEncoded(t *testing.T) {
	d := New(1000, 1000, false)
	resp, err := d.doData("data:text/plain,hello%20world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(resp.Body))
}

func TestDoFeatureSchemeIsRejected(t *testing.T) {
	d := New(1000, 1000, false)
	_, err := d.Do(nil, mapping.Resolved{Scheme: mapping.SchemeConfig, TargetURL: "config://"}, Request{Method: "GET", URL: "/config/"})
	require.Error(t, err)
}
