package errorpage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"local-traffic/internal/proxyerr"
)

// TestRenderNoMappingIncludesRequiredStrings pins scenario S1: a request
// with no matching entry renders the proxy-local framing text and the
// NoMapping title.
func TestRenderNoMappingIncludesRequiredStrings(t *testing.T) {
	err := proxyerr.New(proxyerr.NoMapping, proxyerr.PhaseMapping, "http://localhost:8080/unknown", nil)

	status, body := Render(err, "http://localhost:8080/unknown")

	assert.Equal(t, 502, status)
	html := string(body)
	assert.Contains(t, html, "An error happened while trying to proxy a remote exchange.")
	assert.Contains(t, html, "No mapping found in config file")
	assert.Contains(t, html, "http://localhost:8080/unknown")
}

func TestRenderMockMissUsesLiteralTitle(t *testing.T) {
	err := proxyerr.New(proxyerr.MockMiss, proxyerr.PhaseReceive, "/foo", nil)

	_, body := Render(err, "/foo")

	assert.Contains(t, string(body), "No corresponding mock found in the server.")
}

func TestRenderFileNotFoundUses404(t *testing.T) {
	err := proxyerr.New(proxyerr.FileNotFound, proxyerr.PhaseConnection, "file:///missing.txt", nil)

	status, _ := Render(err, "file:///missing.txt")

	assert.Equal(t, 404, status)
}

func TestRenderFileIOErrorUses500(t *testing.T) {
	err := proxyerr.New(proxyerr.FileIOError, proxyerr.PhaseConnection, "file:///secret", nil)

	status, _ := Render(err, "file:///secret")

	assert.Equal(t, 500, status)
}

func TestRenderAnnotatesKnownErrnoCode(t *testing.T) {
	err := proxyerr.New(proxyerr.DownstreamError, proxyerr.PhaseReceive, "/foo", assertError("stream reset"))
	err.Code = -505

	_, body := Render(err, "/foo")

	assert.Contains(t, string(body), "HTTP version unsupported by downstream.")
}

func TestRenderIncludesDownstreamURLAndStack(t *testing.T) {
	cause := assertError("dial tcp: connection refused")
	err := proxyerr.New(proxyerr.ConnectionFailed, proxyerr.PhaseConnection, "/foo", cause).
		WithDownstream("http://backend.internal:9000/foo")

	_, body := Render(err, "/foo")
	html := string(body)

	assert.Contains(t, html, "http://backend.internal:9000/foo")
	assert.Contains(t, html, "connection refused")
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error {
	return simpleError(msg)
}
