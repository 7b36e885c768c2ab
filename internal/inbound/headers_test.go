package inbound

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"local-traffic/internal/config"
)

func TestTranslateOutboundHeadersDropsHopByHopAndRewritesHost(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/x", nil)
	r.Header.Set("Connection", "keep-alive")
	r.Header.Set("Referer", "http://proxy.local/earlier")

	header := cloneHeader(r.Header)
	translateOutboundHeaders(header, r, "http://upstream.example/x")

	_, hasConnection := header["Connection"]
	assert.False(t, hasConnection)
	assert.Equal(t, []string{"upstream.example"}, header["Host"])
	assert.Equal(t, []string{"http://upstream.example/earlier"}, header["Referer"])
}

func TestTranslateInboundHeadersRewritesSetCookieDomain(t *testing.T) {
	header := map[string][]string{
		"Set-Cookie": {"session=abc; Domain=upstream.example; Path=/"},
	}
	translateInboundHeaders(header, "http://upstream.example/x", "http://proxy.local", &config.Config{})

	assert.Contains(t, header["Set-Cookie"][0], "Domain=proxy.local")
}

func TestTranslateInboundHeadersRewritesSetCookieSubdomain(t *testing.T) {
	header := map[string][]string{
		"Set-Cookie": {"session=abc; Domain=.upstream.example"},
	}
	translateInboundHeaders(header, "http://api.upstream.example/x", "http://proxy.local", &config.Config{})

	assert.Contains(t, header["Set-Cookie"][0], "Domain=proxy.local")
}

func TestTranslateInboundHeadersRewritesLocation(t *testing.T) {
	header := map[string][]string{
		"Location": {"http://upstream.example/next"},
	}
	translateInboundHeaders(header, "http://upstream.example/x", "http://proxy.local", &config.Config{})

	assert.Equal(t, []string{"http://proxy.local/next"}, header["Location"])
}

func TestTranslateInboundHeadersLeavesLocationWhenDisabled(t *testing.T) {
	header := map[string][]string{
		"Location": {"http://upstream.example/next"},
	}
	translateInboundHeaders(header, "http://upstream.example/x", "http://proxy.local", &config.Config{DontTranslateLocationHeader: true})

	assert.Equal(t, []string{"http://upstream.example/next"}, header["Location"])
}
