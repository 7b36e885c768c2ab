package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-traffic/internal/config"
)

func literalCfg() *config.Config {
	return &config.Config{
		Mapping: config.Mapping{
			{Key: "/donate", Destination: config.Destination{DownstreamURL: "https://www.mysite.org/donate"}},
		},
	}
}

func TestOutboundThenInboundRoundTripsLiteralMapping(t *testing.T) {
	cfg := literalCfg()
	original := "click here: http://localhost:8080/donate to help"

	out := Compile(cfg, Outbound, "http", "localhost:8080")
	rewritten := ReplaceAll(original, out)
	assert.Equal(t, "click here: https://www.mysite.org/donate to help", rewritten)

	in := Compile(cfg, Inbound, "http", "localhost:8080")
	roundTripped := ReplaceAll(rewritten, in)
	assert.Equal(t, original, roundTripped)
}

// TestRequestBodyRewriteDoublesSlashForTrailingSlashKeys pins the exact
// transformation demonstrated in scenario S5: a mapping key ending in "/"
// produces a doubled slash on the downstream side, because the outbound
// search literal trims the key's trailing slash while the destination
// replacement keeps its own.
func TestRequestBodyRewriteDoublesSlashForTrailingSlashKeys(t *testing.T) {
	cfg := &config.Config{
		Mapping: config.Mapping{
			{Key: "/donate/", Destination: config.Destination{DownstreamURL: "https://www.mysite.org/donate/"}},
		},
	}
	original := "Please follow the link at http://localhost:8080/donate/help.html and pay me a drink"
	out := Compile(cfg, Outbound, "http", "localhost:8080")
	rewritten := ReplaceAll(original, out)
	assert.Equal(t, "Please follow the link at https://www.mysite.org/donate//help.html and pay me a drink", rewritten)
}

func TestWildcardKeyIsSkipped(t *testing.T) {
	cfg := &config.Config{
		Mapping: config.Mapping{
			{Key: "/static-webapp/(.*)", Destination: config.Destination{DownstreamURL: "file://some/folder/$$1"}},
		},
	}
	pairs := Compile(cfg, Inbound, "http", "localhost:8080")
	require.Empty(t, pairs)
}

func TestFirstMappingEntryWinsOnOverlap(t *testing.T) {
	cfg := &config.Config{
		Mapping: config.Mapping{
			{Key: "/a/", Destination: config.Destination{DownstreamURL: "https://shared.example/x/"}},
			{Key: "/b/", Destination: config.Destination{DownstreamURL: "https://shared.example/x/"}},
		},
	}
	pairs := Compile(cfg, Inbound, "http", "localhost:8080")
	rewritten := ReplaceAll("see https://shared.example/x/ now", pairs)
	assert.Equal(t, "see http://localhost:8080/a/ now", rewritten)
}

func TestHostPortSlashColonCollapse(t *testing.T) {
	rewritten := ReplaceAll("http://localhost:8080/: extra", nil)
	assert.Equal(t, "http://localhost:8080: extra", rewritten)
}
