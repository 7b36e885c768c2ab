package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-traffic/internal/config"
)

func tableFrom(t *testing.T, entries ...config.MappingEntry) *Table {
	t.Helper()
	cfg := &config.Config{Mapping: config.Mapping(entries)}
	tbl, err := Compile(cfg)
	require.NoError(t, err)
	return tbl
}

func TestResolveFirstMatchWins(t *testing.T) {
	tbl := tableFrom(t,
		config.MappingEntry{Key: "/foo/", Destination: config.Destination{DownstreamURL: "https://foo.example"}},
		config.MappingEntry{Key: "", Destination: config.Destination{DownstreamURL: "https://default.example"}},
	)

	res, ok := tbl.Resolve("/foo/bar")
	require.True(t, ok)
	assert.Equal(t, "https://foo.example", res.TargetURL)

	res, ok = tbl.Resolve("/other")
	require.True(t, ok)
	assert.Equal(t, "https://default.example", res.TargetURL)
}

func TestResolveNoMatch(t *testing.T) {
	tbl := tableFrom(t,
		config.MappingEntry{Key: "/config/(.*)", Destination: config.Destination{DownstreamURL: "config://"}},
	)
	_, ok := tbl.Resolve("/foo/bar")
	assert.False(t, ok)
}

func TestResolveBackreferenceExpansion(t *testing.T) {
	tbl := tableFrom(t,
		config.MappingEntry{
			Key:         "/static-webapp/(.*)",
			Destination: config.Destination{DownstreamURL: "file://home/User/i/am/a/folder/$$1"},
		},
	)
	res, ok := tbl.Resolve("/static-webapp/index.html")
	require.True(t, ok)
	assert.Equal(t, "file://home/User/i/am/a/folder/index.html", res.TargetURL)
	assert.Equal(t, SchemeFile, res.Scheme)
}

func TestResolveReplaceBodyExpansion(t *testing.T) {
	tbl := tableFrom(t,
		config.MappingEntry{
			Key: "/donate/",
			Destination: config.Destination{
				DownstreamURL: "https://www.mysite.org/donate/",
				ReplaceBody:   "https://www.mysite.org/donate/",
			},
		},
	)
	res, ok := tbl.Resolve("/donate/help.html")
	require.True(t, ok)
	assert.Equal(t, "https://www.mysite.org/donate/", res.ReplaceBody)
}

func TestRewriteLocationAbsolute(t *testing.T) {
	loc, changed := RewriteLocation("https://www.test.info/test/next", "https://www.test.info/test/", "http://localhost:8080", false)
	assert.True(t, changed)
	assert.Equal(t, "http://localhost:8080/test/next", loc)
}

func TestRewriteLocationRelative(t *testing.T) {
	loc, changed := RewriteLocation("/next", "https://www.test.info/test/", "http://localhost:8080", false)
	assert.True(t, changed)
	assert.Equal(t, "http://localhost:8080/next", loc)
}

func TestRewriteLocationDisabled(t *testing.T) {
	loc, changed := RewriteLocation("https://www.test.info/x", "https://www.test.info/test/", "http://localhost:8080", true)
	assert.False(t, changed)
	assert.Equal(t, "https://www.test.info/x", loc)
}
