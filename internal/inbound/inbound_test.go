package inbound

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-traffic/internal/assets"
	"local-traffic/internal/channels"
	"local-traffic/internal/config"
	"local-traffic/internal/mockengine"
	"local-traffic/internal/state"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	st := state.New(cfg, t.TempDir()+"/config.json")
	coffer := assets.NewCoffer(1<<20, "")
	store := mockengine.NewStore(nil)
	ch := channels.New(st.ConfigPath(), coffer, store, st.Current, func(c *config.Config) {
		require.NoError(t, st.Replace(c))
	})
	return New(st, ch, store)
}

func TestServePipelineNoMappingRendersErrorPage(t *testing.T) {
	cfg := config.Default()
	s := newTestServer(t, cfg)

	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/nowhere", nil)
	w := httptest.NewRecorder()

	status := s.servePipeline(w, r, cfg)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, w.Body.String(), "nowhere")
}

func TestServePipelineProxiesToDownstream(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-From", "downstream")
		w.Write([]byte("hello"))
	}))
	defer downstream.Close()

	cfg := config.Default()
	cfg.Mapping = append(cfg.Mapping, config.MappingEntry{
		Key:         "/api/(.*)",
		Destination: config.Destination{DownstreamURL: downstream.URL + "/$1"},
	})
	s := newTestServer(t, cfg)

	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/api/ping", nil)
	w := httptest.NewRecorder()

	status := s.servePipeline(w, r, cfg)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", w.Body.String())
	assert.Equal(t, "downstream", w.Header().Get("X-From"))
}

func TestServePipelineMockModeReplaysStoredExchange(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "mock"
	cfg.Mapping = append(cfg.Mapping, config.MappingEntry{
		Key:         "/api/(.*)",
		Destination: config.Destination{DownstreamURL: "http://upstream.example/$1"},
	})
	s := newTestServer(t, cfg)

	require.NoError(t, s.mocks.Record(
		mockengine.Request{Method: http.MethodGet, URL: "http://upstream.example/ping", Header: map[string][]string{}},
		mockengine.Response{Status: http.StatusOK, Header: map[string][]string{"Content-Type": {"text/plain"}}, Body: []byte("recorded")},
	))

	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/api/ping", nil)
	w := httptest.NewRecorder()

	status := s.servePipeline(w, r, cfg)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "recorded", w.Body.String())
}

func TestServePipelineMockModeMissRendersMockMissError(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "mock"
	cfg.Mapping = append(cfg.Mapping, config.MappingEntry{
		Key:         "/api/(.*)",
		Destination: config.Destination{DownstreamURL: "http://upstream.example/$1"},
	})
	s := newTestServer(t, cfg)

	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/api/unmatched", nil)
	w := httptest.NewRecorder()

	status := s.servePipeline(w, r, cfg)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.True(t, strings.Contains(w.Body.String(), "Mock") || strings.Contains(w.Body.String(), "mock"))
}

func TestServeFeatureServesConfigChannel(t *testing.T) {
	cfg := config.Default()
	s := newTestServer(t, cfg)

	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/config/", nil)
	w := httptest.NewRecorder()

	status := s.servePipeline(w, r, cfg)

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), `"port"`)
}

func TestServeFeatureServesWorkerScript(t *testing.T) {
	cfg := config.Default()
	s := newTestServer(t, cfg)

	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/local-traffic-worker.js", nil)
	w := httptest.NewRecorder()

	status := s.servePipeline(w, r, cfg)

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
}

func TestServeFeatureAppliesCORSWhenDisableWebSecuritySet(t *testing.T) {
	cfg := config.Default()
	cfg.DisableWebSecurity = true
	s := newTestServer(t, cfg)

	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/config/", nil)
	r.Header.Set("Origin", "https://anywhere.example")
	w := httptest.NewRecorder()

	s.servePipeline(w, r, cfg)

	assert.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
}
