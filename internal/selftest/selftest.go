// Package selftest drives the proxy's own exchange pipeline against a
// fixed set of scenarios (spec §8's seven testable properties and
// scenarios S1, S2, S4, S5, S6 and S7; S3's HTTP/2-to-HTTP/1.1 fallback is
// not exercised here) and reports pass/fail per scenario. It is wired behind the
// --crash-test CLI flag rather than go test, so it runs against a real
// built binary with no test-only hooks.
//
// Grounded on the teacher's record.go self-check (replaying its own
// recorded stubs on startup to confirm the matcher round-trips) adapted
// from a single matcher check into a battery of independent scenarios.
package selftest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"local-traffic/internal/assets"
	"local-traffic/internal/bodycodec"
	"local-traffic/internal/channels"
	"local-traffic/internal/config"
	"local-traffic/internal/inbound"
	"local-traffic/internal/mapping"
	"local-traffic/internal/mockengine"
	"local-traffic/internal/rewrite"
	"local-traffic/internal/state"
	"local-traffic/internal/wsframe"
)

// Result is the outcome of one scenario.
type Result struct {
	Name string
	Err  error
}

// Run executes every scenario and returns one Result per scenario, in a
// fixed order, regardless of earlier failures.
func Run() []Result {
	scenarios := []struct {
		name string
		fn   func() error
	}{
		{"property: defaults include builtin routes", propertyDefaultsIncludeBuiltinRoutes},
		{"property: first match wins", propertyFirstMatchWins},
		{"property: literal body rewrite round-trips", propertyBodyRewriteRoundTrips},
		{"property: layered codec round-trips", propertyCodecRoundTrips},
		{"property: websocket frame header is exact", propertyWebSocketFrameHeaderExact},
		{"property: mock matching picks highest overlap", propertyMockHighestOverlapWins},
		{"property: autoRecord clears on mock to proxy", propertyAutoRecordClearsOnModeSwitch},
		{"S1: no mapping renders NoMapping error page", scenarioNoMapping},
		{"S2: proxies a matched route end to end", scenarioHappyPath},
		{"S4: response body url rewrite under layered compression", scenarioResponseBodyRewriteLayeredCompression},
		{"S5: request body url rewrite", scenarioRequestBodyRewrite},
		{"S6: mock matching with header supersets", scenarioMockSupersetMatch},
		{"S7: directory destination normalizes to a capture route", scenarioDirectoryNormalization},
	}

	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		results = append(results, Result{Name: s.name, Err: s.fn()})
	}
	return results
}

func fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// --- properties ---------------------------------------------------------

func propertyDefaultsIncludeBuiltinRoutes() error {
	cfg := config.Default()
	for _, key := range []string{"/config/(.*)", "/logs/(.*)", "/recorder/(.*)", "/local-traffic-worker.js"} {
		if _, ok := cfg.Mapping.Get(key); !ok {
			return fail("default config missing builtin route %q", key)
		}
	}
	return nil
}

func propertyFirstMatchWins() error {
	cfg := config.Default()
	cfg.Mapping = append(config.Mapping{
		{Key: "/same", Destination: config.Destination{DownstreamURL: "http://first.example/"}},
		{Key: "/same", Destination: config.Destination{DownstreamURL: "http://second.example/"}},
	}, cfg.Mapping...)

	table, err := mapping.Compile(cfg)
	if err != nil {
		return fail("compiling mapping: %w", err)
	}
	resolved, ok := table.Resolve("/same")
	if !ok {
		return fail("expected a match for /same")
	}
	if resolved.TargetURL != "http://first.example/" {
		return fail("expected first declared route to win, got %q", resolved.TargetURL)
	}
	return nil
}

func propertyBodyRewriteRoundTrips() error {
	cfg := config.Default()
	cfg.Mapping = append(config.Mapping{
		{Key: "/widget", Destination: config.Destination{DownstreamURL: "https://upstream.example/widget"}},
	}, cfg.Mapping...)

	inPairs := rewrite.Compile(cfg, rewrite.Inbound, "http", "localhost:8080")
	outPairs := rewrite.Compile(cfg, rewrite.Outbound, "http", "localhost:8080")

	downstreamText := "see https://upstream.example/widget for details"
	rewritten := rewrite.ReplaceAll(downstreamText, inPairs)
	if rewritten != "see http://localhost:8080/widget for details" {
		return fail("inbound rewrite produced %q", rewritten)
	}

	proxyText := "see http://localhost:8080/widget for details"
	back := rewrite.ReplaceAll(proxyText, outPairs)
	if back != "see https://upstream.example/widget for details" {
		return fail("outbound rewrite produced %q", back)
	}
	return nil
}

func propertyCodecRoundTrips() error {
	original := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for padding")
	encodings := []string{"gzip", "br", "deflate"}

	encoded, err := bodycodec.Encode(encodings, original)
	if err != nil {
		return fail("encoding: %w", err)
	}
	decoded, err := bodycodec.Decode(encodings, encoded)
	if err != nil {
		return fail("decoding: %w", err)
	}
	if !bytes.Equal(decoded, original) {
		return fail("codec round-trip mismatch")
	}
	return nil
}

// propertyWebSocketFrameHeaderExact pins the exact frame header bytes for
// a 123278-byte masked (client-framed) text payload (spec §8 property
// #5): FIN=1, opcode=text, mask=1 with the 127-length marker (0xFF),
// followed by the 8-byte length.
func propertyWebSocketFrameHeaderExact() error {
	payload := make([]byte, 123278)
	frame, err := wsframe.EncodeFrame(wsframe.OpText, payload, true)
	if err != nil {
		return fail("encoding frame: %w", err)
	}
	want := []byte{0x81, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0xE1, 0x8E}
	if len(frame) < len(want) {
		return fail("frame too short: %d bytes", len(frame))
	}
	if !bytes.Equal(frame[:len(want)], want) {
		return fail("frame header = % X, want % X", frame[:len(want)], want)
	}
	return nil
}

func propertyMockHighestOverlapWins() error {
	store := mockengine.NewStore(nil)
	base := mockengine.Request{Method: "GET", URL: "/foo", Header: map[string][]string{"Host": {"example.com"}}}
	if err := store.Record(base, mockengine.Response{Status: 200, Body: []byte("low score")}); err != nil {
		return err
	}
	richer := mockengine.Request{Method: "GET", URL: "/foo", Header: map[string][]string{"Host": {"example.com"}, "X-Extra": {"1"}}}
	if err := store.Record(richer, mockengine.Response{Status: 200, Body: []byte("high score")}); err != nil {
		return err
	}

	live := mockengine.Request{Method: "GET", URL: "/foo", Header: map[string][]string{"Host": {"example.com"}, "X-Extra": {"1"}, "X-More": {"2"}}}
	got, ok, err := store.Match(live)
	if err != nil {
		return err
	}
	if !ok {
		return fail("expected a match")
	}
	if string(got.Body) != "high score" {
		return fail("expected the higher-overlap mock to win, got %q", got.Body)
	}
	return nil
}

func propertyAutoRecordClearsOnModeSwitch() error {
	if mockengine.TransitionAutoRecord("mock", "proxy", true, false, false) {
		return fail("expected autoRecord to clear on mock -> proxy")
	}
	if !mockengine.TransitionAutoRecord("proxy", "mock", true, false, false) {
		return fail("expected autoRecord to stay set outside of mock -> proxy")
	}
	return nil
}

// --- end-to-end scenarios ------------------------------------------------

func newHarness(cfg *config.Config) (*inbound.Server, *mockengine.Store) {
	st := state.New(cfg, "")
	coffer := assets.NewCoffer(1<<20, "")
	store := mockengine.NewStore(nil)
	ch := channels.New("", coffer, store, st.Current, func(next *config.Config) { _ = st.Replace(next) })
	return inbound.New(st, ch, store), store
}

func scenarioNoMapping() error {
	cfg := config.Default()
	server, _ := newHarness(cfg)

	r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/foo/bar", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, r)

	if w.Code != http.StatusBadGateway {
		return fail("expected 502, got %d", w.Code)
	}
	body := w.Body.String()
	if !bytes.Contains(w.Body.Bytes(), []byte("An error happened while trying to proxy a remote exchange")) {
		return fail("missing standard error framing text, body=%q", body)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("No mapping found in config file")) {
		return fail("missing NoMapping title, body=%q", body)
	}
	return nil
}

func scenarioHappyPath() error {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	defer downstream.Close()

	cfg := config.Default()
	cfg.Mapping = append(config.Mapping{
		{Key: "/ping", Destination: config.Destination{DownstreamURL: downstream.URL + "/ping"}},
	}, cfg.Mapping...)
	server, _ := newHarness(cfg)

	r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/ping", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		return fail("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "pong" {
		return fail("expected body %q, got %q", "pong", w.Body.String())
	}
	return nil
}

// scenarioResponseBodyRewriteLayeredCompression pins S4: a response body
// compressed deflate, then br, then gzip (outermost), with a
// Content-Encoding announcing that exact stack, has its URL rewritten
// and re-compressed through the same stack.
func scenarioResponseBodyRewriteLayeredCompression() error {
	original := []byte(`see https://www.test.info/test/index.html for details`)

	layered, err := bodycodec.Encode([]string{"gzip", "br", "deflate"}, original)
	if err != nil {
		return fail("priming layered body: %w", err)
	}

	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip, br, deflate")
		w.Write(layered)
	}))
	defer downstream.Close()

	cfg := config.Default()
	cfg.ReplaceResponseBodyUrls = true
	cfg.Mapping = append(config.Mapping{
		{Key: "/test/index.html", Destination: config.Destination{DownstreamURL: downstream.URL + "/test/index.html", ReplaceBody: "https://www.test.info/test/index.html"}},
	}, cfg.Mapping...)
	server, _ := newHarness(cfg)

	r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/test/index.html", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		return fail("expected 200, got %d", w.Code)
	}

	encodings := bodycodec.ParseContentEncoding(w.Header().Get("Content-Encoding"))
	decoded, err := bodycodec.Decode(encodings, w.Body.Bytes())
	if err != nil {
		return fail("decoding rewritten response body: %w", err)
	}
	want := "see http://localhost:8080/test/index.html for details"
	if string(decoded) != want {
		return fail("expected %q, got %q", want, string(decoded))
	}
	return nil
}

// scenarioRequestBodyRewrite pins S5, including its documented
// double-slash artifact: a proxy-facing link in the request body is
// rewritten to the downstream origin with the mapping key's trailing
// slash trimmed before the join, producing "...donate//help.html...".
func scenarioRequestBodyRewrite() error {
	var gotBody []byte
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte("ok"))
	}))
	defer downstream.Close()

	cfg := config.Default()
	cfg.ReplaceRequestBodyUrls = true
	cfg.Mapping = append(config.Mapping{
		{Key: "/donate/", Destination: config.Destination{DownstreamURL: downstream.URL, ReplaceBody: "https://www.mysite.org/donate/"}},
	}, cfg.Mapping...)
	server, _ := newHarness(cfg)

	body := "Please follow the link at http://localhost:8080/donate/help.html to contribute."
	r := httptest.NewRequest(http.MethodPost, "http://localhost:8080/donate/", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		return fail("expected 200, got %d", w.Code)
	}
	want := "Please follow the link at https://www.mysite.org/donate//help.html to contribute."
	if string(gotBody) != want {
		return fail("expected downstream body %q, got %q", want, string(gotBody))
	}
	return nil
}

func scenarioMockSupersetMatch() error {
	cfg := config.Default()
	cfg.Mode = "mock"
	cfg.Mapping = append(config.Mapping{
		{Key: "/foo", Destination: config.Destination{DownstreamURL: "http://upstream.example/foo"}},
	}, cfg.Mapping...)
	server, store := newHarness(cfg)

	if err := store.Record(
		mockengine.Request{Method: http.MethodGet, URL: "http://upstream.example/foo", Header: map[string][]string{"Host": {"upstream.example"}}},
		mockengine.Response{Status: 200, Body: []byte("matched a mock")},
	); err != nil {
		return err
	}

	r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/foo", nil)
	r.Header.Set("X-My-Header", "My-Value")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		return fail("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "matched a mock" {
		return fail("expected recorded body, got %q", w.Body.String())
	}
	return nil
}

// scenarioDirectoryNormalization pins S7: a bare directory destination
// normalizes, on load, to a capture-group route whose destination
// appends the captured remainder.
func scenarioDirectoryNormalization() error {
	raw := []byte(`{"mapping":{"/static-webapp":"file://home/User/i/am/a/folder"}}`)
	cfg, err := config.ApplyPatch(config.Default(), raw)
	if err != nil {
		return fail("applying patch: %w", err)
	}

	dest, ok := cfg.Mapping.Get("/static-webapp/(.*)")
	if !ok {
		return fail("expected normalized capture route /static-webapp/(.*), mapping=%+v", cfg.Mapping)
	}
	if dest.DownstreamURL != "file://home/User/i/am/a/folder/$$1" {
		return fail("expected captured-remainder destination, got %q", dest.DownstreamURL)
	}
	return nil
}
