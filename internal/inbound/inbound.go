// Package inbound implements the Inbound Server (component C6): it
// accepts HTTP/1.1 and HTTP/2 (plain or TLS) requests and drives the
// spec's four-phase pipeline — mapping, connection, send, receive —
// over C2/C5/C3/C4, falling through to internal/channels for built-in
// routes and internal/errorpage on any phase failure.
//
// Grounded on the teacher's server.go (handleRequest's single dispatch
// function driving match-then-respond) generalized from one phase
// ("match a stub, write its fixed response") to the spec's four ordered
// phases. The listener itself uses net/http plus golang.org/x/net/http2
// (both its h2c and TLS+ALPN configurations) rather than fasthttp's
// server side, mirroring internal/dispatch's existing fasthttp/x-net
// split: fasthttp has no HTTP/2 server support, so the inbound half of
// that same deviation belongs here too.
package inbound

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"local-traffic/internal/applog"
	"local-traffic/internal/bodycodec"
	"local-traffic/internal/channels"
	"local-traffic/internal/config"
	"local-traffic/internal/dispatch"
	"local-traffic/internal/errorpage"
	"local-traffic/internal/mapping"
	"local-traffic/internal/mockengine"
	"local-traffic/internal/proxyerr"
	"local-traffic/internal/rewrite"
	"local-traffic/internal/state"
)

// Server implements http.Handler, running every accepted request through
// the mapping/connection/send/receive pipeline.
type Server struct {
	state    *state.State
	channels *channels.Channels
	mocks    *mockengine.Store

	mu         sync.Mutex
	cachedFor  *config.Config
	table      *mapping.Table
	dispatcher *dispatch.Dispatcher
}

// New builds a Server reading its live configuration from st and serving
// config://, logs://, recorder://, worker:// via ch.
func New(st *state.State, ch *channels.Channels, mocks *mockengine.Store) *Server {
	return &Server{state: st, channels: ch, mocks: mocks}
}

// tableAndDispatcher lazily (re)compiles the mapping table and rebuilds
// the dispatcher whenever the active config has changed since the last
// request — config changes apply to requests accepted after the change
// commits, per spec §5, without requiring a restart for mapping-only
// edits.
func (s *Server) tableAndDispatcher(cfg *config.Config) (*mapping.Table, *dispatch.Dispatcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedFor == cfg {
		return s.table, s.dispatcher, nil
	}

	table, err := mapping.Compile(cfg)
	if err != nil {
		return nil, nil, err
	}

	s.cachedFor = cfg
	s.table = table
	s.dispatcher = dispatch.New(cfg.ConnectTimeout, cfg.SocketTimeout, !cfg.DontUseHttp2Downstream)
	return s.table, s.dispatcher, nil
}

// ServeHTTP is the net/http entry point for both the h2c and TLS+ALPN
// listeners (internal/inbound/listener.go).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := s.state.Current()

	if isWebSocketUpgrade(r) && cfg.WebSocket {
		s.serveWebSocket(w, r, cfg)
		return
	}

	status := s.servePipeline(w, r, cfg)
	applog.Access(r.Method, r.URL.Path, status, time.Since(start))
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// servePipeline runs phases 1-4 (spec §4.6) for a single request and
// returns the status code written, for access logging.
func (s *Server) servePipeline(w http.ResponseWriter, r *http.Request, cfg *config.Config) int {
	requestedURL := requestURL(r)

	// Phase 1: mapping.
	table, dispatcher, err := s.tableAndDispatcher(cfg)
	if err != nil {
		return s.renderError(w, proxyerr.New(proxyerr.ConfigInvalid, proxyerr.PhaseMapping, requestedURL, err), requestedURL)
	}

	resolved, ok := table.Resolve(r.URL.Path)
	if !ok {
		return s.renderError(w, proxyerr.New(proxyerr.NoMapping, proxyerr.PhaseMapping, requestedURL, nil), requestedURL)
	}

	if resolved.Scheme.IsFeature() {
		return s.serveFeature(w, r, resolved, cfg)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return s.renderError(w, proxyerr.New(proxyerr.ConnectionFailed, proxyerr.PhaseSend, requestedURL, err).WithDownstream(resolved.TargetURL), requestedURL)
	}

	// Phase 3: send — optionally rewrite the request body before it
	// leaves the process.
	header := cloneHeader(r.Header)
	translateOutboundHeaders(header, r, resolved.TargetURL)

	if cfg.ReplaceRequestBodyUrls {
		body = s.rewriteBody(body, headerGet(header, "Content-Encoding"), cfg, resolved, requestURLOrigin(r), rewrite.Outbound)
	}

	req := dispatch.Request{Method: r.Method, URL: resolved.TargetURL, Header: header, Body: body}

	// Phase 2/4: connection + receive. Mock mode substitutes for the
	// downstream dispatcher entirely (spec §4.8).
	var resp dispatch.Response
	if cfg.Mode == "mock" {
		resp, err = s.matchMock(req, requestedURL, resolved.TargetURL)
	} else {
		resp, err = dispatcher.Do(r.Context(), resolved, req)
		if err == nil && cfg.AutoRecord {
			s.recordExchange(req, resp, cfg)
		}
	}
	if err != nil {
		return s.renderError(w, asProxyError(err, requestedURL, resolved.TargetURL), requestedURL)
	}

	respBody := resp.Body
	if cfg.ReplaceResponseBodyUrls {
		respBody = s.rewriteBody(respBody, headerGet(resp.Header, "Content-Encoding"), cfg, resolved, requestURLOrigin(r), rewrite.Inbound)
	}

	translateInboundHeaders(resp.Header, resolved.TargetURL, requestURLOrigin(r), cfg)

	writeResponse(w, resp.StatusCode, resp.Header, respBody)
	return resp.StatusCode
}

// matchMock substitutes for the downstream dispatcher entirely in mock
// mode (spec §4.8): the best-scoring stored exchange is replayed, or a
// MockMiss proxyerr.Error is returned so renderError can show which
// request went unmatched.
func (s *Server) matchMock(req dispatch.Request, requestedURL, downstreamURL string) (dispatch.Response, error) {
	resp, found, err := s.mocks.Match(mockengine.Request{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header,
		Body:   req.Body,
	})
	if err != nil {
		return dispatch.Response{}, proxyerr.New(proxyerr.ConnectionFailed, proxyerr.PhaseReceive, requestedURL, err).WithDownstream(downstreamURL)
	}
	if !found {
		return dispatch.Response{}, proxyerr.New(proxyerr.MockMiss, proxyerr.PhaseReceive, requestedURL, nil).WithDownstream(downstreamURL)
	}
	return dispatch.Response{StatusCode: resp.Status, Header: resp.Header, Body: resp.Body, Protocol: "mock"}, nil
}

// recordExchange appends a successful proxy-mode exchange to the mock
// store when autoRecord is enabled (spec §4.8: "in proxy mode with
// autoRecord set, every completed exchange is appended to the mock map").
// Recording failures are logged, never surfaced to the client.
func (s *Server) recordExchange(req dispatch.Request, resp dispatch.Response, cfg *config.Config) {
	err := s.mocks.Record(
		mockengine.Request{Method: req.Method, URL: req.URL, Header: req.Header, Body: req.Body},
		mockengine.Response{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body},
	)
	if err != nil {
		applog.Warn("inbound: autoRecord failed for %s %s: %v", req.Method, req.URL, err)
	}
}

func (s *Server) rewriteBody(body []byte, contentEncoding string, cfg *config.Config, resolved mapping.Resolved, origin string, dir rewrite.Direction) []byte {
	encodings := bodycodec.ParseContentEncoding(contentEncoding)
	decoded, err := bodycodec.Decode(encodings, body)
	if err != nil {
		return body
	}

	pairs := rewrite.Compile(cfg, dir, "http", strings.TrimPrefix(origin, "http://"))
	rewritten := rewrite.ReplaceAll(string(decoded), pairs)

	encoded, err := bodycodec.Encode(encodings, []byte(rewritten))
	if err != nil {
		return body
	}
	return encoded
}

// renderError writes err as a minified HTML error page via internal/
// errorpage and returns the status written.
func (s *Server) renderError(w http.ResponseWriter, perr *proxyerr.Error, requestedURL string) int {
	status, body := errorpage.Render(perr, requestedURL)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
	return status
}

// asProxyError preserves an already-typed *proxyerr.Error from the
// dispatcher, or wraps an unexpected error as a connection failure.
func asProxyError(err error, requestedURL, downstreamURL string) *proxyerr.Error {
	if perr, ok := err.(*proxyerr.Error); ok {
		return perr
	}
	return proxyerr.New(proxyerr.ConnectionFailed, proxyerr.PhaseConnection, requestedURL, err).WithDownstream(downstreamURL)
}

func cloneHeader(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func headerGet(h map[string][]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func requestURLOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeResponse(w http.ResponseWriter, status int, header map[string][]string, body []byte) {
	h := w.Header()
	for k, vs := range header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}
