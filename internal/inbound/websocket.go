package inbound

import (
	"bufio"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"local-traffic/internal/applog"
	"local-traffic/internal/channels"
	"local-traffic/internal/config"
	"local-traffic/internal/mapping"
	"local-traffic/internal/wsframe"
)

// websocketGUID is the fixed RFC 6455 §1.3 handshake salt.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// serveWebSocket upgrades r per RFC 6455 and then either streams the
// embedded logs:// feed (spec §4.9's "live event stream") over
// internal/wsframe, or opens a raw byte tunnel to an external mapped
// target (spec §4.6: "for external targets, open a raw TCP tunnel and
// shuttle frames verbatim" — the proxy does not need to parse frames it
// is not originating).
//
// Grounded on the teacher's server.go connection hijacking for its admin
// long-poll path, generalized from "hold the connection open" to a full
// RFC 6455 handshake plus bidirectional relay.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request, cfg *config.Config) {
	requestedURL := requestURL(r)

	table, _, err := s.tableAndDispatcher(cfg)
	if err != nil {
		http.Error(w, "mapping unavailable", http.StatusInternalServerError)
		return
	}
	resolved, ok := table.Resolve(r.URL.Path)
	if !ok {
		http.Error(w, "no mapping for "+requestedURL, http.StatusNotFound)
		return
	}

	conn, brw, err := hijack(w)
	if err != nil {
		http.Error(w, "connection does not support hijacking", http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	if resolved.Scheme == mapping.SchemeLogs {
		// The proxy originates this handshake itself: there is no
		// downstream target to negotiate with.
		if err := writeHandshakeResponse(brw, r); err != nil {
			return
		}
		s.streamLogs(conn, brw)
		return
	}

	// External target: the client's handshake and the target's 101
	// response are both forwarded verbatim, so the proxy never computes
	// its own Sec-WebSocket-Accept for this leg.
	s.tunnelExternal(conn, brw, r, resolved)
}

func hijack(w http.ResponseWriter) (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, errNotHijackable
	}
	return hj.Hijack()
}

var errNotHijackable = &hijackError{}

type hijackError struct{}

func (*hijackError) Error() string { return "inbound: response writer does not support hijacking" }

// writeHandshakeResponse completes the RFC 6455 §4.2.2 server handshake:
// a 101 response carrying Sec-WebSocket-Accept derived from the
// client's Sec-WebSocket-Key.
func writeHandshakeResponse(brw *bufio.ReadWriter, r *http.Request) error {
	key := r.Header.Get("Sec-WebSocket-Key")
	accept := acceptKey(key)

	if _, err := brw.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	brw.WriteString("Upgrade: websocket\r\n")
	brw.WriteString("Connection: Upgrade\r\n")
	brw.WriteString("Sec-WebSocket-Accept: " + accept + "\r\n\r\n")
	return brw.Flush()
}

func acceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// streamLogs relays the shared Hub's event feed to the client as text
// frames until the connection closes, starting from the live tail. Frames
// the client sends are read only to notice the connection closing; no
// resume sequence number is read from them or from the request URL, so
// events published before the subscription are not replayed.
func (s *Server) streamLogs(conn net.Conn, brw *bufio.ReadWriter) {
	_, events, unsubscribe := s.channels.Logs.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := wsframe.DecodeFrame(brw.Reader); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeTextFrame(conn, ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeTextFrame(conn net.Conn, ev channels.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	frame, err := wsframe.EncodeFrame(wsframe.OpText, payload, false)
	if err != nil {
		return err
	}
	_, err = conn.Write(frame)
	return err
}

// tunnelExternal dials resolved's target, re-sends the client's original
// upgrade request so the target performs its own RFC 6455 handshake, and
// then shuttles raw bytes in both directions without parsing frames —
// the proxy is not a participant in this WebSocket session, only a pipe
// (spec §4.6).
func (s *Server) tunnelExternal(clientConn net.Conn, clientBuf *bufio.ReadWriter, r *http.Request, resolved mapping.Resolved) {
	target, err := dialTarget(resolved.TargetURL)
	if err != nil {
		applog.Warn("inbound: websocket tunnel dial failed for %s: %v", resolved.TargetURL, err)
		return
	}
	defer target.Close()

	if err := forwardUpgradeRequest(target, r, resolved.TargetURL); err != nil {
		applog.Warn("inbound: websocket tunnel handshake relay failed: %v", err)
		return
	}

	errc := make(chan error, 2)
	go func() { _, err := io.Copy(target, clientBuf); errc <- err }()
	go func() { _, err := io.Copy(clientConn, target); errc <- err }()
	<-errc
}

// dialTarget opens a plain or TLS TCP connection to targetURL's
// authority, matching the scheme (ws tunnels ride over the same http/
// https mapping entries spec §4.2 already supports).
func dialTarget(targetURL string) (net.Conn, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		if u.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	if u.Scheme == "https" {
		return tls.Dial("tcp", host, &tls.Config{ServerName: u.Hostname()})
	}
	return net.Dial("tcp", host)
}

// forwardUpgradeRequest writes the client's original handshake request
// line and headers to target, rewriting the Host header to the mapped
// downstream authority, exactly as the non-WebSocket request path
// rewrites Host in translateOutboundHeaders.
func forwardUpgradeRequest(target net.Conn, r *http.Request, targetURL string) error {
	u, err := url.Parse(targetURL)
	if err != nil {
		return err
	}

	requestURI := u.Path
	if requestURI == "" {
		requestURI = "/"
	}
	if u.RawQuery != "" {
		requestURI += "?" + u.RawQuery
	}

	var b strings.Builder
	b.WriteString(r.Method + " " + requestURI + " HTTP/1.1\r\n")
	b.WriteString("Host: " + u.Host + "\r\n")
	for name, values := range r.Header {
		if name == "Host" {
			continue
		}
		for _, v := range values {
			b.WriteString(name + ": " + v + "\r\n")
		}
	}
	b.WriteString("\r\n")

	_, err = io.WriteString(target, b.String())
	return err
}
