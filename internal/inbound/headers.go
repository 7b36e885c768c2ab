package inbound

import (
	"net/http"
	"net/url"
	"strings"

	"local-traffic/internal/config"
	"local-traffic/internal/mapping"
)

// hopByHop headers are never forwarded between legs of the proxy,
// matching RFC 7230 §6.1 and spec §4.5's "drop forbidden headers"
// requirement.
var hopByHop = map[string]bool{
	"Connection":          true,
	"Transfer-Encoding":   true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Upgrade":             true,
}

// translateOutboundHeaders rewrites header the request carries downstream
// (spec §4.5): hop-by-hop headers are dropped, the host-like headers are
// rewritten to the downstream authority, and any header value containing
// the inbound hostname is rewritten to the target host.
func translateOutboundHeaders(header map[string][]string, r *http.Request, targetURL string) {
	for name := range header {
		if hopByHop[http.CanonicalHeaderKey(name)] {
			delete(header, name)
		}
	}

	target, err := url.Parse(targetURL)
	if err != nil {
		return
	}
	header["Host"] = []string{target.Host}

	inboundHost := r.Host
	if inboundHost == "" || target.Host == inboundHost {
		return
	}
	for name, values := range header {
		for i, v := range values {
			if strings.Contains(v, inboundHost) {
				values[i] = strings.ReplaceAll(v, inboundHost, target.Host)
			}
		}
		header[name] = values
	}
}

// translateInboundHeaders rewrites the headers a downstream response
// carries back to the client (spec §4.5): Set-Cookie Domain attributes
// naming the target host, one of its parent domains, or one of its
// subdomains move back to the inbound hostname, and Location is
// rewritten per mapping.RewriteLocation.
func translateInboundHeaders(header map[string][]string, targetURL, inboundOrigin string, cfg *config.Config) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return
	}
	inbound, err := url.Parse(inboundOrigin)
	if err != nil {
		return
	}

	if cookies, ok := header["Set-Cookie"]; ok {
		for i, c := range cookies {
			cookies[i] = rewriteCookieDomain(c, target.Hostname(), inbound.Hostname())
		}
		header["Set-Cookie"] = cookies
	}

	if locs, ok := header["Location"]; ok && len(locs) > 0 {
		if rewritten, changed := mapping.RewriteLocation(locs[0], targetURL, inboundOrigin, cfg.DontTranslateLocationHeader); changed {
			header["Location"] = []string{rewritten}
		}
	}
}

// rewriteCookieDomain replaces a Domain= attribute naming targetHost, one
// of its parent domains (a dot-suffix such as .upstream.example for
// api.upstream.example), or one of its subdomains with inboundHost,
// leaving the rest of the Set-Cookie value untouched.
func rewriteCookieDomain(cookie, targetHost, inboundHost string) string {
	parts := strings.Split(cookie, ";")
	for i, p := range parts {
		trimmed := strings.TrimSpace(p)
		if !strings.HasPrefix(strings.ToLower(trimmed), "domain=") {
			continue
		}
		domain := strings.TrimPrefix(strings.TrimSpace(trimmed[len("domain="):]), ".")
		if domain == targetHost || strings.HasSuffix(domain, "."+targetHost) || strings.HasSuffix(targetHost, "."+domain) {
			parts[i] = " Domain=" + inboundHost
		}
	}
	return strings.Join(parts, ";")
}
