// Package errorpage renders the proxy's HTML error document (component
// C10): a styled page naming the error's Kind, Phase, requested and
// downstream URLs, message, and optional stack trace.
//
// Grounded on aofei-air's minifier.go (the minify.M singleton pattern,
// registering a MIME-specific minifier on first use) adapted from its
// general multi-MIME dispatch down to the one MIME type this component
// ever emits, text/html, via github.com/tdewolff/minify/v2 and
// github.com/tdewolff/minify/v2/html.
package errorpage

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	minifyhtml "github.com/tdewolff/minify/v2/html"

	"local-traffic/internal/proxyerr"
)

var emoji = map[proxyerr.Kind]string{
	proxyerr.NoMapping:           "🧭",
	proxyerr.ConnectionFailed:    "🔌",
	proxyerr.ProtocolFallback:    "🔁",
	proxyerr.DownstreamError:     "💥",
	proxyerr.UnsupportedEncoding: "📦",
	proxyerr.MockMiss:            "🎭",
	proxyerr.ConfigInvalid:       "🛠️",
	proxyerr.FileNotFound:        "📄",
	proxyerr.FileIOError:         "📁",
}

var title = map[proxyerr.Kind]string{
	proxyerr.NoMapping:           "No mapping found in config file",
	proxyerr.ConnectionFailed:    "Could not connect to the downstream server",
	proxyerr.ProtocolFallback:    "Protocol negotiation fell back to HTTP/1.1",
	proxyerr.DownstreamError:     "The downstream server reported an error",
	proxyerr.UnsupportedEncoding: "Unsupported content encoding",
	proxyerr.MockMiss:            "No corresponding mock found in the server.",
	proxyerr.ConfigInvalid:       "The configuration file could not be parsed",
	proxyerr.FileNotFound:        "The requested file was not found",
	proxyerr.FileIOError:         "The requested file could not be read",
}

var once sync.Once
var m *minify.M

func minifier() *minify.M {
	once.Do(func() {
		m = minify.New()
		m.AddFunc("text/html", minifyhtml.Minify)
	})
	return m
}

// statusFor maps an error Kind to the HTTP status code the inbound
// server should send alongside this page.
func statusFor(kind proxyerr.Kind) int {
	switch kind {
	case proxyerr.FileNotFound:
		return 404
	case proxyerr.FileIOError:
		return 500
	default:
		return 502
	}
}

// Render builds the minified HTML document for err, observed while
// handling requestedURL. It always succeeds — a minifier failure falls
// back to the unminified markup rather than hiding the error from the
// client.
func Render(err *proxyerr.Error, requestedURL string) (status int, body []byte) {
	var stack string
	if err.Cause != nil {
		stack = err.Cause.Error()
	}

	message := err.Error()
	if annotation := proxyerr.Errno(err.Code); annotation != "" {
		message = message + " " + annotation
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s %s</title>
<style>
body{font-family:monospace;background:#1e1e1e;color:#ddd;padding:2em}
h1{font-size:1.4em}
.phase{color:#f0ad4e}
.url{color:#5bc0de;word-break:break-all}
.stack{white-space:pre-wrap;color:#999;border-top:1px solid #444;margin-top:1em;padding-top:1em}
</style>
</head>
<body>
<h1>%s %s</h1>
<p>An error happened while trying to proxy a remote exchange.</p>
<p class="phase">Phase: %s</p>
<p class="url">Requested URL: %s</p>
<p class="url">Downstream URL: %s</p>
<p>%s</p>
%s
<p><em>This error is local to the proxy; the requested service may be entirely healthy.</em></p>
</body>
</html>`,
		emoji[err.Kind], html.EscapeString(title[err.Kind]),
		emoji[err.Kind], html.EscapeString(title[err.Kind]),
		html.EscapeString(string(err.Phase)),
		html.EscapeString(requestedURL),
		html.EscapeString(err.DownstreamURL),
		html.EscapeString(message),
		stackBlock(stack),
	)

	var buf bytes.Buffer
	if minifyErr := minifier().Minify("text/html", &buf, strings.NewReader(page)); minifyErr == nil {
		return statusFor(err.Kind), buf.Bytes()
	}
	return statusFor(err.Kind), []byte(page)
}

func stackBlock(stack string) string {
	if stack == "" {
		return ""
	}
	return fmt.Sprintf(`<pre class="stack">%s</pre>`, html.EscapeString(stack))
}
