// Package bodycodec implements the proxy's layered content-encoding
// transform: decompressing a response/request body through every codec
// named in its Content-Encoding header, and recompressing it the same
// way after URL rewriting.
//
// Grounded on the teacher's internal/proxy/proxy.go, which already
// decompresses gzip downstream bodies with fasthttp's gunzip helper so
// recordings store readable text; this package generalizes that single
// case to the full gzip/deflate/br/identity stack using
// github.com/klauspost/compress (gzip, flate) and
// github.com/andybalholm/brotli, composed in the header's declared order.
package bodycodec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"local-traffic/internal/proxyerr"
)

// ParseContentEncoding splits a Content-Encoding header value into its
// component codec tokens, case-insensitively, trimming whitespace.
func ParseContentEncoding(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Decode strips every codec named in encodings, applying them in the
// order listed — spec §4.3 and §9 both call this out as an intentional
// deviation from strict RFC stacking order, kept for compatibility with
// the observable behavior in testable scenario S4.
func Decode(encodings []string, body []byte) ([]byte, error) {
	for _, enc := range encodings {
		decoded, err := decodeOne(enc, body)
		if err != nil {
			return nil, err
		}
		body = decoded
	}
	return body, nil
}

// Encode re-applies every codec named in encodings so the resulting body's
// layering matches the original header again: Decode strips the
// first-listed codec first (treating it as the outermost layer), so
// Encode must apply codecs in reverse so the first-listed one ends up
// wrapped around everything once more, last.
func Encode(encodings []string, body []byte) ([]byte, error) {
	for i := len(encodings) - 1; i >= 0; i-- {
		encoded, err := encodeOne(encodings[i], body)
		if err != nil {
			return nil, err
		}
		body = encoded
	}
	return body, nil
}

func decodeOne(enc string, body []byte) ([]byte, error) {
	switch enc {
	case "identity", "":
		return body, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		r := brotli.NewReader(bytes.NewReader(body))
		return io.ReadAll(r)
	default:
		return nil, &proxyerr.Error{Kind: proxyerr.UnsupportedEncoding, Cause: fmt.Errorf("unknown content-encoding %q", enc)}
	}
}

func encodeOne(enc string, body []byte) ([]byte, error) {
	switch enc {
	case "identity", "":
		return body, nil
	case "gzip", "x-gzip":
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "deflate":
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "br":
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, &proxyerr.Error{Kind: proxyerr.UnsupportedEncoding, Cause: fmt.Errorf("unknown content-encoding %q", enc)}
	}
}
