package dispatch

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
)

// contentTypeFor guesses a Content-Type from a file path's extension,
// falling back to a generic octet stream when unknown.
func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// decodeDataURL decodes an RFC 2397 data: URL into its content type and
// raw body, supporting both the base64 and percent-encoded forms.
func decodeDataURL(raw string) ([]byte, string, error) {
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", fmt.Errorf("not a data URL: %q", raw)
	}
	rest := raw[len("data:"):]

	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data URL, missing comma: %q", raw)
	}
	meta := rest[:comma]
	payload := rest[comma+1:]

	isBase64 := strings.HasSuffix(meta, ";base64")
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "text/plain;charset=US-ASCII"
	}

	if isBase64 {
		body, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decoding base64 data URL: %w", err)
		}
		return body, contentType, nil
	}

	decoded, err := url.QueryUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding percent-encoded data URL: %w", err)
	}
	return []byte(decoded), contentType, nil
}
