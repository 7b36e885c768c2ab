package config

import (
	"path"
	"strings"
)

// normalize applies the load-time normalization rules: directory-destination
// rewriting, built-in route insertion, and moving the empty-string default
// route to the end of the mapping.
func normalize(cfg *Config) {
	normalizeDirectoryRoutes(&cfg.Mapping)
	insertBuiltinRoutes(&cfg.Mapping)
	moveDefaultLast(&cfg.Mapping)

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3000
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = 5000
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Mode == "" {
		cfg.Mode = "proxy"
	}
}

// looksLikeDirectory reports whether url's final path segment has no dot
// in it, or the url ends with an explicit trailing slash — the "filesystem
// directory indicator" from the spec's normalization rule.
func looksLikeDirectory(url string) bool {
	if strings.HasSuffix(url, "/") {
		return true
	}
	last := path.Base(url)
	return !strings.Contains(last, ".")
}

// normalizeDirectoryRoutes rewrites mapping entries whose destination
// targets a directory so the user doesn't have to hand-write the
// wildcard-capture regex (spec §4.1, testable property S7).
func normalizeDirectoryRoutes(m *Mapping) {
	for i := range *m {
		e := &(*m)[i]
		if strings.HasSuffix(e.Key, ")") {
			continue // already normalized on a previous load
		}
		if isFeatureScheme(e.Destination.DownstreamURL) {
			continue
		}
		if !looksLikeDirectory(e.Destination.DownstreamURL) {
			continue
		}

		key := strings.TrimSuffix(e.Key, "/")
		e.Key = key + "/(.*)"
		e.Destination.DownstreamURL = strings.TrimSuffix(e.Destination.DownstreamURL, "/") + "/$$1"
		if e.Destination.ReplaceBody != "" {
			e.Destination.ReplaceBody = strings.TrimSuffix(e.Destination.ReplaceBody, "/") + "/$$1"
		}
	}
}

func isFeatureScheme(url string) bool {
	for _, s := range []string{"config://", "logs://", "recorder://", "worker://", "data:"} {
		if strings.HasPrefix(url, s) {
			return true
		}
	}
	return false
}

// moveDefaultLast relocates the empty-string key, if present, to the end
// of the mapping so it never shadows a more specific route.
func moveDefaultLast(m *Mapping) {
	idx := -1
	for i, e := range *m {
		if e.Key == "" {
			idx = i
			break
		}
	}
	if idx == -1 || idx == len(*m)-1 {
		return
	}
	entry := (*m)[idx]
	rest := append((*m)[:idx], (*m)[idx+1:]...)
	*m = append(rest, entry)
}
