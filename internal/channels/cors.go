package channels

import (
	"regexp"

	"local-traffic/internal/config"
)

// CORSHeaders computes the Access-Control-* response headers a feature
// channel should send for a request carrying Origin origin, per spec
// §4.9 ("all four respect disableWebSecurity by dropping CORS checks
// when true") and §3's crossOrigin shape ({urlPattern, whitelist,
// credentials, serverSide}).
//
// When disableWebSecurity is set, every origin is allowed and no
// whitelist/urlPattern check runs at all — "dropping CORS checks"
// rather than "allowing everything the checks would have allowed."
// Otherwise an origin is allowed if it matches urlPattern (when set) or
// appears in whitelist (when set); with neither configured, no
// cross-origin access is granted.
func CORSHeaders(origin string, cfg *config.Config) map[string]string {
	if origin == "" {
		return nil
	}

	if cfg.DisableWebSecurity {
		return allowHeaders(origin, cfg.CrossOrigin)
	}

	if !corsAllowed(origin, cfg.CrossOrigin) {
		return nil
	}
	return allowHeaders(origin, cfg.CrossOrigin)
}

func corsAllowed(origin string, co *config.CrossOrigin) bool {
	if co == nil {
		return false
	}
	if co.URLPattern != "" {
		if re, err := regexp.Compile(co.URLPattern); err == nil && re.MatchString(origin) {
			return true
		}
	}
	for _, w := range co.Whitelist {
		if w == origin || w == "*" {
			return true
		}
	}
	return false
}

func allowHeaders(origin string, co *config.CrossOrigin) map[string]string {
	headers := map[string]string{
		"Access-Control-Allow-Origin":  origin,
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
	if co != nil && co.Credentials {
		headers["Access-Control-Allow-Credentials"] = "true"
	}
	return headers
}
