package mapping

import (
	"fmt"
	"regexp"

	"local-traffic/internal/config"
)

// backrefEscape matches the on-disk "$$n" escape (spec §9: the double
// dollar survives JSON without needing \\$1-style escaping) and is
// translated to Go regexp's "${n}" expansion syntax at compile time.
var backrefEscape = regexp.MustCompile(`\$\$(\d+)`)

func translateBackrefs(template string) string {
	return backrefEscape.ReplaceAllString(template, "${$1}")
}

// Compile builds a Table from cfg's mapping. It returns an error naming
// the first pattern that fails to compile as a regex — every route must
// either be a literal prefix (which is always a valid regex) or a regex.
func Compile(cfg *config.Config) (*Table, error) {
	routes := make([]Route, 0, len(cfg.Mapping))
	for _, entry := range cfg.Mapping {
		pattern, err := regexp.Compile(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("mapping: pattern %q does not compile: %w", entry.Key, err)
		}
		routes = append(routes, Route{
			RawKey:              entry.Key,
			Pattern:             pattern,
			DestinationTemplate: translateBackrefs(entry.Destination.DownstreamURL),
			ReplaceBodyTemplate: translateBackrefs(entry.Destination.ReplaceBody),
			HasReplaceBody:      entry.Destination.ReplaceBody != "",
		})
	}
	return &Table{Routes: routes}, nil
}
