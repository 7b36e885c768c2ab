package mapping

import "strings"

// Resolve finds the first route in declared order whose key, treated as a
// regex, matches path, and expands its destination (and replaceBody, if
// present) using that match's back-references. Returns ok=false if no
// route matches, signaling NoMapping (spec §7).
func (t *Table) Resolve(path string) (Resolved, bool) {
	for i := range t.Routes {
		r := &t.Routes[i]
		loc := r.Pattern.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}

		target := string(r.Pattern.ExpandString(nil, r.DestinationTemplate, path, loc))
		res := Resolved{
			Route:     r,
			Key:       r.RawKey,
			TargetURL: target,
			Scheme:    detectScheme(target),
		}
		if r.HasReplaceBody {
			res.ReplaceBody = string(r.Pattern.ExpandString(nil, r.ReplaceBodyTemplate, path, loc))
		}
		return res, true
	}
	return Resolved{}, false
}

func detectScheme(target string) Scheme {
	switch {
	case strings.HasPrefix(target, "config://"):
		return SchemeConfig
	case strings.HasPrefix(target, "logs://"):
		return SchemeLogs
	case strings.HasPrefix(target, "recorder://"):
		return SchemeRecorder
	case strings.HasPrefix(target, "worker://"):
		return SchemeWorker
	case strings.HasPrefix(target, "file://"):
		return SchemeFile
	case strings.HasPrefix(target, "data:"):
		return SchemeData
	case strings.HasPrefix(target, "https://"):
		return SchemeHTTPS
	case strings.HasPrefix(target, "http://"):
		return SchemeHTTP
	default:
		return SchemeUnknown
	}
}
