package mapping

import "net/url"

// RewriteLocation implements §4.2's rewriteResponseLocation: if the
// downstream response set an absolute Location pointing back at the
// resolved target's origin, rewrite it to the inbound origin; a relative
// Location is first resolved against the target URL. dontTranslate
// disables the whole operation (dontTranslateLocationHeader flag).
func RewriteLocation(responseLocation, targetURL, inboundOrigin string, dontTranslate bool) (string, bool) {
	if dontTranslate || responseLocation == "" {
		return responseLocation, false
	}

	target, err := url.Parse(targetURL)
	if err != nil {
		return responseLocation, false
	}

	loc, err := url.Parse(responseLocation)
	if err != nil {
		return responseLocation, false
	}

	if !loc.IsAbs() {
		loc = target.ResolveReference(loc)
	}

	if loc.Scheme != target.Scheme || loc.Host != target.Host {
		return responseLocation, false
	}

	inbound, err := url.Parse(inboundOrigin)
	if err != nil {
		return responseLocation, false
	}
	loc.Scheme = inbound.Scheme
	loc.Host = inbound.Host
	return loc.String(), true
}
