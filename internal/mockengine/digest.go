package mockengine

import (
	"encoding/base64"
	"encoding/json"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var headerCaser = cases.Lower(language.Und)

// foldHeaderName case-folds a header name for canonicalization. Uses
// golang.org/x/text/cases rather than strings.ToLower because header
// names recorded from a live mock corpus are not guaranteed pure ASCII,
// and cases.Lower applies full Unicode case-folding instead of the
// byte-wise ASCII-only mapping strings.ToLower does.
func foldHeaderName(name string) string {
	return headerCaser.String(name)
}

// canonicalizeHeaders flattens a header map into lowercase-named
// (name, value) pairs, drops any name present in unwanted
// (case-insensitive), and sorts the result for determinism — spec §4.8's
// "lowercased header names; headers sorted; headers named in
// unwantedHeaderNamesInMocks removed."
func canonicalizeHeaders(header map[string][]string, unwanted map[string]bool) [][2]string {
	pairs := make([][2]string, 0, len(header))
	for name, values := range header {
		lower := foldHeaderName(name)
		if unwanted[lower] {
			continue
		}
		for _, v := range values {
			pairs = append(pairs, [2]string{lower, v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// unwantedSet lowercases a configured unwanted-header-names list into a
// lookup set.
func unwantedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[foldHeaderName(n)] = true
	}
	return set
}

// Digest computes the canonical base64(JSON(...)) key for req, per spec
// §4.8 / the Mock Entry data model in §3.
func Digest(req Request, unwantedHeaderNames []string) (string, error) {
	canon := canonicalRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: canonicalizeHeaders(req.Header, unwantedSet(unwantedHeaderNames)),
		Body:    base64.StdEncoding.EncodeToString(req.Body),
	}
	b, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// bodyDigest is the same base64 encoding used inside canonicalRequest,
// exposed so callers can compare a live request's body against a stored
// digest's body field without re-deriving the whole canonical form.
func bodyDigest(body []byte) string {
	return base64.StdEncoding.EncodeToString(body)
}

func decodeCanonicalRequest(digest string) (canonicalRequest, error) {
	raw, err := base64.StdEncoding.DecodeString(digest)
	if err != nil {
		return canonicalRequest{}, err
	}
	var canon canonicalRequest
	if err := json.Unmarshal(raw, &canon); err != nil {
		return canonicalRequest{}, err
	}
	return canon, nil
}

func encodeValue(resp Response) (string, error) {
	canon := canonicalResponse{
		Status:  resp.Status,
		Headers: resp.Header,
		Body:    base64.StdEncoding.EncodeToString(resp.Body),
	}
	b, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func decodeValue(value string) (Response, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return Response{}, err
	}
	var canon canonicalResponse
	if err := json.Unmarshal(raw, &canon); err != nil {
		return Response{}, err
	}
	body, err := base64.StdEncoding.DecodeString(canon.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: canon.Status, Header: canon.Headers, Body: body}, nil
}
