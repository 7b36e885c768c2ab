package mockengine

import (
	"sync"

	"github.com/cespare/xxhash"
)

// Store is the ordered, digest-keyed mock corpus. It is safe for
// concurrent use: recording appends under a lock, matching reads a
// stable snapshot of the insertion order and map contents.
//
// Grounded on the teacher's RecordServer (record.go): a mutex-guarded
// slice of exchanges, generalized from "append-only log" to "append
// with last-write-wins per digest," per spec §4.8's Mock Entry model.
type Store struct {
	mu                  sync.Mutex
	order               []string // digest keys, first-seen insertion order
	mocks               map[string]string
	byMethodAndURL      map[uint64][]string // xxhash(method+url) -> candidate digests
	unwantedHeaderNames []string
}

// NewStore builds an empty mock store. unwantedHeaderNames is the
// configured set of header names ignored during digesting and matching.
func NewStore(unwantedHeaderNames []string) *Store {
	return &Store{
		mocks:               make(map[string]string),
		byMethodAndURL:      make(map[uint64][]string),
		unwantedHeaderNames: unwantedHeaderNames,
	}
}

// methodURLHash is the corpus pre-filter key: the store only ever needs
// candidates whose method and url match exactly, so grouping digests by
// this hash lets Match skip decoding every unrelated entry in a large
// corpus. A collision only ever widens the candidate set (the exact
// equality check in Match still applies), never narrows it incorrectly.
func methodURLHash(method, url string) uint64 {
	return xxhash.Sum64([]byte(method + "\x00" + url))
}

// Record captures one completed exchange, keyed by its canonical digest.
// A repeated digest overwrites the stored value in place — "duplicate
// keys retain insertion order" (spec §4.8) — rather than appending a
// second entry.
func (s *Store) Record(req Request, resp Response) error {
	digest, err := Digest(req, s.unwantedHeaderNames)
	if err != nil {
		return err
	}
	value, err := encodeValue(resp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.mocks[digest]; !exists {
		s.order = append(s.order, digest)
		key := methodURLHash(req.Method, req.URL)
		s.byMethodAndURL[key] = append(s.byMethodAndURL[key], digest)
	}
	s.mocks[digest] = value
	return nil
}

// Clear empties the store, e.g. on a recorder://-driven reset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.mocks = make(map[string]string)
	s.byMethodAndURL = make(map[uint64][]string)
}

// Snapshot returns the raw digest->value map for persistence to the mock
// file (spec §6's {mocks: {digest: value}} format).
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.mocks))
	for k, v := range s.mocks {
		out[k] = v
	}
	return out
}

// Load replaces the store's contents, e.g. from a persisted mock file.
// Order is reconstructed from map iteration since the on-disk format
// does not preserve it; ties during matching are broken deterministically
// only within a single process's recording history, which Load does not
// attempt to reconstruct.
func (s *Store) Load(mocks map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mocks = make(map[string]string, len(mocks))
	s.order = s.order[:0]
	s.byMethodAndURL = make(map[uint64][]string)
	for k, v := range mocks {
		s.mocks[k] = v
		s.order = append(s.order, k)
		if canon, err := decodeCanonicalRequest(k); err == nil {
			key := methodURLHash(canon.Method, canon.URL)
			s.byMethodAndURL[key] = append(s.byMethodAndURL[key], k)
		}
	}
}

// Match finds the best-scoring candidate for req, per spec §4.8 /
// testable property 6: a candidate's canonicalized, unwanted-stripped
// headers must be a subset of req's; method, url and body must match
// exactly; the highest header-overlap score wins, ties broken by latest
// insertion order.
func (s *Store) Match(req Request) (Response, bool, error) {
	reqIndex := headerIndex(canonicalizeHeaders(req.Header, unwantedSet(s.unwantedHeaderNames)))
	reqBodyEncoded := bodyDigest(req.Body)

	s.mu.Lock()
	candidates := append([]string(nil), s.byMethodAndURL[methodURLHash(req.Method, req.URL)]...)
	mocks := make(map[string]string, len(candidates))
	for _, digest := range candidates {
		mocks[digest] = s.mocks[digest]
	}
	s.mu.Unlock()

	bestScore := -1
	bestDigest := ""
	found := false

	for _, digest := range candidates {
		canon, err := decodeCanonicalRequest(digest)
		if err != nil {
			continue
		}
		if canon.Method != req.Method || canon.URL != req.URL || canon.Body != reqBodyEncoded {
			continue
		}
		if !isHeaderSubset(canon.Headers, reqIndex) {
			continue
		}
		score := scoreExcludingHost(canon.Headers)
		if score >= bestScore {
			bestScore = score
			bestDigest = digest
			found = true
		}
	}

	if !found {
		return Response{}, false, nil
	}

	value, ok := mocks[bestDigest]
	if !ok {
		return Response{}, false, nil
	}
	resp, err := decodeValue(value)
	if err != nil {
		return Response{}, false, err
	}
	return resp, true, nil
}

func headerIndex(pairs [][2]string) map[string]map[string]bool {
	idx := make(map[string]map[string]bool, len(pairs))
	for _, kv := range pairs {
		if idx[kv[0]] == nil {
			idx[kv[0]] = make(map[string]bool)
		}
		idx[kv[0]][kv[1]] = true
	}
	return idx
}

func isHeaderSubset(mockHeaders [][2]string, reqIndex map[string]map[string]bool) bool {
	for _, kv := range mockHeaders {
		if !reqIndex[kv[0]][kv[1]] {
			return false
		}
	}
	return true
}

func scoreExcludingHost(headers [][2]string) int {
	score := 0
	for _, kv := range headers {
		if kv[0] == "host" {
			continue
		}
		score++
	}
	return score
}
