// Package config owns the proxy's single source of truth: the mapping
// table and feature flags loaded from the user-editable config file, plus
// the filesystem watcher that hot-reloads it.
//
// Grounded on onurartan-mockserver/config (LoadConfig, defaults-and-validate
// shape) and on the teacher's own JSON-first wire format; the ordered
// mapping representation below exists because encoding/json's map type
// does not preserve key order, and route order is semantically meaningful
// (spec §3: first match wins, empty key sorts last).
package config

import "encoding/json"

// Destination is one mapping entry's target: either a bare URL or a record
// with an explicit body-substitution template.
type Destination struct {
	DownstreamURL string `json:"downstreamUrl"`
	ReplaceBody   string `json:"replaceBody,omitempty"`
}

// UnmarshalJSON accepts either a plain URL string or an object
// {downstreamUrl, replaceBody}.
func (d *Destination) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		d.DownstreamURL = s
		return nil
	}
	type alias Destination
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*d = Destination(a)
	return nil
}

// MarshalJSON emits the compact string form when there is no body
// substitution template, and the object form otherwise.
func (d Destination) MarshalJSON() ([]byte, error) {
	if d.ReplaceBody == "" {
		return json.Marshal(d.DownstreamURL)
	}
	type alias Destination
	return json.Marshal(alias(d))
}

// MappingEntry is one (pattern, destination) pair, in on-disk order.
type MappingEntry struct {
	Key         string
	Destination Destination
}

// Mapping is the ordered collection of routes. It marshals/unmarshals as a
// plain JSON object but preserves insertion order, unlike map[string]T.
type Mapping []MappingEntry

// Get returns the destination for key and whether it was present.
func (m Mapping) Get(key string) (Destination, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Destination, true
		}
	}
	return Destination{}, false
}

// Set inserts or replaces the entry for key, preserving its original
// position on replace and appending on insert.
func (m *Mapping) Set(key string, dest Destination) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Destination = dest
			return
		}
	}
	*m = append(*m, MappingEntry{Key: key, Destination: dest})
}

// SSL is a pre-materialized TLS key/certificate pair, PEM-encoded.
type SSL struct {
	Key  string `json:"key"`
	Cert string `json:"cert"`
}

// CrossOrigin configures the proxy's CORS behavior for feature channels.
type CrossOrigin struct {
	URLPattern  string   `json:"urlPattern,omitempty"`
	Whitelist   []string `json:"whitelist,omitempty"`
	Credentials bool     `json:"credentials,omitempty"`
	ServerSide  bool     `json:"serverSide,omitempty"`
}

// Config is the single source of truth for the running proxy.
type Config struct {
	Mapping Mapping `json:"mapping"`

	Port           int  `json:"port"`
	SSL            *SSL `json:"ssl,omitempty"`
	ConnectTimeout int  `json:"connectTimeout"` // ms
	SocketTimeout  int  `json:"socketTimeout"`  // ms

	ReplaceRequestBodyUrls       bool `json:"replaceRequestBodyUrls"`
	ReplaceResponseBodyUrls      bool `json:"replaceResponseBodyUrls"`
	DontUseHttp2Downstream       bool `json:"dontUseHttp2Downstream"`
	DontTranslateLocationHeader bool `json:"dontTranslateLocationHeader"`
	SimpleLogs                   bool `json:"simpleLogs"`
	LogAccessInTerminal           bool `json:"logAccessInTerminal"`
	WebSocket                     bool `json:"websocket"`
	DisableWebSecurity            bool `json:"disableWebSecurity"`

	UnwantedHeaderNamesInMocks []string     `json:"unwantedHeaderNamesInMocks,omitempty"`
	CrossOrigin                *CrossOrigin `json:"crossOrigin,omitempty"`

	// Mode is process state, not part of the on-disk format, but travels
	// with the config snapshot so a request sees a consistent view.
	Mode       string `json:"-"`
	AutoRecord bool   `json:"-"`
}

// Clone returns a deep-enough copy for snapshot semantics: readers observe
// a consistent config per request even if the store swaps it concurrently.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Mapping = append(Mapping(nil), c.Mapping...)
	if c.SSL != nil {
		ssl := *c.SSL
		cp.SSL = &ssl
	}
	if c.CrossOrigin != nil {
		co := *c.CrossOrigin
		co.Whitelist = append([]string(nil), c.CrossOrigin.Whitelist...)
		cp.CrossOrigin = &co
	}
	cp.UnwantedHeaderNamesInMocks = append([]string(nil), c.UnwantedHeaderNamesInMocks...)
	return &cp
}
