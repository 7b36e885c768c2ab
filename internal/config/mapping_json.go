package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes a JSON object into an ordered Mapping, using the
// streaming token API instead of map[string]T so that key order — which is
// semantically significant (first match wins) — survives the round trip.
func (m *Mapping) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("mapping: expected JSON object, got %v", tok)
	}

	result := make(Mapping, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("mapping: expected string key, got %v", keyTok)
		}

		var dest Destination
		if err := dec.Decode(&dest); err != nil {
			return fmt.Errorf("mapping: decoding destination for %q: %w", key, err)
		}
		result = append(result, MappingEntry{Key: key, Destination: dest})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}

	*m = result
	return nil
}

// MarshalJSON emits the mapping as a JSON object in its stored order.
// encoding/json serializes object keys in the order they are written to
// the buffer, so writing entries in slice order is sufficient.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		destJSON, err := json.Marshal(e.Destination)
		if err != nil {
			return nil, err
		}
		buf.Write(destJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
