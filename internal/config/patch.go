package config

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
)

// ApplyPatch decodes a sparse JSON patch (as POSTed to config://, or as
// produced by a programmatic update()) onto a clone of cfg and returns the
// result. Only keys present in the patch are touched; an absent key
// retains its value from cfg, so a patch like {"ssl": null} never
// clobbers the mapping.
//
// The "mapping" key is decoded separately, straight from its raw JSON
// bytes, to preserve route order (spec §3: first match wins). Every other
// field goes through mapstructure with weakly-typed input enabled, so a
// client that POSTs "port": "8080" or "websocket": "true" — common from
// HTML forms and shell-script callers — still decodes cleanly, which a
// plain json.Unmarshal would reject.
func ApplyPatch(cfg *Config, rawPatch []byte) (*Config, error) {
	clone := cfg.Clone()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rawPatch, &raw); err != nil {
		return nil, err
	}

	if mappingRaw, ok := raw["mapping"]; ok {
		if err := json.Unmarshal(mappingRaw, &clone.Mapping); err != nil {
			return nil, err
		}
		delete(raw, "mapping")
	}

	generic := make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, err
		}
		generic[k] = val
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           clone,
		ZeroFields:       false,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, err
	}

	normalize(clone)
	return clone, nil
}
