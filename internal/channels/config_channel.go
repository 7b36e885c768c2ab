package channels

import (
	"encoding/json"

	"local-traffic/internal/config"
)

// ConfigChannel implements config:// (spec §4.9): GET returns the
// active, defaults-filled configuration as JSON; POST applies a sparse
// patch via config.ApplyPatch and persists the result to disk. getConfig
// and setConfig are owned by the process-wide state holder (internal/
// state) so this channel never caches a config snapshot of its own.
type ConfigChannel struct {
	path string
	hub  *Hub

	getConfig func() *config.Config
	setConfig func(*config.Config)
}

// NewConfigChannel builds a ConfigChannel backed by the config file at
// path, publishing every successful update to hub.
func NewConfigChannel(path string, hub *Hub, getConfig func() *config.Config, setConfig func(*config.Config)) *ConfigChannel {
	return &ConfigChannel{path: path, hub: hub, getConfig: getConfig, setConfig: setConfig}
}

// Get returns the active configuration, serialized with its built-in
// routes and inferred defaults already filled in.
func (c *ConfigChannel) Get() ([]byte, error) {
	return json.MarshalIndent(c.getConfig(), "", "  ")
}

// Post applies a sparse JSON patch, persists it, swaps it in as the
// active configuration, and publishes a config diff event to hub.
func (c *ConfigChannel) Post(body []byte) ([]byte, error) {
	before := c.getConfig()
	after, err := config.ApplyPatch(before, body)
	if err != nil {
		return nil, err
	}
	if err := config.Save(c.path, after); err != nil {
		return nil, err
	}
	c.setConfig(after)
	c.hub.Publish("config", after)
	return json.MarshalIndent(after, "", "  ")
}
