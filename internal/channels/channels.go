package channels

import (
	"local-traffic/internal/assets"
	"local-traffic/internal/config"
	"local-traffic/internal/mockengine"
)

// Channels bundles the four built-in feature channels plus the shared
// Hub they publish to, as a single dependency for internal/inbound to
// route config://, logs://, recorder:// and worker:// requests against.
type Channels struct {
	Hub      *Hub
	Config   *ConfigChannel
	Logs     *LogsChannel
	Recorder *RecorderChannel
	Worker   *WorkerChannel
}

// New wires the four channels against a shared Hub, asset cache, and
// mock store, using getConfig/setConfig as the process's sole source of
// truth for the active configuration.
func New(configPath string, coffer *assets.Coffer, store *mockengine.Store, getConfig func() *config.Config, setConfig func(*config.Config)) *Channels {
	hub := NewHub()
	return &Channels{
		Hub:      hub,
		Config:   NewConfigChannel(configPath, hub, getConfig, setConfig),
		Logs:     NewLogsChannel(coffer, hub),
		Recorder: NewRecorderChannel(store, hub, coffer, getConfig, setConfig),
		Worker:   NewWorkerChannel(coffer),
	}
}
