package channels

import "local-traffic/internal/assets"

// LogsChannel implements logs:// (spec §4.9): GET returns the embedded
// HTML viewer, while the WebSocket upgrade path (wired by internal/
// inbound, which owns frame I/O via internal/wsframe) calls Subscribe
// and Resume directly against the shared Hub.
type LogsChannel struct {
	viewer *AssetChannel
	hub    *Hub
}

// NewLogsChannel builds a LogsChannel serving the embedded viewer out of
// coffer and streaming events from hub.
func NewLogsChannel(coffer *assets.Coffer, hub *Hub) *LogsChannel {
	return &LogsChannel{viewer: NewAssetChannel(coffer, "logs.html"), hub: hub}
}

// Get returns the HTML viewer document.
func (l *LogsChannel) Get(acceptsGzip bool) (body []byte, contentType string, gzipped bool, ok bool) {
	return l.viewer.Get(acceptsGzip)
}

// Subscribe registers a new live subscriber on the underlying Hub.
func (l *LogsChannel) Subscribe() (id uint64, events <-chan Event, unsubscribe func()) {
	return l.hub.Subscribe()
}

// Resume returns every event published after seq, for a client
// reconnecting with a last-seen sequence number.
func (l *LogsChannel) Resume(seq uint64) []Event {
	return l.hub.Since(seq)
}

// Publish records a log-kind event carrying message.
func (l *LogsChannel) Publish(message string) Event {
	return l.hub.Publish("log", message)
}
