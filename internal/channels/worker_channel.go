package channels

import "local-traffic/internal/assets"

// WorkerChannel implements worker:// (spec §4.9): it serves the
// embedded static worker JavaScript file verbatim.
type WorkerChannel struct {
	*AssetChannel
}

// NewWorkerChannel builds a WorkerChannel serving local-traffic-worker.js
// out of coffer.
func NewWorkerChannel(coffer *assets.Coffer) *WorkerChannel {
	return &WorkerChannel{AssetChannel: NewAssetChannel(coffer, "worker.js")}
}
