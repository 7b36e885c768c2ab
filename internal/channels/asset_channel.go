package channels

import "local-traffic/internal/assets"

// AssetChannel serves a single static document — the logs viewer, the
// recorder control UI, or the worker script — from the shared asset
// cache. worker:// and the GET sides of logs:// and recorder:// are all
// instances of this one channel, parameterized by asset name.
type AssetChannel struct {
	coffer *assets.Coffer
	name   string
}

// NewAssetChannel builds an AssetChannel serving name ("worker.js",
// "logs.html", or "recorder.html") out of coffer.
func NewAssetChannel(coffer *assets.Coffer, name string) *AssetChannel {
	return &AssetChannel{coffer: coffer, name: name}
}

// Get returns the asset's bytes, content type, and whether gzipped
// content was returned in its place (when acceptsGzip is set and a
// precompressed form exists). ok is false if the asset is unknown.
func (a *AssetChannel) Get(acceptsGzip bool) (body []byte, contentType string, gzipped bool, ok bool) {
	asset, found := a.coffer.Get(a.name)
	if !found {
		return nil, "", false, false
	}
	if acceptsGzip && asset.GzippedContent != nil {
		return asset.GzippedContent, asset.MIMEType, true, true
	}
	return asset.Content, asset.MIMEType, false, true
}
