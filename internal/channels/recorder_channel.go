package channels

import (
	"encoding/json"

	"local-traffic/internal/assets"
	"local-traffic/internal/config"
	"local-traffic/internal/mockengine"
)

// recorderPayload is the POST body shape spec §4.9 names:
// {mode, autoRecord, mocks?}. Mode and AutoRecord are pointers so the
// channel can tell "absent" from "explicitly false," which
// mockengine.TransitionAutoRecord needs to apply its mock->proxy rule
// correctly.
type recorderPayload struct {
	Mode       *string           `json:"mode,omitempty"`
	AutoRecord *bool             `json:"autoRecord,omitempty"`
	Mocks      map[string]string `json:"mocks,omitempty"`
}

// RecorderChannel implements recorder:// (spec §4.8/§4.9): GET returns
// the control UI document (State returns its backing state as JSON),
// POST mutates the running mode and mock corpus. Grounded on the teacher's RecordServer admin mutation path,
// generalized to drive mockengine.Store and the mode-transition rule in
// TransitionAutoRecord rather than the teacher's append-only stub table.
type RecorderChannel struct {
	store *mockengine.Store
	hub   *Hub
	ui    *AssetChannel

	getConfig func() *config.Config
	setConfig func(*config.Config)
}

// NewRecorderChannel builds a RecorderChannel over store, publishing
// mode/autoRecord changes to hub and serving its control UI from coffer.
func NewRecorderChannel(store *mockengine.Store, hub *Hub, coffer *assets.Coffer, getConfig func() *config.Config, setConfig func(*config.Config)) *RecorderChannel {
	return &RecorderChannel{
		store: store, hub: hub, ui: NewAssetChannel(coffer, "recorder.html"),
		getConfig: getConfig, setConfig: setConfig,
	}
}

// Get returns the recorder control UI document (spec §4.9: "GET the
// control UI").
func (r *RecorderChannel) Get(acceptsGzip bool) (body []byte, contentType string, gzipped bool, ok bool) {
	return r.ui.Get(acceptsGzip)
}

// State returns the current mode, autoRecord flag, and full mock corpus
// as JSON, for the control UI page to render.
func (r *RecorderChannel) State() ([]byte, error) {
	cfg := r.getConfig()
	return json.Marshal(map[string]any{
		"mode":       cfg.Mode,
		"autoRecord": cfg.AutoRecord,
		"mocks":      r.store.Snapshot(),
	})
}

// Post applies a recorder payload: an explicit mocks map replaces the
// store's corpus wholesale, and a mode/autoRecord change is resolved via
// TransitionAutoRecord before being published.
func (r *RecorderChannel) Post(body []byte) ([]byte, error) {
	var payload recorderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	cfg := r.getConfig().Clone()
	oldMode := cfg.Mode
	newMode := oldMode
	if payload.Mode != nil {
		newMode = *payload.Mode
	}

	cfg.AutoRecord = mockengine.TransitionAutoRecord(
		oldMode, newMode, cfg.AutoRecord,
		payload.AutoRecord != nil, payload.AutoRecord != nil && *payload.AutoRecord,
	)
	cfg.Mode = newMode
	r.setConfig(cfg)

	if payload.Mocks != nil {
		r.store.Load(payload.Mocks)
	}

	r.hub.Publish("recorder", map[string]any{"mode": newMode, "autoRecord": cfg.AutoRecord})

	return r.State()
}
