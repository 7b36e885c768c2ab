// Package state owns the process-wide running configuration (spec §3's
// State: "config, mockConfig, mode, logsListeners, current listener
// handle... mutated only through an update(patch) operation that
// applies the patch, diffs critical fields (port, ssl, mapping
// identity), and conditionally restarts the listener").
//
// Grounded on the teacher's own global mutable state in server.go
// (package-level vars read by every handler) and on
// onurartan-mockserver's config-reload-triggers-listener-rebind
// pattern, generalized into a single owner type instead of package
// globals so every mutation funnels through one diff-then-act path.
package state

import (
	"sync"

	"local-traffic/internal/applog"
	"local-traffic/internal/config"
)

// Diff reports which of the fields critical to the listener changed
// between two configs.
type Diff struct {
	PortChanged    bool
	SSLChanged     bool
	MappingChanged bool
}

// RestartRequired is true when the running listener must be rebound —
// a port or TLS material change invalidates the existing bound socket.
// A mapping-only change does not: the mapping table is read fresh from
// State on every request, so it takes effect without rebinding.
func (d Diff) RestartRequired() bool {
	return d.PortChanged || d.SSLChanged
}

func diff(before, after *config.Config) Diff {
	return Diff{
		PortChanged:    before.Port != after.Port,
		SSLChanged:     !sslEqual(before.SSL, after.SSL),
		MappingChanged: !mappingEqual(before.Mapping, after.Mapping),
	}
}

func sslEqual(a, b *config.SSL) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key == b.Key && a.Cert == b.Cert
}

func mappingEqual(a, b config.Mapping) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key ||
			a[i].Destination.DownstreamURL != b[i].Destination.DownstreamURL ||
			a[i].Destination.ReplaceBody != b[i].Destination.ReplaceBody {
			return false
		}
	}
	return true
}

// RestartFunc rebinds the inbound listener for the given config. It is
// supplied by internal/inbound, which owns the listener socket (spec
// §3 Ownership); State only decides when it must be called.
type RestartFunc func(*config.Config) error

// State is the single owner of the live configuration, mock-engine mode,
// and the listener-restart hook. All reads and writes funnel through
// Current/Update so no caller can observe a config that is still being
// patched.
type State struct {
	mu          sync.RWMutex
	cfg         *config.Config
	configPath  string
	restartFunc RestartFunc
}

// New builds a State seeded with cfg, persisted at configPath.
func New(cfg *config.Config, configPath string) *State {
	return &State{cfg: cfg, configPath: configPath}
}

// SetRestartFunc installs the listener-restart hook. Called once during
// wiring, after internal/inbound's listener exists.
func (s *State) SetRestartFunc(fn RestartFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restartFunc = fn
}

// Current returns the active configuration snapshot.
func (s *State) Current() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ConfigPath returns the file path the config was loaded from / is
// persisted to.
func (s *State) ConfigPath() string {
	return s.configPath
}

// Replace swaps in a config value already produced by a caller (e.g. the
// reload path, which already owns a fully formed config.Config), diffing
// against the prior value and restarting the listener if required.
func (s *State) Replace(next *config.Config) error {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = next
	restartFunc := s.restartFunc
	s.mu.Unlock()

	d := diff(prev, next)
	if d.MappingChanged {
		applog.Info("state: mapping table changed, now serving %d routes", len(next.Mapping))
	}
	if d.RestartRequired() && restartFunc != nil {
		applog.Info("state: port or ssl material changed, restarting listener")
		return restartFunc(next)
	}
	return nil
}

// Update applies a sparse JSON patch via config.ApplyPatch, swaps it in,
// and conditionally restarts the listener — the update() operation spec
// §3 names.
func (s *State) Update(patch []byte) (*config.Config, error) {
	current := s.Current()
	next, err := config.ApplyPatch(current, patch)
	if err != nil {
		return nil, err
	}
	if err := s.Replace(next); err != nil {
		return nil, err
	}
	return next, nil
}
