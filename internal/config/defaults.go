package config

// Default returns the built-in configuration: the four feature-channel
// routes plus sane timeouts, matching the "writeIfMissing" default file
// the spec requires load() to produce.
func Default() *Config {
	cfg := &Config{
		Mapping:        Mapping{},
		Port:           8080,
		ConnectTimeout: 3000,
		SocketTimeout:  5000,
		Mode:           "proxy",
	}
	insertBuiltinRoutes(&cfg.Mapping)
	return cfg
}

// builtinRoutes are inserted if absent, per the normalization rules.
var builtinRoutes = []MappingEntry{
	{Key: "/config/(.*)", Destination: Destination{DownstreamURL: "config://"}},
	{Key: "/logs/(.*)", Destination: Destination{DownstreamURL: "logs://"}},
	{Key: "/recorder/(.*)", Destination: Destination{DownstreamURL: "recorder://"}},
	{Key: "/local-traffic-worker.js", Destination: Destination{DownstreamURL: "worker://"}},
}

func insertBuiltinRoutes(m *Mapping) {
	for _, r := range builtinRoutes {
		if _, ok := m.Get(r.Key); !ok {
			*m = append(*m, r)
		}
	}
}
