package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigPathPrefersPositionalArgument(t *testing.T) {
	t.Setenv("LOCAL_TRAFFIC_CONFIG", "/from/env.json")
	assert.Equal(t, "/from/positional.json", configPath("/from/positional.json"))
}

func TestConfigPathFallsBackToEnvVar(t *testing.T) {
	t.Setenv("LOCAL_TRAFFIC_CONFIG", "/from/env.json")
	assert.Equal(t, "/from/env.json", configPath(""))
}

func TestConfigPathFallsBackToHomeDirectory(t *testing.T) {
	t.Setenv("LOCAL_TRAFFIC_CONFIG", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".local-traffic.json"), configPath(""))
}
