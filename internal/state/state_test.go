package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-traffic/internal/config"
)

func TestUpdatePortChangeRestartsListener(t *testing.T) {
	s := New(config.Default(), "/tmp/unused.json")

	restarted := false
	s.SetRestartFunc(func(c *config.Config) error {
		restarted = true
		assert.Equal(t, 9090, c.Port)
		return nil
	})

	_, err := s.Update([]byte(`{"port":9090}`))
	require.NoError(t, err)
	assert.True(t, restarted)
}

func TestUpdateMappingOnlyDoesNotRestart(t *testing.T) {
	s := New(config.Default(), "/tmp/unused.json")

	restarted := false
	s.SetRestartFunc(func(c *config.Config) error {
		restarted = true
		return nil
	})

	_, err := s.Update([]byte(`{"mapping":{"/new/":"https://new.example"}}`))
	require.NoError(t, err)
	assert.False(t, restarted)

	_, ok := s.Current().Mapping.Get("/new/")
	assert.True(t, ok)
}

func TestUpdateSSLChangeRestartsListener(t *testing.T) {
	s := New(config.Default(), "/tmp/unused.json")

	restarted := false
	s.SetRestartFunc(func(c *config.Config) error {
		restarted = true
		return nil
	})

	_, err := s.Update([]byte(`{"ssl":{"key":"k","cert":"c"}}`))
	require.NoError(t, err)
	assert.True(t, restarted)
}

func TestCurrentReturnsLatestAfterReplace(t *testing.T) {
	s := New(config.Default(), "/tmp/unused.json")
	other := config.Default()
	other.Port = 1234

	require.NoError(t, s.Replace(other))
	assert.Equal(t, 1234, s.Current().Port)
}
