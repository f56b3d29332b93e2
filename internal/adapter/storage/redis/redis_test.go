package redis

import (
	"context"
	"strconv"
	"testing"

	"digital-wallet/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	return config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mustPort(t, mr)}
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), configFor(t, mr), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := configFor(t, mr)
	mr.Close()

	_, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestHealthCheck_ReportsOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), configFor(t, mr), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	mr.SetError("LOADING")
	assert.Error(t, NewHealthCheck(client).Ping(context.Background()))
}
