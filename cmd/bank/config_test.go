package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/reserve"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, ValueDriverMemory, cfg.Value.Driver)
	assert.Equal(t, uint64(reserve.DefaultCostPerByte), cfg.Reserve.CostPerByte)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestParseConfigGenesis(t *testing.T) {
	data := []byte(`
store:
  driver: leveldb
  leveldb_path: /tmp/bank
  cache_size: 128
genesis:
  - holder: "0x0101010101010101010101010101010101010101010101010101010101010101"
    amount: 5000000
`)
	cfg, err := parseConfig(data)
	require.NoError(t, err)
	require.Len(t, cfg.Genesis, 1)
	assert.Equal(t, byte(1), cfg.Genesis[0].Holder[31])
	assert.Equal(t, uint64(5_000_000), cfg.Genesis[0].Amount)
	assert.Equal(t, 128, cfg.Store.CacheSize)
}

func TestParseConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown store":   "store: {driver: redis}",
		"leveldb no path": "store: {driver: leveldb}",
		"unknown value":   "value: {driver: postgres}",
		"kafka no broker": "kafka: {enabled: true}",
		"bad holder":      "genesis: [{holder: xyz, amount: 1}]",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseConfig([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: {addr: ':6000'}"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Server.Addr)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
