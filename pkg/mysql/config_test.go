package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaultsAndDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "bank", Password: "secret", DBName: "custody"}
	cfg.SetDefaults()

	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, 100, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.Equal(t, "bank:secret@tcp(db:3306)/custody?charset=utf8mb4&parseTime=True&loc=Local", cfg.DSN())
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	cfg := Config{Port: 3307, MaxOpenConns: 5, RetryInterval: time.Second}
	cfg.SetDefaults()

	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, 5, cfg.MaxOpenConns)
	assert.Equal(t, time.Second, cfg.RetryInterval)
}
