package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "pg", User: "bank", Password: "secret", DBName: "custody"}
	cfg.SetDefaults()

	assert.Equal(t, "host=pg port=5432 user=bank password=secret dbname=custody sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://bank:secret@pg:5432/custody?sslmode=disable", cfg.MigrationURL())
}
