package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
gateway:
  host: 127.0.0.1
  port: 9090
database:
  driver: postgres
  host: db.internal
  port: 5432
  username: shop
  password: secret
  database: shop
redis:
  addr: localhost:6379
  ttl: 1m
log:
  level: debug
  encoding: console
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.Equal(t, 9090, cfg.Gateway.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.False(t, cfg.MongoDB.Enabled())
	assert.False(t, cfg.Etcd.Enabled())

	// defaults survive a partial file
	assert.Equal(t, "storefront", cfg.Server.Name)
	assert.Equal(t, 50051, cfg.Server.Port)
	assert.Equal(t, "audit_logs", cfg.MongoDB.Collection)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE_DRIVER", "mysql")
	t.Setenv("STOREFRONT_GATEWAY_PORT", "7070")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 7070, cfg.Gateway.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.MongoDB.Enabled())
	assert.False(t, cfg.Etcd.Enabled())
}

func TestLoadEnvWithoutFile(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE_DRIVER", "postgres")
	t.Setenv("STOREFRONT_DATABASE_HOST", "db.internal")
	t.Setenv("STOREFRONT_DATABASE_PORT", "5433")
	t.Setenv("STOREFRONT_DATABASE_USERNAME", "shop")
	t.Setenv("STOREFRONT_DATABASE_PASSWORD", "secret")
	t.Setenv("STOREFRONT_DATABASE_DATABASE", "shop")
	t.Setenv("STOREFRONT_REDIS_ADDR", "redis:6379")
	t.Setenv("STOREFRONT_REDIS_DB", "2")
	t.Setenv("STOREFRONT_MONGODB_URI", "mongodb://m")
	t.Setenv("STOREFRONT_ETCD_ENDPOINTS", "etcd:2379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "shop", cfg.Database.Username)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "shop", cfg.Database.Database)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "mongodb://m", cfg.MongoDB.URI)
	assert.Equal(t, []string{"etcd:2379"}, cfg.Etcd.Endpoints)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		Username: "root",
		Password: "pw",
		Database: "shop",
	}
	assert.Equal(t, "root:pw@tcp(localhost:3306)/shop?charset=utf8mb4&parseTime=True&loc=Local", db.DSN())

	db.Driver = "postgres"
	db.Port = 5432
	db.SSLMode = "require"
	assert.Equal(t, "host=localhost user=root password='pw' dbname=shop port=5432 sslmode=require", db.DSN())

	db = DatabaseConfig{Driver: "sqlite", Path: "shop.db"}
	assert.Equal(t, "shop.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", db.DSN())
}

func TestLogBuild(t *testing.T) {
	lc := LogConfig{Level: "warn", Encoding: "console", OutputPaths: []string{"stderr"}}
	logger, err := lc.Build()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1)) // debug
	assert.True(t, logger.Core().Enabled(1))   // warn

	_, err = (&LogConfig{Level: "loud"}).Build()
	require.Error(t, err)
}
