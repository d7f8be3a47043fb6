package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Database.Username = "app"
	cfg.Database.DBName = "flashsale"
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "stream", cfg.Queue.Driver)
	assert.Equal(t, "stream:orders", cfg.Queue.Stream)
	assert.Equal(t, "g1", cfg.Queue.Group)
	assert.Equal(t, 10, cfg.Cache.RebuildWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Seckill.SoldOutTTL)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Queue.Driver = "kafka"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Database.Username = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.Port = -1
	assert.Error(t, cfg.Validate())
}

func TestAddrHelpers(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "localhost:8080", cfg.Server.GetAddr())
	assert.Equal(t, "localhost:6379", cfg.Redis.GetAddr())
	assert.Contains(t, cfg.Database.GetDSN(), "app:@tcp(localhost:3306)/flashsale")
}
