package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_ADDR", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "REDIS_URL",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "IDENTIFY_TX_TIMEOUT", "IDENTIFY_LOCK_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Database.Migrate)
	assert.Empty(t, cfg.Redis.URL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, "contact-events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Identify.TxTimeout)
	assert.Equal(t, 10*time.Second, cfg.Identify.LockTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("DATABASE_URL", "postgres://linkage@localhost/linkage")
	t.Setenv("DATABASE_MIGRATE", "false")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("IDENTIFY_TX_TIMEOUT", "2s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "postgres://linkage@localhost/linkage", cfg.Database.URL)
	assert.False(t, cfg.Database.Migrate)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Identify.TxTimeout)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "bad duration", key: "REQUEST_TIMEOUT", value: "soon", wantErr: "REQUEST_TIMEOUT"},
		{name: "bad int", key: "DATABASE_MAX_OPEN_CONNS", value: "many", wantErr: "DATABASE_MAX_OPEN_CONNS"},
		{name: "bad bool", key: "DATABASE_MIGRATE", value: "maybe", wantErr: "DATABASE_MIGRATE"},
		{name: "bad log format", key: "LOG_FORMAT", value: "xml", wantErr: "LOG_FORMAT"},
		{name: "bad log level", key: "LOG_LEVEL", value: "loud", wantErr: "LOG_LEVEL"},
		{name: "non-positive tx timeout", key: "IDENTIFY_TX_TIMEOUT", value: "0s", wantErr: "IDENTIFY_TX_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromEnvLockTTLMustExceedTxTimeout(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("IDENTIFY_TX_TIMEOUT", "5s")
	t.Setenv("IDENTIFY_LOCK_TTL", "5s")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTIFY_LOCK_TTL")
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("fills unset variables only", func(t *testing.T) {
		t.Setenv("SERVER_ADDR", "")
		require.NoError(t, os.Unsetenv("SERVER_ADDR"))
		t.Setenv("LOG_FORMAT", "json")

		path := filepath.Join(t.TempDir(), "linkage.env")
		require.NoError(t, os.WriteFile(path, []byte("SERVER_ADDR=:7070\nLOG_FORMAT=text\n"), 0o600))

		require.NoError(t, LoadEnvFile(path))
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":7070", cfg.Server.Addr)
		assert.Equal(t, "json", cfg.Logging.Format, "process environment wins")
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		t.Chdir(t.TempDir())
		assert.NoError(t, LoadEnvFile(""))
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
