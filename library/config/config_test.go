package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/book-library/library/config"
)

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LIBRARY_HTTP_PORT", "9090")
	t.Setenv("KAFKA_ADDRS", "k1:9092,k2:9092")
	t.Setenv("METADATA_TIMEOUT", "3s")

	cfg, err := config.Load(
		config.WithLogLevel(zapcore.DebugLevel),
		config.WithWriteTimeout(time.Minute),
	)
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, time.Minute, cfg.Server.WriteTimeout)
	require.Equal(t, zapcore.DebugLevel, cfg.Log.LogLevel)
	require.Equal(t, "s3cret", cfg.Auth.Secret)
	require.Equal(t, 15*time.Minute, cfg.Auth.TTL)
	require.Equal(t, 3*time.Second, cfg.Metadata.Timeout)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Addrs)
	require.True(t, cfg.Kafka.Enabled())
	require.Equal(t, "library.transactions", cfg.Kafka.Topic)
	require.Equal(t, "5432", cfg.Database.Port)
}

func TestLoad_SecretRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "restored after the test")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := config.Load()
	require.Error(t, err)
}
