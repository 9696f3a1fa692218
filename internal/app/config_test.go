package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", testTokenSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 12*time.Hour, cfg.TokenTTL)
	require.Equal(t, "EUR", cfg.DefaultCurrency)
	require.Equal(t, 10*time.Second, cfg.AppRequestTimeout)
	require.LessOrEqual(t, cfg.AppRequestTimeout, cfg.AppWriteTimeout)
	require.Equal(t, 8, cfg.DBConnectAttempts)
	require.Equal(t, 2*time.Second, cfg.DBConnectInterval)
	require.Equal(t, 5, cfg.LoginMaxAttempts)
	require.Equal(t, 15*time.Minute, cfg.LoginLockout)
	require.True(t, cfg.SeedAccounts)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.IsProduction())

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Europe/Madrid", loc.String())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", testTokenSecret)
	t.Setenv("TOKEN_TTL", "24h")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.TokenTTL)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {"TOKEN_SECRET": ""},
		"short secret":   {"TOKEN_SECRET": "short"},
		"bad timezone":   {"TOKEN_SECRET": testTokenSecret, "APP_TIMEZONE": "Mars/Olympus"},
		"bad currency":   {"TOKEN_SECRET": testTokenSecret, "DEFAULT_CURRENCY": "EURO"},
		"zero ttl":       {"TOKEN_SECRET": testTokenSecret, "TOKEN_TTL": "0s"},
		"slow request":   {"TOKEN_SECRET": testTokenSecret, "APP_REQUEST_TIMEOUT": "30s", "APP_WRITE_TIMEOUT": "15s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{AppEnv: "production", LogFormat: "json"}).Info("ready")
	require.True(t, strings.HasPrefix(buf.String(), "{"))
	require.Contains(t, buf.String(), `"service":"eaxy"`)

	buf.Reset()
	newLogger(&buf, &Config{AppEnv: "production"}).Debug("hidden")
	require.Empty(t, buf.String())
}
