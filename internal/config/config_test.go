package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE", "HOLD_DEFAULT_TTL", "HOLD_MAX_TTL", "KAFKA_BROKERS", "SWEEP_BATCH"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Store)
	require.Equal(t, 15*time.Minute, cfg.HoldDefaultTTL)
	require.Equal(t, 2*time.Hour, cfg.HoldMaxTTL)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500, cfg.SweepBatch)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "BOLT")
	t.Setenv("HOLD_DEFAULT_TTL", "10m")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("REFUND_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "bolt", cfg.Store)
	require.Equal(t, 10*time.Minute, cfg.HoldDefaultTTL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 8, cfg.RefundWorkers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE", "mongo")
	t.Setenv("SWEEP_INTERVAL", "soon")
	t.Setenv("SWEEP_BATCH", "-1")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "STORE")
	require.Contains(t, err.Error(), "SWEEP_INTERVAL")
	require.Contains(t, err.Error(), "SWEEP_BATCH")
}

func TestLoadRejectsMaxBelowDefault(t *testing.T) {
	t.Setenv("HOLD_DEFAULT_TTL", "1h")
	t.Setenv("HOLD_MAX_TTL", "30m")
	_, err := Load()
	require.ErrorContains(t, err, "HOLD_MAX_TTL")
}

func TestRequireSharedStore(t *testing.T) {
	t.Run("bolt is api only", func(t *testing.T) {
		err := Config{Store: "bolt"}.RequireSharedStore("refunds worker")
		require.Error(t, err)
		require.Contains(t, err.Error(), "refunds worker")
	})
	t.Run("postgres is shared", func(t *testing.T) {
		require.NoError(t, Config{Store: "postgres"}.RequireSharedStore("refunds worker"))
	})
}
