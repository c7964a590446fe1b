package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Act
	cfg, err := LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, BusMemory, cfg.EventBus)
	assert.Equal(t, 3, cfg.WorkerMaxReceives)
	assert.Equal(t, 15*time.Minute, cfg.FileURLTTL)
	tier, err := cfg.Tier()
	require.NoError(t, err)
	assert.Equal(t, sharedDomain.TierCP, tier)
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("EVENT_BUS", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OUTBOX_PERIOD", "250ms")
	t.Setenv("CONSISTENCY_TIER", "ap")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, BusKafka, cfg.EventBus)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPeriod)
	assert.Equal(t, "ap", cfg.ConsistencyTier)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"EVENT_BUS":           "rabbit",
		"CONSISTENCY_TIER":    "strong",
		"IDEMPOTENCY_BACKEND": "memcached",
		"OUTBOX_LIMIT":        "muchos",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)

			_, err := LoadConfig()

			assert.Error(t, err)
		})
	}
}
