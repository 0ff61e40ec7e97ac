package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "digitalid-service", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "digitalid", cfg.Postgres.Database)
	assert.Equal(t, "digitalid", cfg.Kafka.TopicPrefix)
	assert.Equal(t, "digitalid-orchestrator", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, "kyc-provider", cfg.KYC.VerifierID)
	assert.Equal(t, 30*time.Second, cfg.KYC.Timeout)
	assert.Equal(t, time.Minute, cfg.Orchestrator.SweepInterval)
	assert.Equal(t, 2*time.Minute, cfg.Orchestrator.SweepGrace)
	assert.Equal(t, 5, cfg.RateLimit.ClaimMaxAttempts)
	assert.Empty(t, cfg.Moderation.Moderators)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DIGITALID_APP_ENV", "production")
	t.Setenv("DIGITALID_APP_PORT", "9000")
	t.Setenv("DIGITALID_KYC_STUB_MODE", "true")
	t.Setenv("DIGITALID_ORCHESTRATOR_SWEEP_BATCH_SIZE", "25")
	t.Setenv("DIGITALID_MODERATION_MODERATORS", "mod-a mod-b")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.True(t, cfg.KYC.StubMode)
	assert.Equal(t, 25, cfg.Orchestrator.SweepBatchSize)
	assert.Equal(t, []string{"mod-a", "mod-b"}, cfg.Moderation.Moderators)
}
