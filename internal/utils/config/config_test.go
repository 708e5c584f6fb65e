package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/onchain-tracker/internal/types/environments"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "tracker")
}

func TestNew_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := New()

	assert.Equal(t, environments.Test, cfg.Environment)
	assert.Equal(t, 5*time.Minute, cfg.Reconciler.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Reconciler.FetchTimeout)
	assert.Equal(t, 3, cfg.Reconciler.BackoffThreshold)
	assert.Equal(t, time.Hour, cfg.Reconciler.MaxBackoff)
	assert.Equal(t, uint64(12), cfg.Chain.EVMConfirmations)
	assert.Equal(t, uint64(12), cfg.Chain.EVMOverlapBlocks)
	assert.Equal(t, uint64(150), cfg.Chain.NonEVMOverlapSlots)
	assert.Equal(t, 50, cfg.Chain.PageSize)
	assert.Equal(t, 256, cfg.Notifier.QueueSize)
	assert.Equal(t, 3, cfg.Notifier.MaxRetries)
	assert.Equal(t, time.Hour, cfg.Stats.SnapshotInterval)
	assert.Equal(t, 24, cfg.Stats.RecentWindowHours)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, "8000", cfg.ApiServer.Port)
	assert.Equal(t, 30*time.Second, cfg.ShutdownGracePeriod)
	assert.Empty(t, cfg.Chain.EVMAddresses)
	require.NoError(t, cfg.Validate())
}

func TestNew_FromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_KEY", "secret")
	t.Setenv("WEBHOOK_URL", "https://discord.example/webhook")
	t.Setenv("POLL_INTERVAL", "90s")
	t.Setenv("WATCHED_EVM_ADDRESSES", " 0xabc , ,0xdef")
	t.Setenv("WATCHED_NONEVM_ADDRESSES", "So1anaAddr")
	t.Setenv("EVM_CONFIRMATIONS", "3")

	cfg := New()

	assert.Equal(t, "secret", cfg.Chain.APIKey)
	assert.Equal(t, "https://discord.example/webhook", cfg.Notifier.WebhookURL)
	assert.Equal(t, 90*time.Second, cfg.Reconciler.PollInterval)
	assert.Equal(t, []string{"0xabc", "0xdef"}, cfg.Chain.EVMAddresses)
	assert.Equal(t, []string{"So1anaAddr"}, cfg.Chain.NonEVMAddresses)
	assert.Equal(t, uint64(3), cfg.Chain.EVMConfirmations)
	assert.Equal(t, "https://base-mainnet.g.alchemy.com/v2/secret", cfg.Chain.EVMEndpoint())
	assert.Equal(t, "https://solana-mainnet.g.alchemy.com/v2/secret", cfg.Chain.SolanaEndpoint())
}

func TestNew_LegacyVariableNames(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALCHEMY_API_KEY", "legacy")
	t.Setenv("DISCORD_WEBHOOK", "https://discord.example/legacy")

	cfg := New()

	assert.Equal(t, "legacy", cfg.Chain.APIKey)
	assert.Equal(t, "https://discord.example/legacy", cfg.Notifier.WebhookURL)
}

func TestNew_MalformedDurationPanics(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "five minutes")

	assert.Panics(t, func() { New() })
}

func TestValidate(t *testing.T) {
	t.Run("missing database host", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DB_HOST", "")

		assert.Error(t, New().Validate())
	})

	t.Run("invalid webhook url", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("WEBHOOK_URL", "not a url")

		assert.Error(t, New().Validate())
	})

	t.Run("unknown environment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("APP_ENV", "qa")

		assert.Error(t, New().Validate())
	})

	t.Run("overlap shorter than confirmation depth", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("EVM_CONFIRMATIONS", "64")

		err := New().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EVMOverlapBlocks")
	})

	t.Run("overlap covering confirmation depth", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("EVM_CONFIRMATIONS", "64")
		t.Setenv("EVM_OVERLAP_BLOCKS", "64")

		assert.NoError(t, New().Validate())
	})
}

func TestWithAPIKey(t *testing.T) {
	assert.Equal(t, "https://rpc.example", withAPIKey("https://rpc.example", ""))
	assert.Equal(t, "https://rpc.example/k", withAPIKey("https://rpc.example", "k"))
	assert.Equal(t, "https://rpc.example/v2/k", withAPIKey("https://rpc.example/v2/", "k"))
}
