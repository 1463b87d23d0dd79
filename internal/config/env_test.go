package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// read-only consumers (status queries) must not need transfer secrets
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, uint64(100), cfg.PlatformFeeBps)
	assert.Equal(t, 10, cfg.PollAttempts)
	assert.Equal(t, 30*time.Second, cfg.DedupWindow)
	assert.Empty(t, cfg.FeePayerKey)
	assert.Empty(t, cfg.PlatformFeeAccount)
}

func TestLoadPrefixedOverrides(t *testing.T) {
	t.Setenv("WALLETCORE_SOLANA_RPC_URL", "http://localhost:8899")
	t.Setenv("WALLETCORE_PLATFORM_FEE_BPS", "250")
	t.Setenv("WALLETCORE_CONFIRM_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8899", cfg.SolanaRPCURL)
	assert.Equal(t, uint64(250), cfg.PlatformFeeBps)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
}
