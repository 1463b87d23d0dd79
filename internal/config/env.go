package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all configuration parameters for the transfer core.
// FeePayerKey is the base58-encoded private key of the platform account that
// pays network gas on behalf of senders (fee delegation). PlatformFeeAccount
// and FeePayerKey are only consulted when the transfer pipeline is wired up;
// read-only paths (status queries) work without them, so the embedder
// validates them at wiring time rather than Load failing for everyone.
type Config struct {
	SolanaRPCURL       string        `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	TokenMint          string        `envconfig:"TOKEN_MINT" default:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`
	PlatformFeeBps     uint64        `envconfig:"PLATFORM_FEE_BPS" default:"100"`
	PlatformFeeAccount string        `envconfig:"PLATFORM_FEE_ACCOUNT"`
	FeePayerKey        string        `envconfig:"FEE_PAYER_KEY"`
	PriorityFeePrice   uint64        `envconfig:"PRIORITY_FEE_MICROLAMPORTS" default:"10000"`
	PollAttempts       int           `envconfig:"CONFIRM_POLL_ATTEMPTS" default:"10"`
	PollInterval       time.Duration `envconfig:"CONFIRM_POLL_INTERVAL" default:"1s"`
	DedupWindow        time.Duration `envconfig:"DEDUP_WINDOW" default:"30s"`
	DedupEntryTimeout  time.Duration `envconfig:"DEDUP_ENTRY_TIMEOUT" default:"60s"`
	DedupSweepInterval time.Duration `envconfig:"DEDUP_SWEEP_INTERVAL" default:"10s"`
	RecoveryCacheTTL   time.Duration `envconfig:"RECOVERY_CACHE_TTL" default:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("WALLETCORE", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return cfg, nil
}
