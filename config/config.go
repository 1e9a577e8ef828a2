// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: Defined in genesis, immutable, must match across all nodes
//   - Node settings: Runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
// These settings can vary between nodes without breaking consensus.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Peer transport (internal/netrpc)
	NetRPC NetRPCConfig

	// Validator (this node's enrollment/signing behavior)
	Validator ValidatorConfig

	// Logging
	Log LogConfig

	// Maintenance (not persisted in config file)
	RebuildIndexes bool
}

// NetRPCConfig holds peer-to-peer transport settings (libp2p, spec.md §6).
type NetRPCConfig struct {
	Enabled    bool     `conf:"netrpc.enabled"`
	ListenAddr string   `conf:"netrpc.listen"`
	Port       int      `conf:"netrpc.port"`
	Seeds      []string `conf:"netrpc.seeds"` // libp2p multiaddrs
	MaxPeers   int      `conf:"netrpc.maxpeers"`
	NoDiscover bool     `conf:"netrpc.nodiscover"`
	DHTServer  bool     `conf:"netrpc.dhtserver"`
	ClearBans  bool     // Clear all peer bans on startup (not persisted in config file).

	// RetryDelay, MaxRetries, Timeout, MaxFailedRequests, BanDuration are
	// the retry/ban rules spec.md §6 names for the Peer RPC transport and
	// its BanManager.
	RetryDelayMS      int `conf:"netrpc.retry_delay_ms"`
	MaxRetries        int `conf:"netrpc.max_retries"`
	TimeoutMS         int `conf:"netrpc.timeout_ms"`
	MaxFailedRequests int `conf:"netrpc.max_failed_requests"`
	BanDurationSec    int `conf:"netrpc.ban_duration_sec"`

	// RelayTxMaxNum, RelayTxInterval, RelayTxMinFee, RelayTxCacheExp
	// pace gossip of mempool transactions per spec.md §6.
	RelayTxMaxNum      int `conf:"netrpc.relay_tx_max_num"`
	RelayTxIntervalMS  int `conf:"netrpc.relay_tx_interval_ms"`
	RelayTxMinFee      uint64 `conf:"netrpc.relay_tx_min_fee"`
	RelayTxCacheExpSec int `conf:"netrpc.relay_tx_cache_exp_sec"`
}

// ValidatorConfig holds this node's validator-operation settings.
// Whether a node enrolls as a validator is a node choice; the admission
// rules themselves are protocol (genesis) rules.
type ValidatorConfig struct {
	Enabled      bool   `conf:"validator.enabled"`
	KeyVaultFile string `conf:"validator.keyvault_file"` // Path to encrypted signing key + pre-image seed.

	// RecurringEnrollment mirrors spec.md's recurring_enrollment: whether
	// this validator auto-renews its enrollment at cycle end.
	RecurringEnrollment bool `conf:"validator.recurring_enrollment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.ledgercore
//	macOS:   ~/Library/Application Support/Ledgercore
//	Windows: %APPDATA%\Ledgercore
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ledgercore"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Ledgercore")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Ledgercore")
		}
		return filepath.Join(home, "AppData", "Roaming", "Ledgercore")
	default:
		return filepath.Join(home, ".ledgercore")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// BlocksDir returns the block store directory.
func (c *Config) BlocksDir() string {
	return filepath.Join(c.ChainDataDir(), "blocks")
}

// UTXODir returns the UTXO database directory.
func (c *Config) UTXODir() string {
	return filepath.Join(c.ChainDataDir(), "utxo")
}

// EnrollmentDir returns the enrollment / pre-image chain storage directory.
func (c *Config) EnrollmentDir() string {
	return filepath.Join(c.ChainDataDir(), "enrollment")
}

// KeyvaultDir returns the validator secret storage directory.
func (c *Config) KeyvaultDir() string {
	return filepath.Join(c.ChainDataDir(), "keyvault")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "ledgercore.conf")
}
