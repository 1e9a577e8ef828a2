package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants.
// 1 coin = 10^12 base units. All on-chain values are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// CoinbaseMaturity is the number of blocks a coinbase output must wait
// before it can be spent. Prevents issues during reorgs.
const CoinbaseMaturity uint64 = 20

// MaxTokenAmount is the maximum allowed single-output amount.
// Set to MaxUint64/1000 so that up to ~1000 UTXOs can be safely summed
// without overflowing uint64.
const MaxTokenAmount = math.MaxUint64 / 1000

// Block and transaction size limits (consensus-critical).
const (
	MaxBlockSize  = 2_000_000 // 2 MB max block size (header + all tx signing bytes)
	MaxBlockTxs   = 500       // Max transactions per block
	MaxTxInputs   = 2500      // Max inputs per transaction
	MaxTxOutputs  = 2500      // Max outputs per transaction
	MaxScriptData = 65_536    // 64 KB max lock/script data per output
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	// Chain identity
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"` // Native coin symbol.

	// Genesis block
	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Initial allocations (address -> balance in base units)
	Alloc map[string]uint64 `json:"alloc"`

	// Initial validator set (compressed public keys, hex).
	InitialValidators []string `json:"initial_validators"`

	// Protocol rules
	Protocol ProtocolConfig `json:"protocol"`
}

// ForkSchedule defines block heights at which protocol upgrades activate.
// A zero value means the fork is not scheduled.
type ForkSchedule struct {
	// Future forks are added here as fields.
}

// IsActive returns true if a fork at forkHeight has activated at currentHeight.
// Returns false if forkHeight is 0 (not scheduled).
func (f *ForkSchedule) IsActive(forkHeight, currentHeight uint64) bool {
	return forkHeight > 0 && currentHeight >= forkHeight
}

// ProtocolConfig holds consensus-critical rules.
// All nodes MUST agree on these values. Field names follow the
// recognized configuration options spec.md §6 names for the FBA driver,
// the quorum constructor, and the enrollment manager.
type ProtocolConfig struct {
	// Consensus / block production
	BlockIntervalSec int `json:"block_interval_sec"` // Target seconds between blocks.
	TxsToNominate    int `json:"txs_to_nominate"`    // Hard cap on tx-set size (0 = unlimited).

	// Enrollment
	ValidatorCycle         uint64 `json:"validator_cycle"`          // N, pre-image chain length.
	MinStakeAmount         uint64 `json:"min_stake_amount"`         // Minimum Freeze-tagged UTXO value to enroll.
	SlashPenaltyAmount     uint64 `json:"slash_penalty_amount"`     // Deducted from frozen stake on missed reveal.
	RevealGraceBlocks      uint64 `json:"reveal_grace_blocks"`      // Blocks of grace before a missed reveal slashes.
	MaxEnrollmentsPerBlock int    `json:"max_enrollments_per_block"` // Cap on new enrollments admitted per block header.
	PayoutPeriod           uint64 `json:"payout_period"`            // Blocks between validator fee payouts.
	ValidatorTxFeeCut      int    `json:"validator_tx_fee_cut"`     // Percent of tx fees routed to validators.
	RecurringEnrollment    bool   `json:"recurring_enrollment"`     // Default auto-renew at cycle end.

	// Quorum construction
	MaxQuorumNodes         int `json:"max_quorum_nodes"`
	QuorumThresholdPct     int `json:"quorum_threshold"`
	QuorumShuffleInterval  uint64 `json:"quorum_shuffle_interval"` // Blocks between shuffle-and-partition reruns.

	// Fees
	MinFee uint64 `json:"min_fee"` // Minimum fee per transaction (inputs minus outputs), in base units.

	// Economics
	BlockReward     uint64 `json:"block_reward"`               // Base units per block.
	MaxSupply       uint64 `json:"max_supply"`                 // Total coin cap in base units (0 = unlimited).
	HalvingInterval uint64 `json:"halving_interval,omitempty"` // Blocks between reward halvings (0 = no halving).

	// Peer RPC transport (netrpc) retry/ban rules, mirrored into node
	// config defaults but recorded here as protocol-visible guidance.
	RetryDelayMS      int `json:"retry_delay_ms"`
	MaxRetries        int `json:"max_retries"`
	TimeoutMS         int `json:"timeout_ms"`
	MaxFailedRequests int `json:"max_failed_requests"`
	BanDurationSec    int `json:"ban_duration_sec"`

	// Gossip pacing.
	RelayTxMaxNum      int    `json:"relay_tx_max_num"`
	RelayTxIntervalMS  int    `json:"relay_tx_interval_ms"`
	RelayTxMinFee      uint64 `json:"relay_tx_min_fee"`
	RelayTxCacheExpSec int    `json:"relay_tx_cache_exp_sec"`

	// Fork activation schedule
	Forks ForkSchedule `json:"forks,omitempty"`
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
//
// Derivation path: m/44'/8888'/0'/0/0 (no passphrase)
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet validator.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetValidatorPubKey is the compressed public key (hex) derived from TestnetMnemonic.
	TestnetValidatorPubKey = "030bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f"

	// TestnetValidatorPrivKey is the private key (hex) derived from TestnetMnemonic.
	TestnetValidatorPrivKey = "1f0717e6e34acc6721021f4dfed54558ec8452452b6195545d06dd348b220091"

	// TestnetAddress is the address (bech32, tfba) derived from TestnetMnemonic.
	// Address = BLAKE3(pubkey)[:20]
	TestnetAddress = "tfba13uayfwq9djh7cd5dagxtuzk3mx7r7sc9xv4h52"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "ledgercore-mainnet-1",
		ChainName: "Ledgercore Mainnet",
		Symbol:    "FBA",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Ledgercore Genesis",
		Alloc: map[string]uint64{
			"fba1a8tfl79jgres7t90tttkc7ytjmhs5lpdn5ag4l": 100_000 * Coin,
		},
		InitialValidators: []string{
			"03cba4d0ee4c55f5ea620393a6e6e9dafe959bfa6ddff964221126a3e41ad0487d",
		},
		Protocol: ProtocolConfig{
			BlockIntervalSec: 5,
			TxsToNominate:    0,

			ValidatorCycle:         1008,
			MinStakeAmount:         1_000 * Coin,
			SlashPenaltyAmount:     50 * Coin,
			RevealGraceBlocks:      2,
			MaxEnrollmentsPerBlock: 4,
			PayoutPeriod:           144,
			ValidatorTxFeeCut:      80,
			RecurringEnrollment:    true,

			MaxQuorumNodes:        7,
			QuorumThresholdPct:    80,
			QuorumShuffleInterval: 1008,

			MinFee: 10_000,

			BlockReward:     20 * MilliCoin,
			MaxSupply:       2_000_000 * Coin,
			HalvingInterval: 0,

			RetryDelayMS:      2000,
			MaxRetries:        5,
			TimeoutMS:         5000,
			MaxFailedRequests: 10,
			BanDurationSec:    3600,

			RelayTxMaxNum:      1000,
			RelayTxIntervalMS:  500,
			RelayTxMinFee:      0,
			RelayTxCacheExpSec: 600,
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "ledgercore-testnet-1"
	g.ChainName = "Ledgercore Testnet"
	g.ExtraData = "Ledgercore Testnet Genesis"

	// More relaxed rules for testnet.
	g.Protocol.ValidatorCycle = 20
	g.Protocol.QuorumShuffleInterval = 20
	g.Protocol.MinFee = 10
	g.Protocol.BlockIntervalSec = 1
	g.Protocol.TxsToNominate = 8
	g.Protocol.MinStakeAmount = 10 * Coin

	g.Alloc = map[string]uint64{
		TestnetAddress: 200_000 * Coin,
	}
	g.InitialValidators = []string{TestnetValidatorPubKey}

	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}

	if g.Protocol.BlockIntervalSec <= 0 {
		return fmt.Errorf("block_interval_sec must be positive")
	}

	if g.Protocol.ValidatorCycle == 0 {
		return fmt.Errorf("validator_cycle must be positive")
	}

	if g.Protocol.MaxQuorumNodes < 1 {
		return fmt.Errorf("max_quorum_nodes must be at least 1")
	}
	if g.Protocol.QuorumThresholdPct < 1 || g.Protocol.QuorumThresholdPct > 100 {
		return fmt.Errorf("quorum_threshold must be between 1 and 100")
	}

	if g.Protocol.BlockReward == 0 {
		return fmt.Errorf("block_reward must be positive")
	}

	if len(g.InitialValidators) == 0 {
		return fmt.Errorf("initial_validators must not be empty")
	}

	// Validate alloc addresses and check total doesn't exceed max supply.
	var totalAlloc uint64
	for addrStr, v := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		totalAlloc += v
	}
	if g.Protocol.MaxSupply > 0 && totalAlloc > g.Protocol.MaxSupply {
		return fmt.Errorf("genesis allocations (%d) exceed max_supply (%d)",
			totalAlloc, g.Protocol.MaxSupply)
	}

	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to identify the chain and detect genesis mismatches.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
