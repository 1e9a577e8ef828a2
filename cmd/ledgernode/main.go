// Ledgercore node daemon.
//
// Usage:
//
//	ledgernode [--validator --keyvault=...]  Run node
//	ledgernode --help                        Show help
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fbanet/ledgercore/config"
	"github.com/fbanet/ledgercore/internal/blockstore"
	"github.com/fbanet/ledgercore/internal/enrollment"
	"github.com/fbanet/ledgercore/internal/fba"
	"github.com/fbanet/ledgercore/internal/keyvault"
	"github.com/fbanet/ledgercore/internal/ledger"
	klog "github.com/fbanet/ledgercore/internal/log"
	"github.com/fbanet/ledgercore/internal/mempool"
	"github.com/fbanet/ledgercore/internal/netrpc"
	"github.com/fbanet/ledgercore/internal/script"
	"github.com/fbanet/ledgercore/internal/storage"
	"github.com/fbanet/ledgercore/internal/utxo"
	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"golang.org/x/term"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	// ── 2. Init logger ────────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = cfg.LogsDir() + "/ledgercore.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	// ── 3. Genesis (hardcoded, not loaded from file) ─────────────────────
	genesis := config.GenesisFor(cfg.Network)
	genesisHash, err := genesis.Hash()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to hash genesis")
	}

	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Int("block_interval_sec", genesis.Protocol.BlockIntervalSec).
		Str("genesis_hash", genesisHash.String()[:16]+"...").
		Msg("Starting Ledgercore Node")

	// ── 4. Open storage ───────────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ChainDataDir()).Msg("Failed to open database")
	}
	defer db.Close()

	utxoStore := utxo.NewStore(db)
	blocks := blockstore.New(db)

	enrollMgr := enrollment.New(db, utxoStore, enrollment.Config{
		CycleLength:            genesis.Protocol.ValidatorCycle,
		MinStakeAmount:         genesis.Protocol.MinStakeAmount,
		SlashPenaltyAmount:     genesis.Protocol.SlashPenaltyAmount,
		RevealGraceBlocks:      genesis.Protocol.RevealGraceBlocks,
		MaxEnrollmentsPerBlock: genesis.Protocol.MaxEnrollmentsPerBlock,
		RecurringDefault:       genesis.Protocol.RecurringEnrollment,
	})

	// ── 5. Init chain from genesis if this is a fresh database ───────────
	if _, _, err := blocks.Tip(); err != nil {
		genesisBlock, err := ledger.BuildGenesisBlock(genesis)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to build genesis block")
		}
		if err := blocks.SetGenesis(genesisBlock); err != nil {
			logger.Fatal().Err(err).Msg("Failed to set genesis block")
		}
		if err := ledger.ApplyGenesisUTXOs(utxoStore, genesis, genesisBlock.Transactions[0]); err != nil {
			logger.Fatal().Err(err).Msg("Failed to apply genesis UTXOs")
		}
		if err := ledger.BootstrapInitialValidators(genesis, genesisBlock.Transactions[0], enrollMgr); err != nil {
			logger.Fatal().Err(err).Msg("Failed to bootstrap initial validators")
		}
		logger.Info().
			Int("alloc", len(genesis.Alloc)).
			Int("validators", len(genesis.InitialValidators)).
			Msg("Chain initialized from genesis")
	} else {
		logger.Info().Uint64("height", blocks.Height()).Msg("Chain resumed from database")
	}

	pool := mempool.New(utxoStore, script.DefaultEngine(), blocks.Height, 5000, genesis.Protocol.MinFee)
	pool.SetCycleLength(genesis.Protocol.ValidatorCycle)

	// ── 6. Load validator identity, if enabled ───────────────────────────
	var validatorSigner *crypto.PrivateKey
	var validatorUTXOKey types.Outpoint
	if cfg.Validator.Enabled {
		if cfg.Validator.KeyVaultFile == "" {
			logger.Fatal().Msg("--validator requires --keyvault")
		}
		signer, utxoKey, err := loadValidatorIdentity(cfg.Validator.KeyVaultFile, utxoStore)
		if err != nil {
			logger.Fatal().Err(err).Str("keyvault", cfg.Validator.KeyVaultFile).Msg("Failed to load validator identity")
		}
		validatorSigner = signer
		validatorUTXOKey = utxoKey
		defer validatorSigner.Zero()
		logger.Info().
			Str("pubkey", hex.EncodeToString(validatorSigner.PublicKey())[:16]+"...").
			Msg("Validator identity loaded")
	}

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.BlockIntervalSec = uint64(genesis.Protocol.BlockIntervalSec)
	ledgerCfg.TxsToNominate = genesis.Protocol.TxsToNominate
	ledgerCfg.ValidatorCycle = genesis.Protocol.ValidatorCycle
	ledgerCfg.MaxQuorumNodes = genesis.Protocol.MaxQuorumNodes
	ledgerCfg.QuorumThresholdPct = genesis.Protocol.QuorumThresholdPct
	ledgerCfg.SlashPenaltyAmount = genesis.Protocol.SlashPenaltyAmount
	ledgerCfg.MinFee = genesis.Protocol.MinFee
	ledgerCfg.RecurringEnrollment = cfg.Validator.RecurringEnrollment

	led := ledger.New(ledgerCfg, db, utxoStore, pool, blocks, enrollMgr, script.DefaultEngine(), nil, validatorSigner, validatorUTXOKey)

	// ── 7. Start peer transport ───────────────────────────────────────────
	var host *netrpc.Host
	if cfg.NetRPC.Enabled {
		h, err := netrpc.Start(cfg.NetRPC, led)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to start peer transport")
		}
		host = h
		defer host.Stop()
		led.SetTransport(host.Gossip)

		logger.Info().
			Str("id", host.ID().String()).
			Int("port", cfg.NetRPC.Port).
			Bool("discovery", !cfg.NetRPC.NoDiscover).
			Msg("Peer transport started")

		for _, seed := range cfg.NetRPC.Seeds {
			peerID, err := peerIDFromMultiaddr(seed)
			if err != nil {
				logger.Warn().Err(err).Str("seed", seed).Msg("Failed to resolve seed peer id")
				continue
			}
			led.AddPeer(host.Client(peerID))
		}

		go host.Gossip.ReadLoop(func(env *fba.Envelope) {
			if err := led.ReceiveEnvelope(env); err != nil {
				logger.Debug().Err(err).Msg("Failed to apply received envelope")
			}
		})
	} else {
		logger.Warn().Msg("Peer transport disabled; node will run in isolation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := led.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start ledger")
	}
	defer led.Stop()

	logger.Info().
		Uint64("height", blocks.Height()).
		Bool("validator", cfg.Validator.Enabled).
		Msg("Node started successfully")

	// ── 8. Wait for shutdown ──────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	cancel()
	logger.Info().Msg("Goodbye!")
}

// loadValidatorIdentity opens the keyvault at path, loads the signing
// identity, and resolves the frozen stake UTXO that pubkey is enrolled
// (or about to enroll) against.
func loadValidatorIdentity(path string, utxoStore *utxo.Store) (*crypto.PrivateKey, types.Outpoint, error) {
	vault, err := keyvault.Open(path)
	if err != nil {
		return nil, types.Outpoint{}, fmt.Errorf("open keyvault: %w", err)
	}
	password, err := readPassword("Validator keyvault password: ")
	if err != nil {
		return nil, types.Outpoint{}, fmt.Errorf("read password: %w", err)
	}
	id, err := vault.Load(password)
	if err != nil {
		return nil, types.Outpoint{}, fmt.Errorf("load identity: %w", err)
	}

	stakes, err := utxoStore.GetFrozenStake(id.SigningKey.PublicKey())
	if err != nil {
		return nil, types.Outpoint{}, fmt.Errorf("lookup frozen stake: %w", err)
	}
	if len(stakes) == 0 {
		return nil, types.Outpoint{}, fmt.Errorf("no frozen stake utxo found for this validator's public key")
	}
	return id.SigningKey, stakes[0].Outpoint, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return password, nil
}

func peerIDFromMultiaddr(s string) (peer.ID, error) {
	addr, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return "", fmt.Errorf("invalid multiaddr: %w", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid peer info: %w", err)
	}
	return info.ID, nil
}
