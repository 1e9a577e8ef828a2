package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Peer transport (internal/netrpc)
	NetRPC     bool
	NetRPCPort int
	Seeds      string
	MaxPeers   int
	NoDiscover bool
	DHTServer  bool
	ClearBans  bool

	// Validator
	Validator    bool
	KeyVaultFile string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetNetRPC     bool
	SetNoDiscover bool
	SetValidator  bool
	SetLogJSON    bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("ledgernode", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.StringVar(&f.Network, "testnet", "", "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Peer transport
	fs.BoolVar(&f.NetRPC, "netrpc", true, "Enable peer transport")
	fs.IntVar(&f.NetRPCPort, "netrpc-port", 0, "Peer transport listen port")
	fs.StringVar(&f.Seeds, "seeds", "", "Seed nodes as comma-separated libp2p multiaddrs")
	fs.IntVar(&f.MaxPeers, "maxpeers", 0, "Maximum number of peers")
	fs.BoolVar(&f.NoDiscover, "nodiscover", false, "Disable peer discovery (accepted; the peer transport has no discovery)")
	fs.BoolVar(&f.DHTServer, "dht-server", false, "DHT server mode (accepted; the peer transport runs no DHT)")
	fs.BoolVar(&f.ClearBans, "clear-bans", false, "Clear all peer bans on startup")

	// Validator
	fs.BoolVar(&f.Validator, "validator", false, "Enroll and run as a validator")
	fs.StringVar(&f.KeyVaultFile, "keyvault", "", "Path to encrypted validator keyvault")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if isFlagSet(fs, "testnet") {
		f.Network = "testnet"
	}
	f.SetNetRPC = isFlagSet(fs, "netrpc")
	f.SetNoDiscover = isFlagSet(fs, "nodiscover")
	f.SetValidator = isFlagSet(fs, "validator")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (positional argument stopped parsing)\n", arg)
			fmt.Fprintf(os.Stderr, "Hint: --validator is a boolean flag. Use --validator (not --validator <name>)\n")
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.SetNetRPC {
		cfg.NetRPC.Enabled = f.NetRPC
	}
	if f.NetRPCPort != 0 {
		cfg.NetRPC.Port = f.NetRPCPort
	}
	if f.Seeds != "" {
		cfg.NetRPC.Seeds = parseStringList(f.Seeds)
	}
	if f.MaxPeers != 0 {
		cfg.NetRPC.MaxPeers = f.MaxPeers
	}
	if f.SetNoDiscover {
		cfg.NetRPC.NoDiscover = f.NoDiscover
	}
	if f.DHTServer {
		cfg.NetRPC.DHTServer = true
	}
	if f.ClearBans {
		cfg.NetRPC.ClearBans = true
	}

	if f.SetValidator {
		cfg.Validator.Enabled = f.Validator
	}
	if f.KeyVaultFile != "" {
		cfg.Validator.KeyVaultFile = f.KeyVaultFile
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Ledgercore - a federated byzantine agreement ledger node

Usage:
  ledgernode [options]
  ledgernode --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.ledgercore)
  --config, -c    Config file path (default: <datadir>/ledgercore.conf)

Peer Transport Options:
  --netrpc        Enable peer transport (default: true)
  --netrpc-port   Peer transport listen port (mainnet: 30303, testnet: 30304)
  --seeds         Seed nodes as comma-separated libp2p multiaddrs
  --maxpeers      Maximum number of peers (default: 50)
  --nodiscover    Disable peer discovery (accepted, no effect: no discovery)
  --dht-server    DHT server mode (accepted, no effect: no DHT)
  --clear-bans    Clear all peer bans on startup

Validator Options:
  --validator     Enroll and run as a validator
  --keyvault      Path to encrypted validator keyvault

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/ledgercore.log)
  --log-json      Output logs as JSON

Examples:
  # Start mainnet node as an observer
  ledgernode

  # Start testnet node as a validator
  ledgernode --network=testnet --validator --keyvault=~/.ledgercore/testnet/keyvault/validator.json

Note:
  Protocol rules (quorum construction, enrollment cycle length, block
  interval) are hardcoded in the genesis configuration and cannot be
  changed at runtime. Data directories are created automatically on
  first start.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
//  1. Default values
//  2. Auto-create data dirs + default config (idempotent)
//  3. Config file
//  4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("ledgernode version 0.1.0")
		os.Exit(0)
	}

	network := Mainnet
	if strings.ToLower(flags.Network) == "testnet" {
		network = Testnet
	}

	cfg := Default(network)

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Idempotent — safe to call on every
// startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.BlocksDir(),
		cfg.UTXODir(),
		cfg.EnrollmentDir(),
		cfg.KeyvaultDir(),
		cfg.LogsDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
