package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a node config value by key. Only node-operational
// settings, never protocol rules (those live in genesis).
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	case "netrpc.enabled":
		cfg.NetRPC.Enabled = parseBool(value)
	case "netrpc.listen":
		cfg.NetRPC.ListenAddr = value
	case "netrpc.port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.NetRPC.Port = n
	case "netrpc.seeds":
		cfg.NetRPC.Seeds = parseStringList(value)
	case "netrpc.maxpeers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.NetRPC.MaxPeers = n
	case "netrpc.nodiscover":
		cfg.NetRPC.NoDiscover = parseBool(value)
	case "netrpc.dhtserver":
		cfg.NetRPC.DHTServer = parseBool(value)
	case "netrpc.retry_delay_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.NetRPC.RetryDelayMS = n
	case "netrpc.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.NetRPC.MaxRetries = n
	case "netrpc.timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.NetRPC.TimeoutMS = n
	case "netrpc.max_failed_requests":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.NetRPC.MaxFailedRequests = n
	case "netrpc.ban_duration_sec":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.NetRPC.BanDurationSec = n

	case "validator.enabled", "validator":
		cfg.Validator.Enabled = parseBool(value)
	case "validator.keyvault_file":
		cfg.Validator.KeyVaultFile = value
	case "validator.recurring_enrollment":
		cfg.Validator.RecurringEnrollment = parseBool(value)

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored.
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# Ledgercore Node Configuration
#
# This file contains NODE settings only.
# Protocol rules (quorum construction, enrollment cycle length, block
# interval) are hardcoded in the genesis configuration and cannot be
# changed without a hard fork.

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.ledgercore)
# datadir = ~/.ledgercore

# ============================================================================
# Peer Transport (internal/netrpc)
# ============================================================================

netrpc.enabled = true
netrpc.listen = 0.0.0.0
netrpc.port = ` + defaultPort(network) + `
netrpc.maxpeers = 50

# Seed nodes (comma-separated libp2p multiaddrs)
# netrpc.seeds = /ip4/203.0.113.1/tcp/30303/p2p/12D3KooW...

# Disable peer discovery (accepted; the peer transport has no discovery)
# netrpc.nodiscover = false

# DHT server mode (accepted; the peer transport runs no DHT)
# netrpc.dhtserver = false

# ============================================================================
# Validator
# ============================================================================

# Enroll and run as a validator (requires a keyvault file)
validator.enabled = false

# Path to the encrypted validator keyvault
# validator.keyvault_file = ~/.ledgercore/mainnet/keyvault/validator.json

# Auto-renew enrollment at cycle end
validator.recurring_enrollment = true

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}

func defaultPort(network NetworkType) string {
	if network == Testnet {
		return "30304"
	}
	return "30303"
}
