package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.NetRPC.Port < 0 || cfg.NetRPC.Port > 65535 {
		return fmt.Errorf("netrpc.port must be in range [0, 65535]")
	}
	if cfg.NetRPC.MaxFailedRequests < 1 {
		return fmt.Errorf("netrpc.max_failed_requests must be at least 1")
	}
	if cfg.Validator.Enabled && cfg.Validator.KeyVaultFile == "" {
		return fmt.Errorf("validator.keyvault_file is required when validator.enabled is true")
	}

	return nil
}
