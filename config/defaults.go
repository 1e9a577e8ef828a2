package config

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		NetRPC: NetRPCConfig{
			Enabled:    true,
			ListenAddr: "0.0.0.0",
			Port:       30303,
			// Seeds are libp2p multiaddrs, e.g.:
			//   "/ip4/203.0.113.1/tcp/30303/p2p/12D3KooW..."
			// DHTServer is stored but unused: the peer transport runs no DHT.
			Seeds:             []string{},
			MaxPeers:          50,
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
		Validator: ValidatorConfig{
			Enabled:             false,
			RecurringEnrollment: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.NetRPC.Port = 30304
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
