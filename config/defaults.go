package config

import "time"

// DefaultMainnet returns the default wallet configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			RPC:     "http://127.0.0.1:8545",
			Timeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval:       30 * time.Second,
			ExpiryWindow:       6 * time.Hour,
			SpendConfirmations: 1,
		},
		Send: SendConfig{
			DefaultFee: 2000,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default wallet configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Node.RPC = "http://127.0.0.1:8645"
	return cfg
}

// Default returns the default wallet configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
