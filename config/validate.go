package config

import (
	"fmt"
	"net/url"
)

// Validate checks wallet config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.Node.RPC == "" {
		return fmt.Errorf("node.rpc must be set")
	}
	u, err := url.Parse(cfg.Node.RPC)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("node.rpc must be an http(s) URL, got %q", cfg.Node.RPC)
	}
	if cfg.Node.Timeout < 0 {
		return fmt.Errorf("node.timeout must not be negative")
	}
	if cfg.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll must be positive")
	}
	if cfg.Sync.ExpiryWindow <= 0 {
		return fmt.Errorf("sync.expiry must be positive")
	}
	if cfg.Sync.SpendConfirmations < 1 {
		return fmt.Errorf("sync.spendconfirmations must be at least 1")
	}
	if cfg.Send.DefaultFee == 0 {
		return fmt.Errorf("send.fee must be positive")
	}
	return nil
}
