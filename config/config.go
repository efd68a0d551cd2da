// Package config handles wallet configuration.
//
// All settings are operational: they tune how this wallet talks to its
// node and how aggressively it reconciles, and can vary freely between
// installations.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds wallet runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Node connection
	Node NodeConfig

	// Reconciliation
	Sync SyncConfig

	// Sending
	Send SendConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds node RPC connection settings.
type NodeConfig struct {
	RPC     string        `conf:"node.rpc"`
	Timeout time.Duration `conf:"node.timeout"`
}

// SyncConfig holds reconciliation settings.
type SyncConfig struct {
	// PollInterval is how often the watch loop reconciles each account.
	PollInterval time.Duration `conf:"sync.poll"`
	// ExpiryWindow is how long a pending transaction may sit
	// unconfirmed before its locked notes are reclaimed.
	ExpiryWindow time.Duration `conf:"sync.expiry"`
	// SpendConfirmations is how many consecutive snapshots a note must
	// be absent from before it is treated as spent.
	SpendConfirmations int `conf:"sync.spendconfirmations"`
}

// SendConfig holds payment settings.
type SendConfig struct {
	// DefaultFee in nicks, used when a send names no fee.
	DefaultFee types.Nicks `conf:"send.fee"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.halcyon-wallet
//	macOS:   ~/Library/Application Support/HalcyonWallet
//	Windows: %APPDATA%\HalcyonWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".halcyon-wallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "HalcyonWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "HalcyonWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "HalcyonWallet")
	default:
		return filepath.Join(home, ".halcyon-wallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// LedgerDir returns the note/transaction database directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.NetworkDataDir(), "ledger")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "halcyon-wallet.conf")
}
