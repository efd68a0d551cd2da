package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// LoadFile loads wallet configuration from a .conf file.
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

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
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

// setConfigValue sets a wallet config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Node
	case "node.rpc", "rpc":
		cfg.Node.RPC = value
	case "node.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Node.Timeout = d

	// Sync
	case "sync.poll":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Sync.PollInterval = d
	case "sync.expiry":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Sync.ExpiryWindow = d
	case "sync.spendconfirmations":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Sync.SpendConfirmations = n

	// Send
	case "send.fee":
		fee, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Send.DefaultFee = types.Nicks(fee)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default wallet configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	cfg := Default(network)
	content := `# Halcyon Wallet Configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.halcyon-wallet)
# datadir = ~/.halcyon-wallet

# ============================================================================
# Node Connection
# ============================================================================

node.rpc = ` + cfg.Node.RPC + `
# node.timeout = 10s

# ============================================================================
# Reconciliation
# ============================================================================

# How often the watch loop reconciles each account
sync.poll = 30s

# How long a pending transaction may sit unconfirmed before its locked
# notes are released
sync.expiry = 6h

# How many consecutive snapshots a note must be absent from before it
# is treated as spent (raise to ride out transient query gaps)
sync.spendconfirmations = 1

# ============================================================================
# Sending
# ============================================================================

# Default fee in nicks
send.fee = 2000

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
