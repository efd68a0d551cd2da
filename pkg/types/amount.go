package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Nicks is an asset amount in the smallest indivisible unit.
type Nicks uint64

// NicksPerCoin is the number of nicks in one display coin.
const NicksPerCoin = 1 << 16

// Coins returns the whole-coin part of the amount.
func (n Nicks) Coins() uint64 {
	return uint64(n) / NicksPerCoin
}

// String renders the amount as a decimal coin value, e.g. "1.5".
func (n Nicks) String() string {
	whole := uint64(n) / NicksPerCoin
	frac := uint64(n) % NicksPerCoin
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	// Fractional part as a decimal over 65536, trailing zeros trimmed.
	s := strconv.FormatFloat(float64(frac)/NicksPerCoin, 'f', 8, 64)
	return strconv.FormatUint(whole, 10) + strings.TrimRight(s[1:], "0")
}

// ParseCoins parses a decimal coin string (e.g. "1.5") into nicks.
func ParseCoins(s string) (Nicks, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return Nicks(f*NicksPerCoin + 0.5), nil
}

// ParseNicks parses a raw integer nick string.
func ParseNicks(s string) (Nicks, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid nicks %q: %w", s, err)
	}
	return Nicks(v), nil
}
