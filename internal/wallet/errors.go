package wallet

import "errors"

// Recoverable wallet conditions, returned (not panicked) so callers can
// present them to the user.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoNotes           = errors.New("no notes available")
	ErrWalletLocked      = errors.New("wallet is locked")
	ErrNoAccount         = errors.New("no active account")
)
