package wallet

import (
	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/txledger"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// BalanceSummary breaks an account's funds down by spendability.
//
// Available deliberately includes the expected change of unconfirmed
// sends: the displayed balance already reflects what will come back,
// so sending feels instantaneous instead of temporarily zeroing the
// figure while inputs sit locked.
type BalanceSummary struct {
	// SpendableNow is the sum of available notes — the only amount
	// usable as transaction input right now.
	SpendableNow types.Nicks `json:"spendable_now"`
	// PendingOut is the sum of in-flight notes.
	PendingOut types.Nicks `json:"pending_out"`
	// PendingChange is the sum of expected change across pending
	// outgoing transactions.
	PendingChange types.Nicks `json:"pending_change"`
	// Available is the displayed balance: SpendableNow + PendingChange.
	Available types.Nicks `json:"available"`
	// Total is the true sum of all non-spent notes:
	// SpendableNow + PendingOut.
	Total types.Nicks `json:"total"`
}

// BalanceCalculator derives balances from the note store and the
// transaction ledger.
type BalanceCalculator struct {
	notes  *note.Store
	ledger *txledger.Ledger
}

// NewBalanceCalculator creates a calculator over the given stores.
func NewBalanceCalculator(notes *note.Store, ledger *txledger.Ledger) *BalanceCalculator {
	return &BalanceCalculator{notes: notes, ledger: ledger}
}

// Summary computes the account's balance breakdown.
func (c *BalanceCalculator) Summary(addr types.Address) (*BalanceSummary, error) {
	all, err := c.notes.AccountNotes(addr)
	if err != nil {
		return nil, err
	}

	var s BalanceSummary
	for _, n := range all {
		switch n.State {
		case note.StateAvailable:
			s.SpendableNow += n.Amount
		case note.StateInFlight:
			s.PendingOut += n.Amount
		}
	}

	pending, err := c.ledger.PendingOutgoing(addr)
	if err != nil {
		return nil, err
	}
	for _, tx := range pending {
		s.PendingChange += tx.ExpectedChange
	}

	s.Available = s.SpendableNow + s.PendingChange
	s.Total = s.SpendableNow + s.PendingOut
	return &s, nil
}
