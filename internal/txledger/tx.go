// Package txledger keeps an append-bounded log of wallet transactions
// and their lifecycle state.
package txledger

import (
	"time"

	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// Direction classifies a transaction relative to the account.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionSelf     Direction = "self"
)

// Status is a wallet transaction's lifecycle state.
type Status string

const (
	// StatusCreated: inputs locked, not yet handed to the broadcaster.
	StatusCreated Status = "created"
	// StatusBroadcastPending: en route to the chain, outcome unknown.
	StatusBroadcastPending Status = "broadcast_pending"
	// StatusBroadcastedUnconfirmed: accepted by the chain boundary,
	// inputs not yet observed spent.
	StatusBroadcastedUnconfirmed Status = "broadcasted_unconfirmed"
	// StatusConfirmed: every input note independently observed spent.
	StatusConfirmed Status = "confirmed"
	// StatusFailed: build or broadcast failed; inputs were released.
	StatusFailed Status = "failed"
	// StatusExpired: aged out before confirmation; inputs were released.
	StatusExpired Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// forwardOrder positions the happy-path statuses along their chain.
var forwardOrder = map[Status]int{
	StatusCreated:                0,
	StatusBroadcastPending:       1,
	StatusBroadcastedUnconfirmed: 2,
	StatusConfirmed:              3,
}

// CanTransition reports whether a transaction may move from one status
// to another. Forward moves along created → broadcast_pending →
// broadcasted_unconfirmed → confirmed are allowed (steps may be skipped:
// crash recovery confirms transactions that never recorded a broadcast
// outcome), and failed/expired are reachable from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == StatusFailed || to == StatusExpired {
		return true
	}
	fromOrd, okFrom := forwardOrder[from]
	toOrd, okTo := forwardOrder[to]
	return okFrom && okTo && toOrd > fromOrd
}

// PriceQuote is an optional market price captured when a transaction is
// created, for later display alongside the amount.
type PriceQuote struct {
	Currency string    `json:"currency"`
	Price    float64   `json:"price"`
	At       time.Time `json:"at"`
}

// Transaction is an outgoing or incoming transfer tracked end-to-end.
type Transaction struct {
	// ID is client-generated and stable across the whole lifecycle.
	ID        string        `json:"id"`
	Address   types.Address `json:"address"`
	Direction Direction     `json:"direction"`
	Amount    types.Nicks   `json:"amount"`
	Fee       types.Nicks   `json:"fee"`
	Recipient types.Address `json:"recipient"`
	// InputNoteIDs are the notes locked as inputs.
	InputNoteIDs []types.NoteID `json:"input_note_ids,omitempty"`
	// ExpectedChange is the change amount the sender anticipates.
	ExpectedChange types.Nicks `json:"expected_change"`
	// ChangeNoteIDs are the discovered change notes, filled in post-hoc
	// by the sync pass that observes them.
	ChangeNoteIDs []types.NoteID `json:"change_note_ids,omitempty"`
	// ChainTxHash is the on-chain hash, filled in after build.
	ChainTxHash string      `json:"chain_tx_hash,omitempty"`
	Status      Status      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	PriceRef    *PriceQuote `json:"price_ref,omitempty"`
}

// Pending reports whether the transaction is an outgoing (or self)
// transfer still awaiting confirmation.
func (tx *Transaction) Pending() bool {
	if tx.Status.Terminal() {
		return false
	}
	return tx.Direction == DirectionOutgoing || tx.Direction == DirectionSelf
}
