// Package note tracks the unspent outputs an account owns and their
// spend lifecycle.
package note

import (
	"time"

	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// State is the lifecycle state of a tracked note. A note is in exactly
// one state at any time.
type State string

const (
	// StateAvailable means the note is spendable right now.
	StateAvailable State = "available"
	// StateInFlight means the note is reserved as input to a
	// not-yet-confirmed transaction and excluded from selection.
	StateInFlight State = "in_flight"
	// StateSpent is terminal: the chain reported the note consumed.
	StateSpent State = "spent"
)

// Note is a locally tracked unspent output.
type Note struct {
	// ID is derived deterministically from Name and stable across syncs.
	ID      types.NoteID   `json:"id"`
	Address types.Address  `json:"address"`
	Name    types.NoteName `json:"name"`
	// BlockRef is the chain page the note was first reported in.
	BlockRef uint64      `json:"block_ref"`
	Amount   types.Nicks `json:"amount"`
	// ContentHash commits to the note's on-chain data.
	ContentHash types.Hash `json:"content_hash"`
	// Raw is the note's opaque on-chain representation, kept verbatim so
	// the transaction builder can reference it without re-fetching.
	Raw      []byte `json:"raw,omitempty"`
	IsChange bool   `json:"is_change"`
	// OriginTxID links a change note back to the transaction that
	// produced it. Empty for incoming notes.
	OriginTxID string `json:"origin_tx_id,omitempty"`
	// PendingTxID references the wallet transaction holding this note
	// in flight. Set only while State is in_flight.
	PendingTxID  string    `json:"pending_tx_id,omitempty"`
	State        State     `json:"state"`
	DiscoveredAt time.Time `json:"discovered_at"`
	// MissedPasses counts consecutive sync snapshots the note was absent
	// from. It resets to zero whenever the note reappears.
	MissedPasses int `json:"missed_passes,omitempty"`
}

// Spendable reports whether the note can be selected as a transaction
// input right now.
func (n *Note) Spendable() bool {
	return n.State == StateAvailable
}
