// Package syncer reconciles locally tracked notes against chain
// snapshots and drives transaction confirmation and expiry.
package syncer

import (
	"time"

	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/txledger"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// DefaultExpiryWindow is how long a pending transaction may sit
// unconfirmed before the expiry sweep reclaims its locked notes.
const DefaultExpiryWindow = 6 * time.Hour

// FetchedNote is an ephemeral projection of a chain-reported note. It
// is never persisted; the diff consumes it and emits StoredNote updates.
type FetchedNote struct {
	ID          types.NoteID
	Name        types.NoteName
	Amount      types.Nicks
	BlockRef    uint64
	ContentHash types.Hash
	Raw         []byte
}

// Diff is the outcome of comparing local state against one snapshot.
type Diff struct {
	// New are fetched notes not tracked locally.
	New []FetchedNote
	// Absent are tracked available or in_flight notes missing from the
	// snapshot. Absence is a spend candidate, not yet a verdict; the
	// orchestrator applies the confirmation threshold.
	Absent []*note.Note
	// ChangeTxID maps a new note's id to the pending outgoing
	// transaction whose expected change it matches. New notes without
	// an entry are incoming.
	ChangeTxID map[types.NoteID]string
}

// ComputeDiff is a pure function over local notes, one fetched
// snapshot, and the account's pending outgoing transactions.
func ComputeDiff(local []*note.Note, fetched []FetchedNote, pending []*txledger.Transaction) Diff {
	present := make(map[types.NoteID]bool, len(fetched))
	for _, f := range fetched {
		present[f.ID] = true
	}
	tracked := make(map[types.NoteID]bool, len(local))
	for _, n := range local {
		tracked[n.ID] = true
	}

	d := Diff{ChangeTxID: make(map[types.NoteID]string)}

	for _, n := range local {
		if n.State == note.StateSpent {
			continue
		}
		if !present[n.ID] {
			d.Absent = append(d.Absent, n)
		}
	}

	// claimed guards against two equal-amount new notes both matching
	// the same pending transaction's change.
	claimed := make(map[string]bool, len(pending))
	for _, f := range fetched {
		if tracked[f.ID] {
			continue
		}
		d.New = append(d.New, f)
		if txID, ok := classifyNewNote(f, pending, claimed); ok {
			d.ChangeTxID[f.ID] = txID
			claimed[txID] = true
		}
	}
	return d
}

// classifyNewNote reports whether a new note is the change of a pending
// outgoing transaction. A note is change when its amount equals a
// pending transaction's expected change and that transaction predates
// the note's block. Oldest pending transaction wins ties.
func classifyNewNote(f FetchedNote, pending []*txledger.Transaction, claimed map[string]bool) (string, bool) {
	for _, tx := range pending {
		if claimed[tx.ID] {
			continue
		}
		if tx.ExpectedChange == 0 || tx.ExpectedChange != f.Amount {
			continue
		}
		return tx.ID, true
	}
	return "", false
}

// FindExpired returns the transactions whose status is non-terminal and
// whose age exceeds the window.
func FindExpired(txs []*txledger.Transaction, window time.Duration, now time.Time) []*txledger.Transaction {
	var expired []*txledger.Transaction
	for _, tx := range txs {
		if tx.Status.Terminal() {
			continue
		}
		if now.Sub(tx.CreatedAt) > window {
			expired = append(expired, tx)
		}
	}
	return expired
}

// InputsAllSpent reports whether every declared input of the
// transaction is observed spent in the given note set. Transactions
// without declared inputs are never promoted this way.
func InputsAllSpent(tx *txledger.Transaction, byID map[types.NoteID]*note.Note) bool {
	if len(tx.InputNoteIDs) == 0 {
		return false
	}
	for _, id := range tx.InputNoteIDs {
		n, ok := byID[id]
		if !ok || n.State != note.StateSpent {
			return false
		}
	}
	return true
}

// MatchChangeOutputs returns the diff's new note ids classified as the
// given transaction's change.
func MatchChangeOutputs(txID string, d Diff) []types.NoteID {
	var ids []types.NoteID
	for _, f := range d.New {
		if d.ChangeTxID[f.ID] == txID {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
