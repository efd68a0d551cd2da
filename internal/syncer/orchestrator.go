package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyon-cash/halcyon-wallet/internal/log"
	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/txledger"
	"github.com/halcyon-cash/halcyon-wallet/internal/wallet"
	"github.com/halcyon-cash/halcyon-wallet/pkg/crypto"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// ChainSource is the chain query boundary the orchestrator polls. It is
// the sole source of truth for "spent".
type ChainSource interface {
	// NotesByFirstName returns the chain's current unspent notes whose
	// first name matches the hash.
	NotesByFirstName(ctx context.Context, first types.Hash) ([]FetchedNote, error)
	// ChainHeight returns the node's current block height.
	ChainHeight(ctx context.Context) (uint64, error)
}

// Summary counts what one sync pass changed.
type Summary struct {
	NewIncoming int `json:"new_incoming"`
	NewChange   int `json:"new_change"`
	Spent       int `json:"spent"`
	Confirmed   int `json:"confirmed"`
	Expired     int `json:"expired"`
}

// Options tunes orchestrator behavior. The zero value selects defaults.
type Options struct {
	// ExpiryWindow is the pending-transaction expiry age. Zero selects
	// DefaultExpiryWindow.
	ExpiryWindow time.Duration
	// SpendConfirmations is how many consecutive snapshots a note must
	// be absent from before it is marked spent. Zero selects 1: the
	// first absence is treated as a definitive spend.
	SpendConfirmations int
}

// Orchestrator runs full reconciliation passes per account. Every pass
// holds the account lock end to end, so it never interleaves with a
// send on the same account.
type Orchestrator struct {
	locks              *wallet.AccountMutex
	notes              *note.Store
	ledger             *txledger.Ledger
	states             *StateStore
	chain              ChainSource
	expiryWindow       time.Duration
	spendConfirmations int
}

// NewOrchestrator wires an orchestrator over the given stores and chain
// boundary.
func NewOrchestrator(locks *wallet.AccountMutex, notes *note.Store, ledger *txledger.Ledger,
	states *StateStore, chain ChainSource, opts Options) *Orchestrator {
	window := opts.ExpiryWindow
	if window == 0 {
		window = DefaultExpiryWindow
	}
	confirmations := opts.SpendConfirmations
	if confirmations == 0 {
		confirmations = 1
	}
	return &Orchestrator{
		locks:              locks,
		notes:              notes,
		ledger:             ledger,
		states:             states,
		chain:              chain,
		expiryWindow:       window,
		spendConfirmations: confirmations,
	}
}

// SyncAccount runs one reconciliation pass for the account. A fetch or
// diff failure aborts the pass with local state untouched; results are
// applied only once the full snapshot is in hand.
func (o *Orchestrator) SyncAccount(ctx context.Context, addr types.Address) (*Summary, error) {
	var summary *Summary
	err := o.locks.WithLock(ctx, addr, func() error {
		var err error
		summary, err = o.syncLocked(ctx, addr)
		return err
	})
	return summary, err
}

func (o *Orchestrator) syncLocked(ctx context.Context, addr types.Address) (*Summary, error) {
	logger := log.Sync.With().Str("account", addr.String()).Logger()

	fetched, err := o.chain.NotesByFirstName(ctx, crypto.FirstName(addr))
	if err != nil {
		return nil, fmt.Errorf("fetch notes: %w", err)
	}
	local, err := o.notes.AccountNotes(addr)
	if err != nil {
		return nil, err
	}
	pending, err := o.ledger.PendingOutgoing(addr)
	if err != nil {
		return nil, err
	}

	diff := ComputeDiff(local, fetched, pending)
	summary := &Summary{}

	if err := o.applySpends(addr, local, diff, summary); err != nil {
		return nil, err
	}
	if err := o.persistNew(addr, diff, summary); err != nil {
		return nil, err
	}
	// Promotion runs against fresh store state so inputs already marked
	// spent by an earlier, interrupted pass still confirm their
	// transaction now.
	if err := o.promoteConfirmed(addr, pending, diff, summary); err != nil {
		return nil, err
	}
	if err := o.expireStale(addr, summary); err != nil {
		return nil, err
	}

	if err := o.recordState(ctx, addr); err != nil {
		// Advisory bookkeeping only; the pass itself succeeded.
		logger.Warn().Err(err).Msg("record sync state")
	}

	logger.Info().
		Int("new_incoming", summary.NewIncoming).
		Int("new_change", summary.NewChange).
		Int("spent", summary.Spent).
		Int("confirmed", summary.Confirmed).
		Int("expired", summary.Expired).
		Msg("sync pass complete")
	return summary, nil
}

// applySpends updates missed-pass counters and marks notes spent once
// absent from enough consecutive snapshots.
func (o *Orchestrator) applySpends(addr types.Address, local []*note.Note, diff Diff, summary *Summary) error {
	absent := make(map[types.NoteID]bool, len(diff.Absent))
	for _, n := range diff.Absent {
		absent[n.ID] = true
	}

	var spendIDs []types.NoteID
	var updated []*note.Note
	for _, n := range local {
		if n.State == note.StateSpent {
			continue
		}
		if absent[n.ID] {
			n.MissedPasses++
			if n.MissedPasses >= o.spendConfirmations {
				spendIDs = append(spendIDs, n.ID)
			} else {
				updated = append(updated, n)
			}
		} else if n.MissedPasses > 0 {
			// Reappeared: a transient gap, not a spend.
			n.MissedPasses = 0
			updated = append(updated, n)
			log.Sync.Warn().
				Str("account", addr.String()).
				Str("note_id", string(n.ID)).
				Msg("note reappeared after missed passes")
		}
	}

	if len(updated) > 0 {
		if err := o.notes.SaveNotes(addr, updated); err != nil {
			return fmt.Errorf("update missed passes: %w", err)
		}
	}
	if len(spendIDs) > 0 {
		if err := o.notes.MarkSpent(addr, spendIDs); err != nil {
			return fmt.Errorf("mark spent: %w", err)
		}
		summary.Spent = len(spendIDs)
	}
	return nil
}

// persistNew stores the snapshot's new notes, tagging classified change
// with its originating transaction id.
func (o *Orchestrator) persistNew(addr types.Address, diff Diff, summary *Summary) error {
	if len(diff.New) == 0 {
		return nil
	}
	now := time.Now().UTC()
	stored := make([]*note.Note, 0, len(diff.New))
	for _, f := range diff.New {
		n := &note.Note{
			ID:           f.ID,
			Address:      addr,
			Name:         f.Name,
			BlockRef:     f.BlockRef,
			Amount:       f.Amount,
			ContentHash:  f.ContentHash,
			Raw:          f.Raw,
			State:        note.StateAvailable,
			DiscoveredAt: now,
		}
		if txID, ok := diff.ChangeTxID[f.ID]; ok {
			n.IsChange = true
			n.OriginTxID = txID
			summary.NewChange++
		} else {
			summary.NewIncoming++
		}
		stored = append(stored, n)
	}
	if err := o.notes.SaveNotes(addr, stored); err != nil {
		return fmt.Errorf("persist new notes: %w", err)
	}
	return nil
}

// promoteConfirmed marks pending transactions confirmed once all their
// inputs are observed spent, attaching any discovered change note ids.
func (o *Orchestrator) promoteConfirmed(addr types.Address, pending []*txledger.Transaction, diff Diff, summary *Summary) error {
	current, err := o.notes.AccountNotes(addr)
	if err != nil {
		return err
	}
	byID := make(map[types.NoteID]*note.Note, len(current))
	for _, n := range current {
		byID[n.ID] = n
	}

	for _, tx := range pending {
		if !InputsAllSpent(tx, byID) {
			continue
		}
		changeIDs := MatchChangeOutputs(tx.ID, diff)
		if _, err := o.ledger.Update(addr, tx.ID, func(t *txledger.Transaction) error {
			t.Status = txledger.StatusConfirmed
			if len(changeIDs) > 0 {
				t.ChangeNoteIDs = changeIDs
			}
			return nil
		}); err != nil {
			return fmt.Errorf("confirm transaction %s: %w", tx.ID, err)
		}
		summary.Confirmed++
	}
	return nil
}

// expireStale fails pending transactions past the expiry window and
// releases their locked notes.
func (o *Orchestrator) expireStale(addr types.Address, summary *Summary) error {
	pending, err := o.ledger.PendingOutgoing(addr)
	if err != nil {
		return err
	}
	for _, tx := range FindExpired(pending, o.expiryWindow, time.Now().UTC()) {
		if err := o.notes.ReleaseInFlight(addr, tx.InputNoteIDs); err != nil {
			return fmt.Errorf("release expired inputs: %w", err)
		}
		if _, err := o.ledger.Update(addr, tx.ID, func(t *txledger.Transaction) error {
			t.Status = txledger.StatusExpired
			return nil
		}); err != nil {
			return fmt.Errorf("expire transaction %s: %w", tx.ID, err)
		}
		log.Sync.Warn().
			Str("account", addr.String()).
			Str("tx_id", tx.ID).
			Time("created_at", tx.CreatedAt).
			Msg("pending transaction expired; inputs released")
		summary.Expired++
	}
	return nil
}

func (o *Orchestrator) recordState(ctx context.Context, addr types.Address) error {
	height, err := o.chain.ChainHeight(ctx)
	if err != nil {
		return err
	}
	return o.states.Put(addr, AccountSyncState{
		LastSyncedHeight: height,
		LastSyncedAt:     time.Now().UTC(),
	})
}

// State returns the account's last recorded sync state.
func (o *Orchestrator) State(addr types.Address) (AccountSyncState, error) {
	return o.states.Get(addr)
}
