package txledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/halcyon-cash/halcyon-wallet/internal/log"
	"github.com/halcyon-cash/halcyon-wallet/internal/storage"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// MaxEntriesPerAccount caps the ledger per account; oldest entries are
// evicted first once the cap is exceeded.
const MaxEntriesPerAccount = 200

// Transition errors.
var (
	// ErrBadTransition reports a status change the state machine forbids.
	ErrBadTransition = errors.New("invalid status transition")
	// ErrTxNotFound is returned when a transaction id is not in the ledger.
	ErrTxNotFound = errors.New("transaction not found")
)

var prefixTx = []byte("x/") // x/<addr20><id> -> Transaction JSON

// Ledger persists wallet transactions per account. Like the note store,
// callers hold the account lock around read-modify-write sequences.
type Ledger struct {
	db storage.DB
}

// NewLedger creates a transaction ledger backed by the given database.
func NewLedger(db storage.DB) *Ledger {
	return &Ledger{db: db}
}

func txKey(addr types.Address, id string) []byte {
	key := make([]byte, 0, len(prefixTx)+types.AddressSize+len(id))
	key = append(key, prefixTx...)
	key = append(key, addr[:]...)
	key = append(key, id...)
	return key
}

func accountPrefix(addr types.Address) []byte {
	p := make([]byte, 0, len(prefixTx)+types.AddressSize)
	p = append(p, prefixTx...)
	p = append(p, addr[:]...)
	return p
}

// Append records a new transaction and enforces the retention cap.
func (l *Ledger) Append(tx *Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("append transaction: empty id")
	}
	if ok, err := l.db.Has(txKey(tx.Address, tx.ID)); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("append transaction: id %s already recorded", tx.ID)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	if err := l.put(tx); err != nil {
		return err
	}
	return l.prune(tx.Address)
}

// Get retrieves a transaction by id.
func (l *Ledger) Get(addr types.Address, id string) (*Transaction, error) {
	data, err := l.db.Get(txKey(addr, id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, id)
		}
		return nil, err
	}
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("transaction unmarshal: %w", err)
	}
	return &tx, nil
}

// Update loads a transaction, applies fn, and persists the result. If fn
// changes the status, the transition is validated against the state
// machine and rejected with ErrBadTransition if forbidden.
func (l *Ledger) Update(addr types.Address, id string, fn func(*Transaction) error) (*Transaction, error) {
	tx, err := l.Get(addr, id)
	if err != nil {
		return nil, err
	}
	before := tx.Status
	if err := fn(tx); err != nil {
		return nil, err
	}
	if tx.Status != before && !CanTransition(before, tx.Status) {
		return nil, fmt.Errorf("%w: %s -> %s (tx %s)", ErrBadTransition, before, tx.Status, id)
	}
	tx.UpdatedAt = time.Now().UTC()
	if err := l.put(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// AccountTransactions returns the account's transactions, newest first.
func (l *Ledger) AccountTransactions(addr types.Address) ([]*Transaction, error) {
	var txs []*Transaction
	err := l.db.ForEach(accountPrefix(addr), func(_, value []byte) error {
		var tx Transaction
		if err := json.Unmarshal(value, &tx); err != nil {
			return fmt.Errorf("transaction unmarshal: %w", err)
		}
		txs = append(txs, &tx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan account transactions: %w", err)
	}
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID > txs[j].ID
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

// PendingOutgoing returns the account's outgoing (or self) transactions
// that are not yet in a terminal state, oldest first.
func (l *Ledger) PendingOutgoing(addr types.Address) ([]*Transaction, error) {
	all, err := l.AccountTransactions(addr)
	if err != nil {
		return nil, err
	}
	var pending []*Transaction
	for i := len(all) - 1; i >= 0; i-- { // Reverse to oldest-first.
		if all[i].Pending() {
			pending = append(pending, all[i])
		}
	}
	return pending, nil
}

func (l *Ledger) put(tx *Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("transaction marshal: %w", err)
	}
	if err := l.db.Put(txKey(tx.Address, tx.ID), data); err != nil {
		return fmt.Errorf("transaction put: %w", err)
	}
	return nil
}

// prune drops the oldest entries beyond the per-account cap. Terminal
// entries go first: evicting an unconfirmed transaction would orphan its
// in-flight input locks, so non-terminal entries are only evicted when
// every entry over the cap is non-terminal, and a warning is logged.
func (l *Ledger) prune(addr types.Address) error {
	all, err := l.AccountTransactions(addr)
	if err != nil {
		return err
	}
	excess := len(all) - MaxEntriesPerAccount
	if excess <= 0 {
		return nil
	}

	// Oldest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	evicted := 0
	for _, tx := range all {
		if evicted >= excess {
			break
		}
		if !tx.Status.Terminal() {
			continue
		}
		if err := l.db.Delete(txKey(addr, tx.ID)); err != nil {
			return fmt.Errorf("transaction evict: %w", err)
		}
		evicted++
	}

	// Pathological: everything old is still pending. Evict oldest anyway
	// to honor the cap, but loudly.
	for _, tx := range all {
		if evicted >= excess {
			break
		}
		if tx.Status.Terminal() {
			continue // Already handled above.
		}
		log.Wallet.Warn().
			Str("tx_id", tx.ID).
			Str("status", string(tx.Status)).
			Msg("evicting non-terminal transaction to honor ledger cap; its locked notes may be orphaned")
		if err := l.db.Delete(txKey(addr, tx.ID)); err != nil {
			return fmt.Errorf("transaction evict: %w", err)
		}
		evicted++
	}
	return nil
}
