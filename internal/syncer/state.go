package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/halcyon-cash/halcyon-wallet/internal/storage"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

var prefixSyncState = []byte("s/") // s/<addr20> -> AccountSyncState JSON

// AccountSyncState records the last successful sync per account. It is
// advisory bookkeeping for display and polling, never a correctness
// gate.
type AccountSyncState struct {
	LastSyncedHeight uint64    `json:"last_synced_height"`
	LastSyncedAt     time.Time `json:"last_synced_at"`
}

// StateStore persists per-account sync state.
type StateStore struct {
	db storage.DB
}

// NewStateStore creates a sync state store backed by the given database.
func NewStateStore(db storage.DB) *StateStore {
	return &StateStore{db: db}
}

func stateKey(addr types.Address) []byte {
	key := make([]byte, 0, len(prefixSyncState)+types.AddressSize)
	key = append(key, prefixSyncState...)
	key = append(key, addr[:]...)
	return key
}

// Get returns the account's sync state, or a zero state if the account
// has never synced.
func (s *StateStore) Get(addr types.Address) (AccountSyncState, error) {
	data, err := s.db.Get(stateKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return AccountSyncState{}, nil
		}
		return AccountSyncState{}, err
	}
	var st AccountSyncState
	if err := json.Unmarshal(data, &st); err != nil {
		return AccountSyncState{}, fmt.Errorf("sync state unmarshal: %w", err)
	}
	return st, nil
}

// Put records the account's sync state.
func (s *StateStore) Put(addr types.Address, st AccountSyncState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("sync state marshal: %w", err)
	}
	if err := s.db.Put(stateKey(addr), data); err != nil {
		return fmt.Errorf("sync state put: %w", err)
	}
	return nil
}
