package note

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/halcyon-cash/halcyon-wallet/internal/storage"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// ErrStateCorrupt reports an invariant violation: a state transition was
// requested on a note that is not in the required source state. It means
// the account lock was bypassed or the store was mutated externally, and
// callers must treat it as fatal rather than retry.
var ErrStateCorrupt = errors.New("note state corrupt")

// Key prefixes within the note store's namespace.
var (
	prefixNote    = []byte("n/") // n/<addr20><id> -> Note JSON
	prefixVersion = []byte("v/") // v/<addr20>     -> uint64 version
)

// Store persists notes keyed per account. A monotonic per-account version
// counter is bumped on every mutation, so readers can detect staleness.
// Records are keyed individually: a crash mid-batch cannot tear notes of
// unrelated accounts. Callers are expected to hold the account lock for
// the duration of any read-modify-write sequence.
type Store struct {
	db storage.DB
}

// NewStore creates a note store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// noteKey builds a storage key: "n/" + addr(20) + id.
func noteKey(addr types.Address, id types.NoteID) []byte {
	key := make([]byte, 0, len(prefixNote)+types.AddressSize+len(id))
	key = append(key, prefixNote...)
	key = append(key, addr[:]...)
	key = append(key, id...)
	return key
}

// versionKey builds a storage key: "v/" + addr(20).
func versionKey(addr types.Address) []byte {
	key := make([]byte, 0, len(prefixVersion)+types.AddressSize)
	key = append(key, prefixVersion...)
	key = append(key, addr[:]...)
	return key
}

// accountPrefix returns the iteration prefix for one account's notes.
func accountPrefix(addr types.Address) []byte {
	p := make([]byte, 0, len(prefixNote)+types.AddressSize)
	p = append(p, prefixNote...)
	p = append(p, addr[:]...)
	return p
}

// AccountNotes returns all notes tracked for the account, sorted by id
// for deterministic ordering.
func (s *Store) AccountNotes(addr types.Address) ([]*Note, error) {
	var notes []*Note
	err := s.db.ForEach(accountPrefix(addr), func(_, value []byte) error {
		var n Note
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("note unmarshal: %w", err)
		}
		notes = append(notes, &n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan account notes: %w", err)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes, nil
}

// AvailableNotes returns the account's notes in the available state.
func (s *Store) AvailableNotes(addr types.Address) ([]*Note, error) {
	all, err := s.AccountNotes(addr)
	if err != nil {
		return nil, err
	}
	avail := make([]*Note, 0, len(all))
	for _, n := range all {
		if n.State == StateAvailable {
			avail = append(avail, n)
		}
	}
	return avail, nil
}

// Get retrieves one note by id. Returns storage.ErrNotFound if untracked.
func (s *Store) Get(addr types.Address, id types.NoteID) (*Note, error) {
	data, err := s.db.Get(noteKey(addr, id))
	if err != nil {
		return nil, err
	}
	var n Note
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("note unmarshal: %w", err)
	}
	return &n, nil
}

// SaveNotes upserts the given notes for the account (merge by id) and
// bumps the account version once. The whole write is committed as a
// single batch.
func (s *Store) SaveNotes(addr types.Address, notes []*Note) error {
	if len(notes) == 0 {
		return nil
	}
	batch := s.newBatch()
	for _, n := range notes {
		if n.ID.IsZero() {
			return fmt.Errorf("save notes: note with empty id")
		}
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("note marshal: %w", err)
		}
		if err := batch.Put(noteKey(addr, n.ID), data); err != nil {
			return fmt.Errorf("note put: %w", err)
		}
	}
	if err := s.bumpVersion(addr, batch); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("save notes: %w", err)
	}
	return nil
}

// MarkInFlight transitions the given notes from available to in_flight,
// recording txID as the pending transaction. The call is all-or-nothing:
// if any targeted note is missing or not currently available it fails
// with ErrStateCorrupt and locks none of them. That turns a concurrency
// bug into a loud local failure instead of a silent double-spend.
func (s *Store) MarkInFlight(addr types.Address, ids []types.NoteID, txID string) error {
	if txID == "" {
		return fmt.Errorf("mark in-flight: empty transaction id")
	}

	// Validate every target before touching any of them.
	targets := make([]*Note, 0, len(ids))
	for _, id := range ids {
		n, err := s.Get(addr, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: note %s not tracked", ErrStateCorrupt, id)
			}
			return err
		}
		if n.State != StateAvailable {
			return fmt.Errorf("%w: note %s is %s, want %s", ErrStateCorrupt, id, n.State, StateAvailable)
		}
		targets = append(targets, n)
	}

	batch := s.newBatch()
	for _, n := range targets {
		n.State = StateInFlight
		n.PendingTxID = txID
		if err := s.putNote(batch, addr, n); err != nil {
			return err
		}
	}
	if err := s.bumpVersion(addr, batch); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("mark in-flight: %w", err)
	}
	return nil
}

// MarkSpent transitions the given notes to spent. Spent is terminal, so
// notes already spent (or not tracked at all) are skipped; calling twice
// with the same ids changes nothing after the first call.
func (s *Store) MarkSpent(addr types.Address, ids []types.NoteID) error {
	batch := s.newBatch()
	changed := false
	for _, id := range ids {
		n, err := s.Get(addr, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return err
		}
		if n.State == StateSpent {
			continue
		}
		n.State = StateSpent
		n.PendingTxID = ""
		if err := s.putNote(batch, addr, n); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.bumpVersion(addr, batch); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("mark spent: %w", err)
	}
	return nil
}

// ReleaseInFlight returns the given notes from in_flight to available.
// Notes not currently in_flight are left untouched, so the call is safe
// on partially-settled sets during failure rollback.
func (s *Store) ReleaseInFlight(addr types.Address, ids []types.NoteID) error {
	batch := s.newBatch()
	changed := false
	for _, id := range ids {
		n, err := s.Get(addr, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return err
		}
		if n.State != StateInFlight {
			continue
		}
		n.State = StateAvailable
		n.PendingTxID = ""
		if err := s.putNote(batch, addr, n); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.bumpVersion(addr, batch); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("release in-flight: %w", err)
	}
	return nil
}

// RemoveSpent prunes spent notes from storage and returns how many were
// removed. Retention of spent notes is hygiene only, never required for
// correctness.
func (s *Store) RemoveSpent(addr types.Address) (int, error) {
	all, err := s.AccountNotes(addr)
	if err != nil {
		return 0, err
	}
	batch := s.newBatch()
	removed := 0
	for _, n := range all {
		if n.State != StateSpent {
			continue
		}
		if err := batch.Delete(noteKey(addr, n.ID)); err != nil {
			return 0, fmt.Errorf("note delete: %w", err)
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.bumpVersion(addr, batch); err != nil {
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("remove spent: %w", err)
	}
	return removed, nil
}

// Version returns the account's monotonic mutation counter.
func (s *Store) Version(addr types.Address) (uint64, error) {
	data, err := s.db.Get(versionKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("version record must be 8 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *Store) putNote(batch storage.Batch, addr types.Address, n *Note) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("note marshal: %w", err)
	}
	if err := batch.Put(noteKey(addr, n.ID), data); err != nil {
		return fmt.Errorf("note put: %w", err)
	}
	return nil
}

func (s *Store) bumpVersion(addr types.Address, batch storage.Batch) error {
	cur, err := s.Version(addr)
	if err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, cur+1)
	if err := batch.Put(versionKey(addr), buf); err != nil {
		return fmt.Errorf("version put: %w", err)
	}
	return nil
}

func (s *Store) newBatch() storage.Batch {
	if b, ok := s.db.(storage.Batcher); ok {
		return b.NewBatch()
	}
	return &fallbackBatch{db: s.db}
}

// fallbackBatch applies writes directly when the DB has no batch support.
type fallbackBatch struct {
	db  storage.DB
	ops []func() error
}

func (fb *fallbackBatch) Put(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	fb.ops = append(fb.ops, func() error { return fb.db.Put(k, v) })
	return nil
}

func (fb *fallbackBatch) Delete(key []byte) error {
	k := append([]byte(nil), key...)
	fb.ops = append(fb.ops, func() error { return fb.db.Delete(k) })
	return nil
}

func (fb *fallbackBatch) Commit() error {
	for _, op := range fb.ops {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}
