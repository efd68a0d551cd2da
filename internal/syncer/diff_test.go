package syncer

import (
	"fmt"
	"testing"
	"time"

	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/txledger"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

func localNote(id string, amount uint64, state note.State) *note.Note {
	return &note.Note{ID: types.NoteID(id), Amount: types.Nicks(amount), State: state}
}

func fetchedNote(id string, amount uint64) FetchedNote {
	return FetchedNote{ID: types.NoteID(id), Amount: types.Nicks(amount)}
}

func pendingTx(id string, expectedChange uint64, inputs ...string) *txledger.Transaction {
	tx := &txledger.Transaction{
		ID:             id,
		Direction:      txledger.DirectionOutgoing,
		ExpectedChange: types.Nicks(expectedChange),
		Status:         txledger.StatusBroadcastedUnconfirmed,
		CreatedAt:      time.Now().UTC(),
	}
	for _, in := range inputs {
		tx.InputNoteIDs = append(tx.InputNoteIDs, types.NoteID(in))
	}
	return tx
}

func TestComputeDiff_Empty(t *testing.T) {
	d := ComputeDiff(nil, nil, nil)
	if len(d.New) != 0 || len(d.Absent) != 0 || len(d.ChangeTxID) != 0 {
		t.Errorf("empty diff = %+v, want all empty", d)
	}
}

func TestComputeDiff_NewIncoming(t *testing.T) {
	d := ComputeDiff(
		[]*note.Note{localNote("a", 1000, note.StateAvailable)},
		[]FetchedNote{fetchedNote("a", 1000), fetchedNote("b", 2000)},
		nil,
	)
	if len(d.New) != 1 || d.New[0].ID != "b" {
		t.Fatalf("new = %+v, want [b]", d.New)
	}
	if len(d.Absent) != 0 {
		t.Errorf("absent = %+v, want none", d.Absent)
	}
	if _, ok := d.ChangeTxID["b"]; ok {
		t.Error("b classified as change with no pending tx")
	}
}

func TestComputeDiff_AbsentNotes(t *testing.T) {
	d := ComputeDiff(
		[]*note.Note{
			localNote("a", 1000, note.StateAvailable),
			localNote("b", 2000, note.StateInFlight),
			localNote("c", 3000, note.StateSpent),
		},
		nil, nil,
	)
	if len(d.Absent) != 2 {
		t.Fatalf("absent = %d notes, want 2 (spent notes excluded)", len(d.Absent))
	}
	for _, n := range d.Absent {
		if n.ID == "c" {
			t.Error("spent note reported absent")
		}
	}
}

func TestComputeDiff_ClassifiesChange(t *testing.T) {
	d := ComputeDiff(
		nil,
		[]FetchedNote{fetchedNote("chg", 58000), fetchedNote("inc", 70000)},
		[]*txledger.Transaction{pendingTx("tx-1", 58000, "in-1")},
	)
	if d.ChangeTxID["chg"] != "tx-1" {
		t.Errorf("chg change tx = %q, want tx-1", d.ChangeTxID["chg"])
	}
	if _, ok := d.ChangeTxID["inc"]; ok {
		t.Error("inc misclassified as change")
	}
}

func TestComputeDiff_ChangeClaimedOnce(t *testing.T) {
	// Two equal-amount new notes, one pending tx: only one may claim it.
	d := ComputeDiff(
		nil,
		[]FetchedNote{fetchedNote("n1", 5000), fetchedNote("n2", 5000)},
		[]*txledger.Transaction{pendingTx("tx-1", 5000, "in-1")},
	)
	matched := 0
	for _, id := range []types.NoteID{"n1", "n2"} {
		if d.ChangeTxID[id] == "tx-1" {
			matched++
		}
	}
	if matched != 1 {
		t.Errorf("tx-1 claimed by %d notes, want 1", matched)
	}
}

func TestComputeDiff_ZeroChangeNeverMatches(t *testing.T) {
	// A sweep has no change; new notes must not link to it.
	d := ComputeDiff(
		nil,
		[]FetchedNote{fetchedNote("n1", 0)},
		[]*txledger.Transaction{pendingTx("tx-1", 0, "in-1")},
	)
	if len(d.ChangeTxID) != 0 {
		t.Errorf("zero-amount match = %+v, want none", d.ChangeTxID)
	}
}

func TestFindExpired(t *testing.T) {
	now := time.Now().UTC()
	fresh := pendingTx("fresh", 0, "a")
	fresh.CreatedAt = now.Add(-time.Hour)
	stale := pendingTx("stale", 0, "b")
	stale.CreatedAt = now.Add(-7 * time.Hour)
	done := pendingTx("done", 0, "c")
	done.CreatedAt = now.Add(-24 * time.Hour)
	done.Status = txledger.StatusConfirmed

	expired := FindExpired([]*txledger.Transaction{fresh, stale, done}, DefaultExpiryWindow, now)
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Fatalf("expired = %+v, want [stale]", expired)
	}
}

func TestInputsAllSpent(t *testing.T) {
	byID := map[types.NoteID]*note.Note{
		"a": localNote("a", 1, note.StateSpent),
		"b": localNote("b", 1, note.StateSpent),
		"c": localNote("c", 1, note.StateInFlight),
	}

	cases := []struct {
		name   string
		inputs []string
		want   bool
	}{
		{"all spent", []string{"a", "b"}, true},
		{"one unspent", []string{"a", "c"}, false},
		{"missing note", []string{"a", "z"}, false},
		{"no inputs", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := pendingTx("tx", 0, tc.inputs...)
			if got := InputsAllSpent(tx, byID); got != tc.want {
				t.Errorf("InputsAllSpent = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMatchChangeOutputs(t *testing.T) {
	d := Diff{
		New: []FetchedNote{fetchedNote("n1", 100), fetchedNote("n2", 200)},
		ChangeTxID: map[types.NoteID]string{
			"n1": "tx-1",
			"n2": "tx-2",
		},
	}
	ids := MatchChangeOutputs("tx-1", d)
	if len(ids) != 1 || ids[0] != "n1" {
		t.Errorf("change outputs = %v, want [n1]", ids)
	}
	if got := MatchChangeOutputs("tx-9", d); len(got) != 0 {
		t.Errorf("unknown tx change outputs = %v, want none", got)
	}
}

func TestComputeDiff_LargeSnapshotStaysConsistent(t *testing.T) {
	var local []*note.Note
	var fetched []FetchedNote
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("note-%03d", i)
		local = append(local, localNote(id, uint64(i+1), note.StateAvailable))
		if i%2 == 0 {
			fetched = append(fetched, fetchedNote(id, uint64(i+1)))
		}
	}
	d := ComputeDiff(local, fetched, nil)
	if len(d.Absent) != 250 {
		t.Errorf("absent = %d, want 250", len(d.Absent))
	}
	if len(d.New) != 0 {
		t.Errorf("new = %d, want 0", len(d.New))
	}
}
