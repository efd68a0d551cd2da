package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/storage"
	"github.com/halcyon-cash/halcyon-wallet/internal/txledger"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

type fakeBuilder struct {
	mu    sync.Mutex
	err   error
	fee   types.Nicks
	calls int
	// lockedSeen records, per call, which input ids were handed over.
	seen [][]types.NoteID
}

func (b *fakeBuilder) BuildPayment(_ context.Context, inputs []*note.Note, _ types.Address,
	_ types.Nicks, _, _ []byte, fee types.Nicks, _ types.Address) (*BuiltTx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.seen = append(b.seen, noteIDs(inputs))
	if b.err != nil {
		return nil, b.err
	}
	used := b.fee
	if used == 0 {
		used = fee
	}
	return &BuiltTx{TxHash: fmt.Sprintf("hash-%d", b.calls), FeeUsed: used, EncodedTx: []byte("encoded")}, nil
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (c *fakeBroadcaster) SendTransaction(_ context.Context, _ []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("hash-%d", c.calls), nil
}

type sendFixture struct {
	notes   *note.Store
	ledger  *txledger.Ledger
	builder *fakeBuilder
	caster  *fakeBroadcaster
	coord   *SendCoordinator
	account KeyedAccount
}

func newSendFixture(t *testing.T, noteAmounts ...uint64) *sendFixture {
	t.Helper()
	db := storage.NewMemory()
	f := &sendFixture{
		notes:   note.NewStore(db),
		ledger:  txledger.NewLedger(db),
		builder: &fakeBuilder{},
		caster:  &fakeBroadcaster{},
		account: KeyedAccount{
			Account:    Account{Index: 0, Name: "default", Address: addrN(1)},
			PublicKey:  []byte{0x02},
			PrivateKey: []byte{0x01},
		},
	}
	f.coord = NewSendCoordinator(NewAccountMutex(), f.notes, f.ledger, f.builder, f.caster, 100)

	stored := makeNotes(noteAmounts...)
	for _, n := range stored {
		n.Address = f.account.Address
	}
	if len(stored) > 0 {
		if err := f.notes.SaveNotes(f.account.Address, stored); err != nil {
			t.Fatalf("SaveNotes: %v", err)
		}
	}
	return f
}

func (f *sendFixture) statesByAmount(t *testing.T) map[uint64]note.State {
	t.Helper()
	all, err := f.notes.AccountNotes(f.account.Address)
	if err != nil {
		t.Fatalf("AccountNotes: %v", err)
	}
	states := make(map[uint64]note.State, len(all))
	for _, n := range all {
		states[uint64(n.Amount)] = n.State
	}
	return states
}

func TestSend_Success(t *testing.T) {
	f := newSendFixture(t, 60000, 50000)

	res, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: addrN(9),
		Amount:    40000,
		Fee:       2000,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Amount != 40000 || res.Fee != 2000 {
		t.Errorf("result amount/fee = %d/%d, want 40000/2000", res.Amount, res.Fee)
	}
	if res.Change != 18000 {
		t.Errorf("change = %d, want 18000 (60000 - 40000 - 2000)", res.Change)
	}
	if res.TxHash == "" {
		t.Error("result missing tx hash")
	}

	// Only the selected 60000 note is locked.
	states := f.statesByAmount(t)
	if states[60000] != note.StateInFlight {
		t.Errorf("60000 note state = %s, want in_flight", states[60000])
	}
	if states[50000] != note.StateAvailable {
		t.Errorf("50000 note state = %s, want available", states[50000])
	}

	tx, err := f.ledger.Get(f.account.Address, res.TxID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if tx.Status != txledger.StatusBroadcastedUnconfirmed {
		t.Errorf("tx status = %s, want broadcasted_unconfirmed", tx.Status)
	}
	if tx.ChainTxHash != res.TxHash {
		t.Errorf("tx chain hash = %q, want %q", tx.ChainTxHash, res.TxHash)
	}
	if tx.ExpectedChange != 18000 {
		t.Errorf("expected change = %d, want 18000", tx.ExpectedChange)
	}
	if tx.Direction != txledger.DirectionOutgoing {
		t.Errorf("direction = %s, want outgoing", tx.Direction)
	}
}

func TestSend_SelfDirection(t *testing.T) {
	f := newSendFixture(t, 60000)

	res, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: f.account.Address,
		Amount:    10000,
		Fee:       1000,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	tx, err := f.ledger.Get(f.account.Address, res.TxID)
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if tx.Direction != txledger.DirectionSelf {
		t.Errorf("direction = %s, want self", tx.Direction)
	}
}

func TestSend_SendMax(t *testing.T) {
	f := newSendFixture(t, 60000, 50000)

	res, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: addrN(9),
		Fee:       2000,
		SendMax:   true,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Amount != 108000 {
		t.Errorf("sweep amount = %d, want 108000 (110000 - 2000)", res.Amount)
	}
	if res.Change != 0 {
		t.Errorf("sweep change = %d, want 0", res.Change)
	}
	if res.Inputs != 2 {
		t.Errorf("sweep inputs = %d, want 2", res.Inputs)
	}

	states := f.statesByAmount(t)
	if states[60000] != note.StateInFlight || states[50000] != note.StateInFlight {
		t.Errorf("sweep must lock every note, got %v", states)
	}
}

func TestSend_DefaultFee(t *testing.T) {
	f := newSendFixture(t, 60000)

	res, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: addrN(9),
		Amount:    10000,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Fee != 100 {
		t.Errorf("fee = %d, want coordinator default 100", res.Fee)
	}
}

func TestSend_InsufficientFunds(t *testing.T) {
	f := newSendFixture(t, 1000)

	_, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: addrN(9),
		Amount:    50000,
		Fee:       1000,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if f.builder.calls != 0 {
		t.Errorf("builder called %d times, want 0", f.builder.calls)
	}
	// Nothing locked, no ledger record.
	if states := f.statesByAmount(t); states[1000] != note.StateAvailable {
		t.Errorf("note state = %s, want available", states[1000])
	}
	txs, err := f.ledger.AccountTransactions(f.account.Address)
	if err != nil {
		t.Fatalf("AccountTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("ledger holds %d records, want 0", len(txs))
	}
}

func TestSend_BuildFailureRollsBack(t *testing.T) {
	f := newSendFixture(t, 60000)
	f.builder.err = errors.New("signer unavailable")

	_, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: addrN(9),
		Amount:    10000,
		Fee:       1000,
	})
	if err == nil {
		t.Fatal("expected build failure")
	}
	if f.caster.calls != 0 {
		t.Errorf("broadcaster called %d times after build failure, want 0", f.caster.calls)
	}

	if states := f.statesByAmount(t); states[60000] != note.StateAvailable {
		t.Errorf("note state after rollback = %s, want available", states[60000])
	}
	txs, err := f.ledger.AccountTransactions(f.account.Address)
	if err != nil {
		t.Fatalf("AccountTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Status != txledger.StatusFailed {
		t.Fatalf("ledger after rollback = %+v, want one failed record", txs)
	}
}

func TestSend_BroadcastFailureRollsBack(t *testing.T) {
	f := newSendFixture(t, 60000)
	f.caster.err = errors.New("node unreachable")

	_, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: addrN(9),
		Amount:    10000,
		Fee:       1000,
	})
	if err == nil {
		t.Fatal("expected broadcast failure")
	}

	if states := f.statesByAmount(t); states[60000] != note.StateAvailable {
		t.Errorf("note state after rollback = %s, want available", states[60000])
	}
	txs, err := f.ledger.AccountTransactions(f.account.Address)
	if err != nil {
		t.Fatalf("AccountTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Status != txledger.StatusFailed {
		t.Fatalf("ledger after rollback = %+v, want one failed record", txs)
	}

	// The account is usable again immediately.
	f.caster.err = nil
	if _, err := f.coord.Send(context.Background(), SendRequest{
		Account:   f.account,
		Recipient: addrN(9),
		Amount:    10000,
		Fee:       1000,
	}); err != nil {
		t.Fatalf("send after rollback: %v", err)
	}
}

func TestSend_LockedWallet(t *testing.T) {
	f := newSendFixture(t, 60000)
	acct := f.account
	acct.PrivateKey = nil

	_, err := f.coord.Send(context.Background(), SendRequest{
		Account:   acct,
		Recipient: addrN(9),
		Amount:    10000,
	})
	if !errors.Is(err, ErrWalletLocked) {
		t.Fatalf("err = %v, want ErrWalletLocked", err)
	}
}

// Two concurrent sends competing for the same notes must never both lock
// the same note id. With one note covering either payment, exactly one
// send wins it; the other either selects a different note or fails.
func TestSend_ConcurrentNoDoubleLock(t *testing.T) {
	f := newSendFixture(t, 60000, 50000)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.coord.Send(context.Background(), SendRequest{
				Account:   f.account,
				Recipient: addrN(9),
				Amount:    40000,
				Fee:       2000,
			})
		}()
	}
	wg.Wait()

	seenIDs := make(map[types.NoteID]int)
	f.builder.mu.Lock()
	for _, call := range f.builder.seen {
		for _, id := range call {
			seenIDs[id]++
		}
	}
	f.builder.mu.Unlock()
	for id, n := range seenIDs {
		if n > 1 {
			t.Errorf("note %s handed to the builder %d times", id, n)
		}
	}

	// Both sends fit (one note each), so both notes end up in flight with
	// distinct pending transactions.
	all, err := f.notes.AccountNotes(f.account.Address)
	if err != nil {
		t.Fatalf("AccountNotes: %v", err)
	}
	pending := make(map[string]bool)
	for _, n := range all {
		if n.State != note.StateInFlight {
			t.Errorf("note %s state = %s, want in_flight", n.ID, n.State)
		}
		if pending[n.PendingTxID] {
			t.Errorf("pending tx %s locked two notes from separate sends", n.PendingTxID)
		}
		pending[n.PendingTxID] = true
	}
}
