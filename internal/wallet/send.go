package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/halcyon-cash/halcyon-wallet/internal/log"
	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/txledger"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// BuiltTx is a signed, ready-to-broadcast transaction artifact.
type BuiltTx struct {
	// TxHash is the on-chain transaction hash.
	TxHash string
	// FeeUsed is the fee actually charged by the builder.
	FeeUsed types.Nicks
	// EncodedTx is the wire-encoded transaction.
	EncodedTx []byte
}

// TxBuilder constructs and signs a payment from note inputs. The
// coordinator never touches key material itself; it only forwards the
// account's keys to the builder.
type TxBuilder interface {
	BuildPayment(ctx context.Context, inputs []*note.Note, recipient types.Address,
		amount types.Nicks, publicKey, privateKey []byte,
		fee types.Nicks, refundAddr types.Address) (*BuiltTx, error)
}

// Broadcaster submits an encoded transaction to the chain and returns
// its hash.
type Broadcaster interface {
	SendTransaction(ctx context.Context, encodedTx []byte) (string, error)
}

// SendRequest describes one outgoing payment.
type SendRequest struct {
	Account   KeyedAccount
	Recipient types.Address
	// Amount to transfer, excluding the fee. Ignored when SendMax is set.
	Amount types.Nicks
	// Fee for the transaction. Zero selects the coordinator default.
	Fee types.Nicks
	// SendMax sweeps every available note into a single output with no
	// change; the amount becomes the full balance minus the fee.
	SendMax bool
	// Price optionally captures the market price at send time.
	Price *txledger.PriceQuote
}

// SendResult reports a successfully broadcast payment.
type SendResult struct {
	TxID   string      `json:"tx_id"`
	TxHash string      `json:"tx_hash"`
	Amount types.Nicks `json:"amount"`
	Fee    types.Nicks `json:"fee"`
	Change types.Nicks `json:"change"`
	Inputs int         `json:"inputs"`
}

// SendCoordinator drives an outgoing payment end-to-end: select input
// notes, lock them, record the transaction, build and broadcast, then
// finalize or roll back. The whole sequence runs under the account lock,
// and a failure at any step after locking releases the inputs and marks
// the record failed, so a failed send never strands notes in flight.
type SendCoordinator struct {
	locks      *AccountMutex
	notes      *note.Store
	ledger     *txledger.Ledger
	builder    TxBuilder
	caster     Broadcaster
	defaultFee types.Nicks
}

// NewSendCoordinator wires a coordinator over the given stores and
// chain boundaries.
func NewSendCoordinator(locks *AccountMutex, notes *note.Store, ledger *txledger.Ledger,
	builder TxBuilder, caster Broadcaster, defaultFee types.Nicks) *SendCoordinator {
	return &SendCoordinator{
		locks:      locks,
		notes:      notes,
		ledger:     ledger,
		builder:    builder,
		caster:     caster,
		defaultFee: defaultFee,
	}
}

// Send executes the payment described by req.
func (sc *SendCoordinator) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.Account.PrivateKey == nil {
		return nil, ErrWalletLocked
	}
	fee := req.Fee
	if fee == 0 {
		fee = sc.defaultFee
	}
	if !req.SendMax && req.Amount == 0 {
		return nil, fmt.Errorf("send amount must be positive")
	}

	var result *SendResult
	err := sc.locks.WithLock(ctx, req.Account.Address, func() error {
		var err error
		result, err = sc.sendLocked(ctx, req, fee)
		return err
	})
	return result, err
}

// sendLocked runs with the account lock held.
func (sc *SendCoordinator) sendLocked(ctx context.Context, req SendRequest, fee types.Nicks) (*SendResult, error) {
	addr := req.Account.Address

	available, err := sc.notes.AvailableNotes(addr)
	if err != nil {
		return nil, fmt.Errorf("load available notes: %w", err)
	}

	var inputs []*note.Note
	amount := req.Amount
	if req.SendMax {
		if len(available) == 0 {
			return nil, ErrNoNotes
		}
		inputs = available
		total := SumNotes(inputs)
		if total <= fee {
			return nil, fmt.Errorf("%w: balance %d does not cover fee %d", ErrInsufficientFunds, total, fee)
		}
		amount = total - fee
	} else {
		inputs, err = SelectNotes(available, amount+fee)
		if err != nil {
			return nil, err
		}
	}

	total := SumNotes(inputs)
	change := total - amount - fee

	direction := txledger.DirectionOutgoing
	if req.Recipient == addr {
		direction = txledger.DirectionSelf
	}

	txID := uuid.NewString()
	ids := noteIDs(inputs)

	if err := sc.notes.MarkInFlight(addr, ids, txID); err != nil {
		return nil, fmt.Errorf("lock inputs: %w", err)
	}

	tx := &txledger.Transaction{
		ID:             txID,
		Address:        addr,
		Direction:      direction,
		Amount:         amount,
		Fee:            fee,
		Recipient:      req.Recipient,
		InputNoteIDs:   ids,
		ExpectedChange: change,
		Status:         txledger.StatusCreated,
		PriceRef:       req.Price,
	}
	if err := sc.ledger.Append(tx); err != nil {
		// The ledger write failed before anything left the machine, so
		// only the note locks need undoing.
		sc.rollbackNotes(addr, ids, txID)
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	logger := log.Wallet.With().
		Str("tx_id", txID).
		Str("account", addr.String()).
		Logger()
	logger.Info().
		Uint64("amount", uint64(amount)).
		Uint64("fee", uint64(fee)).
		Uint64("change", uint64(change)).
		Int("inputs", len(inputs)).
		Bool("send_max", req.SendMax).
		Msg("send started")

	if _, err := sc.ledger.Update(addr, txID, func(t *txledger.Transaction) error {
		t.Status = txledger.StatusBroadcastPending
		return nil
	}); err != nil {
		sc.rollback(addr, ids, txID)
		return nil, fmt.Errorf("record broadcast intent: %w", err)
	}

	built, err := sc.builder.BuildPayment(ctx, inputs, req.Recipient, amount,
		req.Account.PublicKey, req.Account.PrivateKey, fee, addr)
	if err != nil {
		sc.rollback(addr, ids, txID)
		return nil, fmt.Errorf("build payment: %w", err)
	}

	txHash, err := sc.caster.SendTransaction(ctx, built.EncodedTx)
	if err != nil {
		sc.rollback(addr, ids, txID)
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	if txHash == "" {
		txHash = built.TxHash
	}

	feeUsed := built.FeeUsed
	if feeUsed == 0 {
		feeUsed = fee
	}

	if _, err := sc.ledger.Update(addr, txID, func(t *txledger.Transaction) error {
		t.Status = txledger.StatusBroadcastedUnconfirmed
		t.ChainTxHash = txHash
		t.Fee = feeUsed
		t.ExpectedChange = total - amount - feeUsed
		return nil
	}); err != nil {
		// Already on the wire; do not release notes, just report.
		return nil, fmt.Errorf("record broadcast outcome: %w", err)
	}

	logger.Info().
		Str("tx_hash", txHash).
		Uint64("fee_used", uint64(feeUsed)).
		Msg("send broadcast")

	return &SendResult{
		TxID:   txID,
		TxHash: txHash,
		Amount: amount,
		Fee:    feeUsed,
		Change: total - amount - feeUsed,
		Inputs: len(inputs),
	}, nil
}

// rollback releases the locked inputs and marks the transaction failed.
// Rollback errors are logged, not returned: the caller's original error
// is the one worth surfacing.
func (sc *SendCoordinator) rollback(addr types.Address, ids []types.NoteID, txID string) {
	sc.rollbackNotes(addr, ids, txID)
	if _, err := sc.ledger.Update(addr, txID, func(t *txledger.Transaction) error {
		t.Status = txledger.StatusFailed
		return nil
	}); err != nil {
		log.Wallet.Error().Err(err).Str("tx_id", txID).Msg("rollback: mark transaction failed")
	}
}

func (sc *SendCoordinator) rollbackNotes(addr types.Address, ids []types.NoteID, txID string) {
	if err := sc.notes.ReleaseInFlight(addr, ids); err != nil {
		log.Wallet.Error().Err(err).Str("tx_id", txID).Msg("rollback: release in-flight notes")
	}
}

func noteIDs(notes []*note.Note) []types.NoteID {
	ids := make([]types.NoteID, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}
