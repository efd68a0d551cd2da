// Package signer builds and signs payment transactions from note
// inputs. It is the only place the wallet touches private keys on the
// send path.
package signer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/halcyon-cash/halcyon-wallet/internal/note"
	"github.com/halcyon-cash/halcyon-wallet/internal/wallet"
	"github.com/halcyon-cash/halcyon-wallet/pkg/crypto"
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
)

// PaymentVersion is the payment transaction encoding version.
const PaymentVersion uint32 = 1

// Input spends one note, identified by its on-chain name.
type Input struct {
	Name      types.NoteName `json:"name"`
	Amount    types.Nicks    `json:"amount"`
	Signature []byte         `json:"signature,omitempty"`
	PubKey    []byte         `json:"pubkey,omitempty"`
}

// Output creates one note for the given address.
type Output struct {
	Address types.Address `json:"address"`
	Amount  types.Nicks   `json:"amount"`
}

// Payment is the wire transaction the node accepts.
type Payment struct {
	Version uint32      `json:"version"`
	Inputs  []Input     `json:"inputs"`
	Outputs []Output    `json:"outputs"`
	Fee     types.Nicks `json:"fee"`
}

// SigningBytes returns the canonical byte representation used for
// signing and hashing. Signatures and public keys are excluded.
// Format: version(4) | input_count(4) | [first(32) last(32) amount(8)]...
// | output_count(4) | [addr(20) amount(8)]... | fee(8)
func (p *Payment) SigningBytes() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, p.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Inputs)))
	for _, in := range p.Inputs {
		buf = append(buf, in.Name.First[:]...)
		buf = append(buf, in.Name.Last[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(in.Amount))
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Outputs)))
	for _, out := range p.Outputs {
		buf = append(buf, out.Address[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(out.Amount))
	}

	buf = binary.LittleEndian.AppendUint64(buf, uint64(p.Fee))
	return buf
}

// Hash computes the payment's transaction hash over the signing bytes,
// so the id is stable before and after signing.
func (p *Payment) Hash() types.Hash {
	return crypto.Hash(p.SigningBytes())
}

// Builder implements the wallet's TxBuilder boundary with local
// Schnorr signing.
type Builder struct{}

// NewBuilder creates a payment builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildPayment assembles, signs, and encodes a payment spending the
// given input notes. Any input surplus beyond amount and fee goes to
// the refund address as change; a zero surplus emits no change output.
func (b *Builder) BuildPayment(_ context.Context, inputs []*note.Note, recipient types.Address,
	amount types.Nicks, publicKey, privateKey []byte,
	fee types.Nicks, refundAddr types.Address) (*wallet.BuiltTx, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("build payment: no inputs")
	}
	if amount == 0 {
		return nil, fmt.Errorf("build payment: zero amount")
	}

	var total types.Nicks
	for _, n := range inputs {
		if n.Name.IsZero() {
			return nil, fmt.Errorf("build payment: input %s has no on-chain name", n.ID)
		}
		total += n.Amount
	}
	if total < amount+fee {
		return nil, fmt.Errorf("build payment: inputs %d do not cover %d + fee %d", total, amount, fee)
	}
	change := total - amount - fee

	key, err := crypto.PrivateKeyFromBytes(privateKey)
	if err != nil {
		return nil, fmt.Errorf("build payment: %w", err)
	}
	defer key.Zero()
	if len(publicKey) == 0 {
		publicKey = key.PublicKey()
	}

	p := &Payment{
		Version: PaymentVersion,
		Inputs:  make([]Input, len(inputs)),
		Outputs: []Output{{Address: recipient, Amount: amount}},
		Fee:     fee,
	}
	for i, n := range inputs {
		p.Inputs[i] = Input{Name: n.Name, Amount: n.Amount}
	}
	if change > 0 {
		p.Outputs = append(p.Outputs, Output{Address: refundAddr, Amount: change})
	}

	hash := p.Hash()
	for i := range p.Inputs {
		sig, err := key.Sign(hash[:])
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		p.Inputs[i].Signature = sig
		p.Inputs[i].PubKey = publicKey
	}

	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payment: %w", err)
	}

	return &wallet.BuiltTx{
		TxHash:    hash.String(),
		FeeUsed:   fee,
		EncodedTx: encoded,
	}, nil
}
