// Package crypto provides cryptographic primitives for the Halcyon wallet.
package crypto

import (
	"github.com/halcyon-cash/halcyon-wallet/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// FirstName derives the queryable first-name hash for an address's lock
// conditions. Notes are looked up on chain by this hash, so the full
// account address never appears in a query.
func FirstName(addr types.Address) types.Hash {
	var buf [types.AddressSize + 1]byte
	buf[0] = 'f' // Domain separator for first-name derivation.
	copy(buf[1:], addr[:])
	return Hash(buf[:])
}

// NoteID derives the stable local identifier of a note from its two-part
// on-chain name: BLAKE3(first || last), hex-encoded. The same output seen
// across syncs always maps to the same id.
func NoteID(name types.NoteName) types.NoteID {
	var buf [2 * types.HashSize]byte
	copy(buf[:types.HashSize], name.First[:])
	copy(buf[types.HashSize:], name.Last[:])
	h := Hash(buf[:])
	return types.NoteID(h.String())
}
