package wallet

import "github.com/halcyon-cash/halcyon-wallet/pkg/types"

// Account represents a wallet account.
type Account struct {
	Index   uint32
	Name    string
	Address types.Address
}

// KeyedAccount is an account together with its decrypted key material,
// produced by the keystore after unlock. The ledger core only ever
// forwards these bytes to the transaction builder.
type KeyedAccount struct {
	Account
	PublicKey  []byte
	PrivateKey []byte
}
