// derive_address.go prints the first receiving address for a mnemonic file,
// along with the first-name hash used to query the node for its notes.
// Usage: go run scripts/derive_address.go <mnemonic-file>
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/halcyon-cash/halcyon-wallet/internal/wallet"
	"github.com/halcyon-cash/halcyon-wallet/pkg/crypto"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_address <mnemonic-file>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mnemonic := strings.TrimSpace(string(data))
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	key, err := master.DeriveAddress(0, wallet.ChangeExternal, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	addr := key.Address()
	fmt.Printf("Address:    %s\n", addr.String())
	fmt.Printf("First name: %s\n", crypto.FirstName(addr).String())
}
