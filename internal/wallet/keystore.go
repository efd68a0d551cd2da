package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// walletFile is the on-disk JSON format for an encrypted wallet.
type walletFile struct {
	Version          int            `json:"version"`
	CreatedAt        time.Time      `json:"created_at"`
	Vault            *VaultBlob     `json:"vault"`
	Accounts         []AccountEntry `json:"accounts"`
	NextAccountIndex uint32         `json:"next_account_index"`
}

// AccountEntry stores metadata for a derived account.
type AccountEntry struct {
	Index   uint32 `json:"index"`
	Name    string `json:"name"`
	Address string `json:"address"` // bech32-encoded
}

// Keystore manages encrypted wallet files on disk.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

// walletPath returns the file path for a wallet by name.
func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

// Exists reports whether a wallet file with the given name is present.
func (ks *Keystore) Exists(name string) bool {
	_, err := os.Stat(ks.walletPath(name))
	return err == nil
}

// Create creates a new encrypted wallet file from a mnemonic seed.
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet %q already exists", name)
	}

	vault, err := SealVault(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}

	wf := walletFile{
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Vault:     vault,
		Accounts:  []AccountEntry{},
	}

	return ks.writeFile(path, &wf)
}

// Load decrypts a wallet and returns the seed bytes.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	wf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return nil, err
	}

	seed, err := wf.Vault.Open(password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet: %w", err)
	}

	return seed, nil
}

// AddAccount records a derived account in the wallet metadata and advances
// the next derivation index past it.
func (ks *Keystore) AddAccount(walletName string, acct AccountEntry) error {
	path := ks.walletPath(walletName)
	wf, err := ks.readFile(path)
	if err != nil {
		return err
	}

	for _, existing := range wf.Accounts {
		if existing.Index == acct.Index {
			// Idempotent insert if metadata points to the same address.
			if existing.Address == acct.Address {
				return nil
			}
			return fmt.Errorf("account index %d already exists", acct.Index)
		}
		if existing.Address != "" && existing.Address == acct.Address {
			return nil
		}
	}

	wf.Accounts = append(wf.Accounts, acct)
	if acct.Index >= wf.NextAccountIndex {
		wf.NextAccountIndex = acct.Index + 1
	}
	return ks.writeFile(path, wf)
}

// ListAccounts returns the account entries for a wallet.
func (ks *Keystore) ListAccounts(walletName string) ([]AccountEntry, error) {
	wf, err := ks.readFile(ks.walletPath(walletName))
	if err != nil {
		return nil, err
	}
	return wf.Accounts, nil
}

// NextIndex returns the next unused account derivation index for a wallet.
func (ks *Keystore) NextIndex(walletName string) (uint32, error) {
	wf, err := ks.readFile(ks.walletPath(walletName))
	if err != nil {
		return 0, err
	}
	return wf.NextAccountIndex, nil
}

// List returns the names of all wallet files in the keystore.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".wallet" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("wallet %q not found", name)
	}
	return os.Remove(path)
}

func (ks *Keystore) writeFile(path string, wf *walletFile) error {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(path string) (*walletFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if wf.Version != 1 {
		return nil, fmt.Errorf("unsupported wallet version: %d", wf.Version)
	}
	if wf.Vault == nil {
		return nil, fmt.Errorf("wallet file missing vault")
	}
	return &wf, nil
}
