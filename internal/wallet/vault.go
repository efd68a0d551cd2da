package wallet

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Vault algorithm identifiers.
const (
	kdfArgon2id   = "argon2id"
	kdfHash       = "blake2b" // Argon2's internal hash function.
	cipherXChaCha = "xchacha20poly1305"

	// VaultVersion is the current vault blob format version.
	VaultVersion = 1

	// SaltSize is the KDF salt length in bytes.
	SaltSize = 32
)

// KDFParams records how the encryption key was derived from the password.
type KDFParams struct {
	Name        string `json:"name"`
	Hash        string `json:"hash"`
	Iterations  uint32 `json:"iterations"`
	Memory      uint32 `json:"memory"` // in KiB
	Parallelism uint8  `json:"parallelism"`
	Salt        []byte `json:"salt"`
}

// CipherParams holds the AEAD algorithm, nonce, and ciphertext.
type CipherParams struct {
	Alg string `json:"alg"`
	IV  []byte `json:"iv"`
	CT  []byte `json:"ct"`
}

// VaultBlob is the encrypted container for the wallet seed. Everything
// needed to decrypt (except the password) is carried in the blob itself.
type VaultBlob struct {
	Version int          `json:"version"`
	KDF     KDFParams    `json:"kdf"`
	Cipher  CipherParams `json:"cipher"`
}

// EncryptionParams holds tunable Argon2id parameters.
type EncryptionParams struct {
	Memory      uint32 // in KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams returns recommended Argon2id parameters.
func DefaultParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 4,
	}
}

// deriveKey uses Argon2id to derive a 32-byte encryption key.
func deriveKey(password, salt []byte, iterations, memory uint32, parallelism uint8) []byte {
	return argon2.IDKey(password, salt, iterations, memory, parallelism, chacha20poly1305.KeySize)
}

// SealVault encrypts data with the password using Argon2id +
// XChaCha20-Poly1305 and returns the self-describing blob.
func SealVault(data, password []byte, params EncryptionParams) (*VaultBlob, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(password, salt, params.Iterations, params.Memory, params.Parallelism)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ct := aead.Seal(nil, nonce, data, nil)

	return &VaultBlob{
		Version: VaultVersion,
		KDF: KDFParams{
			Name:        kdfArgon2id,
			Hash:        kdfHash,
			Iterations:  params.Iterations,
			Memory:      params.Memory,
			Parallelism: params.Parallelism,
			Salt:        salt,
		},
		Cipher: CipherParams{
			Alg: cipherXChaCha,
			IV:  nonce,
			CT:  ct,
		},
	}, nil
}

// Open decrypts the blob with the given password.
func (v *VaultBlob) Open(password []byte) ([]byte, error) {
	if v.Version != VaultVersion {
		return nil, fmt.Errorf("unsupported vault version: %d", v.Version)
	}
	if v.KDF.Name != kdfArgon2id {
		return nil, fmt.Errorf("unsupported kdf: %q", v.KDF.Name)
	}
	if v.Cipher.Alg != cipherXChaCha {
		return nil, fmt.Errorf("unsupported cipher: %q", v.Cipher.Alg)
	}
	if len(v.KDF.Salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(v.KDF.Salt))
	}

	key := deriveKey(password, v.KDF.Salt, v.KDF.Iterations, v.KDF.Memory, v.KDF.Parallelism)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(v.Cipher.IV) != aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", aead.NonceSize(), len(v.Cipher.IV))
	}

	plaintext, err := aead.Open(nil, v.Cipher.IV, v.Cipher.CT, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt vault: %w", err)
	}
	return plaintext, nil
}

// zero overwrites sensitive key material.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
