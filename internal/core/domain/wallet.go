package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/keeperwallet/keeper/pkg/cryptobox"
)

const pinSaltSize = 16

// WalletRecord is one entry of the durable wallet registry, the only source
// of truth for which wallets exist on this device. The private key itself is
// stored as an opaque encrypted blob.
type WalletRecord struct {
	Address             string
	EncryptedPrivateKey string
	CreatedAt           int64
}

// Registry is the full list of WalletRecords. It is always read, mutated and
// persisted as a whole, never as partial writes.
type Registry []WalletRecord

// Find returns the record for the given address, if any. Address matching is
// case-insensitive.
func (r Registry) Find(address string) (*WalletRecord, bool) {
	for i := range r {
		if strings.EqualFold(r[i].Address, address) {
			return &r[i], true
		}
	}
	return nil, false
}

// Upsert adds a record for the address or updates the existing one in place,
// so that re-importing a wallet never duplicates its registry entry.
func (r Registry) Upsert(address, encryptedKey string) Registry {
	for i := range r {
		if strings.EqualFold(r[i].Address, address) {
			r[i].EncryptedPrivateKey = encryptedKey
			return r
		}
	}
	return append(r, WalletRecord{
		Address:             address,
		EncryptedPrivateKey: encryptedKey,
		CreatedAt:           time.Now().Unix(),
	})
}

// Remove deletes the record for the address, reporting whether it existed.
func (r Registry) Remove(address string) (Registry, bool) {
	for i := range r {
		if strings.EqualFold(r[i].Address, address) {
			return append(r[:i:i], r[i+1:]...), true
		}
	}
	return r, false
}

// PinCredential is the stored verification material for the device PIN.
// Verifying a PIN never touches any wallet secret: correctness is checked
// against this hash before any decrypt is attempted.
type PinCredential struct {
	Salt       []byte
	Hash       []byte
	Iterations int
}

// NewPinCredential derives a PBKDF2-SHA512 verification hash of the PIN with
// a fresh random salt.
func NewPinCredential(pin string) (*PinCredential, error) {
	salt := make([]byte, pinSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return &PinCredential{
		Salt:       salt,
		Hash:       cryptobox.DeriveKey(pin, salt, cryptobox.Iterations),
		Iterations: cryptobox.Iterations,
	}, nil
}

// Verify recomputes the hash for the given PIN and compares it in constant
// time against the stored one.
func (c *PinCredential) Verify(pin string) bool {
	if c == nil || len(c.Hash) == 0 {
		return false
	}
	hash := cryptobox.DeriveKey(pin, c.Salt, c.Iterations)
	defer cryptobox.Zero(hash)
	return subtle.ConstantTimeCompare(c.Hash, hash) == 1
}
