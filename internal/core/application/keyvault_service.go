package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/keeperwallet/keeper/internal/core/domain"
	"github.com/keeperwallet/keeper/internal/core/ports"
	"github.com/keeperwallet/keeper/pkg/cryptobox"
	"github.com/keeperwallet/keeper/pkg/hdwallet"
)

const (
	pinVaultKey      = "pin"
	mnemonicVaultKey = "mnemonic"
	registryVaultKey = "wallets"
	privKeyPrefix    = "key:"

	minPinLength = 4
)

// KeyVaultService owns the PIN lifecycle and the encrypted persistence of
// mnemonic and private keys through the device secure vault, along with the
// registry of known wallets.
//
// Two guarantees hold across all operations:
//   - PIN verification completes, and returns true, strictly before any
//     decrypt of a real secret is attempted. A wrong PIN never triggers a
//     decryption attempt.
//   - Registry writes are read-modify-write under a single lock and the
//     whole list is persisted atomically, never partial writes.
type KeyVaultService struct {
	vault ports.SecureVault
	lock  *sync.Mutex

	log func(format string, a ...interface{})
}

func NewKeyVaultService(vault ports.SecureVault) *KeyVaultService {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("key vault: %s", format)
		log.Debugf(format, a...)
	}
	return &KeyVaultService{vault, &sync.Mutex{}, logFn}
}

// SetPin derives and stores the device PinCredential. It succeeds exactly
// once per device profile unless the vault is explicitly reset.
func (s *KeyVaultService) SetPin(ctx context.Context, pin string) error {
	if len(pin) < minPinLength {
		return fmt.Errorf("pin must be at least %d characters long", minPinLength)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	existing, err := s.getPinCredential(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrPinAlreadySet
	}

	credential, err := domain.NewPinCredential(pin)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(credential)
	if err != nil {
		return err
	}
	if err := s.vault.Set(ctx, pinVaultKey, buf); err != nil {
		return err
	}

	s.log("pin credential stored")
	return nil
}

// HasPin reports whether a PIN has been set for this device profile.
func (s *KeyVaultService) HasPin(ctx context.Context) bool {
	credential, err := s.getPinCredential(ctx)
	return err == nil && credential != nil
}

// VerifyPin recomputes the PIN hash and compares it in constant time
// against the stored credential. With no PIN set it returns false, not an
// error.
func (s *KeyVaultService) VerifyPin(ctx context.Context, pin string) bool {
	credential, err := s.getPinCredential(ctx)
	if err != nil || credential == nil {
		return false
	}
	return credential.Verify(pin)
}

// StoreMnemonic persists the mnemonic encrypted with the given PIN. It is
// called during wallet creation, possibly before the PIN credential exists.
func (s *KeyVaultService) StoreMnemonic(
	ctx context.Context, mnemonic, pin string,
) error {
	blob, err := cryptobox.Encrypt([]byte(mnemonic), pin)
	if err != nil {
		return err
	}
	return s.vault.Set(ctx, mnemonicVaultKey, []byte(blob.String()))
}

// RetrieveMnemonic returns the decrypted mnemonic, or an empty string if
// none is stored. The PIN is verified against the stored credential before
// any decrypt is attempted; on mismatch the generic decrypt error is
// returned.
func (s *KeyVaultService) RetrieveMnemonic(
	ctx context.Context, pin string,
) (string, error) {
	if err := s.checkPin(ctx, pin); err != nil {
		return "", err
	}

	buf, err := s.vault.Get(ctx, mnemonicVaultKey)
	if err != nil {
		return "", err
	}
	if buf == nil {
		return "", nil
	}

	blob, err := cryptobox.ParseBlob(string(buf))
	if err != nil {
		return "", domain.ErrDecrypt
	}
	mnemonic, err := cryptobox.Decrypt(blob, pin)
	if err != nil {
		return "", domain.ErrDecrypt
	}
	return string(mnemonic), nil
}

// StorePrivateKey persists the private key of the given address encrypted
// with the PIN and upserts the wallet registry, idempotent by address.
func (s *KeyVaultService) StorePrivateKey(
	ctx context.Context, address string, privateKey []byte, pin string,
) error {
	checksummed, err := hdwallet.ChecksumAddress(address)
	if err != nil {
		return domain.ErrInvalidAddress
	}

	blob, err := cryptobox.Encrypt(privateKey, pin)
	if err != nil {
		return err
	}
	encrypted := blob.String()

	if err := s.vault.Set(
		ctx, privKeyVaultKey(checksummed), []byte(encrypted),
	); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	registry, err := s.getRegistry(ctx)
	if err != nil {
		return err
	}
	if err := s.putRegistry(ctx, registry.Upsert(checksummed, encrypted)); err != nil {
		return err
	}

	s.log("stored key for wallet %s", checksummed)
	return nil
}

// RetrievePrivateKey returns the decrypted private key for the address. The
// PIN is verified strictly before the decrypt; wrong PIN and corrupted data
// are indistinguishable to the caller. The returned buffer is owned by the
// caller, who is expected to wipe it once done.
func (s *KeyVaultService) RetrievePrivateKey(
	ctx context.Context, address, pin string,
) ([]byte, error) {
	if err := s.checkPin(ctx, pin); err != nil {
		return nil, err
	}

	checksummed, err := hdwallet.ChecksumAddress(address)
	if err != nil {
		return nil, domain.ErrInvalidAddress
	}

	buf, err := s.vault.Get(ctx, privKeyVaultKey(checksummed))
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, domain.ErrWalletNotFound
	}

	blob, err := cryptobox.ParseBlob(string(buf))
	if err != nil {
		return nil, domain.ErrDecrypt
	}
	privateKey, err := cryptobox.Decrypt(blob, pin)
	if err != nil {
		return nil, domain.ErrDecrypt
	}
	return privateKey, nil
}

// GetWalletList returns the wallet registry.
func (s *KeyVaultService) GetWalletList(ctx context.Context) (domain.Registry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.getRegistry(ctx)
}

// DeleteWallet removes the encrypted key of the address and prunes its
// registry entry. The secret blob is deleted first and the registry pruned
// last, in line with the crash-safety contract of the registry.
func (s *KeyVaultService) DeleteWallet(ctx context.Context, address string) error {
	checksummed, err := hdwallet.ChecksumAddress(address)
	if err != nil {
		return domain.ErrInvalidAddress
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	registry, err := s.getRegistry(ctx)
	if err != nil {
		return err
	}
	registry, found := registry.Remove(checksummed)
	if !found {
		return domain.ErrWalletNotFound
	}

	if err := s.vault.Delete(ctx, privKeyVaultKey(checksummed)); err != nil {
		return err
	}
	if err := s.putRegistry(ctx, registry); err != nil {
		return err
	}

	s.log("deleted wallet %s", checksummed)
	return nil
}

// ClearAll irreversibly wipes every secret of the device profile: all
// private key blobs, the mnemonic, the PIN credential and, last, the
// registry.
func (s *KeyVaultService) ClearAll(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	keys, err := s.vault.Keys(ctx, privKeyPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.vault.Delete(ctx, key); err != nil {
			return err
		}
	}
	if err := s.vault.Delete(ctx, mnemonicVaultKey); err != nil {
		return err
	}
	if err := s.vault.Delete(ctx, pinVaultKey); err != nil {
		return err
	}
	if err := s.vault.Delete(ctx, registryVaultKey); err != nil {
		return err
	}

	s.log("cleared all secrets")
	return nil
}

// checkPin enforces the verify-before-decrypt ordering shared by all secret
// retrievals.
func (s *KeyVaultService) checkPin(ctx context.Context, pin string) error {
	credential, err := s.getPinCredential(ctx)
	if err != nil {
		return err
	}
	if credential == nil {
		return domain.ErrPinNotSet
	}
	if !credential.Verify(pin) {
		return domain.ErrDecrypt
	}
	return nil
}

func (s *KeyVaultService) getPinCredential(ctx context.Context) (*domain.PinCredential, error) {
	buf, err := s.vault.Get(ctx, pinVaultKey)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	credential := &domain.PinCredential{}
	if err := json.Unmarshal(buf, credential); err != nil {
		return nil, err
	}
	return credential, nil
}

func (s *KeyVaultService) getRegistry(ctx context.Context) (domain.Registry, error) {
	buf, err := s.vault.Get(ctx, registryVaultKey)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return domain.Registry{}, nil
	}
	registry := domain.Registry{}
	if err := json.Unmarshal(buf, &registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func (s *KeyVaultService) putRegistry(ctx context.Context, registry domain.Registry) error {
	buf, err := json.Marshal(registry)
	if err != nil {
		return err
	}
	return s.vault.Set(ctx, registryVaultKey, buf)
}

func privKeyVaultKey(address string) string {
	return privKeyPrefix + strings.ToLower(address)
}
