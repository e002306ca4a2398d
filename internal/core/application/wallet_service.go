package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/keeperwallet/keeper/internal/core/domain"
	"github.com/keeperwallet/keeper/pkg/cryptobox"
	"github.com/keeperwallet/keeper/pkg/hdwallet"
)

// WalletService is responsible for the wallet lifecycle:
//   - Generate a new random 12-words mnemonic.
//   - Validate a user-entered mnemonic.
//   - Derive accounts at the reference derivation path.
//   - Create a brand new wallet or import one from an existing mnemonic,
//     persisting everything through the KeyVaultService.
//
// Creation and import share the same ordering and rollback contract: the
// mnemonic and key are stored before the operation is considered
// successful, and a partial failure cleans up what was written so no
// dangling registry entry remains.
type WalletService struct {
	keyVault *KeyVaultService

	log func(format string, a ...interface{})
}

func NewWalletService(keyVault *KeyVaultService) *WalletService {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("wallet service: %s", format)
		log.Debugf(format, a...)
	}
	return &WalletService{keyVault, logFn}
}

// GenerateMnemonic returns a new random 12-words mnemonic backed by 128 bits
// of CSPRNG entropy.
func (s *WalletService) GenerateMnemonic() (string, error) {
	return hdwallet.NewMnemonic(hdwallet.NewMnemonicArgs{EntropySize: 128})
}

// ValidateMnemonic checks wordlist membership and checksum. It is the only
// accepted gate before derivation.
func (s *WalletService) ValidateMnemonic(mnemonic string) bool {
	return hdwallet.IsMnemonicValid(mnemonic)
}

// DeriveAccount deterministically derives the account at the given index
// from the mnemonic.
func (s *WalletService) DeriveAccount(
	mnemonic string, index uint32,
) (*hdwallet.Account, error) {
	account, err := hdwallet.DeriveAccount(hdwallet.DeriveAccountArgs{
		Mnemonic: mnemonic, Index: index,
	})
	if err != nil {
		return nil, domain.ErrInvalidMnemonic
	}
	return account, nil
}

// CreateNewWallet generates a fresh mnemonic, derives the account at index
// 0 and persists mnemonic, key and, if not yet present, the PIN credential.
func (s *WalletService) CreateNewWallet(
	ctx context.Context, pin string,
) (*CreatedWallet, error) {
	mnemonic, err := s.GenerateMnemonic()
	if err != nil {
		return nil, err
	}

	created, err := s.persistWallet(ctx, mnemonic, pin)
	if err != nil {
		return nil, err
	}
	created.Mnemonic = mnemonic

	s.log("created new wallet %s", created.Address)
	return created, nil
}

// ImportWalletFromMnemonic validates the given mnemonic, derives the
// account at index 0 and persists it with the same ordering and rollback
// contract as creation. Re-importing an already known address updates its
// registry entry in place.
func (s *WalletService) ImportWalletFromMnemonic(
	ctx context.Context, mnemonic, pin string,
) (*CreatedWallet, error) {
	if !s.ValidateMnemonic(mnemonic) {
		return nil, domain.ErrInvalidMnemonic
	}

	created, err := s.persistWallet(ctx, mnemonic, pin)
	if err != nil {
		return nil, err
	}

	s.log("imported wallet %s", created.Address)
	return created, nil
}

func (s *WalletService) persistWallet(
	ctx context.Context, mnemonic, pin string,
) (*CreatedWallet, error) {
	// the device has a single PIN: blobs encrypted under any other one
	// would be unrecoverable.
	if s.keyVault.HasPin(ctx) && !s.keyVault.VerifyPin(ctx, pin) {
		return nil, domain.ErrDecrypt
	}

	account, err := s.DeriveAccount(mnemonic, 0)
	if err != nil {
		return nil, err
	}
	defer cryptobox.Zero(account.PrivateKey)

	address := account.Address.Hex()

	if err := s.keyVault.StoreMnemonic(ctx, mnemonic, pin); err != nil {
		return nil, err
	}
	if err := s.keyVault.StorePrivateKey(
		ctx, address, account.PrivateKey, pin,
	); err != nil {
		// no dangling state: a wallet without its key is no wallet at all.
		s.keyVault.vault.Delete(ctx, mnemonicVaultKey)
		return nil, err
	}
	if !s.keyVault.HasPin(ctx) {
		if err := s.keyVault.SetPin(ctx, pin); err != nil {
			s.keyVault.DeleteWallet(ctx, address)
			s.keyVault.vault.Delete(ctx, mnemonicVaultKey)
			return nil, err
		}
	}

	return &CreatedWallet{Address: address, Index: account.Index}, nil
}
