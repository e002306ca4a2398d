package hdwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"
)

// BaseDerivationPath is the account-level path of the reference chain
// family, the address index is appended to it.
const BaseDerivationPath = "m/44'/60'/0'/0"

// Account is a single derived key pair. PrivateKey is the raw 32-byte
// secp256k1 scalar, the caller owns it and is expected to wipe it once done.
type Account struct {
	Address    common.Address
	PrivateKey []byte
	Index      uint32
}

type DeriveAccountArgs struct {
	Mnemonic string
	Index    uint32
}

func (a DeriveAccountArgs) validate() error {
	if len(a.Mnemonic) == 0 {
		return ErrMissingMnemonic
	}
	if !bip39.IsMnemonicValid(a.Mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// DeriveAccount derives the key pair at m/44'/60'/0'/0/<index> from the
// given mnemonic. Derivation is deterministic: the same (mnemonic, index)
// always yields the same account.
func DeriveAccount(args DeriveAccountArgs) (*Account, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(args.Mnemonic, "")
	defer zero(seed)

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	path, err := ParseDerivationPath(
		fmt.Sprintf("%s/%d", BaseDerivationPath, args.Index),
	)
	if err != nil {
		return nil, err
	}
	key := master
	for _, idx := range path {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}

	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	privBytes := privKey.Serialize()

	ecdsaKey, err := crypto.ToECDSA(privBytes)
	if err != nil {
		zero(privBytes)
		return nil, err
	}

	return &Account{
		Address:    crypto.PubkeyToAddress(ecdsaKey.PublicKey),
		PrivateKey: privBytes,
		Index:      args.Index,
	}, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
