package hdwallet

import (
	bip39 "github.com/tyler-smith/go-bip39"
)

type NewMnemonicArgs struct {
	EntropySize uint32
}

func (a NewMnemonicArgs) validate() error {
	if a.EntropySize > 0 {
		if a.EntropySize < 128 || a.EntropySize > 256 || a.EntropySize%32 != 0 {
			return ErrInvalidEntropySize
		}
	}
	return nil
}

// NewMnemonic returns a new random BIP39 mnemonic phrase:
//   - EntropySize: 128 -> 12-words mnemonic.
//   - EntropySize: 256 -> 24-words mnemonic.
//
// The entropy is drawn from the platform CSPRNG.
func NewMnemonic(args NewMnemonicArgs) (string, error) {
	if err := args.validate(); err != nil {
		return "", err
	}
	if args.EntropySize == 0 {
		args.EntropySize = 128
	}

	entropy, err := bip39.NewEntropy(int(args.EntropySize))
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// IsMnemonicValid checks wordlist membership and checksum of the given
// phrase. This is the only accepted gate before derivation.
func IsMnemonicValid(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}
