package hdwallet

import "errors"

var (
	ErrMissingMnemonic = errors.New("missing mnemonic")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidAddress  = errors.New("invalid address")

	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
	ErrInvalidDerivationIndex = errors.New("invalid derivation index")
)
