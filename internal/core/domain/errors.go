package domain

import "fmt"

var (
	ErrInvalidMnemonic = fmt.Errorf("invalid mnemonic")
	ErrInvalidAddress  = fmt.Errorf("invalid address")
	// ErrDecrypt covers both a wrong PIN and corrupted data, intentionally
	// undifferentiated to avoid oracle leakage.
	ErrDecrypt             = fmt.Errorf("unable to decrypt data")
	ErrPinNotSet           = fmt.Errorf("pin is not set")
	ErrPinAlreadySet       = fmt.Errorf("pin is already set")
	ErrWalletNotFound      = fmt.Errorf("wallet not found")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
	ErrNetwork             = fmt.Errorf("network unreachable or timed out")
	ErrUserRejected        = fmt.Errorf("user rejected")
	ErrUnsupportedMethod   = fmt.Errorf("unsupported method")
	ErrSessionNotFound     = fmt.Errorf("session not found")
	ErrProposalNotFound    = fmt.Errorf("proposal not found")
	ErrRequestNotFound     = fmt.Errorf("request not found")
	ErrTxNotFound          = fmt.Errorf("transaction not found")
)
