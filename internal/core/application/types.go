package application

import (
	"math/big"
)

// TxStatus is the lifecycle state of a submitted transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// UnsignedTx is a transaction under construction. Nil GasPrice, nil Nonce
// and zero GasLimit mean "fill from the network before signing".
type UnsignedTx struct {
	To       string
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
	Nonce    *uint64
}

// SpeedOption is one gas-price tier paired with an indicative
// confirmation-time label. Tiers are advisory estimates, not guarantees.
type SpeedOption struct {
	GasPrice *big.Int
	Label    string
}

// SpeedOptions holds the three advisory gas-price tiers derived from the
// current network fee data.
type SpeedOptions struct {
	Slow   SpeedOption
	Normal SpeedOption
	Fast   SpeedOption
}

// CreatedWallet is what wallet creation/import hands back to the caller:
// the derived address and, for brand new wallets, the mnemonic the user must
// back up. No key material.
type CreatedWallet struct {
	Address  string
	Index    uint32
	Mnemonic string
}

// BuildInfo holds the daemon build details.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}
