package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainProvider is the abstraction for the RPC client of an account-based
// chain. The core builds and signs transactions, the provider takes care of
// chain connectivity.
type ChainProvider interface {
	// ChainID returns the id of the connected chain.
	ChainID(ctx context.Context) (*big.Int, error)
	// GetBalance returns the native balance of the address in wei.
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	// SuggestGasPrice returns the current suggested gas price.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// EstimateGas estimates the gas needed to execute the given call.
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	// PendingNonceAt returns the next pending nonce for the address.
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
	// SendTransaction submits a signed transaction to the network.
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// TransactionByHash returns the transaction, and whether it is still
	// pending, identified by its hash.
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	// TransactionReceipt returns the receipt of a mined transaction, or an
	// error if the tx is not mined yet.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// Close releases the underlying connection.
	Close()
}
