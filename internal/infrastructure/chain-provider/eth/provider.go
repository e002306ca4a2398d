package ethprovider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/keeperwallet/keeper/internal/core/ports"
)

type service struct {
	client *ethclient.Client
}

// NewChainProvider dials the given JSON-RPC endpoint and returns the
// ethclient-backed implementation of ports.ChainProvider.
func NewChainProvider(rpcURL string) (ports.ChainProvider, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc endpoint: %w", err)
	}
	return &service{client}, nil
}

func (s *service) ChainID(ctx context.Context) (*big.Int, error) {
	return s.client.ChainID(ctx)
}

func (s *service) GetBalance(
	ctx context.Context, address common.Address,
) (*big.Int, error) {
	return s.client.BalanceAt(ctx, address, nil)
}

func (s *service) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return s.client.SuggestGasPrice(ctx)
}

func (s *service) EstimateGas(
	ctx context.Context, call ethereum.CallMsg,
) (uint64, error) {
	return s.client.EstimateGas(ctx, call)
}

func (s *service) PendingNonceAt(
	ctx context.Context, address common.Address,
) (uint64, error) {
	return s.client.PendingNonceAt(ctx, address)
}

func (s *service) SendTransaction(
	ctx context.Context, tx *types.Transaction,
) error {
	return s.client.SendTransaction(ctx, tx)
}

func (s *service) TransactionByHash(
	ctx context.Context, hash common.Hash,
) (*types.Transaction, bool, error) {
	return s.client.TransactionByHash(ctx, hash)
}

func (s *service) TransactionReceipt(
	ctx context.Context, hash common.Hash,
) (*types.Receipt, error) {
	return s.client.TransactionReceipt(ctx, hash)
}

func (s *service) Close() {
	s.client.Close()
}
