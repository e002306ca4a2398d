package application_test

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/keeperwallet/keeper/internal/core/domain"
	"github.com/keeperwallet/keeper/internal/core/ports"
)

// ports.ChainProvider
type mockChainProvider struct {
	mock.Mock
}

func (m *mockChainProvider) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockChainProvider) GetBalance(
	ctx context.Context, address common.Address,
) (*big.Int, error) {
	args := m.Called(ctx, address)
	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockChainProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockChainProvider) EstimateGas(
	ctx context.Context, call ethereum.CallMsg,
) (uint64, error) {
	args := m.Called(ctx, call)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockChainProvider) PendingNonceAt(
	ctx context.Context, address common.Address,
) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockChainProvider) SendTransaction(
	ctx context.Context, tx *types.Transaction,
) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockChainProvider) TransactionByHash(
	ctx context.Context, hash common.Hash,
) (*types.Transaction, bool, error) {
	args := m.Called(ctx, hash)
	var res *types.Transaction
	if a := args.Get(0); a != nil {
		res = a.(*types.Transaction)
	}
	return res, args.Get(1).(bool), args.Error(2)
}

func (m *mockChainProvider) TransactionReceipt(
	ctx context.Context, hash common.Hash,
) (*types.Receipt, error) {
	args := m.Called(ctx, hash)
	var res *types.Receipt
	if a := args.Get(0); a != nil {
		res = a.(*types.Receipt)
	}
	return res, args.Error(1)
}

func (m *mockChainProvider) Close() {}

// ports.SessionRelay
type mockSessionRelay struct {
	mock.Mock
	chEvents chan ports.RelayEvent
}

func newMockedSessionRelay() *mockSessionRelay {
	return &mockSessionRelay{
		chEvents: make(chan ports.RelayEvent, 10),
	}
}

func (m *mockSessionRelay) Start() error { return nil }
func (m *mockSessionRelay) Stop()        {}

func (m *mockSessionRelay) GetEventChannel() chan ports.RelayEvent {
	return m.chEvents
}

func (m *mockSessionRelay) ApproveSession(
	ctx context.Context, proposalID uint64, sessionTopic string,
	namespaces map[string]domain.Namespace,
) error {
	args := m.Called(ctx, proposalID, sessionTopic, namespaces)
	return args.Error(0)
}

func (m *mockSessionRelay) RejectSession(
	ctx context.Context, proposalID uint64, code int, message string,
) error {
	args := m.Called(ctx, proposalID, code, message)
	return args.Error(0)
}

func (m *mockSessionRelay) RespondResult(
	ctx context.Context, topic string, requestID uint64, result json.RawMessage,
) error {
	args := m.Called(ctx, topic, requestID, result)
	return args.Error(0)
}

func (m *mockSessionRelay) RespondError(
	ctx context.Context, topic string, requestID uint64, code int, message string,
) error {
	args := m.Called(ctx, topic, requestID, code, message)
	return args.Error(0)
}

func (m *mockSessionRelay) DisconnectSession(
	ctx context.Context, topic string,
) error {
	args := m.Called(ctx, topic)
	return args.Error(0)
}
