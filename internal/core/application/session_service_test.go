package application_test

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keeperwallet/keeper/internal/core/application"
	"github.com/keeperwallet/keeper/internal/core/domain"
	"github.com/keeperwallet/keeper/internal/core/ports"
)

var testPeer = domain.PeerMeta{
	Name: "test dapp",
	URL:  "https://dapp.test",
}

func newProposal(id uint64, methods ...string) *domain.Proposal {
	return &domain.Proposal{
		ID:           id,
		PairingTopic: fmt.Sprintf("pairing-%d", id),
		Proposer:     testPeer,
		RequiredNamespaces: map[string]domain.Namespace{
			domain.Eip155: {
				Chains:  []string{"eip155:1", "eip155:137"},
				Methods: methods,
				Events:  []string{"accountsChanged"},
			},
		},
	}
}

// newSessionService returns a started session service with the vector wallet
// imported and its pin set.
func newSessionService(
	t *testing.T, relay *mockSessionRelay, provider *mockChainProvider,
) *application.SessionService {
	keyVault := newKeyVaultService()
	require.NoError(t, keyVault.SetPin(ctx, pin))
	require.NoError(
		t, keyVault.StorePrivateKey(ctx, vectorAddress, vectorKeyBytes(t), pin),
	)

	svc := application.NewSessionService(
		relay, keyVault, application.NewTransactionService(provider), "1",
	)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return svc
}

func establishSession(
	t *testing.T, svc *application.SessionService, relay *mockSessionRelay,
	methods ...string,
) *domain.Session {
	relay.On(
		"ApproveSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type:     ports.SessionProposed,
		Proposal: newProposal(1, methods...),
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingProposal() != nil
	}, time.Second, 10*time.Millisecond)

	session, err := svc.ApproveSession(ctx, vectorAddress)
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}

func TestApproveSessionGrantsOnlyTheIntersection(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(
		t, svc, relay, domain.MethodPersonalSign, "eth_unsupportedMethod",
	)

	granted := session.Namespaces[domain.Eip155]
	// only the supported chain out of the two requested ones.
	require.Equal(t, []string{"eip155:1"}, granted.Chains)
	// only the supported method, never the unknown one.
	require.Equal(t, []string{domain.MethodPersonalSign}, granted.Methods)
	require.Equal(
		t, []string{fmt.Sprintf("eip155:1:%s", vectorAddress)}, granted.Accounts,
	)

	require.Nil(t, svc.GetPendingProposal())
	require.Len(t, svc.ListSessions(), 1)
	require.False(t, session.IsExpired())
}

func TestRejectSession(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})
	relay.On("RejectSession", mock.Anything, uint64(1), 5000, mock.Anything).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type:     ports.SessionProposed,
		Proposal: newProposal(1, domain.MethodPersonalSign),
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingProposal() != nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.RejectSession(ctx))
	require.Nil(t, svc.GetPendingProposal())
	require.Empty(t, svc.ListSessions())

	// rejecting again fails, the proposal is settled.
	require.ErrorIs(t, svc.RejectSession(ctx), domain.ErrProposalNotFound)
	relay.AssertCalled(t, "RejectSession", mock.Anything, uint64(1), 5000, mock.Anything)
}

func TestNewProposalSupersedesThePendingOne(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})
	relay.On("RejectSession", mock.Anything, uint64(1), 5000, mock.Anything).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type:     ports.SessionProposed,
		Proposal: newProposal(1, domain.MethodPersonalSign),
	}
	relay.chEvents <- ports.RelayEvent{
		Type:     ports.SessionProposed,
		Proposal: newProposal(2, domain.MethodPersonalSign),
	}

	require.Eventually(t, func() bool {
		pending := svc.GetPendingProposal()
		return pending != nil && pending.ID == 2
	}, time.Second, 10*time.Millisecond)

	// the superseded peer got an answer.
	require.Eventually(t, func() bool {
		return len(relay.Calls) > 0
	}, time.Second, 10*time.Millisecond)
	relay.AssertCalled(t, "RejectSession", mock.Anything, uint64(1), 5000, mock.Anything)
}

func TestRequestOnUnknownTopicIsRejected(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})
	relay.On(
		"RespondError", mock.Anything, "unknown", uint64(10), 4100, mock.Anything,
	).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     10,
			Topic:  "unknown",
			Method: domain.MethodPersonalSign,
			Params: []byte(`["0x68656c6c6f", "` + vectorAddress + `"]`),
		},
	}

	require.Eventually(t, func() bool {
		return len(relay.Calls) > 0
	}, time.Second, 10*time.Millisecond)
	relay.AssertCalled(
		t, "RespondError", mock.Anything, "unknown", uint64(10), 4100, mock.Anything,
	)
	require.Nil(t, svc.GetPendingRequest())
}

func TestRequestWithUngrantedMethodIsRejected(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodPersonalSign)
	relay.On(
		"RespondError", mock.Anything, session.Topic, uint64(11), 4100, mock.Anything,
	).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     11,
			Topic:  session.Topic,
			Method: domain.MethodSendTransaction,
			Params: []byte(`[{"from": "` + vectorAddress + `", "to": "` + recipient + `"}]`),
		},
	}

	require.Eventually(t, func() bool {
		return len(relay.Calls) > 1
	}, time.Second, 10*time.Millisecond)
	relay.AssertCalled(
		t, "RespondError", mock.Anything, session.Topic, uint64(11), 4100, mock.Anything,
	)
	require.Nil(t, svc.GetPendingRequest())
}

func TestRequestWithUnsupportedMethodIsRejected(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodPersonalSign)
	relay.On(
		"RespondError", mock.Anything, session.Topic, uint64(12), 4200, mock.Anything,
	).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     12,
			Topic:  session.Topic,
			Method: "wallet_switchEthereumChain",
			Params: []byte(`[]`),
		},
	}

	require.Eventually(t, func() bool {
		return len(relay.Calls) > 1
	}, time.Second, 10*time.Millisecond)
	relay.AssertCalled(
		t, "RespondError", mock.Anything, session.Topic, uint64(12), 4200, mock.Anything,
	)
}

func TestApprovePersonalSignRequest(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodPersonalSign)

	// personal_sign carries [message, address].
	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     20,
			Topic:  session.Topic,
			Method: domain.MethodPersonalSign,
			Params: []byte(`["0x68656c6c6f", "` + vectorAddress + `"]`),
			Peer:   testPeer,
		},
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingRequest() != nil
	}, time.Second, 10*time.Millisecond)

	formatted, err := svc.FormatPendingRequest()
	require.NoError(t, err)
	require.Equal(t, domain.RequestMessage, formatted.Kind)
	require.Equal(t, vectorAddress, formatted.Address)
	require.Equal(t, "hello", formatted.Message)

	// wrong pin: no response sent, the request stays pending.
	_, err = svc.ApproveRequest(ctx, wrongPin)
	require.ErrorIs(t, err, domain.ErrDecrypt)
	require.NotNil(t, svc.GetPendingRequest())
	relay.AssertNotCalled(
		t, "RespondResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	)

	relay.On(
		"RespondResult", mock.Anything, session.Topic, uint64(20), mock.Anything,
	).Return(nil)

	result, err := svc.ApproveRequest(ctx, pin)
	require.NoError(t, err)
	require.NotEmpty(t, result)
	require.Nil(t, svc.GetPendingRequest())
	relay.AssertCalled(
		t, "RespondResult", mock.Anything, session.Topic, uint64(20), mock.Anything,
	)
}

func TestEthSignUsesReversedParamsOrder(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodEthSign)

	// eth_sign carries [address, message].
	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     21,
			Topic:  session.Topic,
			Method: domain.MethodEthSign,
			Params: []byte(`["` + vectorAddress + `", "0x68656c6c6f"]`),
			Peer:   testPeer,
		},
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingRequest() != nil
	}, time.Second, 10*time.Millisecond)

	formatted, err := svc.FormatPendingRequest()
	require.NoError(t, err)
	require.Equal(t, vectorAddress, formatted.Address)
	require.Equal(t, "hello", formatted.Message)
}

func TestApproveSendTransactionRequest(t *testing.T) {
	provider := &mockChainProvider{}
	provider.On("ChainID", mock.Anything).Return(chainID, nil)
	provider.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), nil)
	provider.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(100), nil)
	provider.On("GetBalance", mock.Anything, mock.Anything).Return(
		big.NewInt(1_000_000_000), nil,
	)
	var sentTx *types.Transaction
	provider.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).
		Run(func(args mock.Arguments) {
			sentTx = args.Get(1).(*types.Transaction)
		})

	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, provider)

	session := establishSession(t, svc, relay, domain.MethodSendTransaction)
	relay.On(
		"RespondResult", mock.Anything, session.Topic, uint64(22), mock.Anything,
	).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     22,
			Topic:  session.Topic,
			Method: domain.MethodSendTransaction,
			Params: []byte(`[{
				"from": "` + vectorAddress + `",
				"to": "` + recipient + `",
				"value": "0x3e8",
				"gas": "0x5208"
			}]`),
			Peer: testPeer,
		},
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingRequest() != nil
	}, time.Second, 10*time.Millisecond)

	result, err := svc.ApproveRequest(ctx, pin)
	require.NoError(t, err)
	require.NotNil(t, sentTx)
	require.Equal(t, sentTx.Hash().Hex(), result)
	require.Equal(t, big.NewInt(1000), sentTx.Value())
	require.Equal(t, uint64(21000), sentTx.Gas())
}

func TestResultDeliveryFailureSettlesTheRequest(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodPersonalSign)
	relay.On(
		"RespondResult", mock.Anything, session.Topic, uint64(25), mock.Anything,
	).Return(fmt.Errorf("relay unreachable"))
	relay.On(
		"RespondError", mock.Anything, session.Topic, uint64(25), -32603, mock.Anything,
	).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     25,
			Topic:  session.Topic,
			Method: domain.MethodPersonalSign,
			Params: []byte(`["0x68656c6c6f", "` + vectorAddress + `"]`),
			Peer:   testPeer,
		},
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingRequest() != nil
	}, time.Second, 10*time.Millisecond)

	_, err := svc.ApproveRequest(ctx, pin)
	require.Error(t, err)

	// the request is settled and the peer still got exactly one answer.
	require.Nil(t, svc.GetPendingRequest())
	relay.AssertCalled(
		t, "RespondError", mock.Anything, session.Topic, uint64(25), -32603, mock.Anything,
	)
}

func TestRejectRequest(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodPersonalSign)
	relay.On(
		"RespondError", mock.Anything, session.Topic, uint64(23), 4001, mock.Anything,
	).Return(nil)

	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     23,
			Topic:  session.Topic,
			Method: domain.MethodPersonalSign,
			Params: []byte(`["0x68656c6c6f", "` + vectorAddress + `"]`),
		},
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingRequest() != nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svc.RejectRequest(ctx))
	require.Nil(t, svc.GetPendingRequest())

	// rejecting again fails, the request is settled.
	require.ErrorIs(t, svc.RejectRequest(ctx), domain.ErrRequestNotFound)
	relay.AssertCalled(
		t, "RespondError", mock.Anything, session.Topic, uint64(23), 4001, mock.Anything,
	)
}

func TestDisconnectSession(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodPersonalSign)
	relay.On("DisconnectSession", mock.Anything, session.Topic).Return(nil)

	require.NoError(t, svc.DisconnectSession(ctx, session.Topic))
	require.Empty(t, svc.ListSessions())

	// disconnecting an unknown topic is a no-op.
	require.NoError(t, svc.DisconnectSession(ctx, session.Topic))
	relay.AssertNumberOfCalls(t, "DisconnectSession", 1)
}

func TestPeerDeletedSession(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodPersonalSign)

	relay.chEvents <- ports.RelayEvent{
		Type:  ports.SessionDeleted,
		Topic: session.Topic,
	}
	require.Eventually(t, func() bool {
		return len(svc.ListSessions()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestFormatTypedDataRequest(t *testing.T) {
	relay := newMockedSessionRelay()
	svc := newSessionService(t, relay, &mockChainProvider{})

	session := establishSession(t, svc, relay, domain.MethodSignTypedDataV4)

	typedData := `{"types":{"EIP712Domain":[]},"primaryType":"Mail","domain":{},"message":{}}`
	params, err := json.Marshal([]interface{}{vectorAddress, json.RawMessage(typedData)})
	require.NoError(t, err)

	relay.chEvents <- ports.RelayEvent{
		Type: ports.SessionRequested,
		Request: &domain.SignRequest{
			ID:     24,
			Topic:  session.Topic,
			Method: domain.MethodSignTypedDataV4,
			Params: params,
			Peer:   testPeer,
		},
	}
	require.Eventually(t, func() bool {
		return svc.GetPendingRequest() != nil
	}, time.Second, 10*time.Millisecond)

	formatted, err := svc.FormatPendingRequest()
	require.NoError(t, err)
	require.Equal(t, domain.RequestTypedData, formatted.Kind)
	require.Equal(t, vectorAddress, formatted.Address)
	require.JSONEq(t, typedData, string(formatted.TypedData))
}
