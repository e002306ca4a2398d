package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keeperwallet/keeper/internal/core/domain"
)

func TestApproveNamespaces(t *testing.T) {
	proposal := &domain.Proposal{
		ID: 1,
		RequiredNamespaces: map[string]domain.Namespace{
			domain.Eip155: {
				Chains: []string{"eip155:1", "eip155:137"},
				Methods: []string{
					domain.MethodPersonalSign, domain.MethodSendTransaction,
					"wallet_switchEthereumChain",
				},
				Events: []string{"accountsChanged", "chainChanged"},
			},
		},
	}
	supportedChains := []string{"eip155:1"}
	supportedMethods := []string{
		domain.MethodPersonalSign, domain.MethodEthSign,
		domain.MethodSendTransaction,
	}

	approved, err := domain.ApproveNamespaces(
		proposal, supportedChains, supportedMethods, testAddress,
	)
	require.NoError(t, err)
	require.Len(t, approved, 1)

	granted := approved[domain.Eip155]
	// chains and methods are the exact intersection of requested and
	// supported: nothing the peer did not ask for, nothing the wallet does
	// not speak.
	require.Equal(t, []string{"eip155:1"}, granted.Chains)
	require.Equal(
		t,
		[]string{domain.MethodPersonalSign, domain.MethodSendTransaction},
		granted.Methods,
	)
	require.NotContains(t, granted.Methods, domain.MethodEthSign)
	require.Equal(t, []string{"eip155:1:" + testAddress}, granted.Accounts)
	require.Equal(t, proposal.RequiredNamespaces[domain.Eip155].Events, granted.Events)
}

func TestApproveNamespacesWithoutProposal(t *testing.T) {
	_, err := domain.ApproveNamespaces(nil, nil, nil, testAddress)
	require.ErrorIs(t, err, domain.ErrProposalNotFound)
}

func TestSessionExpiry(t *testing.T) {
	session := &domain.Session{
		Topic:  "topic",
		Expiry: time.Now().Add(domain.SessionDuration),
	}
	require.False(t, session.IsExpired())

	session.Expiry = time.Now().Add(-time.Minute)
	require.True(t, session.IsExpired())

	// zero expiry means no expiry at all.
	session.Expiry = time.Time{}
	require.False(t, session.IsExpired())
}

func TestSessionHasMethod(t *testing.T) {
	session := &domain.Session{
		Namespaces: map[string]domain.Namespace{
			domain.Eip155: {Methods: []string{domain.MethodPersonalSign}},
		},
	}
	require.True(t, session.HasMethod(domain.MethodPersonalSign))
	require.False(t, session.HasMethod(domain.MethodSendTransaction))
}
