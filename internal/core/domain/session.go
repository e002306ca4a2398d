package domain

import (
	"fmt"
	"time"
)

const (
	// Eip155 is the namespace key of the reference account-based chain family.
	Eip155 = "eip155"

	// SessionDuration is how long an approved session stays valid.
	SessionDuration = 7 * 24 * time.Hour
)

// PeerMeta describes the application on the other end of a session.
type PeerMeta struct {
	Name        string
	Description string
	URL         string
	Icons       []string
}

// Namespace is the set of chains, methods and events a peer requests, or the
// set the wallet granted together with the authorized accounts.
type Namespace struct {
	Chains   []string
	Methods  []string
	Events   []string
	Accounts []string
}

// Proposal is a peer's request to establish a signing relationship. It is
// transient: it exists only between receipt and the user's decision.
type Proposal struct {
	ID                 uint64
	PairingTopic       string
	Proposer           PeerMeta
	RequiredNamespaces map[string]Namespace
}

// Session is an established signing relationship with a peer, keyed by
// topic. At most one Session exists per topic.
type Session struct {
	Topic        string
	Peer         PeerMeta
	Namespaces   map[string]Namespace
	Expiry       time.Time
	Acknowledged bool
}

// IsExpired reports whether the session passed its expiry.
func (s *Session) IsExpired() bool {
	return !s.Expiry.IsZero() && time.Now().After(s.Expiry)
}

// HasMethod reports whether the given method was granted in any namespace.
func (s *Session) HasMethod(method string) bool {
	for _, ns := range s.Namespaces {
		for _, m := range ns.Methods {
			if m == method {
				return true
			}
		}
	}
	return false
}

// SignRequest is a peer's signing/transaction request, transient between
// receipt and the user's decision.
type SignRequest struct {
	ID      uint64
	Topic   string
	ChainID string
	Method  string
	Params  []byte
	Peer    PeerMeta
}

// ApproveNamespaces reconciles the proposal's required namespaces against
// the wallet's supported chains and methods, granting for the given address
// exactly the intersection: never a chain or method the peer did not
// request, never one the wallet does not support.
func ApproveNamespaces(
	proposal *Proposal, supportedChains, supportedMethods []string,
	address string,
) (map[string]Namespace, error) {
	if proposal == nil {
		return nil, ErrProposalNotFound
	}

	approved := make(map[string]Namespace)
	for key, required := range proposal.RequiredNamespaces {
		chains := intersect(required.Chains, supportedChains)
		methods := intersect(required.Methods, supportedMethods)
		accounts := make([]string, 0, len(chains))
		for _, chain := range chains {
			accounts = append(accounts, fmt.Sprintf("%s:%s", chain, address))
		}
		approved[key] = Namespace{
			Chains:   chains,
			Methods:  methods,
			Events:   required.Events,
			Accounts: accounts,
		}
	}
	return approved, nil
}

func intersect(requested, supported []string) []string {
	out := make([]string, 0, len(requested))
	for _, r := range requested {
		for _, s := range supported {
			if r == s {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
