package ports

import (
	"context"
	"encoding/json"

	"github.com/keeperwallet/keeper/internal/core/domain"
)

// RelayEventType enumerates the events delivered by the session relay.
type RelayEventType int

const (
	SessionProposed RelayEventType = iota
	SessionRequested
	SessionDeleted
)

var relayEventTypeString = map[RelayEventType]string{
	SessionProposed:  "session_proposal",
	SessionRequested: "session_request",
	SessionDeleted:   "session_delete",
}

func (t RelayEventType) String() string {
	return relayEventTypeString[t]
}

// RelayEvent is one inbound event from the relay. Exactly one of Proposal,
// Request or Topic is meaningful depending on the type.
type RelayEvent struct {
	Type     RelayEventType
	Proposal *domain.Proposal
	Request  *domain.SignRequest
	Topic    string
}

// SessionRelay is the abstraction for the underlying session-relay protocol
// client: it delivers proposals, requests and deletions as an ordered event
// stream, and accepts the wallet's responses keyed by topic/id.
type SessionRelay interface {
	// Start connects to the relay and begins delivering events.
	Start() error
	// Stop closes the connection.
	Stop()
	// GetEventChannel returns the inbound event stream. Events are delivered
	// in receipt order.
	GetEventChannel() chan RelayEvent

	// ApproveSession settles a proposal with the granted namespaces over the
	// given session topic.
	ApproveSession(
		ctx context.Context, proposalID uint64, sessionTopic string,
		namespaces map[string]domain.Namespace,
	) error
	// RejectSession settles a proposal with an error code and reason.
	RejectSession(ctx context.Context, proposalID uint64, code int, message string) error
	// RespondResult answers a session request with a JSON-RPC result.
	RespondResult(ctx context.Context, topic string, requestID uint64, result json.RawMessage) error
	// RespondError answers a session request with a JSON-RPC error.
	RespondError(ctx context.Context, topic string, requestID uint64, code int, message string) error
	// DisconnectSession notifies the peer that the session is terminated.
	DisconnectSession(ctx context.Context, topic string) error
}
