package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/keeperwallet/keeper/internal/core/domain"
	"github.com/keeperwallet/keeper/internal/core/ports"
	"github.com/keeperwallet/keeper/pkg/cryptobox"
)

// JSON-RPC error codes returned to peers.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnsupportedMethod = 4200
	codeProposalRejected  = 5000
	codeInternalError     = -32603
)

var supportedMethods = []string{
	domain.MethodPersonalSign,
	domain.MethodEthSign,
	domain.MethodSendTransaction,
	domain.MethodSignTransaction,
	domain.MethodSignTypedData,
	domain.MethodSignTypedDataV4,
}

// SessionService drives the peer session lifecycle over the relay:
//   - Receive proposals and hold at most one pending at a time.
//   - Approve a proposal into a Session granting exactly the intersection of
//     requested and supported namespaces, or reject it.
//   - Receive signing requests on established sessions, gate them on session
//     validity and granted methods, and hold at most one pending at a time.
//   - Process an approved request through the key vault and the transaction
//     service, answering the peer with exactly one result or error per
//     request id.
//
// A newer proposal or request supersedes the pending one: the superseded
// peer is answered with an error before the new one takes its slot.
type SessionService struct {
	relay     ports.SessionRelay
	keyVault  *KeyVaultService
	txService *TransactionService
	chainID   string

	lock            *sync.Mutex
	sessions        map[string]*domain.Session
	pendingProposal *domain.Proposal
	pendingRequest  *domain.SignRequest
	quit            chan struct{}

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewSessionService(
	relay ports.SessionRelay, keyVault *KeyVaultService,
	txService *TransactionService, chainID string,
) *SessionService {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("session service: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("session service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &SessionService{
		relay:     relay,
		keyVault:  keyVault,
		txService: txService,
		chainID:   chainID,
		lock:      &sync.Mutex{},
		sessions:  make(map[string]*domain.Session),
		quit:      make(chan struct{}),
		log:       logFn,
		warn:      warnFn,
	}
}

// Start connects the relay and begins consuming its event stream.
func (s *SessionService) Start() error {
	if err := s.relay.Start(); err != nil {
		return err
	}
	go s.listenToRelay()
	return nil
}

// Stop tears down the relay connection and the event loop.
func (s *SessionService) Stop() {
	close(s.quit)
	s.relay.Stop()
}

// GetPendingProposal returns the proposal awaiting the user's decision, or
// nil if there is none.
func (s *SessionService) GetPendingProposal() *domain.Proposal {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.pendingProposal
}

// GetPendingRequest returns the signing request awaiting the user's
// decision, or nil if there is none.
func (s *SessionService) GetPendingRequest() *domain.SignRequest {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.pendingRequest
}

// ApproveSession settles the pending proposal by granting the intersection
// of the requested and supported namespaces for the given address, under a
// freshly generated session topic.
func (s *SessionService) ApproveSession(
	ctx context.Context, address string,
) (*domain.Session, error) {
	proposal := s.takePendingProposal()
	if proposal == nil {
		return nil, domain.ErrProposalNotFound
	}

	supportedChains := []string{
		fmt.Sprintf("%s:%s", domain.Eip155, s.chainID),
	}
	namespaces, err := domain.ApproveNamespaces(
		proposal, supportedChains, supportedMethods, address,
	)
	if err != nil {
		return nil, err
	}

	topic := uuid.NewString()
	if err := s.relay.ApproveSession(
		ctx, proposal.ID, topic, namespaces,
	); err != nil {
		return nil, err
	}

	session := &domain.Session{
		Topic:        topic,
		Peer:         proposal.Proposer,
		Namespaces:   namespaces,
		Expiry:       time.Now().Add(domain.SessionDuration),
		Acknowledged: true,
	}

	s.lock.Lock()
	s.sessions[topic] = session
	s.lock.Unlock()

	s.log("approved session %s with peer %s", topic, proposal.Proposer.Name)
	return session, nil
}

// RejectSession settles the pending proposal with a rejection.
func (s *SessionService) RejectSession(ctx context.Context) error {
	proposal := s.takePendingProposal()
	if proposal == nil {
		return domain.ErrProposalNotFound
	}

	if err := s.relay.RejectSession(
		ctx, proposal.ID, codeProposalRejected, "user rejected session proposal",
	); err != nil {
		return err
	}

	s.log("rejected session proposal from peer %s", proposal.Proposer.Name)
	return nil
}

// FormatPendingRequest parses the pending request params into their
// display shape without consuming the request.
func (s *SessionService) FormatPendingRequest() (*domain.FormattedRequest, error) {
	s.lock.Lock()
	request := s.pendingRequest
	s.lock.Unlock()

	if request == nil {
		return nil, domain.ErrRequestNotFound
	}
	return domain.FormatRequest(request.Method, request.Params)
}

// ApproveRequest processes the pending request after verifying the PIN,
// signs or submits through the transaction service, and answers the peer
// with the result. The PIN gate runs strictly before any key material is
// touched. It returns the result handed to the peer.
func (s *SessionService) ApproveRequest(
	ctx context.Context, pin string,
) (string, error) {
	request := s.takePendingRequest()
	if request == nil {
		return "", domain.ErrRequestNotFound
	}

	if !s.keyVault.VerifyPin(ctx, pin) {
		// the request stays unanswered: a mistyped PIN is the user's
		// mistake, not a decision the peer should learn about.
		s.restorePendingRequest(request)
		return "", domain.ErrDecrypt
	}

	result, err := s.processRequest(ctx, request, pin)
	if err != nil {
		s.warn(err, "failed to process request %d", request.ID)
		if rpcErr := s.relay.RespondError(
			ctx, request.Topic, request.ID, codeInternalError, err.Error(),
		); rpcErr != nil {
			s.warn(rpcErr, "failed to respond error for request %d", request.ID)
		}
		return "", err
	}

	buf, err := json.Marshal(result)
	if err == nil {
		err = s.relay.RespondResult(
			ctx, request.Topic, request.ID, json.RawMessage(buf),
		)
	}
	if err != nil {
		// the request is consumed, the peer still gets its one answer.
		s.warn(err, "failed to deliver result for request %d", request.ID)
		if rpcErr := s.relay.RespondError(
			ctx, request.Topic, request.ID, codeInternalError,
			"failed to deliver result",
		); rpcErr != nil {
			s.warn(rpcErr, "failed to respond error for request %d", request.ID)
		}
		return "", err
	}

	s.log("approved request %d on session %s", request.ID, request.Topic)
	return result, nil
}

// RejectRequest settles the pending request with a user rejection.
func (s *SessionService) RejectRequest(ctx context.Context) error {
	request := s.takePendingRequest()
	if request == nil {
		return domain.ErrRequestNotFound
	}

	if err := s.relay.RespondError(
		ctx, request.Topic, request.ID, codeUserRejected, "user rejected request",
	); err != nil {
		return err
	}

	s.log("rejected request %d on session %s", request.ID, request.Topic)
	return nil
}

// ListSessions returns the currently established, non-expired sessions.
func (s *SessionService) ListSessions() []*domain.Session {
	s.lock.Lock()
	defer s.lock.Unlock()

	sessions := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if !session.IsExpired() {
			sessions = append(sessions, session)
		}
	}
	return sessions
}

// DisconnectSession terminates the session with the given topic and
// notifies the peer. Disconnecting an unknown topic is a no-op.
func (s *SessionService) DisconnectSession(ctx context.Context, topic string) error {
	s.lock.Lock()
	_, found := s.sessions[topic]
	delete(s.sessions, topic)
	s.lock.Unlock()

	if !found {
		return nil
	}
	if err := s.relay.DisconnectSession(ctx, topic); err != nil {
		return err
	}

	s.log("disconnected session %s", topic)
	return nil
}

func (s *SessionService) listenToRelay() {
	channel := s.relay.GetEventChannel()
	for {
		select {
		case <-s.quit:
			return
		case event, ok := <-channel:
			if !ok {
				return
			}
			switch event.Type {
			case ports.SessionProposed:
				s.onProposal(event.Proposal)
			case ports.SessionRequested:
				s.onRequest(event.Request)
			case ports.SessionDeleted:
				s.onDelete(event.Topic)
			}
		}
	}
}

func (s *SessionService) onProposal(proposal *domain.Proposal) {
	if proposal == nil {
		return
	}

	s.lock.Lock()
	superseded := s.pendingProposal
	s.pendingProposal = proposal
	s.lock.Unlock()

	if superseded != nil {
		if err := s.relay.RejectSession(
			context.Background(), superseded.ID, codeProposalRejected,
			"superseded by a newer proposal",
		); err != nil {
			s.warn(err, "failed to reject superseded proposal %d", superseded.ID)
		}
	}

	s.log("received session proposal from peer %s", proposal.Proposer.Name)
}

func (s *SessionService) onRequest(request *domain.SignRequest) {
	if request == nil {
		return
	}
	ctx := context.Background()

	s.lock.Lock()
	session, found := s.sessions[request.Topic]
	s.lock.Unlock()

	if !found || session.IsExpired() {
		if err := s.relay.RespondError(
			ctx, request.Topic, request.ID, codeUnauthorized,
			"no established session for topic",
		); err != nil {
			s.warn(err, "failed to respond to request %d", request.ID)
		}
		return
	}
	if !isSupportedMethod(request.Method) {
		if err := s.relay.RespondError(
			ctx, request.Topic, request.ID, codeUnsupportedMethod,
			fmt.Sprintf("method %s is not supported", request.Method),
		); err != nil {
			s.warn(err, "failed to respond to request %d", request.ID)
		}
		return
	}
	if !session.HasMethod(request.Method) {
		if err := s.relay.RespondError(
			ctx, request.Topic, request.ID, codeUnauthorized,
			fmt.Sprintf("method %s was not granted to this session", request.Method),
		); err != nil {
			s.warn(err, "failed to respond to request %d", request.ID)
		}
		return
	}

	s.lock.Lock()
	superseded := s.pendingRequest
	s.pendingRequest = request
	s.lock.Unlock()

	if superseded != nil {
		if err := s.relay.RespondError(
			ctx, superseded.Topic, superseded.ID, codeUserRejected,
			"superseded by a newer request",
		); err != nil {
			s.warn(err, "failed to reject superseded request %d", superseded.ID)
		}
	}

	s.log("received %s request %d on session %s", request.Method, request.ID, request.Topic)
}

func (s *SessionService) onDelete(topic string) {
	s.lock.Lock()
	delete(s.sessions, topic)
	s.lock.Unlock()

	s.log("peer deleted session %s", topic)
}

// processRequest retrieves the key for the request's address, performs the
// requested operation and wipes the key before returning. The PIN has been
// verified by the caller.
func (s *SessionService) processRequest(
	ctx context.Context, request *domain.SignRequest, pin string,
) (string, error) {
	formatted, err := domain.FormatRequest(request.Method, request.Params)
	if err != nil {
		return "", err
	}

	privateKey, err := s.keyVault.RetrievePrivateKey(ctx, formatted.Address, pin)
	if err != nil {
		return "", err
	}
	defer cryptobox.Zero(privateKey)

	switch formatted.Kind {
	case domain.RequestMessage:
		message := []byte(formatted.RawMessage)
		if buf, err := hexutil.Decode(formatted.RawMessage); err == nil {
			message = buf
		}
		return s.txService.SignMessage(privateKey, message)

	case domain.RequestTransaction:
		utx, err := unsignedTxFromParams(formatted.Transaction)
		if err != nil {
			return "", err
		}
		if request.Method == domain.MethodSignTransaction {
			return s.txService.SignTransaction(ctx, privateKey, utx)
		}
		return s.txService.SignAndSend(ctx, privateKey, utx)

	case domain.RequestTypedData:
		return s.txService.SignTypedData(privateKey, formatted.TypedData)

	default:
		return "", domain.ErrUnsupportedMethod
	}
}

func (s *SessionService) takePendingProposal() *domain.Proposal {
	s.lock.Lock()
	defer s.lock.Unlock()

	proposal := s.pendingProposal
	s.pendingProposal = nil
	return proposal
}

func (s *SessionService) takePendingRequest() *domain.SignRequest {
	s.lock.Lock()
	defer s.lock.Unlock()

	request := s.pendingRequest
	s.pendingRequest = nil
	return request
}

func (s *SessionService) restorePendingRequest(request *domain.SignRequest) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.pendingRequest == nil {
		s.pendingRequest = request
	}
}

func isSupportedMethod(method string) bool {
	for _, m := range supportedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// unsignedTxFromParams converts the 0x-hex wire fields of a transaction
// request into an UnsignedTx, leaving omitted fields to be filled from the
// network.
func unsignedTxFromParams(params *domain.TxParams) (*UnsignedTx, error) {
	if params == nil {
		return nil, domain.ErrUnsupportedMethod
	}

	utx := &UnsignedTx{To: params.To}
	if params.Value != "" {
		value, err := hexutil.DecodeBig(params.Value)
		if err != nil {
			return nil, err
		}
		utx.Value = value
	}
	if params.Gas != "" {
		gas, err := hexutil.DecodeUint64(params.Gas)
		if err != nil {
			return nil, err
		}
		utx.GasLimit = gas
	}
	if params.GasPrice != "" {
		gasPrice, err := hexutil.DecodeBig(params.GasPrice)
		if err != nil {
			return nil, err
		}
		utx.GasPrice = gasPrice
	}
	if params.Nonce != "" {
		nonce, err := hexutil.DecodeUint64(params.Nonce)
		if err != nil {
			return nil, err
		}
		utx.Nonce = &nonce
	}
	if params.Data != "" {
		data, err := hexutil.Decode(params.Data)
		if err != nil {
			return nil, err
		}
		utx.Data = data
	}
	return utx, nil
}
