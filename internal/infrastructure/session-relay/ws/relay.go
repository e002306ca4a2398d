package wsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/keeperwallet/keeper/internal/core/domain"
	"github.com/keeperwallet/keeper/internal/core/ports"
)

const requestTimeout = 15 * time.Second

type service struct {
	addr      string
	conn      *websocket.Conn
	nextId    uint64
	chHandler *chHandler
	chEvents  chan ports.RelayEvent

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewSessionRelay returns the websocket implementation of
// ports.SessionRelay, connecting to the relay bridge at the given address.
func NewSessionRelay(addr string) ports.SessionRelay {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("session relay: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("session relay: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &service{
		addr:      addr,
		chHandler: newChHandler(),
		chEvents:  make(chan ports.RelayEvent, 10),
		log:       logFn,
		warn:      warnFn,
	}
}

func (s *service) Start() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.addr, nil)
	if err != nil {
		return fmt.Errorf("connecting to relay: %w", err)
	}
	s.conn = conn

	go s.listen()

	s.log("connected to relay %s", s.addr)
	return nil
}

func (s *service) Stop() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.chHandler.clear()
}

func (s *service) GetEventChannel() chan ports.RelayEvent {
	return s.chEvents
}

func (s *service) ApproveSession(
	ctx context.Context, proposalID uint64, sessionTopic string,
	namespaces map[string]domain.Namespace,
) error {
	resp, err := s.request(ctx, methodSessionApprove, sessionApproveParams{
		ProposalId: proposalID,
		Topic:      sessionTopic,
		Namespaces: namespacesToWire(namespaces),
	})
	if err != nil {
		return err
	}
	return resp.error()
}

func (s *service) RejectSession(
	ctx context.Context, proposalID uint64, code int, message string,
) error {
	resp, err := s.request(ctx, methodSessionReject, sessionRejectParams{
		ProposalId: proposalID,
		Error:      responseErr{code, message},
	})
	if err != nil {
		return err
	}
	return resp.error()
}

func (s *service) RespondResult(
	ctx context.Context, topic string, requestID uint64, result json.RawMessage,
) error {
	resp, err := s.request(ctx, methodSessionRespond, sessionRespondParams{
		Topic:     topic,
		RequestId: requestID,
		Result:    result,
	})
	if err != nil {
		return err
	}
	return resp.error()
}

func (s *service) RespondError(
	ctx context.Context, topic string, requestID uint64, code int, message string,
) error {
	resp, err := s.request(ctx, methodSessionRespond, sessionRespondParams{
		Topic:     topic,
		RequestId: requestID,
		Error:     &responseErr{code, message},
	})
	if err != nil {
		return err
	}
	return resp.error()
}

func (s *service) DisconnectSession(ctx context.Context, topic string) error {
	resp, err := s.request(ctx, methodSessionDisconnect, sessionDisconnectParams{
		Topic: topic,
	})
	if err != nil {
		return err
	}
	return resp.error()
}

func (s *service) listen() {
	for {
		var resp response
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(
				err, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived,
			) {
				s.warn(err, "connection dropped")
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		if err := json.Unmarshal(msg, &resp); err != nil {
			s.warn(err, "failed to parse message from socket")
			continue
		}

		if len(resp.Method) > 0 {
			s.dispatchEvent(resp)
			continue
		}

		if chResp := s.chHandler.getChResponseForReqId(resp.Id); chResp != nil {
			chResp <- resp
		}
	}
}

func (s *service) dispatchEvent(resp response) {
	switch resp.Method {
	case methodSessionPropose:
		var params sessionProposeParams
		if err := json.Unmarshal(resp.Params, &params); err != nil {
			s.warn(err, "failed to parse session proposal")
			return
		}
		s.chEvents <- ports.RelayEvent{
			Type: ports.SessionProposed,
			Proposal: &domain.Proposal{
				ID:                 params.Id,
				PairingTopic:       params.PairingTopic,
				Proposer:           params.Proposer.toDomain(),
				RequiredNamespaces: namespacesToDomain(params.RequiredNamespaces),
			},
		}

	case methodSessionRequest:
		var params sessionRequestParams
		if err := json.Unmarshal(resp.Params, &params); err != nil {
			s.warn(err, "failed to parse session request")
			return
		}
		s.chEvents <- ports.RelayEvent{
			Type: ports.SessionRequested,
			Request: &domain.SignRequest{
				ID:      params.Id,
				Topic:   params.Topic,
				ChainID: params.ChainId,
				Method:  params.Method,
				Params:  params.Params,
				Peer:    params.Peer.toDomain(),
			},
		}

	case methodSessionDelete:
		var params sessionDeleteParams
		if err := json.Unmarshal(resp.Params, &params); err != nil {
			s.warn(err, "failed to parse session delete")
			return
		}
		s.chEvents <- ports.RelayEvent{
			Type:  ports.SessionDeleted,
			Topic: params.Topic,
		}

	default:
		s.log("ignoring unknown notification %s", resp.Method)
	}
}

func (s *service) request(
	ctx context.Context, method string, params interface{},
) (*response, error) {
	req := request{atomic.AddUint64(&s.nextId, 1), method, params}
	// the response channel must exist before the request hits the wire, the
	// reader may route the response back before WriteJSON returns.
	s.chHandler.addRequest(req)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer func() {
		cancel()
		s.chHandler.clearRequest(req.Id)
	}()

	if err := s.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("sending %s request: %w", method, err)
	}

	select {
	case resp := <-s.chHandler.getChResponseForReqId(req.Id):
		return &resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request timed out")
	}
}
