package wsrelay

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/keeperwallet/keeper/internal/core/domain"
)

// Relay bridge JSON-RPC methods.
const (
	methodSessionPropose    = "session_propose"
	methodSessionRequest    = "session_request"
	methodSessionDelete     = "session_delete"
	methodSessionApprove    = "session_approve"
	methodSessionReject     = "session_reject"
	methodSessionRespond    = "session_respond"
	methodSessionDisconnect = "session_disconnect"
)

type request struct {
	Id     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type response struct {
	Id     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *responseErr    `json:"error,omitempty"`
}

func (r response) error() error {
	if r.Error == nil {
		return nil
	}
	return r.Error.Error()
}

type responseErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e responseErr) Error() error {
	if len(e.Message) <= 0 {
		return nil
	}
	return fmt.Errorf("code: %d, message: %s", e.Code, e.Message)
}

type peerMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

func (p peerMeta) toDomain() domain.PeerMeta {
	return domain.PeerMeta{
		Name:        p.Name,
		Description: p.Description,
		URL:         p.URL,
		Icons:       p.Icons,
	}
}

type namespace struct {
	Chains   []string `json:"chains,omitempty"`
	Methods  []string `json:"methods,omitempty"`
	Events   []string `json:"events,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
}

func namespacesToWire(in map[string]domain.Namespace) map[string]namespace {
	out := make(map[string]namespace, len(in))
	for key, ns := range in {
		out[key] = namespace{ns.Chains, ns.Methods, ns.Events, ns.Accounts}
	}
	return out
}

func namespacesToDomain(in map[string]namespace) map[string]domain.Namespace {
	out := make(map[string]domain.Namespace, len(in))
	for key, ns := range in {
		out[key] = domain.Namespace{
			Chains:   ns.Chains,
			Methods:  ns.Methods,
			Events:   ns.Events,
			Accounts: ns.Accounts,
		}
	}
	return out
}

type sessionProposeParams struct {
	Id                 uint64               `json:"id"`
	PairingTopic       string               `json:"pairingTopic"`
	Proposer           peerMeta             `json:"proposer"`
	RequiredNamespaces map[string]namespace `json:"requiredNamespaces"`
}

type sessionRequestParams struct {
	Id      uint64          `json:"id"`
	Topic   string          `json:"topic"`
	ChainId string          `json:"chainId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Peer    peerMeta        `json:"peer"`
}

type sessionDeleteParams struct {
	Topic string `json:"topic"`
}

type sessionApproveParams struct {
	ProposalId uint64               `json:"proposalId"`
	Topic      string               `json:"topic"`
	Namespaces map[string]namespace `json:"namespaces"`
}

type sessionRejectParams struct {
	ProposalId uint64      `json:"proposalId"`
	Error      responseErr `json:"error"`
}

type sessionRespondParams struct {
	Topic     string          `json:"topic"`
	RequestId uint64          `json:"requestId"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *responseErr    `json:"error,omitempty"`
}

type sessionDisconnectParams struct {
	Topic string `json:"topic"`
}

// chHandler routes responses back to the in-flight request that awaits them.
type chHandler struct {
	chReponsesByReqId map[uint64]chan response
	lock              *sync.RWMutex
}

func newChHandler() *chHandler {
	return &chHandler{
		chReponsesByReqId: make(map[uint64]chan response),
		lock:              &sync.RWMutex{},
	}
}

func (h *chHandler) addRequest(req request) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.chReponsesByReqId[req.Id]; !ok {
		h.chReponsesByReqId[req.Id] = make(chan response, 1)
	}
}

func (h *chHandler) getChResponseForReqId(id uint64) chan response {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return h.chReponsesByReqId[id]
}

func (h *chHandler) clearRequest(id uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	delete(h.chReponsesByReqId, id)
}

func (h *chHandler) clear() {
	h.lock.Lock()
	defer h.lock.Unlock()

	for id, ch := range h.chReponsesByReqId {
		close(ch)
		delete(h.chReponsesByReqId, id)
	}
}
