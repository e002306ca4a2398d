package domain

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Supported JSON-RPC signing methods.
const (
	MethodPersonalSign    = "personal_sign"
	MethodEthSign         = "eth_sign"
	MethodSendTransaction = "eth_sendTransaction"
	MethodSignTransaction = "eth_signTransaction"
	MethodSignTypedData   = "eth_signTypedData"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
)

// RequestKind tags the display shape of a formatted request.
type RequestKind int

const (
	RequestMessage RequestKind = iota
	RequestTransaction
	RequestTypedData
)

var requestKindString = map[RequestKind]string{
	RequestMessage:     "message",
	RequestTransaction: "transaction",
	RequestTypedData:   "typedData",
}

func (k RequestKind) String() string {
	return requestKindString[k]
}

// TxParams is the transaction object carried by eth_sendTransaction and
// eth_signTransaction requests. All numeric fields are 0x-prefixed hex, as
// they appear on the wire.
type TxParams struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	Data     string `json:"data,omitempty"`
	Nonce    string `json:"nonce,omitempty"`
}

// FormattedRequest is the display-neutral, strongly-typed form of a raw
// signing request: exactly one of the Message/Transaction/TypedData shapes
// is populated according to Kind.
type FormattedRequest struct {
	Kind        RequestKind
	Address     string
	Message     string
	RawMessage  string
	Transaction *TxParams
	TypedData   json.RawMessage
}

// FormatRequest parses and validates raw JSON-RPC params at the protocol
// boundary into a FormattedRequest. It is pure and side-effect free.
//
// The params order differs between the two plain message methods:
// personal_sign carries [message, address] while eth_sign carries
// [address, message].
func FormatRequest(method string, params []byte) (*FormattedRequest, error) {
	switch method {
	case MethodPersonalSign, MethodEthSign:
		var raw []string
		if err := json.Unmarshal(params, &raw); err != nil || len(raw) < 2 {
			return nil, ErrUnsupportedMethod
		}
		message, address := raw[0], raw[1]
		if method == MethodEthSign {
			address, message = raw[0], raw[1]
		}
		return &FormattedRequest{
			Kind:       RequestMessage,
			Address:    address,
			Message:    decodeMessage(message),
			RawMessage: message,
		}, nil

	case MethodSendTransaction, MethodSignTransaction:
		var raw []TxParams
		if err := json.Unmarshal(params, &raw); err != nil || len(raw) < 1 {
			return nil, ErrUnsupportedMethod
		}
		tx := raw[0]
		return &FormattedRequest{
			Kind:        RequestTransaction,
			Address:     tx.From,
			Transaction: &tx,
		}, nil

	case MethodSignTypedData, MethodSignTypedDataV4:
		var raw []json.RawMessage
		if err := json.Unmarshal(params, &raw); err != nil || len(raw) < 2 {
			return nil, ErrUnsupportedMethod
		}
		var address string
		if err := json.Unmarshal(raw[0], &address); err != nil {
			return nil, ErrUnsupportedMethod
		}
		typedData := raw[1]
		// some peers send the typed data JSON as an escaped string.
		var asString string
		if err := json.Unmarshal(raw[1], &asString); err == nil {
			typedData = json.RawMessage(asString)
		}
		return &FormattedRequest{
			Kind:      RequestTypedData,
			Address:   address,
			TypedData: typedData,
		}, nil

	default:
		return nil, ErrUnsupportedMethod
	}
}

// decodeMessage turns a hex-encoded message into its UTF-8 text when it
// decodes cleanly, otherwise keeps the original representation for display.
func decodeMessage(message string) string {
	if !strings.HasPrefix(message, "0x") {
		return message
	}
	buf, err := hexutil.Decode(message)
	if err != nil || !utf8.Valid(buf) {
		return message
	}
	return string(buf)
}
