package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keeperwallet/keeper/internal/core/domain"
)

func TestFormatMessageRequests(t *testing.T) {
	// personal_sign carries [message, address], eth_sign the reverse.
	formatted, err := domain.FormatRequest(
		domain.MethodPersonalSign,
		[]byte(`["0x68656c6c6f", "`+testAddress+`"]`),
	)
	require.NoError(t, err)
	require.Equal(t, domain.RequestMessage, formatted.Kind)
	require.Equal(t, testAddress, formatted.Address)
	require.Equal(t, "hello", formatted.Message)
	require.Equal(t, "0x68656c6c6f", formatted.RawMessage)

	formatted, err = domain.FormatRequest(
		domain.MethodEthSign,
		[]byte(`["`+testAddress+`", "0x68656c6c6f"]`),
	)
	require.NoError(t, err)
	require.Equal(t, testAddress, formatted.Address)
	require.Equal(t, "hello", formatted.Message)
}

func TestFormatMessageKeepsUndecodableHex(t *testing.T) {
	// not valid utf8 once decoded, the original representation is kept.
	formatted, err := domain.FormatRequest(
		domain.MethodPersonalSign,
		[]byte(`["0xfffe", "`+testAddress+`"]`),
	)
	require.NoError(t, err)
	require.Equal(t, "0xfffe", formatted.Message)

	// plain text passes through untouched.
	formatted, err = domain.FormatRequest(
		domain.MethodPersonalSign,
		[]byte(`["hello", "`+testAddress+`"]`),
	)
	require.NoError(t, err)
	require.Equal(t, "hello", formatted.Message)
}

func TestFormatTransactionRequest(t *testing.T) {
	params := []byte(`[{
		"from": "` + testAddress + `",
		"to": "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		"value": "0x3e8",
		"gas": "0x5208"
	}]`)

	for _, method := range []string{
		domain.MethodSendTransaction, domain.MethodSignTransaction,
	} {
		formatted, err := domain.FormatRequest(method, params)
		require.NoError(t, err)
		require.Equal(t, domain.RequestTransaction, formatted.Kind)
		require.Equal(t, testAddress, formatted.Address)
		require.NotNil(t, formatted.Transaction)
		require.Equal(t, "0x3e8", formatted.Transaction.Value)
		require.Equal(t, "0x5208", formatted.Transaction.Gas)
	}
}

func TestFormatTypedDataRequest(t *testing.T) {
	typedData := `{"types":{"EIP712Domain":[]},"primaryType":"Mail","domain":{},"message":{}}`

	formatted, err := domain.FormatRequest(
		domain.MethodSignTypedDataV4,
		[]byte(`["`+testAddress+`", `+typedData+`]`),
	)
	require.NoError(t, err)
	require.Equal(t, domain.RequestTypedData, formatted.Kind)
	require.Equal(t, testAddress, formatted.Address)
	require.JSONEq(t, typedData, string(formatted.TypedData))

	// some peers wrap the typed data into an escaped JSON string.
	escaped := `"{\"types\":{\"EIP712Domain\":[]},\"primaryType\":\"Mail\",\"domain\":{},\"message\":{}}"`
	formatted, err = domain.FormatRequest(
		domain.MethodSignTypedData,
		[]byte(`["`+testAddress+`", `+escaped+`]`),
	)
	require.NoError(t, err)
	require.JSONEq(t, typedData, string(formatted.TypedData))
}

func TestFormatUnsupportedRequests(t *testing.T) {
	fixtures := []struct {
		method string
		params string
	}{
		{"wallet_switchEthereumChain", `[]`},
		{domain.MethodPersonalSign, `["only one param"]`},
		{domain.MethodPersonalSign, `not json`},
		{domain.MethodSendTransaction, `[]`},
		{domain.MethodSignTypedDataV4, `[42, {}]`},
	}

	for _, f := range fixtures {
		_, err := domain.FormatRequest(f.method, []byte(f.params))
		require.ErrorIs(t, err, domain.ErrUnsupportedMethod)
	}
}
