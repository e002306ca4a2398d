package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/keeperwallet/keeper/internal/core/domain"
	"github.com/keeperwallet/keeper/internal/core/ports"
	"github.com/keeperwallet/keeper/pkg/hdwallet"
)

const (
	nativeTransferGas = 21000
	tokenTransferGas  = 65000

	receiptPollInterval = 2 * time.Second

	erc20TransferABI = `[{"constant":false,"inputs":[{"name":"to","type":"address"},` +
		`{"name":"value","type":"uint256"}],"name":"transfer",` +
		`"outputs":[{"name":"","type":"bool"}],"type":"function"}]`
)

var (
	speedSlowFactor = decimal.NewFromFloat(0.8)
	speedFastFactor = decimal.NewFromFloat(1.2)
	// replacement txs must outbid the original by at least 10% to be accepted
	// by the network.
	bumpFactor = decimal.NewFromFloat(1.1)

	erc20ABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(err)
	}
	erc20ABI = parsed
}

// TransactionService builds, signs and submits transactions for the
// connected account-based chain:
//   - Build native and token transfers without touching the network.
//   - Fill nonce, gas limit and gas price from the network, sign and
//     broadcast.
//   - Sign transactions, plain messages and typed data without
//     broadcasting.
//   - Offer slow/normal/fast gas-price tiers.
//   - Cancel or speed up a pending transaction by replacing it at the same
//     nonce with a higher gas price.
//
// Private keys are accepted as raw bytes, used for the duration of a single
// call and never retained, logged or cached. Read-only RPC calls are
// retried once on failure; signing and submission are never retried on
// behalf of the caller, a double submit risks a duplicate transaction.
type TransactionService struct {
	provider ports.ChainProvider

	chainID *big.Int
	lock    *sync.Mutex

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewTransactionService(provider ports.ChainProvider) *TransactionService {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("transaction service: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("transaction service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	return &TransactionService{
		provider: provider,
		lock:     &sync.Mutex{},
		log:      logFn,
		warn:     warnFn,
	}
}

// BuildNativeTransfer constructs an unsigned transfer of the chain's native
// asset. Pure construction: no network and no key access.
func (ts *TransactionService) BuildNativeTransfer(
	to string, amountWei *big.Int, gasPrice *big.Int,
) (*UnsignedTx, error) {
	checksummed, err := hdwallet.ChecksumAddress(to)
	if err != nil {
		return nil, domain.ErrInvalidAddress
	}
	return &UnsignedTx{
		To:       checksummed,
		Value:    amountWei,
		GasLimit: nativeTransferGas,
		GasPrice: gasPrice,
	}, nil
}

// BuildTokenTransfer constructs an unsigned ERC20 transfer call. The human
// amount is scaled by the token decimals.
func (ts *TransactionService) BuildTokenTransfer(
	tokenAddress, to string, amount decimal.Decimal, decimals int32,
	gasPrice *big.Int,
) (*UnsignedTx, error) {
	token, err := hdwallet.ChecksumAddress(tokenAddress)
	if err != nil {
		return nil, domain.ErrInvalidAddress
	}
	if !hdwallet.IsValidAddress(to) {
		return nil, domain.ErrInvalidAddress
	}

	value := amount.Shift(decimals).BigInt()
	data, err := erc20ABI.Pack("transfer", common.HexToAddress(to), value)
	if err != nil {
		return nil, err
	}

	return &UnsignedTx{
		To:       token,
		Value:    big.NewInt(0),
		Data:     data,
		GasLimit: tokenTransferGas,
		GasPrice: gasPrice,
	}, nil
}

// SignAndSend completes the unsigned transaction with network data, signs
// it with the given private key and submits it. It returns the transaction
// hash.
func (ts *TransactionService) SignAndSend(
	ctx context.Context, privateKey []byte, utx *UnsignedTx,
) (string, error) {
	signed, err := ts.fillAndSign(ctx, privateKey, utx, true)
	if err != nil {
		return "", err
	}

	if err := ts.provider.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNetwork, err)
	}

	ts.log("submitted tx %s", signed.Hash().Hex())
	return signed.Hash().Hex(), nil
}

// SignTransaction signs the unsigned transaction without broadcasting it
// and returns the raw signed tx in hex format.
func (ts *TransactionService) SignTransaction(
	ctx context.Context, privateKey []byte, utx *UnsignedTx,
) (string, error) {
	signed, err := ts.fillAndSign(ctx, privateKey, utx, false)
	if err != nil {
		return "", err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(raw), nil
}

// SignMessage signs an off-chain message with the standard personal-message
// prefix and returns the signature in hex format.
func (ts *TransactionService) SignMessage(
	privateKey []byte, message []byte,
) (string, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return "", err
	}
	signature[64] += 27
	return hexutil.Encode(signature), nil
}

// SignTypedData signs an EIP712 typed-data payload and returns the
// signature in hex format.
func (ts *TransactionService) SignTypedData(
	privateKey []byte, typedDataJSON []byte,
) (string, error) {
	var typedData apitypes.TypedData
	if err := json.Unmarshal(typedDataJSON, &typedData); err != nil {
		return "", err
	}
	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", err
	}

	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return "", err
	}
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	signature[64] += 27
	return hexutil.Encode(signature), nil
}

// GetSpeedOptions returns three advisory gas-price tiers derived from the
// current network fee data by fixed multipliers.
func (ts *TransactionService) GetSpeedOptions(
	ctx context.Context,
) (*SpeedOptions, error) {
	base, err := ts.suggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	normal := decimal.NewFromBigInt(base, 0)
	return &SpeedOptions{
		Slow:   SpeedOption{normal.Mul(speedSlowFactor).BigInt(), "~5 min"},
		Normal: SpeedOption{normal.BigInt(), "~2 min"},
		Fast:   SpeedOption{normal.Mul(speedFastFactor).BigInt(), "~30 sec"},
	}, nil
}

// SpeedUpTransaction replaces a pending transaction with an identical one
// at the same nonce and a higher gas price.
func (ts *TransactionService) SpeedUpTransaction(
	ctx context.Context, privateKey []byte, txHash string,
) (string, error) {
	original, err := ts.pendingTxByHash(ctx, txHash)
	if err != nil {
		return "", err
	}

	nonce := original.Nonce()
	to := ""
	if original.To() != nil {
		to = original.To().Hex()
	}
	utx := &UnsignedTx{
		To:       to,
		Value:    original.Value(),
		Data:     original.Data(),
		GasLimit: original.Gas(),
		GasPrice: ts.bumpGasPrice(ctx, original.GasPrice()),
		Nonce:    &nonce,
	}
	return ts.SignAndSend(ctx, privateKey, utx)
}

// CancelTransaction replaces a pending transaction with a zero-value
// transfer to the sender itself at the same nonce and a higher gas price.
func (ts *TransactionService) CancelTransaction(
	ctx context.Context, privateKey []byte, txHash string,
) (string, error) {
	original, err := ts.pendingTxByHash(ctx, txHash)
	if err != nil {
		return "", err
	}

	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return "", err
	}
	self := crypto.PubkeyToAddress(key.PublicKey)

	nonce := original.Nonce()
	utx := &UnsignedTx{
		To:       self.Hex(),
		Value:    big.NewInt(0),
		GasLimit: nativeTransferGas,
		GasPrice: ts.bumpGasPrice(ctx, original.GasPrice()),
		Nonce:    &nonce,
	}
	return ts.SignAndSend(ctx, privateKey, utx)
}

// GetTransactionStatus reports whether the transaction is pending,
// confirmed or failed, based on receipt presence and receipt status. A
// missing receipt means pending; a transport failure is an error, not a
// verdict on the transaction.
func (ts *TransactionService) GetTransactionStatus(
	ctx context.Context, txHash string,
) (TxStatus, error) {
	receipt, err := ts.provider.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return TxStatusPending, nil
		}
		return "", fmt.Errorf("%w: %s", domain.ErrNetwork, err)
	}
	if receipt == nil {
		return TxStatusPending, nil
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return TxStatusConfirmed, nil
	}
	return TxStatusFailed, nil
}

// WaitForConfirmation polls the transaction status until it reaches a
// terminal state or the timeout expires, in which case it reports pending
// rather than hanging indefinitely.
func (ts *TransactionService) WaitForConfirmation(
	ctx context.Context, txHash string, timeout time.Duration,
) (TxStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		status, err := ts.GetTransactionStatus(ctx, txHash)
		if err != nil {
			// transient network failures do not end the wait.
			ts.warn(err, "status poll for %s failed", txHash)
		} else if status != TxStatusPending {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return TxStatusPending, nil
		case <-ticker.C:
		}
	}
}

// GetBalance returns the native balance of the given address in wei.
func (ts *TransactionService) GetBalance(
	ctx context.Context, address string,
) (*big.Int, error) {
	if !hdwallet.IsValidAddress(address) {
		return nil, domain.ErrInvalidAddress
	}
	var balance *big.Int
	err := ts.withRetry(func() (err error) {
		balance, err = ts.provider.GetBalance(ctx, common.HexToAddress(address))
		return
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNetwork, err)
	}
	return balance, nil
}

func (ts *TransactionService) fillAndSign(
	ctx context.Context, privateKey []byte, utx *UnsignedTx, checkBalance bool,
) (*types.Transaction, error) {
	if utx == nil || !hdwallet.IsValidAddress(utx.To) {
		return nil, domain.ErrInvalidAddress
	}

	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := ts.getChainID(ctx)
	if err != nil {
		return nil, err
	}

	nonce := uint64(0)
	if utx.Nonce != nil {
		nonce = *utx.Nonce
	} else {
		if err := ts.withRetry(func() (err error) {
			nonce, err = ts.provider.PendingNonceAt(ctx, from)
			return
		}); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNetwork, err)
		}
	}

	gasPrice := utx.GasPrice
	if gasPrice == nil {
		if gasPrice, err = ts.suggestGasPrice(ctx); err != nil {
			return nil, err
		}
	}

	to := common.HexToAddress(utx.To)
	value := utx.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := utx.GasLimit
	if gasLimit == 0 {
		call := ethereum.CallMsg{From: from, To: &to, Value: value, Data: utx.Data}
		if err := ts.withRetry(func() (err error) {
			gasLimit, err = ts.provider.EstimateGas(ctx, call)
			return
		}); err != nil {
			ts.warn(err, "gas estimation failed, falling back to default limit")
			gasLimit = nativeTransferGas
			if len(utx.Data) > 0 {
				gasLimit = tokenTransferGas
			}
		}
	}

	if checkBalance {
		balance, err := ts.provider.GetBalance(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNetwork, err)
		}
		cost := new(big.Int).Add(
			value, new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit)),
		)
		if balance.Cmp(cost) < 0 {
			return nil, domain.ErrInsufficientBalance
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     utx.Data,
	})
	return types.SignTx(tx, types.NewEIP155Signer(chainID), key)
}

func (ts *TransactionService) pendingTxByHash(
	ctx context.Context, txHash string,
) (*types.Transaction, error) {
	tx, pending, err := ts.provider.TransactionByHash(ctx, common.HexToHash(txHash))
	if err != nil || tx == nil {
		return nil, domain.ErrTxNotFound
	}
	if !pending {
		return nil, fmt.Errorf("transaction %s is already mined", txHash)
	}
	return tx, nil
}

// bumpGasPrice returns the replacement price for an RBF resubmission: at
// least 10% over the original, or the current suggested price if higher.
func (ts *TransactionService) bumpGasPrice(
	ctx context.Context, original *big.Int,
) *big.Int {
	bumped := decimal.NewFromBigInt(original, 0).Mul(bumpFactor).Ceil().BigInt()
	if suggested, err := ts.suggestGasPrice(ctx); err == nil && suggested.Cmp(bumped) > 0 {
		return suggested
	}
	return bumped
}

func (ts *TransactionService) suggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := ts.withRetry(func() (err error) {
		price, err = ts.provider.SuggestGasPrice(ctx)
		return
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNetwork, err)
	}
	return price, nil
}

func (ts *TransactionService) getChainID(ctx context.Context) (*big.Int, error) {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	if ts.chainID != nil {
		return ts.chainID, nil
	}
	chainID, err := ts.provider.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNetwork, err)
	}
	ts.chainID = chainID
	return chainID, nil
}

// withRetry runs an idempotent read call, retrying once on failure.
func (ts *TransactionService) withRetry(fn func() error) error {
	if err := fn(); err != nil {
		return fn()
	}
	return nil
}
