package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	appconfig "github.com/keeperwallet/keeper/internal/app-config"
	"github.com/keeperwallet/keeper/internal/core/application"
	"github.com/keeperwallet/keeper/pkg/cryptobox"
)

var (
	fromAddress   string
	toAddress     string
	amount        string
	tokenAddress  string
	tokenDecimals int32
	txHash        string
	waitTimeout   time.Duration

	txSendCmd = &cobra.Command{
		Use:   "send",
		Short: "send native funds",
		Long: "this command signs and broadcasts a transfer of the native " +
			"asset, with nonce and fees filled from the network",
		RunE: txSend,
	}
	txSendTokenCmd = &cobra.Command{
		Use:   "sendtoken",
		Short: "send token funds",
		Long: "this command signs and broadcasts an ERC20 transfer, with " +
			"nonce and fees filled from the network",
		RunE: txSendToken,
	}
	txSpeedUpCmd = &cobra.Command{
		Use:   "speedup",
		Short: "speed up a pending transaction",
		Long: "this command replaces a pending transaction with an identical " +
			"one at the same nonce and a higher gas price",
		RunE: txSpeedUp,
	}
	txCancelCmd = &cobra.Command{
		Use:   "cancel",
		Short: "cancel a pending transaction",
		Long: "this command replaces a pending transaction with a zero-value " +
			"transfer to yourself at the same nonce and a higher gas price",
		RunE: txCancel,
	}
	txStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "get the status of a transaction",
		Long: "this command reports whether a transaction is pending, confirmed " +
			"or failed, optionally waiting for it to reach a terminal state",
		RunE: txStatus,
	}
	txOptionsCmd = &cobra.Command{
		Use:   "options",
		Short: "get the current gas-price tiers",
		Long: "this command returns the slow, normal and fast gas-price tiers " +
			"derived from the current network fee data",
		RunE: txOptions,
	}
	txCmd = &cobra.Command{
		Use:   "tx",
		Short: "interact with the transaction interface",
		Long: "this command lets you send, speed up and cancel transactions, " +
			"as long as checking their status and the current fee tiers",
	}
)

func init() {
	for _, cmd := range []*cobra.Command{txSendCmd, txSendTokenCmd} {
		cmd.Flags().StringVar(&fromAddress, "from", "", "sender wallet address")
		cmd.Flags().StringVar(&toAddress, "to", "", "recipient address")
		cmd.Flags().StringVar(&amount, "amount", "", "amount to send")
		cmd.MarkFlagRequired("from")
		cmd.MarkFlagRequired("to")
		cmd.MarkFlagRequired("amount")
	}
	txSendTokenCmd.Flags().StringVar(&tokenAddress, "token", "", "token contract address")
	txSendTokenCmd.Flags().Int32Var(&tokenDecimals, "decimals", 18, "token decimals")
	txSendTokenCmd.MarkFlagRequired("token")

	for _, cmd := range []*cobra.Command{txSpeedUpCmd, txCancelCmd} {
		cmd.Flags().StringVar(&fromAddress, "from", "", "sender wallet address")
		cmd.Flags().StringVar(&txHash, "hash", "", "hash of the pending transaction")
		cmd.MarkFlagRequired("from")
		cmd.MarkFlagRequired("hash")
	}

	txStatusCmd.Flags().StringVar(&txHash, "hash", "", "transaction hash")
	txStatusCmd.Flags().DurationVar(
		&waitTimeout, "wait", 0,
		"wait up to this long for the transaction to confirm, eg. 90s",
	)
	txStatusCmd.MarkFlagRequired("hash")

	txCmd.AddCommand(
		txSendCmd, txSendTokenCmd, txSpeedUpCmd, txCancelCmd, txStatusCmd,
		txOptionsCmd,
	)
}

func txSend(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	amountWei, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount, must be an integer number of wei")
	}

	utx, err := appCfg.TransactionService().BuildNativeTransfer(
		toAddress, amountWei, nil,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	pin, err := promptPin("PIN")
	if err != nil {
		return err
	}

	ctx := context.Background()
	privateKey, err := appCfg.KeyVaultService().RetrievePrivateKey(
		ctx, fromAddress, pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}
	defer cryptobox.Zero(privateKey)

	hash, err := appCfg.TransactionService().SignAndSend(ctx, privateKey, utx)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(hash)
	return nil
}

func txSendToken(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	tokenAmount, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %s", err)
	}

	utx, err := appCfg.TransactionService().BuildTokenTransfer(
		tokenAddress, toAddress, tokenAmount, tokenDecimals, nil,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	pin, err := promptPin("PIN")
	if err != nil {
		return err
	}

	ctx := context.Background()
	privateKey, err := appCfg.KeyVaultService().RetrievePrivateKey(
		ctx, fromAddress, pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}
	defer cryptobox.Zero(privateKey)

	hash, err := appCfg.TransactionService().SignAndSend(ctx, privateKey, utx)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(hash)
	return nil
}

func txSpeedUp(cmd *cobra.Command, args []string) error {
	return replaceTx(func(ctx context.Context, appCfg *appconfig.AppConfig, privateKey []byte) (string, error) {
		return appCfg.TransactionService().SpeedUpTransaction(ctx, privateKey, txHash)
	})
}

func txCancel(cmd *cobra.Command, args []string) error {
	return replaceTx(func(ctx context.Context, appCfg *appconfig.AppConfig, privateKey []byte) (string, error) {
		return appCfg.TransactionService().CancelTransaction(ctx, privateKey, txHash)
	})
}

func txStatus(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	var status application.TxStatus
	if waitTimeout > 0 {
		status, err = appCfg.TransactionService().WaitForConfirmation(
			ctx, txHash, waitTimeout,
		)
	} else {
		status, err = appCfg.TransactionService().GetTransactionStatus(ctx, txHash)
	}
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(status)
	return nil
}

func txOptions(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	options, err := appCfg.TransactionService().GetSpeedOptions(
		context.Background(),
	)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Printf("slow:   %s wei (%s)\n", options.Slow.GasPrice, options.Slow.Label)
	fmt.Printf("normal: %s wei (%s)\n", options.Normal.GasPrice, options.Normal.Label)
	fmt.Printf("fast:   %s wei (%s)\n", options.Fast.GasPrice, options.Fast.Label)
	return nil
}

func replaceTx(
	replace func(context.Context, *appconfig.AppConfig, []byte) (string, error),
) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	pin, err := promptPin("PIN")
	if err != nil {
		return err
	}

	ctx := context.Background()
	privateKey, err := appCfg.KeyVaultService().RetrievePrivateKey(
		ctx, fromAddress, pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}
	defer cryptobox.Zero(privateKey)

	hash, err := replace(ctx, appCfg, privateKey)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(hash)
	return nil
}
