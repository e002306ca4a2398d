package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keeperwallet/keeper/pkg/cryptobox"
)

var (
	message   string
	typedData string

	signMessageCmd = &cobra.Command{
		Use:   "message",
		Short: "sign an off-chain message",
		Long: "this command signs a plain message with the standard " +
			"personal-message prefix",
		RunE: signMessage,
	}
	signTypedDataCmd = &cobra.Command{
		Use:   "typeddata",
		Short: "sign a typed-data payload",
		Long:  "this command signs an EIP712 typed-data payload given as JSON",
		RunE:  signTypedData,
	}
	signCmd = &cobra.Command{
		Use:   "sign",
		Short: "interact with the signing interface",
		Long:  "this command lets you sign off-chain messages and typed data",
	}
)

func init() {
	for _, cmd := range []*cobra.Command{signMessageCmd, signTypedDataCmd} {
		cmd.Flags().StringVar(&fromAddress, "from", "", "signer wallet address")
		cmd.MarkFlagRequired("from")
	}
	signMessageCmd.Flags().StringVar(&message, "message", "", "message to sign")
	signMessageCmd.MarkFlagRequired("message")
	signTypedDataCmd.Flags().StringVar(&typedData, "data", "", "typed data JSON")
	signTypedDataCmd.MarkFlagRequired("data")

	signCmd.AddCommand(signMessageCmd, signTypedDataCmd)
}

func signMessage(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	pin, err := promptPin("PIN")
	if err != nil {
		return err
	}

	privateKey, err := appCfg.KeyVaultService().RetrievePrivateKey(
		context.Background(), fromAddress, pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}
	defer cryptobox.Zero(privateKey)

	signature, err := appCfg.TransactionService().SignMessage(
		privateKey, []byte(message),
	)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(signature)
	return nil
}

func signTypedData(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	pin, err := promptPin("PIN")
	if err != nil {
		return err
	}

	privateKey, err := appCfg.KeyVaultService().RetrievePrivateKey(
		context.Background(), fromAddress, pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}
	defer cryptobox.Zero(privateKey)

	signature, err := appCfg.TransactionService().SignTypedData(
		privateKey, []byte(typedData),
	)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(signature)
	return nil
}
