package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	mnemonic string
	address  string

	walletCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "create a brand new wallet",
		Long: "this command lets you create a new wallet from scratch with a " +
			"random mnemonic, protected by your choosen PIN. The mnemonic is " +
			"printed once, back it up",
		RunE: walletCreate,
	}
	walletImportCmd = &cobra.Command{
		Use:   "import",
		Short: "import a wallet from an existing mnemonic",
		Long: "this command lets you restore a wallet from a mnemonic backup, " +
			"protected by your choosen PIN",
		RunE: walletImport,
	}
	walletListCmd = &cobra.Command{
		Use:   "list",
		Short: "list the known wallets",
		Long:  "this command returns the list of wallets stored on this device",
		RunE:  walletList,
	}
	walletDeleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "delete a wallet",
		Long: "this command removes the encrypted key of the given wallet " +
			"from this device",
		RunE: walletDelete,
	}
	walletShowMnemonicCmd = &cobra.Command{
		Use:   "showmnemonic",
		Short: "reveal the mnemonic backup",
		Long: "this command prints the mnemonic of the wallet after verifying " +
			"your PIN",
		RunE: walletShowMnemonic,
	}
	walletBalanceCmd = &cobra.Command{
		Use:   "balance",
		Short: "get the balance of a wallet",
		Long:  "this command returns the native balance of the given wallet in wei",
		RunE:  walletBalance,
	}
	walletCmd = &cobra.Command{
		Use:   "wallet",
		Short: "interact with the wallet interface",
		Long: "this command lets you create, import, list and delete wallets, " +
			"as long as revealing the mnemonic backup",
	}
)

func init() {
	walletImportCmd.Flags().StringVar(
		&mnemonic, "mnemonic", "", "space separated word list as wallet seed",
	)
	walletImportCmd.MarkFlagRequired("mnemonic")

	walletDeleteCmd.Flags().StringVar(&address, "address", "", "wallet address")
	walletDeleteCmd.MarkFlagRequired("address")

	walletBalanceCmd.Flags().StringVar(&address, "address", "", "wallet address")
	walletBalanceCmd.MarkFlagRequired("address")

	walletCmd.AddCommand(
		walletCreateCmd, walletImportCmd, walletListCmd, walletDeleteCmd,
		walletShowMnemonicCmd, walletBalanceCmd,
	)
}

func walletCreate(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	pin, err := promptPin("choose a PIN")
	if err != nil {
		return err
	}

	created, err := appCfg.WalletService().CreateNewWallet(
		context.Background(), pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println("")
	fmt.Printf("address: %s\n", created.Address)
	fmt.Printf("mnemonic: %s\n", created.Mnemonic)
	fmt.Println("")
	fmt.Println("write down your mnemonic, it is shown only once")
	return nil
}

func walletImport(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	pin, err := promptPin("choose a PIN")
	if err != nil {
		return err
	}

	created, err := appCfg.WalletService().ImportWalletFromMnemonic(
		context.Background(), mnemonic, pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println("")
	fmt.Printf("address: %s\n", created.Address)
	return nil
}

func walletList(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	registry, err := appCfg.KeyVaultService().GetWalletList(context.Background())
	if err != nil {
		printErr(err)
		return nil
	}

	jsonReply, err := jsonResponse(registry)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Println(jsonReply)
	return nil
}

func walletDelete(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := appCfg.KeyVaultService().DeleteWallet(
		context.Background(), address,
	); err != nil {
		printErr(err)
		return nil
	}

	fmt.Println("wallet deleted")
	return nil
}

func walletShowMnemonic(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	pin, err := promptPin("PIN")
	if err != nil {
		return err
	}

	mnemonic, err := appCfg.KeyVaultService().RetrieveMnemonic(
		context.Background(), pin,
	)
	if err != nil {
		printErr(err)
		return nil
	}
	if len(mnemonic) == 0 {
		fmt.Println("no mnemonic stored")
		return nil
	}

	fmt.Println(mnemonic)
	return nil
}

func walletBalance(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getAppConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	balance, err := appCfg.TransactionService().GetBalance(
		context.Background(), address,
	)
	if err != nil {
		printErr(err)
		return nil
	}

	fmt.Printf("%s wei\n", balance)
	return nil
}
