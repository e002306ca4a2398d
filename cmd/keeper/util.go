package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	appconfig "github.com/keeperwallet/keeper/internal/app-config"
	"github.com/keeperwallet/keeper/internal/config"
)

var colorRed = string("\033[31m")

func getAppConfig() (*appconfig.AppConfig, func(), error) {
	datadir := config.GetDatadir()
	appCfg := &appconfig.AppConfig{
		Version:     version,
		Commit:      commit,
		Date:        date,
		ChainId:     config.GetString(config.ChainIdKey),
		RpcUrl:      config.GetString(config.RpcUrlKey),
		RelayUrl:    config.GetString(config.RelayUrlKey),
		VaultType:   config.GetString(config.VaultTypeKey),
		VaultConfig: filepath.Join(datadir, config.DbLocation),
	}
	if err := appCfg.Validate(); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		appCfg.SecureVault().Close()
		appCfg.ChainProvider().Close()
	}
	return appCfg, cleanup, nil
}

// promptPin reads the PIN from the terminal without echoing it.
func promptPin(label string) (string, error) {
	fmt.Printf("%s: ", label)
	pin, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println("")
	if err != nil {
		return "", err
	}
	return string(pin), nil
}

func jsonResponse(v interface{}) (string, error) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func printErr(err error) {
	fmt.Fprintf(os.Stderr, "%s%s\n", colorRed, err)
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
