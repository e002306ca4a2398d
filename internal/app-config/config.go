package appconfig

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/keeperwallet/keeper/internal/config"
	"github.com/keeperwallet/keeper/internal/core/application"
	"github.com/keeperwallet/keeper/internal/core/ports"
	ethprovider "github.com/keeperwallet/keeper/internal/infrastructure/chain-provider/eth"
	vaultbadger "github.com/keeperwallet/keeper/internal/infrastructure/secure-vault/badger"
	vaultinmemory "github.com/keeperwallet/keeper/internal/infrastructure/secure-vault/inmemory"
	wsrelay "github.com/keeperwallet/keeper/internal/infrastructure/session-relay/ws"
)

// AppConfig is the struct holding all configuration options for every
// application service (key vault, wallet, transaction and session).
// This data structure acts also as a factory of the mentioned application
// services and the portable services used by them.
// Public config args:
//   - ChainId - (required) The id of the target chain.
//   - RpcUrl - (required) The JSON-RPC endpoint of the chain node.
//   - RelayUrl - (optional) The websocket address of the session relay
//     bridge. If empty, the session service is not available.
//   - VaultType - (required) One of the supported secure vault types.
//   - VaultConfig - (optional) Custom config args for the secure vault based
//     on its type.
type AppConfig struct {
	Version string
	Commit  string
	Date    string

	ChainId  string
	RpcUrl   string
	RelayUrl string

	VaultType   string
	VaultConfig interface{}

	vault      ports.SecureVault
	provider   ports.ChainProvider
	relay      ports.SessionRelay
	keyVault   *application.KeyVaultService
	walletSvc  *application.WalletService
	txSvc      *application.TransactionService
	sessionSvc *application.SessionService
}

func (c *AppConfig) Validate() error {
	if len(c.ChainId) == 0 {
		return fmt.Errorf("missing chain id")
	}
	if len(c.RpcUrl) == 0 {
		return fmt.Errorf("missing rpc url")
	}
	if len(c.VaultType) == 0 {
		return fmt.Errorf("missing vault type")
	}
	if _, ok := config.SupportedVaults[c.VaultType]; !ok {
		return fmt.Errorf(
			"vault type not supported, must be one of: %s", config.SupportedVaults,
		)
	}
	if _, err := c.secureVault(); err != nil {
		return err
	}
	if _, err := c.chainProvider(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) SecureVault() ports.SecureVault {
	vault, _ := c.secureVault()
	return vault
}

func (c *AppConfig) ChainProvider() ports.ChainProvider {
	provider, _ := c.chainProvider()
	return provider
}

func (c *AppConfig) KeyVaultService() *application.KeyVaultService {
	return c.keyVaultService()
}

func (c *AppConfig) WalletService() *application.WalletService {
	return c.walletService()
}

func (c *AppConfig) TransactionService() *application.TransactionService {
	return c.transactionService()
}

// SessionService returns the session service, or nil if no relay url was
// configured.
func (c *AppConfig) SessionService() *application.SessionService {
	return c.sessionService()
}

func (c *AppConfig) BuildInfo() application.BuildInfo {
	return application.BuildInfo{
		Version: c.Version, Commit: c.Commit, Date: c.Date,
	}
}

func (c *AppConfig) secureVault() (ports.SecureVault, error) {
	if c.vault != nil {
		return c.vault, nil
	}

	switch c.VaultType {
	case "inmemory":
		c.vault = vaultinmemory.NewSecureVault()
		return c.vault, nil
	case "badger":
		if c.VaultConfig == nil {
			return nil, fmt.Errorf("missing vault config args")
		}
		datadir, ok := c.VaultConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid vault config type, must be string")
		}
		vault, err := vaultbadger.NewSecureVault(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.vault = vault
		return c.vault, nil
	default:
		return nil, fmt.Errorf("unknown vault type")
	}
}

func (c *AppConfig) chainProvider() (ports.ChainProvider, error) {
	if c.provider != nil {
		return c.provider, nil
	}

	provider, err := ethprovider.NewChainProvider(c.RpcUrl)
	if err != nil {
		return nil, err
	}
	c.provider = provider
	return c.provider, nil
}

func (c *AppConfig) sessionRelay() ports.SessionRelay {
	if c.relay != nil {
		return c.relay
	}
	if len(c.RelayUrl) == 0 {
		return nil
	}
	c.relay = wsrelay.NewSessionRelay(c.RelayUrl)
	return c.relay
}

func (c *AppConfig) keyVaultService() *application.KeyVaultService {
	if c.keyVault != nil {
		return c.keyVault
	}

	vault, _ := c.secureVault()
	c.keyVault = application.NewKeyVaultService(vault)
	return c.keyVault
}

func (c *AppConfig) walletService() *application.WalletService {
	if c.walletSvc != nil {
		return c.walletSvc
	}

	c.walletSvc = application.NewWalletService(c.keyVaultService())
	return c.walletSvc
}

func (c *AppConfig) transactionService() *application.TransactionService {
	if c.txSvc != nil {
		return c.txSvc
	}

	provider, _ := c.chainProvider()
	c.txSvc = application.NewTransactionService(provider)
	return c.txSvc
}

func (c *AppConfig) sessionService() *application.SessionService {
	if c.sessionSvc != nil {
		return c.sessionSvc
	}

	relay := c.sessionRelay()
	if relay == nil {
		return nil
	}
	c.sessionSvc = application.NewSessionService(
		relay, c.keyVaultService(), c.transactionService(), c.ChainId,
	)
	return c.sessionSvc
}
