package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the key to customize the keeper datadir.
	DatadirKey = "DATADIR"
	// VaultTypeKey is the key to customize the type of secure vault to use.
	VaultTypeKey = "VAULT_TYPE"
	// RpcUrlKey is the key to set the JSON-RPC endpoint of the chain node to
	// connect to.
	RpcUrlKey = "RPC_URL"
	// RelayUrlKey is the key to set the websocket address of the session
	// relay bridge. If empty, peer sessions are disabled.
	RelayUrlKey = "RELAY_URL"
	// ChainIdKey is the key to customize the id of the target chain.
	ChainIdKey = "CHAIN_ID"
	// LogLevelKey is the key to customize the log level to catch more specific
	// or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// NoProfilerKey is the key to disable Prometheus profiling.
	NoProfilerKey = "NO_PROFILER"
	// ProfilerPortKey is the key to customize the port where the profiler will
	// be listening to.
	ProfilerPortKey = "PROFILER_PORT"
	// StatsIntervalKey is the key to customize the interval for the profiler to
	// gather profiling stats.
	StatsIntervalKey = "STATS_INTERVAL"

	// DbLocation is the folder inside the datadir containing vault db files.
	DbLocation = "db"
	// ProfilerLocation is the folder inside the datadir containing profiler
	// stats files.
	ProfilerLocation = "stats"
)

var (
	vip *viper.Viper

	defaultDatadir       = btcutil.AppDataDir("keeperd", false)
	defaultVaultType     = "badger"
	defaultChainId       = "1"
	defaultLogLevel      = 4
	defaultProfilerPort  = 18001
	defaultStatsInterval = 600 // 10 minutes

	SupportedVaults = supportedType{
		"badger":   {},
		"inmemory": {},
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("KEEPER")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(VaultTypeKey, defaultVaultType)
	vip.SetDefault(ChainIdKey, defaultChainId)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(NoProfilerKey, false)
	vip.SetDefault(ProfilerPortKey, defaultProfilerPort)
	vip.SetDefault(StatsIntervalKey, defaultStatsInterval)

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	vaultType := GetString(VaultTypeKey)
	if _, ok := SupportedVaults[vaultType]; !ok {
		return fmt.Errorf("unsupported vault type, must be one of %s", SupportedVaults)
	}

	chainId := GetString(ChainIdKey)
	if len(chainId) <= 0 {
		return fmt.Errorf("chain id must not be null")
	}

	return nil
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func Unset(key string) {
	vip.Set(key, nil)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	noProfiler := GetBool(NoProfilerKey)
	if !noProfiler {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return fmt.Sprintf("%v", types)
}
