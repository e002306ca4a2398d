package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	appconfig "github.com/keeperwallet/keeper/internal/app-config"
	"github.com/keeperwallet/keeper/internal/config"
	"github.com/keeperwallet/keeper/pkg/profiler"
)

var (
	// Build info.
	version string
	commit  string
	date    string

	// Config from env vars.
	vaultType     = config.GetString(config.VaultTypeKey)
	rpcURL        = config.GetString(config.RpcUrlKey)
	relayURL      = config.GetString(config.RelayUrlKey)
	chainID       = config.GetString(config.ChainIdKey)
	logLevel      = config.GetInt(config.LogLevelKey)
	datadir       = config.GetDatadir()
	profilerPort  = config.GetInt(config.ProfilerPortKey)
	noProfiler    = config.GetBool(config.NoProfilerKey)
	dbDir         = filepath.Join(datadir, config.DbLocation)
	profilerDir   = filepath.Join(datadir, config.ProfilerLocation)
	statsInterval = time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
)

func main() {
	log.SetLevel(log.Level(logLevel))

	if profilerEnabled := !noProfiler; profilerEnabled {
		profilerSvc, err := profiler.NewService(profiler.ServiceOpts{
			Port:          profilerPort,
			StatsInterval: statsInterval,
			Datadir:       profilerDir,
		})
		if err != nil {
			log.WithError(err).Fatal("profiler: error while starting")
		}

		profilerSvc.Start()
		defer func() {
			profilerSvc.Stop()
		}()
	}

	appCfg := &appconfig.AppConfig{
		Version:     version,
		Commit:      commit,
		Date:        date,
		ChainId:     chainID,
		RpcUrl:      rpcURL,
		RelayUrl:    relayURL,
		VaultType:   vaultType,
		VaultConfig: dbDir,
	}
	if err := appCfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid app config")
	}
	defer func() {
		appCfg.SecureVault().Close()
		appCfg.ChainProvider().Close()
	}()

	if sessionSvc := appCfg.SessionService(); sessionSvc != nil {
		if err := sessionSvc.Start(); err != nil {
			log.WithError(err).Fatal("session service: error while starting")
		}
		defer sessionSvc.Stop()

		log.Infof("session service: listening to relay %s", relayURL)
	} else {
		log.Info("no relay url configured, peer sessions disabled")
	}

	log.Infof("keeperd version %s started", version)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
}
