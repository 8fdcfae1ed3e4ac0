// bbtauth is the signing server for web clients that subscribe to private resources or
// request write access. It also serves the static web client files.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/pkg/authserver"
	"github.com/wostzone/bbtclient-go/pkg/bbtconfig"
	"github.com/wostzone/bbtclient-go/pkg/discovery"
	"github.com/wostzone/bbtclient-go/pkg/signing"
	"github.com/wostzone/bbtclient-go/pkg/watcher"
)

// loadConfig loads the configuration file, or uses the defaults and environment when the
// file doesn't exist
func loadConfig(configFile string) (*bbtconfig.AuthServerConfig, error) {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		logrus.Warningf("loadConfig: %s not found. Using environment", configFile)
		config := bbtconfig.CreateDefaultAuthServerConfig()
		env := bbtconfig.EnvSubstituteMap()
		config.KeyID = env[bbtconfig.EnvKeyID]
		config.SecretKey = env[bbtconfig.EnvSecretKey]
		return config, nil
	}
	return bbtconfig.LoadAuthServerConfig(configFile)
}

func main() {
	// the keys can be provided in an env file instead of the environment
	_ = bbtconfig.LoadEnvFile(bbtconfig.DefaultEnvFile)
	configFile := bbtconfig.ConfigFileArg(os.Args[1:], bbtconfig.AuthServerConfigName)
	config, err := loadConfig(configFile)
	if err != nil {
		logrus.Fatalf("bbtauth: Unable to load configuration: %s", err)
	}
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	bbtconfig.SetAuthServerCommandlineArgs(flags, config)
	tick := flags.Duration("metrics.tick", 60*time.Second, "metrics: duration between reports")
	_ = flags.Parse(os.Args[1:])

	_ = bbtconfig.SetLogging(config.Loglevel, config.LogFile)
	if err = bbtconfig.ValidateAuthServerConfig(config); err != nil {
		logrus.Fatalf("bbtauth: Invalid configuration: %s", err)
	}

	srv := authserver.NewAuthServer(config.Address, config.Port, config.AuthPath, config.StaticFolder,
		signing.NewSigner(config.KeyID, config.SecretKey))
	if err = srv.Start(); err != nil {
		logrus.Fatalf("bbtauth: %s", err)
	}
	for _, url := range discovery.ListenURLs(config.Address, config.Port) {
		logrus.Infof("bbtauth: Serving %s%s", url, config.AuthPath)
	}

	// the signing keys can be replaced without a restart
	fw, err := watcher.WatchFile(configFile, 0, func() error {
		newConfig, err := bbtconfig.LoadAuthServerConfig(configFile)
		if err != nil {
			return err
		}
		srv.SetSigner(signing.NewSigner(newConfig.KeyID, newConfig.SecretKey))
		return nil
	})
	if err != nil {
		logrus.Warningf("bbtauth: configuration changes are not applied until restart")
	}

	go gometrics.WriteJSON(srv.Metrics(), *tick, os.Stderr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	if fw != nil {
		fw.Close()
	}
	srv.Stop()
	gometrics.WriteJSONOnce(srv.Metrics(), os.Stderr)
}
