// bbtshell is an interactive client for subscribing and publishing to platform resources
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/pkg/bbtclient"
	"github.com/wostzone/bbtclient-go/pkg/bbtconfig"
)

func main() {
	configFile := bbtconfig.ConfigFileArg(os.Args[1:], bbtconfig.ClientConfigName)
	config := bbtconfig.CreateDefaultClientConfig("")
	if _, err := os.Stat(configFile); err == nil {
		// validation is repeated after the commandline overrides
		config, err = bbtconfig.LoadClientConfig(configFile, nil)
		if err != nil {
			logrus.Warningf("bbtshell: configuration %s: %s", configFile, err)
		}
	}
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	bbtconfig.SetClientCommandlineArgs(flags, config)
	_ = flags.Parse(os.Args[1:])
	if err := bbtconfig.ValidateClientConfig(config); err != nil {
		logrus.Fatalf("bbtshell: Invalid configuration: %s", err)
	}

	client := bbtclient.NewBBTClient(config)
	shell, err := NewShell(client)
	if err != nil {
		logrus.Fatalf("bbtshell: %s", err)
	}
	_ = bbtconfig.SetLogging(config.Loglevel, config.LogFile)
	if config.LogFile == "" {
		logrus.SetOutput(shell.rl.Stderr())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.TimeoutSec)*time.Second)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		logrus.Errorf("bbtshell: Unable to connect: %s", err)
	}
	shell.Run()
	client.Disconnect()
}
