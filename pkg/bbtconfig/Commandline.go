package bbtconfig

import (
	"flag"
	"strings"
)

// ConfigFileArg returns the configuration file given with the -c commandline argument.
// This is read before the flags are parsed so the flags can override the loaded configuration.
//  args is the commandline without the program name
//  defaultFile is returned when -c isn't given
func ConfigFileArg(args []string, defaultFile string) string {
	for index, arg := range args {
		if (arg == "-c" || arg == "--c") && index+1 < len(args) {
			return args[index+1]
		}
		if strings.HasPrefix(arg, "-c=") {
			return strings.TrimPrefix(arg, "-c=")
		}
	}
	return defaultFile
}

// SetClientCommandlineArgs adds commandline flags that override the client configuration
//
// -c            /path/to/bbtclient.yaml configuration file, see ConfigFileArg
// -key          access key
// -username     friendly username
// -transport    ws or mqtt
// -wsHost       websocket host
// -apiHost      REST API host
// -ssl          use TLS
// -auth         auth endpoint URL
// -authMethod   get or post
// -logFile      /path/to/bbtclient.log optional logfile
// -logLevel     warning   for extra logging
func SetClientCommandlineArgs(flags *flag.FlagSet, config *ClientConfig) {
	flags.String("c", ClientConfigName, "Client configuration `file`")
	flags.StringVar(&config.Key, "key", config.Key, "Access key of the account")
	flags.StringVar(&config.Username, "username", config.Username, "Friendly username")
	flags.StringVar(&config.Transport, "transport", config.Transport, "Transport: {`ws`|mqtt}")
	flags.StringVar(&config.WsHost, "wsHost", config.WsHost, "Websocket server hostname")
	flags.StringVar(&config.APIHost, "apiHost", config.APIHost, "REST API server hostname")
	flags.StringVar(&config.MqttHost, "mqttHost", config.MqttHost, "MQTT broker hostname")
	flags.BoolVar(&config.SSL, "ssl", config.SSL, "Use TLS connections")
	flags.StringVar(&config.AuthEndpoint, "auth", config.AuthEndpoint, "Auth endpoint `URL` for signing subscriptions")
	flags.StringVar(&config.AuthMethod, "authMethod", config.AuthMethod, "Auth method: {`get`|post}")
	flags.StringVar(&config.LogFile, "logFile", config.LogFile, "Log to file")
	flags.StringVar(&config.Loglevel, "logLevel", config.Loglevel, "Loglevel: {error|`warning`|info|debug}")
}

// SetAuthServerCommandlineArgs adds commandline flags that override the auth server configuration
//
// -c            /path/to/bbtauth.yaml configuration file, see ConfigFileArg
// -address      listening address
// -port         listening port
// -static       folder with the web client
// -logFile      /path/to/bbtauth.log optional logfile
// -logLevel     info
func SetAuthServerCommandlineArgs(flags *flag.FlagSet, config *AuthServerConfig) {
	flags.String("c", AuthServerConfigName, "Auth server configuration `file`")
	flags.StringVar(&config.Address, "address", config.Address, "Listening address")
	flags.IntVar(&config.Port, "port", config.Port, "Listening port")
	flags.StringVar(&config.StaticFolder, "static", config.StaticFolder, "Static web client `folder`")
	flags.StringVar(&config.LogFile, "logFile", config.LogFile, "Log to file")
	flags.StringVar(&config.Loglevel, "logLevel", config.Loglevel, "Loglevel: {error|warning|`info`|debug}")
}
