package bbtconfig

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
)

// ClientConfigName the default configuration file name of the client
const ClientConfigName = "bbtclient.yaml"

// Platform defaults
const (
	DefaultWsHost   = "ws.beebotte.com"
	DefaultAPIHost  = "api.beebotte.com"
	DefaultMqttHost = "mqtt.beebotte.com"
	DefaultPort     = 80  // port for clear text connections
	DefaultSecPort  = 443 // port for TLS connections
	DefaultMqttPort = 1883
	DefaultMqttSec  = 8883
)

// Transports supported by the client
const (
	TransportWebsocket = "ws"
	TransportMqtt      = "mqtt"
)

// ClientConfig with the client connection parameters
type ClientConfig struct {
	// logging
	Loglevel string `yaml:"logLevel"` // debug, info, warning, error. Default is warning
	LogFile  string `yaml:"logFile"`  // client logging to file

	Key      string `yaml:"key"`      // access key of the account
	Username string `yaml:"username"` // optional friendly username

	Transport string `yaml:"transport"` // ws or mqtt, default is ws
	WsHost    string `yaml:"wsHost"`
	APIHost   string `yaml:"apiHost"`
	MqttHost  string `yaml:"mqttHost"`
	Port      int    `yaml:"port"`       // clear text port
	SecPort   int    `yaml:"securePort"` // TLS port
	MqttPort  int    `yaml:"mqttPort"`
	SSL       bool   `yaml:"ssl"`

	AuthEndpoint string `yaml:"authEndpoint"` // URL of the application's signing endpoint
	AuthMethod   string `yaml:"authMethod"`   // get or post, default get
	TimeoutSec   int    `yaml:"timeout"`      // connection and request timeout
}

// GetWsURL returns the websocket URL of the platform
func (config *ClientConfig) GetWsURL() string {
	if config.SSL {
		return fmt.Sprintf("wss://%s:%d", config.WsHost, config.SecPort)
	}
	return fmt.Sprintf("ws://%s:%d", config.WsHost, config.Port)
}

// GetAPIURL returns the REST API base URL of the platform
func (config *ClientConfig) GetAPIURL() string {
	if config.SSL {
		return fmt.Sprintf("https://%s:%d", config.APIHost, config.SecPort)
	}
	return fmt.Sprintf("http://%s:%d", config.APIHost, config.Port)
}

// GetMqttAddress returns the host:port of the MQTT broker.
// With TLS the default port becomes the secure MQTT port.
func (config *ClientConfig) GetMqttAddress() string {
	port := config.MqttPort
	if config.SSL && port == DefaultMqttPort {
		port = DefaultMqttSec
	}
	return fmt.Sprintf("%s:%d", config.MqttHost, port)
}

// CreateDefaultClientConfig with default values
//  key is the access key of the account
func CreateDefaultClientConfig(key string) *ClientConfig {
	config := &ClientConfig{
		Loglevel:   "warning",
		Key:        key,
		Transport:  TransportWebsocket,
		WsHost:     DefaultWsHost,
		APIHost:    DefaultAPIHost,
		MqttHost:   DefaultMqttHost,
		Port:       DefaultPort,
		SecPort:    DefaultSecPort,
		MqttPort:   DefaultMqttPort,
		AuthMethod: api.AuthMethodGet,
		TimeoutSec: 10,
	}
	return config
}

// LoadClientConfig loads the client configuration from file on top of the defaults
//  configFile path to the yaml file
//  substituteMap with template replacements, nil to ignore
// Returns the configuration and error code in case of error
func LoadClientConfig(configFile string, substituteMap map[string]string) (*ClientConfig, error) {
	config := CreateDefaultClientConfig("")
	logrus.Infof("LoadClientConfig: Using %s as client config file", configFile)
	err := LoadConfig(configFile, config, substituteMap)
	if err != nil {
		return config, err
	}
	config.AuthMethod = strings.ToLower(config.AuthMethod)
	return config, ValidateClientConfig(config)
}

// ValidateClientConfig checks if values in the client configuration are correct
// Returns an error if the config is invalid
func ValidateClientConfig(config *ClientConfig) error {
	if config.Key == "" {
		logrus.Warningf("ValidateClientConfig: You must provide your access key")
		return fmt.Errorf("missing access key")
	}
	if config.Transport != TransportWebsocket && config.Transport != TransportMqtt {
		return fmt.Errorf("unsupported transport '%s'", config.Transport)
	}
	if config.AuthMethod != api.AuthMethodGet && config.AuthMethod != api.AuthMethodPost {
		return fmt.Errorf("unsupported authentication method '%s'", config.AuthMethod)
	}
	return nil
}
