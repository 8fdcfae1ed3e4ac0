package bbtconfig

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
)

// DefaultEnvFile is the optional file with environment variables of the auth server
const DefaultEnvFile = ".env"

// AuthServerConfigName the default configuration file name of the auth server
const AuthServerConfigName = "bbtauth.yaml"

// DefaultAuthServerPort is used when neither the config nor the PORT environment sets one
const DefaultAuthServerPort = 8000

// Environment variables available as {{.name}} in the auth server configuration file
const (
	EnvPort      = "PORT"
	EnvKeyID     = "AKEY"
	EnvSecretKey = "SKEY"
)

// AuthServerConfig with the signing server parameters
type AuthServerConfig struct {
	Loglevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`

	Address      string `yaml:"address"`      // listening address, default all
	Port         int    `yaml:"port"`         // listening port
	AuthPath     string `yaml:"authPath"`     // route of the signing endpoint
	StaticFolder string `yaml:"staticFolder"` // folder with the web client files, "" to disable

	KeyID     string `yaml:"keyId"`     // access key of the account
	SecretKey string `yaml:"secretKey"` // secret key used for signing
}

// CreateDefaultAuthServerConfig with default values
func CreateDefaultAuthServerConfig() *AuthServerConfig {
	return &AuthServerConfig{
		Loglevel: "info",
		Port:     DefaultAuthServerPort,
		AuthPath: api.DefaultAuthPath,
	}
}

// LoadEnvFile adds the variables of an env file to the environment.
// Variables that are already set in the environment take precedence.
func LoadEnvFile(envFile string) error {
	err := godotenv.Load(envFile)
	if err != nil {
		logrus.Infof("LoadEnvFile: Not using env file %s: %s", envFile, err)
		return err
	}
	logrus.Infof("LoadEnvFile: Loaded environment from %s", envFile)
	return nil
}

// EnvSubstituteMap returns the template substitutions taken from the environment
func EnvSubstituteMap() map[string]string {
	substituteMap := make(map[string]string)
	for _, name := range []string{EnvPort, EnvKeyID, EnvSecretKey} {
		substituteMap[name] = os.Getenv(name)
	}
	return substituteMap
}

// LoadAuthServerConfig loads the auth server configuration on top of the defaults.
// The configuration file can refer to environment variables, eg secretKey: "{{.SKEY}}".
// The PORT environment variable overrides the port when the file doesn't set one.
func LoadAuthServerConfig(configFile string) (*AuthServerConfig, error) {
	config := CreateDefaultAuthServerConfig()
	config.Port = 0
	substituteMap := EnvSubstituteMap()
	err := LoadConfig(configFile, config, substituteMap)
	if config.Port == 0 {
		config.Port = DefaultAuthServerPort
		if envPort, err2 := strconv.Atoi(substituteMap[EnvPort]); err2 == nil && envPort > 0 {
			config.Port = envPort
		}
	}
	if err != nil {
		return config, err
	}
	return config, ValidateAuthServerConfig(config)
}

// ValidateAuthServerConfig checks if values in the auth server configuration are correct
func ValidateAuthServerConfig(config *AuthServerConfig) error {
	if config.KeyID == "" || config.SecretKey == "" {
		err := fmt.Errorf("missing access key or secret key")
		logrus.Errorf("ValidateAuthServerConfig: %s", err)
		return err
	}
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port %d", config.Port)
	}
	if config.StaticFolder != "" {
		if _, err := os.Stat(config.StaticFolder); os.IsNotExist(err) {
			logrus.Errorf("ValidateAuthServerConfig: Static folder '%s' not found", config.StaticFolder)
			return err
		}
	}
	return nil
}
