package bbtconfig_test

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wostzone/bbtclient-go/api"
	"github.com/wostzone/bbtclient-go/pkg/bbtconfig"
)

func getConfigFolder() string {
	wd, _ := os.Getwd()
	return path.Join(wd, "../../test/config")
}

func TestDefaultClientConfig(t *testing.T) {
	cc := bbtconfig.CreateDefaultClientConfig("key1")
	require.NotNil(t, cc)
	err := bbtconfig.ValidateClientConfig(cc)
	assert.NoError(t, err)
	assert.Equal(t, "ws://ws.beebotte.com:80", cc.GetWsURL())
	assert.Equal(t, "http://api.beebotte.com:80", cc.GetAPIURL())
	assert.Equal(t, "mqtt.beebotte.com:1883", cc.GetMqttAddress())

	cc.SSL = true
	assert.Equal(t, "wss://ws.beebotte.com:443", cc.GetWsURL())
	assert.Equal(t, "https://api.beebotte.com:443", cc.GetAPIURL())
	assert.Equal(t, "mqtt.beebotte.com:8883", cc.GetMqttAddress())
}

func TestDefaultClientConfigNoKey(t *testing.T) {
	cc := bbtconfig.CreateDefaultClientConfig("")
	err := bbtconfig.ValidateClientConfig(cc)
	assert.Error(t, err)
}

func TestLoadClientConfig(t *testing.T) {
	configFile := path.Join(getConfigFolder(), bbtconfig.ClientConfigName)
	cc, err := bbtconfig.LoadClientConfig(configFile, nil)
	require.NoError(t, err)
	assert.Equal(t, "testkey", cc.Key)
	assert.Equal(t, "tester", cc.Username)
	assert.Equal(t, "info", cc.Loglevel)
	assert.Equal(t, api.AuthMethodPost, cc.AuthMethod)
	assert.Equal(t, "ws://localhost:8080", cc.GetWsURL())
	// not in the file
	assert.Equal(t, bbtconfig.DefaultMqttHost, cc.MqttHost)
}

func TestSubstitute(t *testing.T) {
	substMap := map[string]string{"clientID": "client1", "key": "key1"}
	cc := bbtconfig.CreateDefaultClientConfig("")
	templateFile := path.Join(getConfigFolder(), "bbtclient-template.yaml")
	err := bbtconfig.LoadConfig(templateFile, cc, substMap)
	assert.NoError(t, err)
	assert.Equal(t, "/var/log/client1.log", cc.LogFile)
	assert.Equal(t, "key1", cc.Key)
}

func TestSubstituteMissingKey(t *testing.T) {
	text, err := bbtconfig.SubstituteText("hello {{.who}}", map[string]string{})
	assert.NoError(t, err)
	assert.Equal(t, "hello ", text)

	_, err = bbtconfig.SubstituteText("hello {{.who", map[string]string{})
	assert.Error(t, err)
}

func TestLoadClientConfigNotFound(t *testing.T) {
	configFile := path.Join(getConfigFolder(), "bbtclient-notfound.yaml")
	_, err := bbtconfig.LoadClientConfig(configFile, nil)
	assert.Error(t, err, "Configfile should not be found")
}

func TestLoadClientConfigYamlError(t *testing.T) {
	configFile := path.Join(getConfigFolder(), "bbtclient-bad.yaml")
	cc := bbtconfig.CreateDefaultClientConfig("")
	err := bbtconfig.LoadConfig(configFile, cc, nil)
	assert.Error(t, err)
}

func TestValidateClientConfigBadValues(t *testing.T) {
	cc := bbtconfig.CreateDefaultClientConfig("key1")
	cc2 := *cc
	cc2.Transport = "carrierpigeon"
	assert.Error(t, bbtconfig.ValidateClientConfig(&cc2))

	cc2 = *cc
	cc2.AuthMethod = "put"
	assert.Error(t, bbtconfig.ValidateClientConfig(&cc2))

	cc2 = *cc
	cc2.Transport = bbtconfig.TransportMqtt
	assert.NoError(t, bbtconfig.ValidateClientConfig(&cc2))
}
