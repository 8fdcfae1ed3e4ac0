// Package bbtconfig with the client and auth server configuration and logging setup
package bbtconfig

import (
	"bytes"
	"io/ioutil"
	"text/template"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// LoadConfig loads the configuration from file into the given config
//  configFile path to yaml configuration file
//  config interface to typed structure matching the config. Must have yaml tags
//  substituteMap map to substitute {{.key}} with value from map, nil to ignore
// Returns nil if successful
func LoadConfig(configFile string, config interface{}, substituteMap map[string]string) error {
	rawConfig, err := ioutil.ReadFile(configFile)
	if err != nil {
		logrus.Infof("LoadConfig: Unable to load config file: %s", err)
		return err
	}
	logrus.Infof("LoadConfig: Loaded config file '%s'", configFile)
	rawText := string(rawConfig)
	if substituteMap != nil {
		rawText, err = SubstituteText(rawText, substituteMap)
		if err != nil {
			logrus.Errorf("LoadConfig: Invalid template in config file '%s': %s", configFile, err)
			return err
		}
	}

	err = yaml.Unmarshal([]byte(rawText), config)
	if err != nil {
		logrus.Errorf("LoadConfig: Error parsing config file '%s': %s", configFile, err)
		return err
	}
	return nil
}

// SubstituteText replaces template strings in the text
//  text to substitute template strings, eg "hello {{.destination}}"
//  substituteMap with replacement keywords, eg {"destination":"world"}
// Returns text with template strings replaced. Unknown keys are replaced with an empty string.
func SubstituteText(text string, substituteMap map[string]string) (string, error) {
	var msg bytes.Buffer

	tpl, err := template.New("").Option("missingkey=zero").Parse(text)
	if err != nil {
		return text, err
	}
	err = tpl.Execute(&msg, substituteMap)
	if err != nil {
		return text, err
	}
	return msg.String(), nil
}
