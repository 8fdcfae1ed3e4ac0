package mqtttransport

import (
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// SetClientFactory replaces the paho client constructor
func (t *MqttTransport) SetClientFactory(newClient func(opts *pahomqtt.ClientOptions) pahomqtt.Client) {
	t.newClient = newClient
}
