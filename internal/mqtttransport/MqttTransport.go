// Package mqtttransport with the MQTT binding of the platform frames
package mqtttransport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
)

// DefaultTimeoutSec constant with connection and disconnection timeouts
const DefaultTimeoutSec = 3

// Time a keep alive ping is sent. This is the max wait time to discover a broken connection
const DefaultKeepAliveSec = 10

// mqtt wildcard for a single topic level
const topicWildcard = "+"

// ErrNotConnected is returned when sending without a connection
var ErrNotConnected = errors.New("no connection with broker")

// MqttTransport maps the platform frames onto MQTT topics 'device/service/resource'.
//   - control subscribe and unsubscribe become MQTT (un)subscriptions
//   - stream emit and write are published to the resource topic
//   - inbound messages are converted to {device, service, resource, data}
//
// The broker authenticates the client with the access key on connect, control
// authenticate frames are therefore accepted without being sent.
type MqttTransport struct {
	hostPort string
	key      string
	username string
	useTLS   bool
	qos      byte
	timeout  time.Duration

	newClient  func(opts *pahomqtt.ClientOptions) pahomqtt.Client
	mu         sync.Mutex
	pahoClient pahomqtt.Client
	clientID   string
	listener   api.ITransportListener
}

// frameData holds the fields of any frame data relevant to the MQTT binding
type frameData struct {
	Device   string          `json:"device"`
	Service  string          `json:"service"`
	Resource string          `json:"resource"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// ResourceTopic returns the MQTT topic of a resource. Wildcards become single level wildcards.
func ResourceTopic(device, service, resource string) string {
	levels := []string{device, service, resource}
	for i, level := range levels {
		if level == api.Wildcard || level == "" {
			levels[i] = topicWildcard
		}
	}
	return strings.Join(levels, "/")
}

// InboundMessage converts a received MQTT message to the platform message format.
// A JSON payload is passed as-is in the data field, other payloads as a string.
func InboundMessage(topic string, payload []byte) ([]byte, error) {
	levels := strings.Split(topic, "/")
	if len(levels) != 3 {
		return nil, fmt.Errorf("topic '%s' is not device/service/resource", topic)
	}
	data := json.RawMessage(payload)
	if !json.Valid(payload) {
		data, _ = json.Marshal(string(payload))
	}
	return json.Marshal(frameData{
		Device:   levels[0],
		Service:  levels[1],
		Resource: levels[2],
		Data:     data,
	})
}

// Start connecting to the broker.
// Paho reconnects automatically after a connection loss and the listener is notified of
// each (re)connect. Start does nothing while the client is connected or reconnecting.
// A client that gave up is disconnected and replaced.
func (t *MqttTransport) Start(ctx context.Context, listener api.ITransportListener) error {
	hostName, _ := os.Hostname()
	timeStamp := time.Now().UnixNano() / 1000000
	clientID := fmt.Sprintf("%s-%s-%d", hostName, t.username, timeStamp)

	brokerURL := fmt.Sprintf("tcp://%s", t.hostPort)
	if t.useTLS {
		brokerURL = fmt.Sprintf("ssl://%s", t.hostPort)
	}
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(t.timeout)
	opts.SetMaxReconnectInterval(60 * time.Second)
	// The connection replays the subscriptions after each connect
	opts.SetCleanSession(true)
	opts.SetKeepAlive(DefaultKeepAliveSec * time.Second)
	opts.SetOrderMatters(true)
	opts.SetUsername(t.key)
	if t.useTLS {
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		logrus.Warningf("MqttTransport.onConnect: Connected to broker at %s. ClientId=%s", brokerURL, clientID)
		listener.OnConnect()
	})
	opts.SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
		logrus.Warningf("MqttTransport.onConnectionLost: Disconnected from broker %s. Error %s, ClientId=%s",
			brokerURL, err, clientID)
		listener.OnDisconnect(err)
	})

	t.mu.Lock()
	previous := t.pahoClient
	// paho's IsConnected includes reconnecting with auto reconnect enabled
	if previous != nil && (previous.IsConnectionOpen() || previous.IsConnected()) {
		logrus.Infof("MqttTransport.Start: Client %s is already connected or reconnecting", t.clientID)
		t.mu.Unlock()
		return nil
	}
	t.listener = listener
	t.clientID = clientID
	t.pahoClient = t.newClient(opts)
	client := t.pahoClient
	t.mu.Unlock()

	if previous != nil {
		logrus.Infof("MqttTransport.Start: Disconnecting the previous client")
		previous.Disconnect(0)
	}

	logrus.Infof("MqttTransport.Start: Connecting to MQTT broker: %s with clientID=%s", brokerURL, clientID)
	timeout := t.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("connecting to %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		logrus.Errorf("MqttTransport.Start: Connecting to broker on %s failed: %s", brokerURL, err)
		return err
	}
	return nil
}

// Stop disconnects from the broker
func (t *MqttTransport) Stop() {
	t.mu.Lock()
	client := t.pahoClient
	listener := t.listener
	t.pahoClient = nil
	t.mu.Unlock()

	if client != nil {
		logrus.Warningf("MqttTransport.Stop: Client %s", t.clientID)
		client.Disconnect(DefaultTimeoutSec * 1000)
		if listener != nil {
			listener.OnDisconnect(nil)
		}
	}
}

// Send maps the frame onto the MQTT operations
func (t *MqttTransport) Send(frame *api.Frame) error {
	t.mu.Lock()
	client := t.pahoClient
	listener := t.listener
	t.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	raw, err := json.Marshal(frame.Data)
	if err != nil {
		return err
	}
	fd := frameData{}
	if err = json.Unmarshal(raw, &fd); err != nil {
		return err
	}
	topic := ResourceTopic(fd.Device, fd.Service, fd.Resource)

	var token pahomqtt.Token
	switch frame.Channel + "/" + frame.Event {
	case api.ChannelControl + "/" + api.EventSubscribe:
		logrus.Infof("MqttTransport.Send: subscribe topic %s", topic)
		token = client.Subscribe(topic, t.qos, func(c pahomqtt.Client, msg pahomqtt.Message) {
			payload, err := InboundMessage(msg.Topic(), msg.Payload())
			if err != nil {
				logrus.Warningf("MqttTransport.onMessage: %s", err)
				return
			}
			listener.OnMessage(payload)
		})
	case api.ChannelControl + "/" + api.EventUnsubscribe:
		logrus.Infof("MqttTransport.Send: unsubscribe topic %s", topic)
		token = client.Unsubscribe(topic)
	case api.ChannelControl + "/" + api.EventAuthenticate:
		return nil
	case api.ChannelStream + "/" + api.EventEmit:
		token = client.Publish(topic, t.qos, false, []byte(fd.Data))
	case api.ChannelStream + "/" + api.EventWrite:
		message, err := json.Marshal(map[string]interface{}{"data": fd.Data, "write": true})
		if err != nil {
			return err
		}
		token = client.Publish(topic, t.qos, false, message)
	default:
		return fmt.Errorf("unsupported frame %s/%s", frame.Channel, frame.Event)
	}
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("%s/%s on topic %s: timeout", frame.Channel, frame.Event, topic)
	}
	return token.Error()
}

// SessionID returns the MQTT client ID of the connection
func (t *MqttTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pahoClient == nil || !t.pahoClient.IsConnected() {
		return ""
	}
	return t.clientID
}

// IsConnected returns the broker connection status
func (t *MqttTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pahoClient != nil && t.pahoClient.IsConnected()
}

// SetUsername sets the friendly username used in the client ID of the next connect
func (t *MqttTransport) SetUsername(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.username = username
}

// NewMqttTransport creates a new MQTT transport instance
//  hostPort of the broker
//  key is the access key used to authenticate with the broker
//  username is the optional friendly username
//  useTLS to connect with TLS
//  timeoutSec of connection and requests, 0 for the default
func NewMqttTransport(hostPort string, key string, username string, useTLS bool, timeoutSec int) *MqttTransport {
	if timeoutSec <= 0 {
		timeoutSec = DefaultTimeoutSec
	}
	return &MqttTransport{
		hostPort:  hostPort,
		key:       key,
		username:  username,
		useTLS:    useTLS,
		qos:       1,
		timeout:   time.Duration(timeoutSec) * time.Second,
		newClient: pahomqtt.NewClient,
	}
}
