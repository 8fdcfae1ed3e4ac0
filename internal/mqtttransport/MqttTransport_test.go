package mqtttransport_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wostzone/bbtclient-go/api"
	"github.com/wostzone/bbtclient-go/internal/mqtttransport"
)

type nopListener struct{}

func (nopListener) OnConnect() {
}
func (nopListener) OnDisconnect(error) {
}
func (nopListener) OnMessage([]byte) {
}

func TestResourceTopic(t *testing.T) {
	assert.Equal(t, "dev1/svc1/res1", mqtttransport.ResourceTopic("dev1", "svc1", "res1"))
	assert.Equal(t, "dev1/svc1/+", mqtttransport.ResourceTopic("dev1", "svc1", "*"))
	assert.Equal(t, "dev1/+/+", mqtttransport.ResourceTopic("dev1", "*", ""))
}

func TestInboundMessage(t *testing.T) {
	payload, err := mqtttransport.InboundMessage("dev1/svc1/res1", []byte(`{"temp":21}`))
	require.NoError(t, err)
	msg, err := api.ParseMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "dev1", msg.Device)
	assert.Equal(t, "svc1", msg.Service)
	assert.Equal(t, "res1", msg.Resource)
	assert.JSONEq(t, `{"temp":21}`, string(msg.Data))

	// non-json payload becomes a string
	payload, err = mqtttransport.InboundMessage("dev1/svc1/res1", []byte("hello"))
	require.NoError(t, err)
	msg, err = api.ParseMessage(payload)
	require.NoError(t, err)
	var text string
	err = json.Unmarshal(msg.Data, &text)
	assert.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = mqtttransport.InboundMessage("dev1/svc1", []byte("hello"))
	assert.Error(t, err)
}

func TestSendNotConnected(t *testing.T) {
	tp := mqtttransport.NewMqttTransport("localhost:1", "key1", "user1", false, 1)
	err := tp.Send(api.NewFrame(api.ChannelStream, api.EventEmit,
		api.StreamData{Device: "dev1", Service: "svc1", Resource: "res1", Data: 1}))
	assert.ErrorIs(t, err, mqtttransport.ErrNotConnected)
	assert.False(t, tp.IsConnected())
	assert.Empty(t, tp.SessionID())
}

func TestStartNoBroker(t *testing.T) {
	tp := mqtttransport.NewMqttTransport("127.0.0.1:1", "key1", "user1", false, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := tp.Start(ctx, nopListener{})
	assert.Error(t, err)
	assert.False(t, tp.IsConnected())
	tp.Stop()
}

// fakeToken completes immediately with the given error
type fakeToken struct {
	pahomqtt.Token
	err error
}

func (tk *fakeToken) Wait() bool {
	return true
}

func (tk *fakeToken) WaitTimeout(time.Duration) bool {
	return true
}

func (tk *fakeToken) Error() error {
	return tk.err
}

// fakeClient tracks the connection status of a paho client
type fakeClient struct {
	pahomqtt.Client
	mu          sync.Mutex
	connectErr  error
	open        bool
	reconnect   bool
	disconnects int
	published   map[string][]byte
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.published == nil {
		c.published = make(map[string][]byte)
	}
	c.published[topic] = payload.([]byte)
	return &fakeToken{}
}

func (c *fakeClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = c.connectErr == nil
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.reconnect = false
	c.disconnects++
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open || c.reconnect
}

// lose simulates a lost connection that paho is retrying
func (c *fakeClient) lose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.reconnect = true
}

// newFakeFactory returns a client factory that hands out the given clients in order
func newFakeFactory(clients ...*fakeClient) (func(*pahomqtt.ClientOptions) pahomqtt.Client, *int) {
	created := 0
	return func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		c := clients[created]
		created++
		return c
	}, &created
}

func TestStartWhileReconnecting(t *testing.T) {
	first := &fakeClient{}
	factory, created := newFakeFactory(first, &fakeClient{})
	tp := mqtttransport.NewMqttTransport("localhost:1883", "key1", "user1", false, 1)
	tp.SetClientFactory(factory)

	err := tp.Start(context.Background(), nopListener{})
	require.NoError(t, err)
	assert.True(t, tp.IsConnected())

	// connected
	err = tp.Start(context.Background(), nopListener{})
	require.NoError(t, err)
	assert.Equal(t, 1, *created)

	// paho retries after a connection loss
	first.lose()
	err = tp.Start(context.Background(), nopListener{})
	require.NoError(t, err)
	assert.Equal(t, 1, *created)
	assert.Equal(t, 0, first.disconnects)
}

func TestStartReplacesFailedClient(t *testing.T) {
	first := &fakeClient{connectErr: errors.New("connection refused")}
	second := &fakeClient{}
	factory, created := newFakeFactory(first, second)
	tp := mqtttransport.NewMqttTransport("localhost:1883", "key1", "user1", false, 1)
	tp.SetClientFactory(factory)

	err := tp.Start(context.Background(), nopListener{})
	assert.Error(t, err)
	assert.False(t, tp.IsConnected())

	err = tp.Start(context.Background(), nopListener{})
	require.NoError(t, err)
	assert.Equal(t, 2, *created)
	assert.Equal(t, 1, first.disconnects)
	assert.Equal(t, 0, second.disconnects)
	assert.True(t, tp.IsConnected())
	assert.NotEmpty(t, tp.SessionID())

	tp.Stop()
	assert.Equal(t, 1, second.disconnects)
	assert.False(t, tp.IsConnected())
}

func TestSendEmitAndWrite(t *testing.T) {
	client := &fakeClient{}
	factory, _ := newFakeFactory(client)
	tp := mqtttransport.NewMqttTransport("localhost:1883", "key1", "user1", false, 1)
	tp.SetClientFactory(factory)
	err := tp.Start(context.Background(), nopListener{})
	require.NoError(t, err)

	err = tp.Send(api.NewFrame(api.ChannelStream, api.EventEmit,
		api.StreamData{Device: "dev1", Service: "svc1", Resource: "res1", Data: 21.5}))
	require.NoError(t, err)
	assert.JSONEq(t, `21.5`, string(client.published["dev1/svc1/res1"]))

	err = tp.Send(api.NewFrame(api.ChannelStream, api.EventWrite,
		api.StreamData{Device: "dev1", Service: "svc1", Resource: "res2", Data: map[string]int{"temp": 21}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"temp":21},"write":true}`, string(client.published["dev1/svc1/res2"]))

	// authenticate is handled by the broker connection
	err = tp.Send(api.NewFrame(api.ChannelControl, api.EventAuthenticate, api.AuthenticateData{Auth: "sig"}))
	assert.NoError(t, err)
	assert.Len(t, client.published, 2)
}
