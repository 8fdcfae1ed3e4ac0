// Package bbtclient with the Beebotte publish/subscribe client
package bbtclient

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
	"github.com/wostzone/bbtclient-go/internal/mqtttransport"
	"github.com/wostzone/bbtclient-go/internal/wstransport"
	"github.com/wostzone/bbtclient-go/pkg/bbtconfig"
	"github.com/wostzone/bbtclient-go/pkg/restclient"
)

// usernameSetter is implemented by transports that pass a friendly username on connect
type usernameSetter interface {
	SetUsername(username string)
}

// BBTClient validates the API arguments and delegates to its connection
type BBTClient struct {
	conn      *Connection
	transport api.ITransport
	rest      *restclient.RestClient
}

// Connect to the platform
func (client *BBTClient) Connect(ctx context.Context) error {
	return client.conn.Connect(ctx)
}

// Disconnect from the platform
func (client *BBTClient) Disconnect() {
	client.conn.Disconnect()
	if client.rest != nil {
		client.rest.Close()
	}
}

// IsConnected returns the connection status
func (client *BBTClient) IsConnected() bool {
	return client.conn.IsConnected()
}

// SetUsername sets the username used on the next connect, if the transport supports it
func (client *BBTClient) SetUsername(username string) {
	if setter, ok := client.transport.(usernameSetter); ok {
		setter.SetUsername(username)
	} else {
		logrus.Warningf("BBTClient.SetUsername: transport doesn't support a username")
	}
}

// Subscribe to a resource
// Returns an error if the arguments are invalid. Subscription failures are reported to the handler.
func (client *BBTClient) Subscribe(args api.SubscribeArgs) error {
	args, err := ValidateSubscribe(args)
	if err != nil {
		logrus.Errorf("BBTClient.Subscribe: invalid arguments: %s", err)
		return err
	}
	client.conn.Subscribe(args)
	return nil
}

// Unsubscribe from a resource
func (client *BBTClient) Unsubscribe(addr api.ResourceAddress) error {
	addr, err := ValidateAddress(addr)
	if err != nil {
		logrus.Errorf("BBTClient.Unsubscribe: invalid arguments: %s", err)
		return err
	}
	return client.conn.Unsubscribe(addr)
}

// Publish a transient message
func (client *BBTClient) Publish(args api.PublishArgs) error {
	if err := ValidatePublish(args); err != nil {
		logrus.Errorf("BBTClient.Publish: invalid arguments: %s", err)
		return err
	}
	return client.conn.Publish(args)
}

// Write a persistent message
func (client *BBTClient) Write(args api.PublishArgs) error {
	if err := ValidatePublish(args); err != nil {
		logrus.Errorf("BBTClient.Write: invalid arguments: %s", err)
		return err
	}
	return client.conn.Write(args)
}

// Authenticate the client for a resource
func (client *BBTClient) Authenticate(ctx context.Context, addr api.ResourceAddress) error {
	addr, err := ValidateAddress(addr)
	if err != nil {
		return err
	}
	return client.conn.Authenticate(ctx, addr)
}

// Read the history of a public persistent resource using the REST API
func (client *BBTClient) Read(ctx context.Context, args api.ReadArgs) ([]api.Record, error) {
	args, err := ValidateRead(args)
	if err != nil {
		logrus.Errorf("BBTClient.Read: invalid arguments: %s", err)
		return nil, err
	}
	if client.rest == nil {
		return nil, api.ErrReadFailed
	}
	return client.rest.ReadResource(ctx, args)
}

// Connection returns the client connection, for inspection of channels and metrics
func (client *BBTClient) Connection() *Connection {
	return client.conn
}

// NewBBTClientWithTransport creates a client on the given transport
//  transport connected to the platform
//  rest client for signatures and REST reads, nil to disable both
func NewBBTClientWithTransport(transport api.ITransport, rest *restclient.RestClient) *BBTClient {
	var authorizer IAuthorizer
	if rest != nil && rest.HasAuthEndpoint() {
		authorizer = rest
	}
	return &BBTClient{
		conn:      NewConnection(transport, authorizer),
		transport: transport,
		rest:      rest,
	}
}

// NewBBTClient creates a client with the transport selected in the configuration
//  config with the platform address and access key
func NewBBTClient(config *bbtconfig.ClientConfig) *BBTClient {
	timeout := time.Duration(config.TimeoutSec) * time.Second
	var transport api.ITransport
	if config.Transport == bbtconfig.TransportMqtt {
		transport = mqtttransport.NewMqttTransport(
			config.GetMqttAddress(), config.Key, config.Username, config.SSL, config.TimeoutSec)
	} else {
		transport = wstransport.NewWsTransport(config.GetWsURL(), config.Key, config.Username, timeout)
	}
	rest := restclient.NewRestClient(config.AuthEndpoint, config.AuthMethod, config.GetAPIURL(), timeout)
	return NewBBTClientWithTransport(transport, rest)
}
