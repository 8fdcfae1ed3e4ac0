package api

import "context"

// MessageHandler receives the messages of a subscription.
// When the subscription could not be established msg is nil and err holds the reason.
type MessageHandler func(msg *Message, err error)

// ResultHandler receives the outcome of a publish or write. err is nil on success.
type ResultHandler func(err error)

// SubscribeArgs describes a subscription request
type SubscribeArgs struct {
	// Device name, required. It can be prefixed with 'private:' or 'presence:'
	Device string
	// Service name, default is "*"
	Service string
	// Resource name, default is "*"
	Resource string
	// TTL in milliseconds during which the subscription is active, default 0
	TTL int
	// Read access requested. nil means true
	Read *bool
	// Write access requested along with the subscription, default false
	Write bool
	// Handler of received messages. Required when reading.
	Handler MessageHandler
}

// PublishArgs describes a publish or write request
type PublishArgs struct {
	Device   string
	Service  string
	Resource string
	Data     interface{}
	// Callback is optional and invoked with the outcome
	Callback ResultHandler
}

// ReadArgs describes a REST history read of a public resource
type ReadArgs struct {
	Owner    string
	Device   string
	Service  string
	Resource string
	// Limit of records to return, default 1
	Limit int
}

// Record is a historical resource record as returned by the REST API
type Record map[string]interface{}

// Bool returns a pointer to the given value, for use in optional arguments
func Bool(v bool) *bool {
	return &v
}

// IBBTClient is the public API of the Beebotte client
type IBBTClient interface {
	// Connect to the platform. Existing subscriptions are re-established after connecting.
	Connect(ctx context.Context) error

	// Disconnect from the platform
	Disconnect()

	// IsConnected returns the connection status
	IsConnected() bool

	// SetUsername sets the friendly username used on the next connect
	SetUsername(username string)

	// Subscribe adds a handler for messages of the given resource.
	// Write access and 'private:' or 'presence:' devices trigger the authentication mechanism.
	Subscribe(args SubscribeArgs) error

	// Unsubscribe stops listening to messages of the given resource
	Unsubscribe(args ResourceAddress) error

	// Publish a transient message. This requires prior write permission on the resource.
	Publish(args PublishArgs) error

	// Write a persistent message. This requires prior write permission on the resource.
	Write(args PublishArgs) error

	// Authenticate requests a signature for the resource and sends it to the platform.
	// This blocks until the auth endpoint replied or the context expires.
	Authenticate(ctx context.Context, args ResourceAddress) error

	// Read the history of a public persistent resource
	Read(ctx context.Context, args ReadArgs) ([]Record, error)
}
