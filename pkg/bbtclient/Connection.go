package bbtclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
)

// DefaultAuthTimeout limits the duration of a signature request
const DefaultAuthTimeout = 10 * time.Second

// ConnectionState of the client connection
type ConnectionState uint8

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable state name
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// IAuthorizer obtains signatures for channels that require authentication
type IAuthorizer interface {
	// Authorize returns the signature for the request
	Authorize(ctx context.Context, req *api.AuthRequest) (string, error)
}

// Connection owns the transport and the channel registry.
// It runs the subscription handshakes and dispatches inbound messages to the channels.
//
// Handlers are invoked without holding the connection lock. Messages are delivered
// in the order the transport delivers them.
type Connection struct {
	transport   api.ITransport
	authorizer  IAuthorizer
	authTimeout time.Duration
	channels    *Channels
	metrics     *Metrics

	state ConnectionState
	// generation increments with each (re)connect. Handshake continuations compare it
	// to detect a reconnect that happened while the auth request was in flight.
	generation uint64
	// sendMu keeps the control frames in the order the subscriptions were decided.
	// Lock order is sendMu then mu. mu is never held while sending.
	sendMu sync.Mutex
	mu     sync.Mutex
}

// subscribeFrame is a subscription decided under the lock and sent after releasing it
type subscribeFrame struct {
	ch         *Channel
	req        api.SubscribeRequest
	generation uint64
}

// handlerError is an error to report to a channel handler once the lock is released
type handlerError struct {
	handler api.MessageHandler
	err     error
}

func reportErrors(failures []handlerError) {
	for _, f := range failures {
		if f.handler != nil {
			f.handler(nil, f.err)
		}
	}
}

// transportListener receives the transport events on behalf of the connection
type transportListener struct {
	c *Connection
}

func (l transportListener) OnConnect() {
	l.c.onConnect()
}

func (l transportListener) OnDisconnect(err error) {
	l.c.onDisconnect(err)
}

func (l transportListener) OnMessage(payload []byte) {
	l.c.onMessage(payload)
}

// Connect starts the transport. Subscriptions are (re)established once the transport
// reports the connection.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	logrus.Infof("Connection.Connect: starting transport")
	err := c.transport.Start(ctx, transportListener{c})
	if err != nil {
		logrus.Errorf("Connection.Connect: %s", err)
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
	}
	return err
}

// Disconnect stops the transport. Channels keep their state for a later connect.
func (c *Connection) Disconnect() {
	logrus.Infof("Connection.Disconnect")
	c.transport.Stop()
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

// IsConnected returns true while the transport connection is established
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the connection state
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChannelCount returns the number of registered channels, including unsubscribed ones
func (c *Connection) ChannelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels.Count()
}

// ChannelState returns the subscription status and granted permissions of a registered channel
func (c *Connection) ChannelState(device, service, resource string) (subscribed bool, read bool, write bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.channels.Get(device, service, resource)
	if ch == nil {
		return false, false, false
	}
	return ch.subscribed, ch.readPermission, ch.writePermission
}

// Metrics returns the connection counters
func (c *Connection) Metrics() *Metrics {
	return c.metrics
}

// onConnect replays the subscription of every channel with an active request,
// as the server drops all subscriptions when the connection is lost.
func (c *Connection) onConnect() {
	c.sendMu.Lock()
	c.mu.Lock()
	c.state = StateConnected
	c.generation++
	all := c.channels.All()
	logrus.Infof("Connection.onConnect: connected. Resubscribing %d channels", len(all))

	failures := make([]handlerError, 0)
	frames := make([]subscribeFrame, 0, len(all))
	for _, ch := range all {
		if !ch.hasIntent() {
			continue
		}
		ch.subscribed = false
		frame, f := c.handshake(ch)
		if f != nil {
			failures = append(failures, *f)
		} else if frame != nil {
			frames = append(frames, *frame)
		}
	}
	c.mu.Unlock()
	failures = append(failures, c.sendSubscribes(frames)...)
	c.sendMu.Unlock()
	reportErrors(failures)
}

// onDisconnect marks the connection as down.
// Channel permissions are left as-is until the next connect replays the subscriptions.
func (c *Connection) onDisconnect(err error) {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	if err != nil {
		logrus.Warningf("Connection.onDisconnect: connection lost: %s", err)
	} else {
		logrus.Infof("Connection.onDisconnect: disconnected")
	}
}

// onMessage passes an inbound message to the handler of the matching channel
func (c *Connection) onMessage(payload []byte) {
	c.metrics.incr(MetricRecv, 1)
	msg, err := api.ParseMessage(payload)
	if err != nil {
		logrus.Warningf("Connection.onMessage: non conform message dropped: %s", err)
		c.metrics.incr(MetricDrops, 1)
		return
	}
	var handler api.MessageHandler
	c.mu.Lock()
	ch := c.channels.GetAny(msg.Device, msg.Service, msg.Resource)
	if ch != nil && ch.subscribed && ch.HasReadPermission() {
		handler = ch.handler
	}
	c.mu.Unlock()

	if handler == nil {
		logrus.Debugf("Connection.onMessage: no subscription for %s.%s.%s", msg.Device, msg.Service, msg.Resource)
		c.metrics.incr(MetricDrops, 1)
		return
	}
	handler(msg, nil)
}

// handshake starts the subscription of the channel with the platform. Must be called
// with the lock held.
// Returns the subscribe frame to send once the lock is released, or the error to report
// to the channel handler. Channels that need authentication return neither and complete
// asynchronously once the signature is received.
func (c *Connection) handshake(ch *Channel) (*subscribeFrame, *handlerError) {
	if c.state != StateConnected {
		logrus.Infof("Connection.handshake: not connected. Subscription to %s deferred", ch.key)
		return nil, nil
	}
	req := ch.subscribeRequest()
	if !ch.NeedsAuthentication() {
		return &subscribeFrame{ch: ch, req: req, generation: c.generation}, nil
	}

	sid := c.transport.SessionID()
	if c.authorizer == nil || sid == "" {
		logrus.Errorf("Connection.handshake: channel %s requires authentication but no auth endpoint or session", ch.key)
		c.metrics.incr(MetricAuthFailures, 1)
		return nil, &handlerError{ch.handler, api.ErrAuthFailed}
	}
	authReq := &api.AuthRequest{
		Sid:      sid,
		Device:   req.Device,
		Service:  req.Service,
		Resource: req.Resource,
		TTL:      req.TTL,
		Read:     req.Read,
		Write:    req.Write,
	}
	generation := c.generation
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.authTimeout)
		defer cancel()
		sig, err := c.authorizer.Authorize(ctx, authReq)
		c.completeHandshake(ch, generation, authReq, sig, err)
	}()
	return nil, nil
}

// sendSubscribes sends the subscribe frames and marks the channels subscribed.
// A channel is not marked when the connection or its request changed while sending.
// Must be called with sendMu held and without mu.
// Returns the errors to report to the channel handlers.
func (c *Connection) sendSubscribes(frames []subscribeFrame) []handlerError {
	failures := make([]handlerError, 0)
	for _, frame := range frames {
		err := c.Send(api.ChannelControl, api.EventSubscribe, frame.req)
		c.mu.Lock()
		if err != nil {
			logrus.Warningf("Connection.sendSubscribes: subscribe to %s failed: %s", frame.ch.key, err)
			failures = append(failures, handlerError{frame.ch.handler, err})
		} else if c.generation == frame.generation && c.isCurrent(frame.ch) {
			frame.ch.MarkSubscribed()
		}
		c.mu.Unlock()
	}
	return failures
}

// isCurrent returns true if the channel is still registered and requests access.
// Must be called with the lock held.
func (c *Connection) isCurrent(ch *Channel) bool {
	return c.channels.Get(ch.key.Device, ch.key.Service, ch.key.Resource) == ch && ch.hasIntent()
}

// completeHandshake sends the signed subscription after the signature was received.
// The subscription is abandoned when the connection changed in the meantime; the
// reconnect replays it.
func (c *Connection) completeHandshake(ch *Channel, generation uint64, authReq *api.AuthRequest, sig string, err error) {
	c.sendMu.Lock()
	c.mu.Lock()
	if c.state != StateConnected || c.generation != generation {
		c.mu.Unlock()
		c.sendMu.Unlock()
		logrus.Infof("Connection.completeHandshake: connection changed while authenticating %s. Ignored", ch.key)
		return
	}
	if !c.isCurrent(ch) {
		c.mu.Unlock()
		c.sendMu.Unlock()
		logrus.Infof("Connection.completeHandshake: channel %s was unsubscribed while authenticating", ch.key)
		return
	}
	if err != nil || sig == "" {
		c.mu.Unlock()
		c.sendMu.Unlock()
		if err == nil {
			err = errors.New("bad authentication reply")
		}
		logrus.Errorf("Connection.completeHandshake: unable to authenticate channel %s: %s", ch.key, err)
		c.metrics.incr(MetricAuthFailures, 1)
		reportErrors([]handlerError{{ch.handler, api.ErrAuthFailed}})
		return
	}
	req := ch.subscribeRequest()
	req.Sid = authReq.Sid
	req.Sig = sig
	c.mu.Unlock()
	failures := c.sendSubscribes([]subscribeFrame{{ch: ch, req: req, generation: generation}})
	c.sendMu.Unlock()
	reportErrors(failures)
}

// Subscribe registers the handler for the channel and subscribes with the platform.
// Subscribing again to the same channel replaces its handler and requested access.
// The handshake is only repeated if the channel isn't subscribed or requests more
// access than was granted. Granted access that is no longer requested is revoked.
//  args with validated subscription parameters
func (c *Connection) Subscribe(args api.SubscribeArgs) {
	read := args.Read == nil || *args.Read
	key := ChannelKey{args.Device, args.Service, args.Resource}

	var frame *subscribeFrame
	var failure *handlerError
	c.sendMu.Lock()
	c.mu.Lock()
	ch := c.channels.Get(key.Device, key.Service, key.Resource)
	if ch != nil {
		logrus.Infof("Connection.Subscribe: updating existing channel %s", key)
		moreAccess := ch.update(args.TTL, read, args.Write, args.Handler)
		if !ch.subscribed || moreAccess {
			frame, failure = c.handshake(ch)
		}
	} else {
		logrus.Infof("Connection.Subscribe: new channel %s, read=%v, write=%v", key, read, args.Write)
		ch = NewChannel(key, args.TTL, read, args.Write, args.Handler)
		c.channels.Add(ch)
		c.metrics.gauge(MetricChannels, int64(c.channels.Count()))
		frame, failure = c.handshake(ch)
	}
	c.mu.Unlock()
	failures := make([]handlerError, 0)
	if failure != nil {
		failures = append(failures, *failure)
	}
	if frame != nil {
		failures = append(failures, c.sendSubscribes([]subscribeFrame{*frame})...)
	}
	c.sendMu.Unlock()
	reportErrors(failures)
}

// Unsubscribe revokes the channel's permissions and notifies the platform.
// Unsubscribing from an unknown channel succeeds.
// Returns an error if the unsubscribe message could not be sent.
func (c *Connection) Unsubscribe(addr api.ResourceAddress) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.mu.Lock()
	ch := c.channels.Get(addr.Device, addr.Service, addr.Resource)
	if ch == nil {
		c.mu.Unlock()
		return nil
	}
	logrus.Infof("Connection.Unsubscribe: channel %s", ch.key)
	ch.MarkUnsubscribed()
	c.mu.Unlock()
	return c.Send(api.ChannelControl, api.EventUnsubscribe, addr)
}

// Publish sends a transient message to a resource the client has write permission on.
// The outcome is returned and passed to the optional callback.
func (c *Connection) Publish(args api.PublishArgs) error {
	return c.stream(api.EventEmit, args, args.Device, api.ErrPublishPermission, api.ErrPublishFailed)
}

// Write sends a persistent message to a resource the client has write permission on.
// A 'private:' device prefix is removed as persistent resources have their own access level.
func (c *Connection) Write(args api.PublishArgs) error {
	device := strings.TrimPrefix(args.Device, api.PrefixPrivate)
	return c.stream(api.EventWrite, args, device, api.ErrWritePermission, api.ErrWriteFailed)
}

// stream sends a stream message after checking write permission
func (c *Connection) stream(event string, args api.PublishArgs, device string, errPermission error, errSend error) error {
	var err error
	c.mu.Lock()
	ch := c.channels.GetWithPermission(args.Device, args.Service, args.Resource, false, true)
	c.mu.Unlock()
	if ch == nil {
		logrus.Warningf("Connection.stream: no write permission on %s.%s.%s", args.Device, args.Service, args.Resource)
		err = errPermission
	} else {
		data := api.StreamData{
			Device:   device,
			Service:  args.Service,
			Resource: args.Resource,
			Data:     args.Data,
		}
		if sendErr := c.Send(api.ChannelStream, event, data); sendErr != nil {
			err = errSend
		}
	}
	if args.Callback != nil {
		args.Callback(err)
	}
	return err
}

// Authenticate obtains a signature for the resource and sends it on the control channel.
// This blocks until the signature is received or the context expires.
func (c *Connection) Authenticate(ctx context.Context, addr api.ResourceAddress) error {
	sid := c.transport.SessionID()
	if !c.IsConnected() || sid == "" {
		return api.ErrNotConnected
	}
	if c.authorizer == nil {
		return api.ErrAuthFailed
	}
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	sig, err := c.authorizer.Authorize(ctx, &api.AuthRequest{
		Sid:      sid,
		Device:   addr.Device,
		Service:  addr.Service,
		Resource: addr.Resource,
	})
	if err != nil || sig == "" {
		logrus.Errorf("Connection.Authenticate: unable to authenticate client: %v", err)
		c.metrics.incr(MetricAuthFailures, 1)
		return api.ErrAuthFailed
	}
	c.mu.Lock()
	changed := c.state != StateConnected || c.generation != generation
	c.mu.Unlock()
	if changed {
		return api.ErrNotConnected
	}
	return c.Send(api.ChannelControl, api.EventAuthenticate, api.AuthenticateData{Auth: sig, Source: addr})
}

// Send a frame with the given channel, event and data. Must not be called with the lock held.
// Returns an error if there is no connection to transmit it on. A nil result means the
// frame was transmitted, not that it was acknowledged.
func (c *Connection) Send(channelName string, eventName string, data interface{}) error {
	if c.transport == nil || !c.transport.IsConnected() {
		c.metrics.incr(MetricSendErrors, 1)
		return api.ErrNotConnected
	}
	err := c.transport.Send(api.NewFrame(channelName, eventName, data))
	if err != nil {
		logrus.Warningf("Connection.Send: %s/%s failed: %s", channelName, eventName, err)
		c.metrics.incr(MetricSendErrors, 1)
		return err
	}
	c.metrics.incr(MetricSend, 1)
	return nil
}

// NewConnection creates a connection using the given transport
//  transport to the platform
//  authorizer for channels that need authentication, nil if no auth endpoint is configured
func NewConnection(transport api.ITransport, authorizer IAuthorizer) *Connection {
	return &Connection{
		transport:   transport,
		authorizer:  authorizer,
		authTimeout: DefaultAuthTimeout,
		channels:    NewChannels(),
		metrics:     newMetrics(),
		state:       StateDisconnected,
	}
}
