package bbtclient

import (
	"strings"

	"github.com/wostzone/bbtclient-go/api"
)

// ChannelKey identifies a channel by its device, service and resource
type ChannelKey struct {
	Device   string
	Service  string
	Resource string
}

// String returns the composite key "device.service.resource"
func (key ChannelKey) String() string {
	return key.Device + "." + key.Service + "." + key.Resource
}

// Channel is a subscription target with its requested and granted permissions
type Channel struct {
	key ChannelKey
	ttl int
	// requested access
	read  bool
	write bool
	// granted access
	readPermission  bool
	writePermission bool
	subscribed      bool
	handler         api.MessageHandler
}

// Key returns the channel's identity
func (ch *Channel) Key() ChannelKey {
	return ch.key
}

// NeedsAuthentication returns true for write access and for private or presence devices
func (ch *Channel) NeedsAuthentication() bool {
	if ch.write {
		return true
	}
	return strings.HasPrefix(ch.key.Device, api.PrefixPrivate) ||
		strings.HasPrefix(ch.key.Device, api.PrefixPresence)
}

// MarkSubscribed turns on the subscribed status and grants the requested permissions
func (ch *Channel) MarkSubscribed() {
	ch.subscribed = true
	if ch.read {
		ch.readPermission = true
	}
	if ch.write {
		ch.writePermission = true
	}
}

// MarkUnsubscribed revokes all permissions and requests of the channel
func (ch *Channel) MarkUnsubscribed() {
	ch.subscribed = false
	ch.readPermission = false
	ch.writePermission = false
	ch.read = false
	ch.write = false
}

// HasReadPermission returns true if read access was granted
func (ch *Channel) HasReadPermission() bool {
	return ch.readPermission
}

// HasWritePermission returns true if write access was granted
func (ch *Channel) HasWritePermission() bool {
	return ch.writePermission
}

// IsSubscribed returns the subscription status
func (ch *Channel) IsSubscribed() bool {
	return ch.subscribed
}

// hasIntent is true while the channel requests read or write access
func (ch *Channel) hasIntent() bool {
	return ch.read || ch.write
}

// update replaces the handler and requested access.
// Granted access that is no longer requested is revoked.
// Returns true when the requested access exceeds what has been granted.
func (ch *Channel) update(ttl int, read bool, write bool, handler api.MessageHandler) bool {
	ch.ttl = ttl
	ch.read = read
	ch.write = write
	ch.handler = handler
	ch.readPermission = ch.readPermission && read
	ch.writePermission = ch.writePermission && write
	return (read && !ch.readPermission) || (write && !ch.writePermission)
}

// subscribeRequest returns the unsigned control subscribe data
func (ch *Channel) subscribeRequest() api.SubscribeRequest {
	return api.SubscribeRequest{
		Device:   ch.key.Device,
		Service:  ch.key.Service,
		Resource: ch.key.Resource,
		TTL:      ch.ttl,
		Read:     ch.read,
		Write:    ch.write,
	}
}

// NewChannel creates a channel for the given subscription arguments.
// Empty service or resource are replaced with the wildcard.
//  key of device, service and resource
//  ttl of the subscription in milliseconds
//  read and write are the requested access
//  handler receives the channel messages
func NewChannel(key ChannelKey, ttl int, read bool, write bool, handler api.MessageHandler) *Channel {
	if key.Service == "" {
		key.Service = api.Wildcard
	}
	if key.Resource == "" {
		key.Resource = api.Wildcard
	}
	return &Channel{
		key:     key,
		ttl:     ttl,
		read:    read,
		write:   write,
		handler: handler,
	}
}
