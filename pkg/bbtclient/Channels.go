package bbtclient

import "github.com/wostzone/bbtclient-go/api"

// Channels is the registry of channels, keyed by device, service and resource.
// Entries keep their insertion order. Unsubscribed channels are reset, not removed.
type Channels struct {
	channels map[ChannelKey]*Channel
	order    []ChannelKey
}

// Add a channel, replacing an existing channel with the same key
func (chs *Channels) Add(ch *Channel) {
	if _, found := chs.channels[ch.key]; !found {
		chs.order = append(chs.order, ch.key)
	}
	chs.channels[ch.key] = ch
}

// All returns the channels in the order they were added
func (chs *Channels) All() []*Channel {
	all := make([]*Channel, 0, len(chs.order))
	for _, key := range chs.order {
		all = append(all, chs.channels[key])
	}
	return all
}

// Count returns the number of registered channels
func (chs *Channels) Count() int {
	return len(chs.order)
}

// Get returns the channel with exactly the given key, or nil if not registered
func (chs *Channels) Get(device, service, resource string) *Channel {
	return chs.channels[ChannelKey{device, service, resource}]
}

// candidates returns the keys to search for in order of precedence:
// exact, any resource of the service, any service of the device.
func candidates(device, service, resource string) []ChannelKey {
	return []ChannelKey{
		{device, service, resource},
		{device, service, api.Wildcard},
		{device, api.Wildcard, api.Wildcard},
	}
}

// GetAny returns the first channel matching the exact key, then 'device.service.*',
// then 'device.*.*'. Permissions are not considered.
func (chs *Channels) GetAny(device, service, resource string) *Channel {
	for _, key := range candidates(device, service, resource) {
		if ch, found := chs.channels[key]; found {
			return ch
		}
	}
	return nil
}

// GetWithPermission searches like GetAny but only accepts a channel holding the needed
// permissions. The first channel found ends the search: if it lacks permission the result
// is nil, less specific channels are not considered.
func (chs *Channels) GetWithPermission(device, service, resource string, needRead, needWrite bool) *Channel {
	for _, key := range candidates(device, service, resource) {
		ch, found := chs.channels[key]
		if !found {
			continue
		}
		if needRead && !ch.HasReadPermission() {
			return nil
		}
		if needWrite && !ch.HasWritePermission() {
			return nil
		}
		return ch
	}
	return nil
}

// NewChannels creates an empty channel registry
func NewChannels() *Channels {
	return &Channels{
		channels: make(map[ChannelKey]*Channel),
		order:    make([]ChannelKey, 0),
	}
}
