package bbtclient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wostzone/bbtclient-go/api"
	"github.com/wostzone/bbtclient-go/pkg/bbtclient"
)

func TestNewChannelDefaults(t *testing.T) {
	ch := bbtclient.NewChannel(bbtclient.ChannelKey{Device: "dev1"}, 0, true, false, nil)
	assert.Equal(t, "dev1.*.*", ch.Key().String())
	assert.False(t, ch.IsSubscribed())
	assert.False(t, ch.HasReadPermission())
	assert.False(t, ch.HasWritePermission())
}

func TestNeedsAuthentication(t *testing.T) {
	key := bbtclient.ChannelKey{Device: "dev1", Service: "svc1", Resource: "res1"}
	assert.False(t, bbtclient.NewChannel(key, 0, true, false, nil).NeedsAuthentication())
	assert.True(t, bbtclient.NewChannel(key, 0, true, true, nil).NeedsAuthentication())

	key.Device = api.PrefixPrivate + "dev1"
	assert.True(t, bbtclient.NewChannel(key, 0, true, false, nil).NeedsAuthentication())
	key.Device = api.PrefixPresence + "dev1"
	assert.True(t, bbtclient.NewChannel(key, 0, true, false, nil).NeedsAuthentication())
}

func TestMarkSubscribed(t *testing.T) {
	key := bbtclient.ChannelKey{Device: "dev1", Service: "svc1", Resource: "res1"}
	ch := bbtclient.NewChannel(key, 0, true, false, nil)
	ch.MarkSubscribed()
	assert.True(t, ch.IsSubscribed())
	assert.True(t, ch.HasReadPermission())
	assert.False(t, ch.HasWritePermission())

	ch = bbtclient.NewChannel(key, 0, false, true, nil)
	ch.MarkSubscribed()
	assert.False(t, ch.HasReadPermission())
	assert.True(t, ch.HasWritePermission())
}

func TestMarkUnsubscribedClearsAll(t *testing.T) {
	key := bbtclient.ChannelKey{Device: "dev1", Service: "svc1", Resource: "res1"}
	ch := bbtclient.NewChannel(key, 0, true, true, nil)
	ch.MarkSubscribed()
	assert.True(t, ch.HasReadPermission())
	assert.True(t, ch.HasWritePermission())

	ch.MarkUnsubscribed()
	assert.False(t, ch.IsSubscribed())
	assert.False(t, ch.HasReadPermission())
	assert.False(t, ch.HasWritePermission())
}
