package wstransport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wostzone/bbtclient-go/api"
	"github.com/wostzone/bbtclient-go/internal/wstransport"
)

// testListener records the transport events
type testListener struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	messages    []string
}

func (l *testListener) OnConnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects++
}
func (l *testListener) OnDisconnect(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects++
}
func (l *testListener) OnMessage(payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, string(payload))
}
func (l *testListener) counts() (int, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects, l.disconnects, len(l.messages)
}

// testServer is a websocket peer that records frames and exposes its connections
type testServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    []*websocket.Conn
	frames   chan api.Frame
	query    chan string
}

func newTestServer() *testServer {
	ts := &testServer{
		frames: make(chan api.Frame, 10),
		query:  make(chan string, 10),
	}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.query <- r.URL.RawQuery
		hdr := http.Header{}
		hdr.Set(wstransport.SessionHeader, "sid1")
		ws, err := ts.upgrader.Upgrade(w, r, hdr)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, ws)
		ts.mu.Unlock()
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			frame := api.Frame{}
			if json.Unmarshal(msg, &frame) == nil {
				ts.frames <- frame
			}
		}
	}))
	return ts
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) last() *websocket.Conn {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.conns) == 0 {
		return nil
	}
	return ts.conns[len(ts.conns)-1]
}

func TestStartSendReceive(t *testing.T) {
	ts := newTestServer()
	defer ts.srv.Close()
	listener := &testListener{}

	tp := wstransport.NewWsTransport(ts.url(), "key1", "bob", time.Second)
	err := tp.Start(context.Background(), listener)
	require.NoError(t, err)
	assert.True(t, tp.IsConnected())
	assert.Equal(t, "sid1", tp.SessionID())

	query := <-ts.query
	assert.Contains(t, query, "key=key1")
	assert.Contains(t, query, "username=bob")

	err = tp.Send(api.NewFrame(api.ChannelControl, api.EventSubscribe, api.ResourceAddress{Device: "dev1"}))
	require.NoError(t, err)
	select {
	case frame := <-ts.frames:
		assert.Equal(t, api.ProtocolVersion, frame.Version)
		assert.Equal(t, api.ChannelControl, frame.Channel)
		assert.Equal(t, api.EventSubscribe, frame.Event)
	case <-time.After(time.Second):
		t.Fatal("frame not received")
	}

	require.Eventually(t, func() bool { return ts.last() != nil }, time.Second, 10*time.Millisecond)
	err = ts.last().WriteMessage(websocket.TextMessage, []byte(`{"device":"dev1","service":"s","resource":"r"}`))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, _, n := listener.counts()
		return n == 1
	}, time.Second, 10*time.Millisecond)

	tp.Stop()
	assert.False(t, tp.IsConnected())
	assert.Equal(t, "", tp.SessionID())
	err = tp.Send(api.NewFrame(api.ChannelStream, api.EventEmit, nil))
	assert.ErrorIs(t, err, wstransport.ErrNotConnected)

	assert.Eventually(t, func() bool {
		c, d, _ := listener.counts()
		return c == 1 && d == 1
	}, time.Second, 10*time.Millisecond)
}

func TestReconnect(t *testing.T) {
	ts := newTestServer()
	defer ts.srv.Close()
	listener := &testListener{}

	tp := wstransport.NewWsTransport(ts.url(), "key1", "", time.Second)
	tp.SetReconnectDelay(10*time.Millisecond, 50*time.Millisecond)
	err := tp.Start(context.Background(), listener)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ts.last() != nil }, time.Second, 10*time.Millisecond)

	// drop the connection server side
	first := ts.last()
	first.Close()

	assert.Eventually(t, func() bool {
		c, d, _ := listener.counts()
		return c == 2 && d == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, tp.IsConnected())
	tp.Stop()
}

func TestStartNoServer(t *testing.T) {
	listener := &testListener{}
	tp := wstransport.NewWsTransport("ws://127.0.0.1:1", "key1", "", time.Second)
	err := tp.Start(context.Background(), listener)
	assert.Error(t, err)
	assert.False(t, tp.IsConnected())
	c, _, _ := listener.counts()
	assert.Equal(t, 0, c)
	// stop without running is ignored
	tp.Stop()
}

func TestStartBadURL(t *testing.T) {
	tp := wstransport.NewWsTransport("://bad", "key1", "", 0)
	err := tp.Start(context.Background(), &testListener{})
	assert.Error(t, err)
}
