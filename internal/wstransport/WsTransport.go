// Package wstransport with the websocket transport to the platform
package wstransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/wostzone/bbtclient-go/api"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// SessionHeader is the handshake response header carrying the session ID.
// Without it a client generated session ID is used.
const SessionHeader = "X-Session-Id"

// ErrNotConnected is returned when sending without a connection
var ErrNotConnected = errors.New("no connection with server")

// WsTransport exchanges JSON frames with the platform over a websocket.
// After a connection loss it reconnects with increasing delays until stopped.
type WsTransport struct {
	wsURL    string
	key      string
	username string
	dialer   *websocket.Dialer
	backoff  *backoff

	mu        sync.Mutex
	writeMu   sync.Mutex
	ws        *websocket.Conn
	sessionID string
	listener  api.ITransportListener
	running   bool
	done      chan struct{}
}

// connectURL returns the websocket URL with the key and username query
func (t *WsTransport) connectURL() (string, error) {
	u, err := url.Parse(t.wsURL)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	username := t.username
	t.mu.Unlock()
	q := u.Query()
	q.Set("key", t.key)
	q.Set("username", username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dial opens a new websocket connection and reports it to the listener
func (t *WsTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := t.connectURL()
	if err != nil {
		return nil, err
	}
	ws, resp, err := t.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", t.wsURL, err)
	}
	sid := ""
	if resp != nil {
		sid = resp.Header.Get(SessionHeader)
	}
	if sid == "" {
		sid = uuid.NewString()
	}
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	t.mu.Lock()
	done := t.done
	if isClosed(done) {
		t.mu.Unlock()
		ws.Close()
		return nil, ErrNotConnected
	}
	t.ws = ws
	t.sessionID = sid
	listener := t.listener
	t.mu.Unlock()

	logrus.Infof("WsTransport.dial: Connected to %s. Session %s", t.wsURL, sid)
	go t.pinger(ws, done)
	listener.OnConnect()
	return ws, nil
}

// pinger keeps the connection alive until it fails or the transport stops
func (t *WsTransport) pinger(ws *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func isClosed(done chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// run reads messages until the connection fails, then reconnects until stopped.
// A stopped transport has already reported the disconnect.
func (t *WsTransport) run(ws *websocket.Conn, done chan struct{}, listener api.ITransportListener) {
	for ws != nil {
		var readErr error
		for {
			_, message, err := ws.ReadMessage()
			if err != nil {
				readErr = err
				break
			}
			listener.OnMessage(message)
		}
		ws.Close()

		t.mu.Lock()
		if t.ws == ws {
			t.ws = nil
			t.sessionID = ""
		}
		t.mu.Unlock()

		if isClosed(done) {
			return
		}
		listener.OnDisconnect(readErr)
		ws = t.reconnect(done)
	}
}

// reconnect retries connecting with increasing delays.
// Returns nil when the transport was stopped.
func (t *WsTransport) reconnect(done chan struct{}) *websocket.Conn {
	t.backoff.Reset()
	for {
		delay := t.backoff.Next()
		logrus.Infof("WsTransport.reconnect: reconnecting in %s", delay)
		select {
		case <-done:
			return nil
		case <-time.After(delay):
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.dialer.HandshakeTimeout)
		ws, err := t.dial(ctx)
		cancel()
		if err == nil {
			return ws
		}
		logrus.Warningf("WsTransport.reconnect: %s", err)
	}
}

// Start connecting to the platform.
// Returns an error if the initial connection fails.
func (t *WsTransport) Start(ctx context.Context, listener api.ITransportListener) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.listener = listener
	t.running = true
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	ws, err := t.dial(ctx)
	if err != nil {
		logrus.Errorf("WsTransport.Start: %s", err)
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		return err
	}
	go t.run(ws, done, listener)
	return nil
}

// Stop the transport and close the connection.
// The listener is notified of the disconnect before Stop returns.
func (t *WsTransport) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	logrus.Infof("WsTransport.Stop: closing connection to %s", t.wsURL)
	t.running = false
	close(t.done)
	ws := t.ws
	t.ws = nil
	t.sessionID = ""
	listener := t.listener
	t.mu.Unlock()

	if ws != nil {
		t.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		t.writeMu.Unlock()
		ws.Close()
	}
	listener.OnDisconnect(nil)
}

// Send a frame as a JSON text message
func (t *WsTransport) Send(frame *api.Frame) error {
	message, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	t.mu.Lock()
	ws := t.ws
	t.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, message)
}

// SessionID of the current connection
func (t *WsTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// IsConnected returns true while the websocket is open
func (t *WsTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ws != nil
}

// SetUsername sets the friendly username used on the next connect
func (t *WsTransport) SetUsername(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.username = username
}

// SetReconnectDelay changes the initial and maximum delay between reconnect attempts
func (t *WsTransport) SetReconnectDelay(initial time.Duration, max time.Duration) {
	t.backoff = newBackoff(initial, max)
}

// NewWsTransport creates a websocket transport
//  wsURL is the websocket URL of the platform, eg ws://ws.beebotte.com:80
//  key is the access key sent in the connection query
//  username is the optional friendly username
//  timeout of the websocket handshake
func NewWsTransport(wsURL string, key string, username string, timeout time.Duration) *WsTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WsTransport{
		wsURL:    wsURL,
		key:      key,
		username: username,
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		backoff: newBackoff(InitialBackoff, MaxBackoff),
	}
}
