package api

import "context"

// ITransportListener receives the events of a transport.
// Events are delivered from the transport's reader goroutine in the order they occur.
type ITransportListener interface {
	// OnConnect is invoked each time the transport (re)established its connection
	OnConnect()

	// OnDisconnect is invoked when the connection is lost or closed
	//  err is the cause, nil when the transport was stopped
	OnDisconnect(err error)

	// OnMessage is invoked with the raw payload of each inbound message
	OnMessage(payload []byte)
}

// ITransport is the socket connection to the platform used by the client connection.
// Implementations reconnect on their own after a connection loss until stopped.
type ITransport interface {
	// Start connecting to the platform and deliver events to the listener.
	// The context bounds the initial connection attempt.
	Start(ctx context.Context, listener ITransportListener) error

	// Stop the transport and close the connection
	Stop()

	// Send a frame to the platform.
	// Returns an error when the frame could not be transmitted.
	Send(frame *Frame) error

	// SessionID of the current connection, "" when not connected
	SessionID() string

	// IsConnected returns true while a connection is established
	IsConnected() bool
}
