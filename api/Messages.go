// Package api with the Beebotte client protocol definitions and client interfaces
package api

import (
	"encoding/json"
	"errors"
)

// ProtocolVersion of the platform wire protocol carried in every frame
const ProtocolVersion = 1

// Frame channels
const (
	ChannelControl = "control"
	ChannelStream  = "stream"
)

// Control channel events
const (
	EventSubscribe    = "subscribe"
	EventUnsubscribe  = "unsubscribe"
	EventAuthenticate = "authenticate"
)

// Stream channel events
const (
	EventEmit  = "emit"  // transient publish
	EventWrite = "write" // persistent write
)

// Wildcard for service or resource
const Wildcard = "*"

// Device name prefixes that require authentication
const (
	PrefixPrivate  = "private:"
	PrefixPresence = "presence:"
)

// Frame is the envelope of every message sent to the platform
type Frame struct {
	Version int         `json:"version"`
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
}

// NewFrame creates a frame for the current protocol version
func NewFrame(channel string, event string, data interface{}) *Frame {
	return &Frame{
		Version: ProtocolVersion,
		Channel: channel,
		Event:   event,
		Data:    data,
	}
}

// SubscribeRequest is the data of a control subscribe frame.
// Sid and Sig are only present when the channel required authentication.
type SubscribeRequest struct {
	Device   string `json:"device"`
	Service  string `json:"service"`
	Resource string `json:"resource"`
	TTL      int    `json:"ttl"`
	Read     bool   `json:"read"`
	Write    bool   `json:"write"`
	Sid      string `json:"sid,omitempty"`
	Sig      string `json:"sig,omitempty"`
}

// ResourceAddress identifies a device/service/resource target
type ResourceAddress struct {
	Device   string `json:"device"`
	Service  string `json:"service"`
	Resource string `json:"resource"`
}

// StreamData is the data of a stream emit or write frame
type StreamData struct {
	Device   string      `json:"device"`
	Service  string      `json:"service"`
	Resource string      `json:"resource"`
	Data     interface{} `json:"data"`
}

// AuthenticateData is the data of a control authenticate frame
type AuthenticateData struct {
	Auth   string          `json:"auth"`
	Source ResourceAddress `json:"source"`
}

// Message is an inbound message from the platform.
// Raw holds the complete payload as received.
type Message struct {
	Device   string          `json:"device"`
	Service  string          `json:"service"`
	Resource string          `json:"resource"`
	Data     json.RawMessage `json:"data,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// ErrNonConformMessage is returned by ParseMessage for payloads without device, service and resource
var ErrNonConformMessage = errors.New("message without device, service and resource")

// ParseMessage decodes an inbound payload.
// Returns ErrNonConformMessage if one of the identifying fields is missing.
func ParseMessage(payload []byte) (*Message, error) {
	msg := &Message{}
	err := json.Unmarshal(payload, msg)
	if err != nil {
		return nil, err
	}
	if msg.Device == "" || msg.Service == "" || msg.Resource == "" {
		return nil, ErrNonConformMessage
	}
	msg.Raw = append(json.RawMessage(nil), payload...)
	return msg, nil
}
