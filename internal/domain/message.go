package domain

import "encoding/json"

// Message is the wire format of the realtime protocol. Application event
// types beyond the reserved ones are passed through untyped to listeners.
type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Reserved message types of the realtime protocol.
const (
	MessageTypeSubscribe            = "subscribe"
	MessageTypeUnsubscribe          = "unsubscribe"
	MessageTypePing                 = "ping"
	MessageTypePong                 = "pong"
	MessageTypeSubscriptionResponse = "subscription_response"
)

// ConnectionState is owned exclusively by the realtime channel;
// other components only read it.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)
