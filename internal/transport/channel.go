package transport

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("channel closed")
var ErrQueueFull = errors.New("outbound queue full")

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

func (s ConnState) String() string { return string(s) }

type PublishOptions struct {
	Topic    string
	Reliable bool // ask for ordered, reliable delivery rather than best effort
}

// Packet is one message received on a topic.
type Packet struct {
	Topic string
	From  string
	Data  []byte
}

// Unwrap exposes the raw payload to decoders that unwrap envelopes.
func (p Packet) Unwrap() any { return p.Data }

// Channel is a data channel shared with the other participants of a room.
// Publish must not block on the network: implementations queue the data and
// report failures they can see immediately.
type Channel interface {
	Publish(ctx context.Context, data []byte, opts PublishOptions) error
	Subscribe(topic string, fn func(Packet)) (cancel func())
}
