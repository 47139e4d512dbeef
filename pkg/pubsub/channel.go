// Package pubsub defines the transport-independent publish/subscribe channel
// layer: the channel contract, the typed broker transport settings carried on
// every topic operation, and the registry of transport layers that turn a
// connection configuration into a live channel.
package pubsub

import "time"

// DeliveryGuarantee is the abstract reliability level requested for a
// published or subscribed message, independent of any transport.
type DeliveryGuarantee int

const (
	BestEffort DeliveryGuarantee = iota
	AtLeastOnce
	AtMostOnce
)

func (g DeliveryGuarantee) String() string {
	switch g {
	case BestEffort:
		return "BestEffort"
	case AtLeastOnce:
		return "AtLeastOnce"
	case AtMostOnce:
		return "AtMostOnce"
	default:
		return "Unknown"
	}
}

// BrokerTransportSettings carries the broker-specific addressing for a single
// topic operation. The queue name is an opaque, case-sensitive string and is
// never normalized.
type BrokerTransportSettings struct {
	QueueName string
	Guarantee DeliveryGuarantee
}

// ChannelState describes the lifecycle position of a channel. A channel only
// ever moves Ready -> Error on an irrecoverable transport failure and never
// returns to Ready on its own.
type ChannelState int

const (
	StateReady ChannelState = iota
	StateError
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateError:
		return "Error"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ReceiveCallback is invoked for every inbound message on a registered
// topic. Callbacks run on the loop driving Yield, never on a transport
// goroutine. The payload is only valid for the duration of the call;
// implementations reuse the channel's receive buffer between deliveries.
type ReceiveCallback func(topic string, payload []byte)

// Channel is a single logical connection to a message broker. All operations
// are synchronous and must be driven from one cooperative processing loop;
// channels perform no internal locking.
type Channel interface {
	// Register subscribes to the queue named in settings and records the
	// callback for inbound deliveries. Valid only in Ready.
	Register(settings *BrokerTransportSettings, callback ReceiveCallback) error

	// Unregister removes the subscription for the queue named in settings.
	// Valid only in Ready.
	Unregister(settings *BrokerTransportSettings) error

	// Send publishes payload to the queue named in settings. A transport
	// failure moves the channel to Error and is surfaced to the caller.
	Send(settings *BrokerTransportSettings, payload []byte) error

	// Yield pumps pending inbound and outbound transport activity for up to
	// timeout, invoking registered callbacks for queued deliveries. It fails
	// immediately if the channel is already in Error.
	Yield(timeout time.Duration) error

	// Close releases the connection and all buffers. It always succeeds and
	// is a no-op on an already closed channel.
	Close() error

	// State reports the current channel state.
	State() ChannelState
}
