// Package mqttchannel implements the broker-based publish/subscribe channel
// profile on MQTT. A Channel wraps one broker connection and drives it
// through the Ready/Error/Closed state machine; transport failures are
// sticky and retry policy stays with the caller.
package mqttchannel

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-fieldbus/pkg/pubsub"
)

const disconnectQuiesceMs = 500

// Channel is one logical MQTT connection. It owns its transport handle and
// its receive/send buffers; all methods must run on a single cooperative
// processing loop.
type Channel struct {
	transport transport
	state     pubsub.ChannelState

	// Buffers are allocated exactly once at open time and released exactly
	// once, on close or on open-failure rollback. A configured size of zero
	// means no buffer in that direction.
	recvBuffer []byte
	sendBuffer []byte

	callback pubsub.ReceiveCallback
	logger   zerolog.Logger
}

// Open validates cfg, allocates the channel's buffers, and establishes the
// broker connection. Any failing step rolls back every resource acquired so
// far, in reverse order, and Open returns only the error; a partially
// initialized channel never escapes.
func Open(cfg pubsub.ConnectionConfig, logger zerolog.Logger) (pubsub.Channel, error) {
	ch, err := open(cfg, logger, func(cc *channelConfig, l zerolog.Logger) transport {
		return newPahoTransport(cc, l)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// open carries the dial seam so tests can substitute the broker client.
func open(cfg pubsub.ConnectionConfig, logger zerolog.Logger, dial func(*channelConfig, zerolog.Logger) transport) (*Channel, error) {
	log := logger.With().Str("component", "MQTTChannel").Str("connection", cfg.Name).Logger()

	cc, err := parseConfig(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Channel creation failed, invalid configuration")
		return nil, err
	}

	// Each acquired resource pushes its release; a later failure unwinds the
	// stack in reverse order.
	var rollback []func()
	unwind := func() {
		for i := len(rollback) - 1; i >= 0; i-- {
			rollback[i]()
		}
	}

	ch := &Channel{state: pubsub.StateReady, logger: log}

	ch.recvBuffer, err = allocBuffer(cc.recvBufferSize)
	if err != nil {
		log.Error().Err(err).Msg("Channel creation failed, receive buffer")
		return nil, err
	}
	if ch.recvBuffer != nil {
		rollback = append(rollback, func() { ch.recvBuffer = nil })
	}

	ch.sendBuffer, err = allocBuffer(cc.sendBufferSize)
	if err != nil {
		unwind()
		log.Error().Err(err).Msg("Channel creation failed, send buffer")
		return nil, err
	}
	if ch.sendBuffer != nil {
		rollback = append(rollback, func() { ch.sendBuffer = nil })
	}

	ch.transport = dial(cc, log)
	if err := ch.transport.Connect(); err != nil {
		// A half-open TCP session may remain; ask the client to drop it
		// before unwinding the buffers.
		ch.transport.Disconnect(disconnectQuiesceMs)
		unwind()
		log.Error().Err(err).Msg("Channel creation failed, broker connect")
		return nil, fmt.Errorf("%w: %v", pubsub.ErrTransportFailure, err)
	}

	log.Info().
		Uint32("send_buffer", cc.sendBufferSize).
		Uint32("recv_buffer", cc.recvBufferSize).
		Msg("Channel ready, broker connection established")
	return ch, nil
}

func allocBuffer(size uint32) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if size > maxBufferSize {
		return nil, fmt.Errorf("%w: buffer of %d bytes exceeds limit", pubsub.ErrResourceExhausted, size)
	}
	return make([]byte, size), nil
}

// settingsTopicQoS validates the per-operation transport settings and
// resolves the MQTT QoS level.
func settingsTopicQoS(settings *pubsub.BrokerTransportSettings) (string, byte, error) {
	if settings == nil || settings.QueueName == "" {
		return "", 0, fmt.Errorf("%w: broker transport settings required", pubsub.ErrMissingArguments)
	}
	qos, err := QoSFor(settings.Guarantee)
	if err != nil {
		return "", 0, err
	}
	return settings.QueueName, qos, nil
}

func (c *Channel) requireReady(op string) error {
	if c.state == pubsub.StateReady {
		return nil
	}
	c.logger.Warn().Str("op", op).Stringer("state", c.state).Msg("Operation refused, channel not ready")
	return fmt.Errorf("%w: %s in state %s", pubsub.ErrConnectionClosed, op, c.state)
}

// deliver runs on the processing loop, inside Yield: the transport queues
// broker deliveries and replays them through here during the pump. The
// payload is copied into the channel-owned receive buffer (falling back to
// a fresh allocation when it does not fit) before the callback sees it; the
// slice is reused on the next delivery.
func (c *Channel) deliver(topic string, payload []byte) {
	var buf []byte
	if c.recvBuffer != nil && len(payload) <= len(c.recvBuffer) {
		copy(c.recvBuffer, payload)
		buf = c.recvBuffer[:len(payload)]
	} else {
		buf = append([]byte(nil), payload...)
	}
	c.logger.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("Inbound message")
	if c.callback != nil {
		c.callback(topic, buf)
	}
}

// Register subscribes to the queue named in settings with the translated QoS
// level and records the callback for inbound deliveries.
func (c *Channel) Register(settings *pubsub.BrokerTransportSettings, callback pubsub.ReceiveCallback) error {
	if err := c.requireReady("register"); err != nil {
		return err
	}
	topic, qos, err := settingsTopicQoS(settings)
	if err != nil {
		return err
	}
	c.callback = callback
	c.logger.Info().Str("topic", topic).Uint8("qos", qos).Msg("Register, subscribing")
	if err := c.transport.Subscribe(topic, qos, c.deliver); err != nil {
		return fmt.Errorf("%w: subscribe %q: %v", pubsub.ErrTransportFailure, topic, err)
	}
	return nil
}

// Unregister removes the subscription for the queue named in settings.
func (c *Channel) Unregister(settings *pubsub.BrokerTransportSettings) error {
	if err := c.requireReady("unregister"); err != nil {
		return err
	}
	topic, _, err := settingsTopicQoS(settings)
	if err != nil {
		return err
	}
	c.logger.Info().Str("topic", topic).Msg("Unregister, unsubscribing")
	if err := c.transport.Unsubscribe(topic); err != nil {
		return fmt.Errorf("%w: unsubscribe %q: %v", pubsub.ErrTransportFailure, topic, err)
	}
	return nil
}

// Send publishes payload to the queue named in settings. Missing or mistyped
// settings fail with ErrMissingArguments before anything touches the wire
// and leave the state alone; a transport failure moves the channel to Error
// and is surfaced to the caller.
func (c *Channel) Send(settings *pubsub.BrokerTransportSettings, payload []byte) error {
	if err := c.requireReady("send"); err != nil {
		return err
	}
	topic, qos, err := settingsTopicQoS(settings)
	if err != nil {
		return err
	}

	// Stage through the channel-owned send buffer when the payload fits.
	out := payload
	if c.sendBuffer != nil && len(payload) <= len(c.sendBuffer) {
		copy(c.sendBuffer, payload)
		out = c.sendBuffer[:len(payload)]
	}

	if err := c.transport.Publish(topic, qos, out); err != nil {
		c.state = pubsub.StateError
		c.logger.Error().Err(err).Str("topic", topic).Msg("Publish failed, channel now in Error")
		return fmt.Errorf("%w: publish %q: %v", pubsub.ErrTransportFailure, topic, err)
	}
	c.logger.Debug().Str("topic", topic).Uint8("qos", qos).Int("bytes", len(payload)).Msg("Published")
	return nil
}

// Yield pumps pending transport activity for up to timeout. A channel
// already in Error fails fast with the transport failure class; a failure
// during the pump makes the Error state sticky before surfacing it.
func (c *Channel) Yield(timeout time.Duration) error {
	switch c.state {
	case pubsub.StateError:
		return fmt.Errorf("%w: channel in Error", pubsub.ErrTransportFailure)
	case pubsub.StateClosed:
		return fmt.Errorf("%w: yield on closed channel", pubsub.ErrConnectionClosed)
	}
	if err := c.transport.Pump(timeout); err != nil {
		c.state = pubsub.StateError
		c.logger.Error().Err(err).Msg("Yield failed, channel now in Error")
		return fmt.Errorf("%w: %v", pubsub.ErrTransportFailure, err)
	}
	return nil
}

// Close releases the broker connection and both buffers. It always
// succeeds; closing an already closed channel is a no-op.
func (c *Channel) Close() error {
	if c.state == pubsub.StateClosed {
		return nil
	}
	c.logger.Info().Stringer("state", c.state).Msg("Closing channel")
	c.transport.Disconnect(disconnectQuiesceMs)
	c.recvBuffer = nil
	c.sendBuffer = nil
	c.callback = nil
	c.state = pubsub.StateClosed
	c.logger.Info().Msg("Channel closed")
	return nil
}

// State reports the current channel state.
func (c *Channel) State() pubsub.ChannelState {
	return c.state
}
