package mqttchannel

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// messageHandler receives one inbound delivery from the broker.
type messageHandler func(topic string, payload []byte)

// transport is the seam between the channel state machine and the broker
// client library. The channel consumes the broker strictly through these
// primitives; everything socket- and TLS-related stays behind them.
type transport interface {
	Connect() error
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, handler messageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, qos byte, payload []byte) error
	// Pump hands queued inbound deliveries to their handlers on the calling
	// goroutine, waits out the remainder of timeout, and surfaces any
	// connection failure that occurred since the last call.
	Pump(timeout time.Duration) error
}

// inboundMessage is one broker delivery parked until the next Pump.
type inboundMessage struct {
	topic   string
	payload []byte
	handler messageHandler
}

// pahoTransport implements transport on eclipse/paho.mqtt.golang.
//
// Paho invokes subscription callbacks and the connection-lost handler on its
// own network goroutines. Nothing downstream of this seam is safe to call
// from there, so the subscribe callback only queues the message; handlers
// run when the processing loop drains the queue inside Pump. Auto-reconnect
// stays off: a lost connection is an irrecoverable channel failure and
// recovery policy belongs to the caller.
type pahoTransport struct {
	client         mqtt.Client
	connectTimeout time.Duration
	lost           chan error

	mu    sync.Mutex
	inbox []inboundMessage
	ping  chan struct{}

	logger zerolog.Logger
}

func newPahoTransport(cc *channelConfig, logger zerolog.Logger) *pahoTransport {
	t := &pahoTransport{
		connectTimeout: cc.connectTimeout,
		lost:           make(chan error, 1),
		ping:           make(chan struct{}, 1),
		logger:         logger.With().Str("component", "PahoTransport").Logger(),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cc.brokerURL.String())
	opts.SetClientID(cc.clientID)
	opts.SetKeepAlive(cc.keepAlive)
	opts.SetConnectTimeout(cc.connectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.logger.Error().Err(err).Msg("MQTT connection lost")
		select {
		case t.lost <- err:
		default:
		}
	})

	t.client = mqtt.NewClient(opts)
	t.logger.Info().Str("client_id", cc.clientID).Str("broker", cc.brokerURL.String()).Msg("Paho MQTT client created")
	return t
}

func (t *pahoTransport) Connect() error {
	token := t.client.Connect()
	if !token.WaitTimeout(t.connectTimeout) {
		return fmt.Errorf("connect timed out after %s", t.connectTimeout)
	}
	return token.Error()
}

func (t *pahoTransport) Disconnect(quiesce uint) {
	if t.client.IsConnected() {
		t.client.Disconnect(quiesce)
	}
}

func (t *pahoTransport) Subscribe(topic string, qos byte, handler messageHandler) error {
	token := t.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		// Runs on a paho goroutine: park the message for the next Pump.
		t.enqueue(inboundMessage{
			topic:   msg.Topic(),
			payload: append([]byte(nil), msg.Payload()...),
			handler: handler,
		})
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (t *pahoTransport) enqueue(msg inboundMessage) {
	t.mu.Lock()
	t.inbox = append(t.inbox, msg)
	t.mu.Unlock()
	select {
	case t.ping <- struct{}{}:
	default:
	}
}

func (t *pahoTransport) next() (inboundMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbox) == 0 {
		return inboundMessage{}, false
	}
	msg := t.inbox[0]
	t.inbox = t.inbox[1:]
	return msg, true
}

func (t *pahoTransport) Unsubscribe(topic string) error {
	token := t.client.Unsubscribe(topic)
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (t *pahoTransport) Publish(topic string, qos byte, payload []byte) error {
	token := t.client.Publish(topic, qos, false, payload)
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (t *pahoTransport) Pump(timeout time.Duration) error {
	// Surface a loss that happened since the last call before anything else.
	select {
	case err := <-t.lost:
		return err
	default:
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		for {
			msg, ok := t.next()
			if !ok {
				break
			}
			msg.handler(msg.topic, msg.payload)
		}
		select {
		case err := <-t.lost:
			return err
		case <-t.ping:
		case <-deadline.C:
			return nil
		}
	}
}
