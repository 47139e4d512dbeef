package loadgen

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-fieldbus/pkg/mqttchannel"
)

// MqttClient implements Client against a real MQTT broker. It is a raw
// publisher, independent of the channel layer, so a soak test exercises the
// same broker path a foreign publisher would.
type MqttClient struct {
	client    mqtt.Client
	brokerURL string
	logger    zerolog.Logger
}

// NewMqttClient creates an MQTT load generator client.
func NewMqttClient(brokerURL string, logger zerolog.Logger) Client {
	return &MqttClient{
		brokerURL: brokerURL,
		logger:    logger.With().Str("component", "LoadgenMqttClient").Logger(),
	}
}

// Connect establishes the broker connection.
func (c *MqttClient) Connect() error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.brokerURL).
		SetClientID(fmt.Sprintf("loadgen-%s", uuid.NewString())).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			c.logger.Error().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			c.logger.Info().Str("broker", c.brokerURL).Msg("Connected to MQTT broker")
		})

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return token.Error()
	}
	if !c.client.IsConnected() {
		return fmt.Errorf("failed to connect to %s", c.brokerURL)
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *MqttClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Info().Msg("MQTT client disconnected")
	}
}

// Publish generates the source's payload and publishes it with the QoS
// level the broker transport profile assigns to the source's guarantee.
func (c *MqttClient) Publish(ctx context.Context, source *Source) error {
	payload, err := source.Payload.GeneratePayload(source)
	if err != nil {
		return fmt.Errorf("failed to generate payload for source %s: %w", source.ID, err)
	}

	qos, err := mqttchannel.QoSFor(source.Guarantee)
	if err != nil {
		return fmt.Errorf("source %s: %w", source.ID, err)
	}

	token := c.client.Publish(source.Topic, qos, false, payload)
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("mqtt publish error for source %s: %w", source.ID, token.Error())
		}
		c.logger.Debug().Str("source_id", source.ID).Str("topic", source.Topic).Msg("Message published")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while publishing for source %s: %w", source.ID, ctx.Err())
	}
}
