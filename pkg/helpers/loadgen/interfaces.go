package loadgen

import (
	"context"

	"github.com/illmade-knight/go-fieldbus/pkg/pubsub"
)

// Source is one simulated publisher in a soak test: a topic, a requested
// delivery guarantee, a publish rate, and a payload generator.
type Source struct {
	ID          string
	Topic       string
	Guarantee   pubsub.DeliveryGuarantee
	MessageRate float64 // messages per second
	Payload     PayloadGenerator
}

// PayloadGenerator produces the payload for one publish. The source is
// passed in so payloads can carry the source id or topic.
type PayloadGenerator interface {
	GeneratePayload(source *Source) ([]byte, error)
}

// Client publishes generated messages to a broker. Implementations exist
// for MQTT; a fake suffices in tests.
type Client interface {
	Connect() error
	Disconnect()
	Publish(ctx context.Context, source *Source) error
}
