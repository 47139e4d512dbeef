package mqttchannel

import (
	"fmt"

	"github.com/illmade-knight/go-fieldbus/pkg/pubsub"
)

// QoSFor maps the abstract delivery guarantee onto an MQTT QoS level.
//
// The mapping is BestEffort->0, AtLeastOnce->1, AtMostOnce->2, as specified
// for the broker transport profile this channel implements. Note that it is
// not the ordering MQTT users usually expect; do not "fix" it here without
// changing the profile.
func QoSFor(g pubsub.DeliveryGuarantee) (byte, error) {
	switch g {
	case pubsub.BestEffort:
		return 0, nil
	case pubsub.AtLeastOnce:
		return 1, nil
	case pubsub.AtMostOnce:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: unknown delivery guarantee %d", pubsub.ErrMissingArguments, g)
	}
}
