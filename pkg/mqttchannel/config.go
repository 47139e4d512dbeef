package mqttchannel

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-fieldbus/pkg/pubsub"
)

// Connection property names understood by this channel. Unknown names are
// logged and ignored so that configurations can carry properties for other
// transport profiles.
const (
	propSendBufferSize = "sendBufferSize"
	propRecvBufferSize = "recvBufferSize"
	propClientID       = "mqttClientId"
)

const (
	// DefaultBufferSize is applied to each direction when the configuration
	// does not specify a size.
	DefaultBufferSize uint32 = 2000

	// DefaultClientID is the broker client identifier used when none is
	// configured. Two channels left on the default will steal each other's
	// broker session; deployments running more than one channel against a
	// broker must set mqttClientId explicitly.
	DefaultClientID = "generic_pub"

	defaultKeepAlive      = 10 * time.Second
	defaultConnectTimeout = 5 * time.Second

	// maxBufferSize bounds a single buffer allocation; anything larger is
	// treated as an exhausted-resource condition rather than attempted.
	maxBufferSize uint32 = 1 << 26
)

var brokerSchemes = map[string]bool{
	"tcp":   true,
	"ssl":   true,
	"tls":   true,
	"mqtt":  true,
	"mqtts": true,
	"ws":    true,
	"wss":   true,
}

// channelConfig is the validated result of parsing a ConnectionConfig.
type channelConfig struct {
	brokerURL      *url.URL
	sendBufferSize uint32
	recvBufferSize uint32
	clientID       string
	keepAlive      time.Duration
	connectTimeout time.Duration
}

// parseConfig validates the endpoint locator and walks the ordered property
// list, applying defaults for anything unspecified. A known property with a
// value of the wrong type keeps its default; an unknown property name is
// logged and skipped.
func parseConfig(cfg pubsub.ConnectionConfig, logger zerolog.Logger) (*channelConfig, error) {
	u, err := url.Parse(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse broker address %q: %v", pubsub.ErrConfig, cfg.Address, err)
	}
	if !brokerSchemes[u.Scheme] || u.Host == "" {
		return nil, fmt.Errorf("%w: unrecognized broker address %q", pubsub.ErrConfig, cfg.Address)
	}

	cc := &channelConfig{
		brokerURL:      u,
		sendBufferSize: DefaultBufferSize,
		recvBufferSize: DefaultBufferSize,
		clientID:       DefaultClientID,
		keepAlive:      defaultKeepAlive,
		connectTimeout: defaultConnectTimeout,
	}

	for _, kv := range cfg.Properties {
		switch kv.Key {
		case propSendBufferSize:
			if v, ok := kv.Value.(uint32); ok {
				cc.sendBufferSize = v
			} else {
				logger.Warn().Str("property", kv.Key).Msg("Property is not an unsigned 32-bit integer, keeping default")
			}
		case propRecvBufferSize:
			if v, ok := kv.Value.(uint32); ok {
				cc.recvBufferSize = v
			} else {
				logger.Warn().Str("property", kv.Key).Msg("Property is not an unsigned 32-bit integer, keeping default")
			}
		case propClientID:
			if v, ok := kv.Value.(string); ok {
				cc.clientID = v
			} else {
				logger.Warn().Str("property", kv.Key).Msg("Property is not a string, keeping default")
			}
		default:
			logger.Warn().Str("property", kv.Key).Msg("Unknown connection property, ignoring")
		}
	}

	return cc, nil
}
