package mqttchannel

import "github.com/illmade-knight/go-fieldbus/pkg/pubsub"

// ProfileURI identifies the broker-based MQTT transport profile. A layer
// registry uses it to select this channel implementation for a connection
// configuration.
const ProfileURI = "http://opcfoundation.org/UA-Profile/Transport/pubsub-mqtt"

// Layer returns the transport layer for the MQTT profile, ready to be
// registered with a pubsub.LayerRegistry.
func Layer() pubsub.TransportLayer {
	return pubsub.TransportLayer{
		ProfileURI:    ProfileURI,
		CreateChannel: Open,
	}
}
