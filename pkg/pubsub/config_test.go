package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyValueList_TypedAccessors(t *testing.T) {
	props := KeyValueList{
		{Key: "sendBufferSize", Value: uint32(10)},
		{Key: "mqttClientId", Value: "c1"},
		{Key: "recvBufferSize", Value: "not-a-number"},
	}

	v, ok := props.UInt32("sendBufferSize")
	assert.True(t, ok)
	assert.Equal(t, uint32(10), v)

	s, ok := props.String("mqttClientId")
	assert.True(t, ok)
	assert.Equal(t, "c1", s)

	// A mistyped value is treated as absent.
	_, ok = props.UInt32("recvBufferSize")
	assert.False(t, ok)

	_, ok = props.UInt32("noSuchProperty")
	assert.False(t, ok)
}

func TestKeyValueList_LaterDuplicateWins(t *testing.T) {
	props := KeyValueList{
		{Key: "sendBufferSize", Value: uint32(10)},
		{Key: "sendBufferSize", Value: uint32(20)},
	}

	v, ok := props.UInt32("sendBufferSize")
	assert.True(t, ok)
	assert.Equal(t, uint32(20), v)
}

func TestDeliveryGuaranteeString(t *testing.T) {
	assert.Equal(t, "BestEffort", BestEffort.String())
	assert.Equal(t, "AtLeastOnce", AtLeastOnce.String())
	assert.Equal(t, "AtMostOnce", AtMostOnce.String())
}
