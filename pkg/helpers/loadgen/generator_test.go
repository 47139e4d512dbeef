package loadgen_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-fieldbus/pkg/helpers/loadgen"
	"github.com/illmade-knight/go-fieldbus/pkg/pubsub"
)

type staticPayload struct{ data []byte }

func (s *staticPayload) GeneratePayload(*loadgen.Source) ([]byte, error) {
	return s.data, nil
}

// countingClient tallies publishes per source id.
type countingClient struct {
	mu          sync.Mutex
	connectErr  error
	disconnects int
	published   map[string]int
}

func newCountingClient() *countingClient {
	return &countingClient{published: make(map[string]int)}
}

func (c *countingClient) Connect() error {
	return c.connectErr
}

func (c *countingClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *countingClient) Publish(_ context.Context, source *loadgen.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[source.ID]++
	return nil
}

func (c *countingClient) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published[id]
}

func TestLoadGenerator_PublishesEachSourceAtItsRate(t *testing.T) {
	client := newCountingClient()
	payload := &staticPayload{data: []byte(`{"v":1}`)}
	sources := []*loadgen.Source{
		{ID: "fast", Topic: "plant/fast", Guarantee: pubsub.AtLeastOnce, MessageRate: 50, Payload: payload},
		{ID: "slow", Topic: "plant/slow", Guarantee: pubsub.BestEffort, MessageRate: 10, Payload: payload},
	}

	lg := loadgen.NewLoadGenerator(client, sources, zerolog.Nop())
	require.NoError(t, lg.Run(context.Background(), 300*time.Millisecond))

	assert.Positive(t, client.count("slow"))
	assert.Greater(t, client.count("fast"), client.count("slow"))
	assert.Equal(t, 1, client.disconnects)
}

func TestLoadGenerator_ConnectFailureAborts(t *testing.T) {
	client := newCountingClient()
	client.connectErr = errors.New("broker unreachable")

	lg := loadgen.NewLoadGenerator(client, nil, zerolog.Nop())
	err := lg.Run(context.Background(), time.Second)

	require.Error(t, err)
	assert.Equal(t, client.connectErr, err)
	assert.Zero(t, client.disconnects)
}

func TestLoadGenerator_ZeroRateSourceStaysSilent(t *testing.T) {
	client := newCountingClient()
	sources := []*loadgen.Source{
		{ID: "idle", Topic: "plant/idle", MessageRate: 0, Payload: &staticPayload{}},
	}

	lg := loadgen.NewLoadGenerator(client, sources, zerolog.Nop())
	require.NoError(t, lg.Run(context.Background(), 100*time.Millisecond))

	assert.Zero(t, client.count("idle"))
	assert.Equal(t, 1, client.disconnects)
}

func TestLoadGenerator_CancelStopsPublishing(t *testing.T) {
	client := newCountingClient()
	sources := []*loadgen.Source{
		{ID: "s", Topic: "plant/s", MessageRate: 200, Payload: &staticPayload{}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	lg := loadgen.NewLoadGenerator(client, sources, zerolog.Nop())
	require.NoError(t, lg.Run(ctx, 5*time.Second))

	settled := client.count("s")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, client.count("s"))
}
