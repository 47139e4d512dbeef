package emulators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testMosquittoImage = "eclipse-mosquitto:2.0"
	testMosquittoPort  = "1883"
)

// mosquittoConf allows anonymous plaintext connections, which is all the
// integration tests need.
const mosquittoConf = "listener 1883\nallow_anonymous true\n"

type MosquittoConfig struct {
	ImageContainer
}

func GetDefaultMosquittoConfig() MosquittoConfig {
	return MosquittoConfig{
		ImageContainer: ImageContainer{
			EmulatorImage: testMosquittoImage,
			EmulatorPort:  testMosquittoPort,
		},
	}
}

// MosquittoConnection describes a running broker container.
type MosquittoConnection struct {
	// EmulatorAddress is a tcp:// URL usable as a channel endpoint locator.
	EmulatorAddress string
}

// SetupMosquittoContainer starts a mosquitto broker and registers cleanup
// with the test. It blocks until the broker port accepts connections.
func SetupMosquittoContainer(t *testing.T, ctx context.Context, cfg MosquittoConfig) MosquittoConnection {
	t.Helper()

	confPath := filepath.Join(t.TempDir(), "mosquitto.conf")
	require.NoError(t, os.WriteFile(confPath, []byte(mosquittoConf), 0o644))

	req := testcontainers.ContainerRequest{
		Image:        cfg.EmulatorImage,
		ExposedPorts: []string{fmt.Sprintf("%s/tcp", cfg.EmulatorPort)},
		Files: []testcontainers.ContainerFile{{
			HostFilePath:      confPath,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForListeningPort(nat.Port(cfg.EmulatorPort)).WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to terminate mosquitto container")
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port(cfg.EmulatorPort))
	require.NoError(t, err)

	address := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	t.Logf("Mosquitto container started, listening on: %s", address)
	return MosquittoConnection{EmulatorAddress: address}
}

// CreateTestMqttPublisher returns a connected raw paho client for driving
// messages at a channel under test.
func CreateTestMqttPublisher(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("test publisher connect failed: %w", token.Error())
	}
	return client, nil
}
