// Package emulators starts throwaway broker containers for integration
// tests. Everything here requires a local Docker daemon and is only reached
// from tests built with the integration tag.
package emulators

// ImageContainer names a container image and the port the emulated service
// listens on.
type ImageContainer struct {
	EmulatorImage string
	EmulatorPort  string
}
