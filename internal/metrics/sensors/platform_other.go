//go:build !windows

package sensors

// Platform returns the sensor provider for this OS
func Platform() Provider {
	return HostProvider{}
}
