//go:build !statsview

package statsview

// DefaultAddress is where the viewer listens when no address is given.
const DefaultAddress = "localhost:12600"

// Launch does nothing without the statsview build tag.
func Launch(addr string) string {
	return ""
}

// Available returns true if a statsview is available to launch.
func Available() bool {
	return false
}
