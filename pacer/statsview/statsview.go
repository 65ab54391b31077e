//go:build statsview

package statsview

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// DefaultAddress is where the viewer listens when no address is given.
const DefaultAddress = "localhost:12600"

const path = "/debug/statsview"

// Launch starts the viewer in a new goroutine and returns its URL.
func Launch(addr string) string {
	if addr == "" {
		addr = DefaultAddress
	}

	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()

	url := "http://" + addr + path
	slog.Info("Stats viewer available", "url", url)
	return url
}

// Available returns true if a statsview is available to launch.
func Available() bool {
	return true
}
