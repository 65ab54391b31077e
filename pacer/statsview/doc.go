// Package statsview is an optional package that is only functional when the
// statsview build tag is present.
//
// It provides a HTTP server running locally offering runtime statistics,
// useful to watch GC pauses and goroutine counts while tuning the loop.
// Underlying functionality provided by "github.com/go-echarts/statsview"
//
// After launch, graphical statistics will be viewable at:
//
//	localhost:12600/debug/statsview
//
// And standard Go pprof statistics available at:
//
//	localhost:12600/debug/pprof/
package statsview
