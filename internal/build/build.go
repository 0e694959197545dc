// Package build holds version information stamped in at link time.
package build

import "runtime"

// Build-time variables set via -ldflags. For example:
//
//	go build -ldflags "-X github.com/large-farva/vtol-groundstation/internal/build.Version=v1.0.0"
var (
	Version = "dev"
	BuiltAt = "unknown"
)

// GoVersion is the toolchain the binary was built with.
func GoVersion() string {
	return runtime.Version()
}
