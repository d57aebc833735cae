// Package version reports the build version of the binaries.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// String returns the version together with the VCS revision when the
// binary was built from a module-aware checkout.
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	var revision string
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			revision = setting.Value
		}
	}
	if revision == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, revision)
}
