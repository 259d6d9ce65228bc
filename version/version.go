// Package version holds build metadata stamped in at link time.
package version

import (
	"fmt"
	"runtime"
)

// Populated by the linker via -X flags on release builds.
var (
	GitRelease    = "dev"
	GitCommit     = ""
	GitCommitDate = ""
)

// GoInfo describes the toolchain and platform the binary was built with.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
