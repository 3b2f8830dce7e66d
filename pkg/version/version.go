// Package version holds build metadata surfaced by the CLI's --version flag
// and, in packed form, by the HBIOS identification service.
package version

import (
	"fmt"
	"runtime"
	"time"
)

// Version information set at build time via ldflags.
var (
	// Version is the release tag (e.g. "v0.3.0"); "dev" outside a tagged build.
	Version = "dev"

	// GitCommit is the git commit hash the binary was built from.
	GitCommit = "unknown"

	// BuildDate is when the binary was built.
	BuildDate = "unknown"

	// GoVersion is the Go toolchain version used to build.
	GoVersion = runtime.Version()

	// Platform is the target platform.
	Platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)

// Major and Minor are packed into the HBIOS identification stamp's version
// byte as (Major<<4)|Minor, matching pkg/hbios's own packedVersion.
const (
	Major = 1
	Minor = 0
)

// Packed returns the single-byte (Major<<4)|Minor encoding reported by the
// HBIOS SYSGET ident service and SYSINT INTINF.
func Packed() byte {
	return byte(Major<<4 | (Minor & 0x0F))
}

// String returns the full version string, falling back to a commit-derived
// development version when no release tag is set.
func String() string {
	v := Version
	if v == "dev" && GitCommit != "unknown" && len(GitCommit) >= 7 {
		v = fmt.Sprintf("dev-%s", GitCommit[:7])
	}
	return v
}

// Full returns a multi-line build information block for --version.
func Full() string {
	return fmt.Sprintf(`rwemu %s
Commit:   %s
Date:     %s
Go:       %s
Platform: %s`,
		String(), GitCommit, BuildDate, GoVersion, Platform)
}

func init() {
	if BuildDate == "unknown" {
		BuildDate = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}
}
