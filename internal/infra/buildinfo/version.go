// Package buildinfo provides build-time version information.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/jmoanes1/phonebook/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo

import "runtime"

// Product is the client name used in version output and the User-Agent.
const Product = "phonebook-cli"

// Build-time variables (set via ldflags).
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"

	// GoVersion is the Go version used to build. Falls back to the
	// running toolchain when not injected.
	GoVersion = ""
)

// Info contains build information.
type Info struct {
	Product   string `json:"product" yaml:"product"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Get returns the build information.
func Get() Info {
	goVersion := GoVersion
	if goVersion == "" {
		goVersion = runtime.Version()
	}
	return Info{
		Product:   Product,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: goVersion,
	}
}

// String returns a formatted version string.
func String() string {
	return Product + " " + Version + " (" + Commit + ") built at " + BuildTime
}

// UserAgent returns the User-Agent header sent to the remote api.
func UserAgent() string {
	return Product + "/" + Version
}
