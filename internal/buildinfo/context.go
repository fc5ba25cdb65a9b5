// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is injected at application startup.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// New returns a Context for the given ldflags values.
func New(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version or UnknownValue
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release returns the release name reported to Sentry.
func (c *Context) Release() string {
	return "tflitehelper@" + c.GetVersion()
}

// String returns the version line printed by --version.
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s, %s %s/%s)",
		c.GetVersion(), c.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
