// Package platform maps the running operating system onto the release asset
// variants published for the language server.
package platform

import (
	"runtime"
	"strings"
)

// Tag names a release asset variant.
type Tag string

const (
	Linux Tag = "linux"
	Mac   Tag = "mac"
)

// Resolve maps an operating system identifier to a Tag. Both Go's GOOS values
// and uname-style names are accepted. Anything unrecognized resolves to Linux.
func Resolve(goos string) Tag {
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "darwin", "macos", "mac":
		return Mac
	default:
		return Linux
	}
}

// Current resolves the Tag for the running process.
func Current() Tag {
	return Resolve(runtime.GOOS)
}

// String returns the URL suffix for the tag.
func (t Tag) String() string {
	return string(t)
}
