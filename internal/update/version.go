package update

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a semantic version reported by a tool about itself.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
}

// versionPattern finds the first semantic version inside free-form output such
// as "rustup 1.27.1 (54dd3d00f 2024-04-24)" or
// "rust-analyzer 0.3.2146-standalone (ab5c9ce 2024-10-14)".
var versionPattern = regexp.MustCompile(`(?:^|[^\d.])v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z][0-9A-Za-z.-]*))?`)

// ParseVersion extracts the first semantic version from a tool's
// --version output. Returns an error if no version is present.
func ParseVersion(output string) (Version, error) {
	text := strings.TrimSpace(output)
	if text == "" {
		return Version{}, fmt.Errorf("empty version output")
	}

	m := versionPattern.FindStringSubmatch(text)
	if m == nil {
		return Version{}, fmt.Errorf("no semantic version in %q", firstLine(text))
	}

	var nums [3]int
	for i := range nums {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, fmt.Errorf("parse version component %q: %w", m[i+1], err)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Prerelease: m[4]}, nil
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v == Version{}
}

// String returns the version with a 'v' prefix, or "unknown" for the zero value.
func (v Version) String() string {
	if v.IsZero() {
		return "unknown"
	}
	base := fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		return base + "-" + v.Prerelease
	}
	return base
}

// Compare returns -1, 0 or 1 as v is older than, equal to, or newer than
// other. A prerelease sorts before the release it precedes.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	case v.Patch != other.Patch:
		return sign(v.Patch - other.Patch)
	}

	switch {
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	default:
		return strings.Compare(v.Prerelease, other.Prerelease)
	}
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
