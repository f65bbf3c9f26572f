package update

import (
	"fmt"
	"strings"

	"upder/internal/platform"
)

// Default release coordinates.
const (
	DefaultReleaseHost = "https://github.com"
	NightlyChannel     = "nightly"
)

// Release identifies a downloadable asset on a GitHub-style release host.
// The asset name is suffixed with the platform tag at download time.
type Release struct {
	Host    string
	Owner   string
	Repo    string
	Channel string
	Asset   string
}

// NightlyRelease describes a project that publishes an asset named after
// itself, from a repository of the same name, under the nightly tag.
func NightlyRelease(binary string) Release {
	return Release{
		Host:    DefaultReleaseHost,
		Owner:   binary,
		Repo:    binary,
		Channel: NightlyChannel,
		Asset:   binary,
	}
}

// WithHost returns a copy of r served from host. An empty host keeps the
// current one.
func (r Release) WithHost(host string) Release {
	if trimmed := strings.TrimSpace(host); trimmed != "" {
		r.Host = trimmed
	}
	return r
}

// DownloadURL returns the asset URL for the given platform.
func (r Release) DownloadURL(tag platform.Tag) string {
	host := strings.TrimRight(r.Host, "/")
	if host == "" {
		host = DefaultReleaseHost
	}
	channel := r.Channel
	if channel == "" {
		channel = NightlyChannel
	}
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s-%s",
		host, r.Owner, r.Repo, channel, r.Asset, tag)
}

// BuildDownloadURL returns the nightly download URL of binary for the running
// platform.
func BuildDownloadURL(binary string) string {
	return NightlyRelease(binary).DownloadURL(platform.Current())
}
