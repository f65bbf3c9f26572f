// Package update downloads release binaries and installs them in place.
//
// This package handles:
//   - Building release download URLs for the current platform
//   - Streaming a release asset to disk in bounded chunks
//   - Reporting download progress snapshots to a caller-supplied reporter
//   - Marking installed binaries executable
//   - Parsing the versions tools print about themselves
//
// The package is isolated from terminal concerns. Progress is delivered as
// Progress values; rendering them is the caller's job.
//
// Example usage:
//
//	url := update.NightlyRelease("rust-analyzer").DownloadURL(platform.Current())
//	f := update.NewFetcher(update.WithProgress(bar))
//	if _, err := f.Install(ctx, url, dest); err != nil {
//	    // handle error
//	}
package update
