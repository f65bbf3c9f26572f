// Package tools holds the table of managed developer tools and the step that
// brings one of them up to date.
package tools

import (
	"upder/internal/update"
)

// Tool describes one managed tool. A tool with a Release is installed by
// downloading the asset; any other tool must already be on the search path
// and is updated by running its own Commands.
type Tool struct {
	Name        string
	Commands    [][]string
	VersionArgs []string
	Release     *update.Release
}

// Downloaded reports whether the tool is installed from a release asset.
func (t Tool) Downloaded() bool {
	return t.Release != nil
}

// Defaults returns the managed tools in the order they are updated.
func Defaults() []Tool {
	analyzer := update.NightlyRelease("rust-analyzer")
	return []Tool{
		{
			Name: "rustup",
			Commands: [][]string{
				{"self", "update"},
				{"self", "upgrade-data"},
				{"update"},
			},
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "flutter",
			Commands:    [][]string{{"upgrade", "--verbose"}},
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "rust-analyzer",
			Release:     &analyzer,
			VersionArgs: []string{"--version"},
		},
	}
}
