// Package locate finds executables on an explicit search path.
//
// Unlike exec.LookPath it never reads the process environment; callers pass
// the search path they resolved from configuration.
package locate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErrors "upder/internal/errors"
)

// Find returns the first regular file named name inside the directories of
// searchPath, split on the platform list separator.
func Find(name, searchPath string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// Require is Find with absence turned into an executable_not_found error.
func Require(name, searchPath string) (string, error) {
	path, ok := Find(name, searchPath)
	if !ok {
		return "", appErrors.New(appErrors.CodeExecutableNotFound, fmt.Sprintf("%s not found", name), nil)
	}
	return path, nil
}
