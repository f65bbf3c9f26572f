package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"upder/internal/debug"
	appErrors "upder/internal/errors"
	"upder/internal/locate"
	"upder/internal/platform"
	"upder/internal/process"
	"upder/internal/update"
)

// stagingSuffix marks a download that has not been moved into place yet.
const stagingSuffix = ".download"

// Installer downloads a release asset to dest and makes it executable.
type Installer interface {
	Install(ctx context.Context, url, dest string) (update.Download, error)
}

// Reporter receives what a step does so the caller can present it.
type Reporter interface {
	Command(tool, line string)
	Output(tool string, out process.Output)
	Installed(tool string, d update.Download)
}

type nopReporter struct{}

func (nopReporter) Command(string, string)            {}
func (nopReporter) Output(string, process.Output)     {}
func (nopReporter) Installed(string, update.Download) {}

// Result summarizes one completed step.
type Result struct {
	Tool     string
	Path     string
	Before   update.Version
	After    update.Version
	Commands int
	Download *update.Download
}

// Upgraded reports whether both versions are known and the tool moved forward.
func (r Result) Upgraded() bool {
	return !r.Before.IsZero() && !r.After.IsZero() && r.Before.LessThan(r.After)
}

// Updater runs update steps.
type Updater struct {
	runner      process.Runner
	installer   Installer
	reporter    Reporter
	searchPath  string
	installDir  string
	releaseHost string
	platform    platform.Tag
}

// Option configures an Updater.
type Option func(*Updater)

// WithSearchPath sets the directories searched for command tools.
func WithSearchPath(path string) Option {
	return func(u *Updater) {
		u.searchPath = path
	}
}

// WithInstallDir sets where release tools are installed.
func WithInstallDir(dir string) Option {
	return func(u *Updater) {
		u.installDir = dir
	}
}

// WithReleaseHost serves release assets from host instead of each tool's default.
func WithReleaseHost(host string) Option {
	return func(u *Updater) {
		u.releaseHost = host
	}
}

// WithPlatform overrides the platform used to pick release assets.
func WithPlatform(tag platform.Tag) Option {
	return func(u *Updater) {
		u.platform = tag
	}
}

// WithReporter sets the step reporter.
func WithReporter(r Reporter) Option {
	return func(u *Updater) {
		if r != nil {
			u.reporter = r
		}
	}
}

// NewUpdater creates an Updater that runs commands through runner and
// downloads release assets through installer.
func NewUpdater(runner process.Runner, installer Installer, opts ...Option) *Updater {
	u := &Updater{
		runner:    runner,
		installer: installer,
		reporter:  nopReporter{},
		platform:  platform.Current(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update brings tool up to date.
func (u *Updater) Update(ctx context.Context, tool Tool) (Result, error) {
	if tool.Downloaded() {
		return u.install(ctx, tool)
	}
	return u.runCommands(ctx, tool)
}

func (u *Updater) runCommands(ctx context.Context, tool Tool) (Result, error) {
	bin, err := locate.Require(tool.Name, u.searchPath)
	if err != nil {
		return Result{Tool: tool.Name}, err
	}

	res := Result{Tool: tool.Name, Path: bin}
	res.Before = u.probe(ctx, tool, bin)

	for _, args := range tool.Commands {
		line := process.CommandLine(tool.Name, args)
		u.reporter.Command(tool.Name, line)
		out, err := u.runner.Run(ctx, bin, args...)
		if err != nil {
			return res, fmt.Errorf("%s: %w", line, err)
		}
		u.reporter.Output(tool.Name, out)
		res.Commands++
	}

	res.After = u.probe(ctx, tool, bin)
	return res, nil
}

// install downloads the release next to the installed binary and renames it
// over the old one, so a failed download leaves the previous build in place.
func (u *Updater) install(ctx context.Context, tool Tool) (Result, error) {
	if u.installDir == "" {
		return Result{Tool: tool.Name}, appErrors.EnvMissing("HOME")
	}

	dest := filepath.Join(u.installDir, tool.Name)
	res := Result{Tool: tool.Name, Path: dest}
	if _, err := os.Stat(dest); err == nil {
		res.Before = u.probe(ctx, tool, dest)
	}

	//nolint:gosec // G301: ~/.local/bin needs standard permissions
	if err := os.MkdirAll(u.installDir, 0o755); err != nil {
		return res, appErrors.New(appErrors.CodeIO, fmt.Sprintf("create %s: %v", u.installDir, err), err)
	}

	staging := dest + stagingSuffix
	if err := os.Remove(staging); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return res, appErrors.New(appErrors.CodeIO, fmt.Sprintf("remove stale %s: %v", staging, err), err)
	}

	url := tool.Release.WithHost(u.releaseHost).DownloadURL(u.platform)
	u.reporter.Command(tool.Name, "GET "+url)
	d, err := u.installer.Install(ctx, url, staging)
	if err != nil {
		return res, fmt.Errorf("install %s: %w", tool.Name, err)
	}

	if err := os.Rename(staging, dest); err != nil {
		_ = os.Remove(staging)
		return res, appErrors.New(appErrors.CodeIO, fmt.Sprintf("move %s into place: %v", tool.Name, err), err)
	}
	d.Path = dest
	res.Download = &d
	u.reporter.Installed(tool.Name, d)

	res.After = u.probe(ctx, tool, dest)
	return res, nil
}

// probe asks the tool for its version. Failures only cost the version.
func (u *Updater) probe(ctx context.Context, tool Tool, bin string) update.Version {
	if len(tool.VersionArgs) == 0 {
		return update.Version{}
	}
	log := debug.WithFields(logrus.Fields{"tool": tool.Name, "bin": bin})

	out, err := u.runner.Run(ctx, bin, tool.VersionArgs...)
	if err != nil {
		log.WithError(err).Warn("version probe failed")
		return update.Version{}
	}
	v, err := update.ParseVersion(out.Stdout)
	if err != nil {
		log.WithError(err).Debug("version output not recognized")
		return update.Version{}
	}
	log.WithField("version", v.String()).Debug("version probed")
	return v
}
