// Package schedule installs a systemd user timer that re-runs the updater daily.
package schedule

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/sirupsen/logrus"

	"upder/internal/debug"
	appErrors "upder/internal/errors"
	"upder/internal/process"
)

// Unit file names written under <config-home>/systemd/user.
const (
	ServiceName = "upder.service"
	TimerName   = "upder.timer"
)

var serviceTemplate = template.Must(template.New(ServiceName).Parse(`[Unit]
Description=Update developer tools

[Service]
Type=oneshot
ExecStart={{.Exec}}
StandardOutput=journal
`))

var timerTemplate = template.Must(template.New(TimerName).Parse(`[Unit]
Description=Run {{.Service}} daily

[Timer]
OnCalendar=daily
Persistent=true

[Install]
WantedBy=timers.target
`))

type unitData struct {
	Exec    string
	Service string
}

// Installer writes the unit files and enables the timer.
type Installer struct {
	configHome string
	runner     process.Runner
	out        io.Writer
}

// Option configures an Installer.
type Option func(*Installer)

// WithOutput sets where systemctl output is printed.
func WithOutput(w io.Writer) Option {
	return func(i *Installer) {
		if w != nil {
			i.out = w
		}
	}
}

// NewInstaller creates an Installer rooted at configHome (XDG_CONFIG_HOME).
func NewInstaller(configHome string, runner process.Runner, opts ...Option) *Installer {
	i := &Installer{
		configHome: configHome,
		runner:     runner,
		out:        io.Discard,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// UnitDir returns the systemd user unit directory, or "" when the config
// home is unknown.
func (i *Installer) UnitDir() string {
	if i.configHome == "" {
		return ""
	}
	return filepath.Join(i.configHome, "systemd", "user")
}

// Render returns the service and timer unit contents for execPath.
func Render(execPath string) (service, timer []byte, err error) {
	data := unitData{Exec: execPath, Service: ServiceName}

	var sb bytes.Buffer
	if err := serviceTemplate.Execute(&sb, data); err != nil {
		return nil, nil, fmt.Errorf("render %s: %w", ServiceName, err)
	}
	var tb bytes.Buffer
	if err := timerTemplate.Execute(&tb, data); err != nil {
		return nil, nil, fmt.Errorf("render %s: %w", TimerName, err)
	}
	return sb.Bytes(), tb.Bytes(), nil
}

// executable resolves the path the timer runs when none is given.
var executable = os.Executable

// Install writes both unit files, overwriting earlier versions, then reloads
// the user manager and enables the timer. An empty execPath schedules the
// running executable.
func (i *Installer) Install(ctx context.Context, execPath string) error {
	dir := i.UnitDir()
	if dir == "" {
		return appErrors.EnvMissing("XDG_CONFIG_HOME")
	}
	if execPath == "" {
		resolved, err := executable()
		if err != nil {
			return appErrors.New(appErrors.CodeIO, fmt.Sprintf("resolve own executable: %v", err), err)
		}
		execPath = resolved
	}

	service, timer, err := Render(execPath)
	if err != nil {
		return err
	}

	//nolint:gosec // G301: systemd reads the unit directory as the user
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return appErrors.New(appErrors.CodeIO, fmt.Sprintf("create %s: %v", dir, err), err)
	}
	for _, unit := range []struct {
		name     string
		contents []byte
	}{{ServiceName, service}, {TimerName, timer}} {
		path := filepath.Join(dir, unit.name)
		//nolint:gosec // G306: unit files are not secret
		if err := os.WriteFile(path, unit.contents, 0o644); err != nil {
			return appErrors.New(appErrors.CodeIO, fmt.Sprintf("write %s: %v", path, err), err)
		}
	}
	debug.WithFields(logrus.Fields{"dir": dir, "exec": execPath}).Info("systemd units written")

	for _, args := range [][]string{
		{"--user", "daemon-reload"},
		{"--user", "enable", "--now", TimerName},
	} {
		if err := i.systemctl(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// systemctl runs one systemctl command and prints what it wrote. A non-zero
// exit is reported but does not fail the install.
func (i *Installer) systemctl(ctx context.Context, args ...string) error {
	line := process.CommandLine("systemctl", args)
	out, err := i.runner.Run(ctx, "systemctl", args...)
	if err != nil {
		return fmt.Errorf("%s: %w", line, err)
	}
	if out.Stdout != "" {
		_, _ = fmt.Fprint(i.out, out.Stdout)
	}
	if out.ExitCode != 0 {
		_, _ = fmt.Fprintf(i.out, "%s exited with status %d\n", line, out.ExitCode)
	}
	return nil
}
