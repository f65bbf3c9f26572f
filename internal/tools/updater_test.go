package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appErrors "upder/internal/errors"
	"upder/internal/platform"
	"upder/internal/process"
	"upder/internal/update"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	outputs map[string][]string
	fail    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (process.Output, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	key := strings.Join(args, " ")
	if err, ok := f.fail[key]; ok {
		return process.Output{}, err
	}
	if queue := f.outputs[key]; len(queue) > 0 {
		f.outputs[key] = queue[1:]
		return process.Output{Stdout: queue[0]}, nil
	}
	return process.Output{}, nil
}

func (f *fakeRunner) updateCalls() []string {
	var lines []string
	for _, c := range f.calls {
		if len(c.args) == 1 && c.args[0] == "--version" {
			continue
		}
		lines = append(lines, strings.Join(c.args, " "))
	}
	return lines
}

type fakeInstaller struct {
	urls    []string
	payload []byte
	err     error
}

func (f *fakeInstaller) Install(_ context.Context, url, dest string) (update.Download, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return update.Download{}, f.err
	}
	if err := os.WriteFile(dest, f.payload, 0o755); err != nil {
		return update.Download{}, err
	}
	return update.Download{Path: dest, Bytes: int64(len(f.payload))}, nil
}

type recordingReporter struct {
	commands  []string
	installed []update.Download
}

func (r *recordingReporter) Command(_, line string)        { r.commands = append(r.commands, line) }
func (r *recordingReporter) Output(string, process.Output) {}
func (r *recordingReporter) Installed(_ string, d update.Download) {
	r.installed = append(r.installed, d)
}

func pathWith(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestUpdateRunsCommandsInOrder(t *testing.T) {
	dir := pathWith(t, "rustup")
	runner := &fakeRunner{outputs: map[string][]string{
		"--version": {"rustup 1.27.0 (2024-03-08)", "rustup 1.27.1 (2024-04-24)"},
	}}
	reporter := &recordingReporter{}
	u := NewUpdater(runner, &fakeInstaller{}, WithSearchPath(dir), WithReporter(reporter))

	res, err := u.Update(context.Background(), Defaults()[0])
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := []string{"self update", "self upgrade-data", "update"}
	got := runner.updateCalls()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for _, c := range runner.calls {
		if c.name != filepath.Join(dir, "rustup") {
			t.Fatalf("ran %q, want resolved path", c.name)
		}
	}
	if res.Commands != 3 {
		t.Fatalf("Commands = %d, want 3", res.Commands)
	}
	if res.Before.String() != "v1.27.0" || res.After.String() != "v1.27.1" {
		t.Fatalf("versions = %s -> %s", res.Before, res.After)
	}
	if !res.Upgraded() {
		t.Fatal("expected Upgraded")
	}
	if reporter.commands[0] != "rustup self update" {
		t.Fatalf("first reported command = %q", reporter.commands[0])
	}
}

func TestUpdateMissingExecutable(t *testing.T) {
	runner := &fakeRunner{}
	u := NewUpdater(runner, &fakeInstaller{}, WithSearchPath(t.TempDir()))

	_, err := u.Update(context.Background(), Defaults()[1])
	if !appErrors.IsCode(err, appErrors.CodeExecutableNotFound) {
		t.Fatalf("expected executable_not_found, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("nothing should run, got %v", runner.calls)
	}
}

func TestUpdateStopsOnSpawnFailure(t *testing.T) {
	dir := pathWith(t, "rustup")
	spawn := appErrors.New(appErrors.CodeSpawnFailed, "spawn rustup: exec format error", nil)
	runner := &fakeRunner{fail: map[string]error{"self upgrade-data": spawn}}
	u := NewUpdater(runner, &fakeInstaller{}, WithSearchPath(dir))

	res, err := u.Update(context.Background(), Defaults()[0])
	if !appErrors.IsCode(err, appErrors.CodeSpawnFailed) {
		t.Fatalf("expected spawn_failed, got %v", err)
	}
	if res.Commands != 1 {
		t.Fatalf("Commands = %d, want 1", res.Commands)
	}
	got := runner.updateCalls()
	if len(got) != 2 || got[1] != "self upgrade-data" {
		t.Fatalf("commands = %v, expected to stop after the failure", got)
	}
}

func TestInstallReplacesExistingBinary(t *testing.T) {
	home := t.TempDir()
	installDir := filepath.Join(home, ".local", "bin")
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(installDir, "rust-analyzer")
	if err := os.WriteFile(dest, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest+stagingSuffix, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	installer := &fakeInstaller{payload: []byte("new build")}
	reporter := &recordingReporter{}
	u := NewUpdater(&fakeRunner{}, installer,
		WithInstallDir(installDir),
		WithReleaseHost("http://mirror.test"),
		WithPlatform(platform.Linux),
		WithReporter(reporter),
	)

	res, err := u.Update(context.Background(), Defaults()[2])
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	wantURL := "http://mirror.test/rust-analyzer/rust-analyzer/releases/download/nightly/rust-analyzer-linux"
	if len(installer.urls) != 1 || installer.urls[0] != wantURL {
		t.Fatalf("urls = %v, want %s", installer.urls, wantURL)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read installed: %v", err)
	}
	if string(data) != "new build" {
		t.Fatalf("installed contents = %q", data)
	}
	if _, err := os.Stat(dest + stagingSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staging file should be gone, stat err = %v", err)
	}
	if res.Download == nil || res.Download.Path != dest {
		t.Fatalf("Download = %+v", res.Download)
	}
	if len(reporter.installed) != 1 {
		t.Fatalf("installed reports = %d", len(reporter.installed))
	}
}

func TestInstallCreatesInstallDir(t *testing.T) {
	installDir := filepath.Join(t.TempDir(), ".local", "bin")
	u := NewUpdater(&fakeRunner{}, &fakeInstaller{payload: []byte("x")}, WithInstallDir(installDir))

	if _, err := u.Update(context.Background(), Defaults()[2]); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installDir, "rust-analyzer")); err != nil {
		t.Fatalf("binary not installed: %v", err)
	}
}

func TestInstallFailureKeepsPreviousBinary(t *testing.T) {
	installDir := t.TempDir()
	dest := filepath.Join(installDir, "rust-analyzer")
	if err := os.WriteFile(dest, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	status := appErrors.New(appErrors.CodeHTTPStatus, "404 Not Found", nil)
	u := NewUpdater(&fakeRunner{}, &fakeInstaller{err: status}, WithInstallDir(installDir))

	_, err := u.Update(context.Background(), Defaults()[2])
	if !appErrors.IsCode(err, appErrors.CodeHTTPStatus) {
		t.Fatalf("expected http_status, got %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "old" {
		t.Fatalf("previous binary changed: %q", data)
	}
}

func TestInstallWithoutHome(t *testing.T) {
	installer := &fakeInstaller{}
	u := NewUpdater(&fakeRunner{}, installer)

	_, err := u.Update(context.Background(), Defaults()[2])
	if !appErrors.IsCode(err, appErrors.CodeEnvMissing) {
		t.Fatalf("expected env_missing, got %v", err)
	}
	if len(installer.urls) != 0 {
		t.Fatal("nothing should be downloaded")
	}
}

func TestProbeFailureIsNotFatal(t *testing.T) {
	dir := pathWith(t, "flutter")
	runner := &fakeRunner{fail: map[string]error{"--version": errors.New("boom")}}
	u := NewUpdater(runner, &fakeInstaller{}, WithSearchPath(dir))

	res, err := u.Update(context.Background(), Defaults()[1])
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.Before.IsZero() || !res.After.IsZero() {
		t.Fatalf("versions should be unknown, got %s -> %s", res.Before, res.After)
	}
	if res.Upgraded() {
		t.Fatal("unknown versions are never an upgrade")
	}
}
