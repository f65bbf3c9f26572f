// Package app sequences one updater run: the optional schedule install, then
// every managed tool in order.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"upder/internal/config"
	"upder/internal/debug"
	"upder/internal/history"
	"upder/internal/process"
	"upder/internal/schedule"
	"upder/internal/tools"
)

// ScheduleStep is the step name recorded for the schedule install.
const ScheduleStep = "schedule"

// Options selects what a run does.
type Options struct {
	// Generate installs the systemd timer before updating.
	Generate bool
}

// Scheduler installs the recurring run. An empty execPath means the running
// executable.
type Scheduler interface {
	Install(ctx context.Context, execPath string) error
}

// ToolUpdater updates a single tool.
type ToolUpdater interface {
	Update(ctx context.Context, tool tools.Tool) (tools.Result, error)
}

// Ledger persists runs. All methods may fail without affecting the run.
type Ledger interface {
	StartRun(ctx context.Context) (history.Run, error)
	RecordStep(ctx context.Context, step history.Step) error
	FinishRun(ctx context.Context, runID string, runErr error) error
}

// Reporter is told when each step starts and ends.
type Reporter interface {
	StepStarted(name string)
	StepFinished(res tools.Result, err error)
}

type nopReporter struct{}

func (nopReporter) StepStarted(string)               {}
func (nopReporter) StepFinished(tools.Result, error) {}

// App runs the update sequence.
type App struct {
	scheduler Scheduler
	updater   ToolUpdater
	tools     []tools.Tool
	ledger    Ledger
	reporter  Reporter
	execPath  string
	now       func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithLedger records runs in l.
func WithLedger(l Ledger) Option {
	return func(a *App) {
		a.ledger = l
	}
}

// WithReporter sets the step reporter.
func WithReporter(r Reporter) Option {
	return func(a *App) {
		if r != nil {
			a.reporter = r
		}
	}
}

// WithTools replaces the default tool table.
func WithTools(t []tools.Tool) Option {
	return func(a *App) {
		a.tools = t
	}
}

// WithScheduler replaces the systemd installer.
func WithScheduler(s Scheduler) Option {
	return func(a *App) {
		a.scheduler = s
	}
}

// WithUpdater replaces the tool updater.
func WithUpdater(u ToolUpdater) Option {
	return func(a *App) {
		a.updater = u
	}
}

// Deps are the collaborators New wires from configuration.
type Deps struct {
	Runner    process.Runner
	Installer tools.Installer
	// ToolReporter receives command and install events.
	ToolReporter tools.Reporter
	// Output receives systemctl output.
	Output io.Writer
}

// New wires an App from cfg.
func New(cfg *config.Config, deps Deps, opts ...Option) *App {
	a := &App{
		scheduler: schedule.NewInstaller(cfg.ConfigHome, deps.Runner, schedule.WithOutput(deps.Output)),
		updater: tools.NewUpdater(deps.Runner, deps.Installer,
			tools.WithSearchPath(cfg.SearchPath),
			tools.WithInstallDir(cfg.InstallDir()),
			tools.WithReleaseHost(cfg.ReleaseHost),
			tools.WithReporter(deps.ToolReporter),
		),
		tools:    tools.Defaults(),
		reporter: nopReporter{},
		execPath: cfg.ScheduleExec,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run performs one update run. The first failing step aborts the run and
// its error is returned.
func (a *App) Run(ctx context.Context, opts Options) (err error) {
	runID := a.startRun(ctx)
	defer func() {
		a.finishRun(ctx, runID, err)
	}()

	if opts.Generate {
		if err := a.step(ctx, runID, tools.Tool{Name: ScheduleStep}, a.installSchedule); err != nil {
			return fmt.Errorf("install schedule: %w", err)
		}
	}

	for _, tool := range a.tools {
		if err := a.step(ctx, runID, tool, a.updater.Update); err != nil {
			return fmt.Errorf("update %s: %w", tool.Name, err)
		}
	}
	return nil
}

func (a *App) installSchedule(ctx context.Context, tool tools.Tool) (tools.Result, error) {
	return tools.Result{Tool: tool.Name, Path: a.execPath}, a.scheduler.Install(ctx, a.execPath)
}

func (a *App) step(ctx context.Context, runID string, tool tools.Tool, do func(context.Context, tools.Tool) (tools.Result, error)) error {
	a.reporter.StepStarted(tool.Name)
	start := a.now()
	res, err := do(ctx, tool)
	if res.Tool == "" {
		res.Tool = tool.Name
	}
	a.reporter.StepFinished(res, err)
	a.recordStep(ctx, runID, res, a.now().Sub(start), err)
	return err
}

func (a *App) startRun(ctx context.Context) string {
	if a.ledger == nil {
		return ""
	}
	run, err := a.ledger.StartRun(ctx)
	if err != nil {
		debug.WithFields(logrus.Fields{"error": err}).Warn("history: start run failed")
		return ""
	}
	return run.ID
}

func (a *App) recordStep(ctx context.Context, runID string, res tools.Result, elapsed time.Duration, stepErr error) {
	if a.ledger == nil || runID == "" {
		return
	}
	step := history.Step{
		RunID:    runID,
		Tool:     res.Tool,
		Status:   history.StatusSucceeded,
		Duration: elapsed,
	}
	if !res.Before.IsZero() {
		step.Before = res.Before.String()
	}
	if !res.After.IsZero() {
		step.After = res.After.String()
	}
	if res.Download != nil {
		step.Bytes = res.Download.Bytes
		step.SHA256 = res.Download.SHA256
	}
	if stepErr != nil {
		step.Status = history.StatusFailed
		step.Error = stepErr.Error()
	}
	if err := a.ledger.RecordStep(context.WithoutCancel(ctx), step); err != nil {
		debug.WithFields(logrus.Fields{"tool": res.Tool, "error": err}).Warn("history: record step failed")
	}
}

func (a *App) finishRun(ctx context.Context, runID string, runErr error) {
	if a.ledger == nil || runID == "" {
		return
	}
	if err := a.ledger.FinishRun(context.WithoutCancel(ctx), runID, runErr); err != nil {
		debug.WithFields(logrus.Fields{"run": runID, "error": err}).Warn("history: finish run failed")
	}
}
