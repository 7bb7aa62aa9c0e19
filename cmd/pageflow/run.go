package main

// This file contains the run command, which executes a suite file.

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"pageflow/internal/collector"
	"pageflow/internal/config"
	"pageflow/internal/core"
	"pageflow/internal/data"
	"pageflow/internal/orchestrator"
	"pageflow/internal/progress"
	"pageflow/internal/scenario"
)

func (a *App) runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the scenarios of a suite file",
		ArgsUsage: "suite.yaml",
		Action:    a.run,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "text", Usage: "summary format: text, json"},
			&cli.StringFlag{Name: "junit", Usage: "also write a JUnit XML report to `PATH`"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress progress output and info logs"},
			&cli.StringSliceFlag{Name: "scenario", Aliases: []string{"s"}, Usage: "run only the named scenario entries (repeatable)"},
			&cli.StringFlag{Name: "backend", Usage: "browser backend: playwright, chromedp, webdriver"},
			&cli.BoolFlag{Name: "headed", Usage: "show the browser window"},
			&cli.StringFlag{Name: "base-url", Usage: "application root URL"},
			&cli.IntFlag{Name: "concurrency", Aliases: []string{"c"}, Usage: "parallel invocations"},
			&cli.IntFlag{Name: "retries", Usage: "re-runs of a failed invocation"},
			&cli.DurationFlag{Name: "timeout", Usage: "element wait budget"},
			&cli.StringFlag{Name: "artifacts", Usage: "artifact directory"},
			&cli.StringFlag{Name: "row-policy", Usage: "malformed row handling: lenient, strict"},
			&cli.BoolFlag{Name: "checkpoint-screenshots", Usage: "capture a screenshot at every checkpoint"},
		},
	}
}

// applyOverrides lets command-line flags win over suite file values.
func applyOverrides(c *cli.Context, s *config.Suite) {
	if c.IsSet("backend") {
		s.Browser.Backend = c.String("backend")
	}
	if c.IsSet("headed") {
		headless := !c.Bool("headed")
		s.Browser.Headless = &headless
	}
	if c.IsSet("base-url") {
		s.BaseURL = c.String("base-url")
	}
	if c.IsSet("concurrency") {
		s.Execution.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("retries") {
		s.Execution.Retries = c.Int("retries")
	}
	if c.IsSet("timeout") {
		s.Execution.Timeout = c.Duration("timeout")
	}
	if c.IsSet("artifacts") {
		s.Artifacts.Dir = c.String("artifacts")
	}
	if c.IsSet("row-policy") {
		s.Execution.RowPolicy = data.RowPolicy(c.String("row-policy"))
	}
	if c.IsSet("checkpoint-screenshots") {
		s.Artifacts.CheckpointScreenshots = c.Bool("checkpoint-screenshots")
	}
}

// selectScenarios keeps the entries named in names.
func selectScenarios(s *config.Suite, names []string) error {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var kept []config.ScenarioConfig
	for _, sc := range s.Scenarios {
		if want[sc.Name] {
			kept = append(kept, sc)
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("no scenario entries match %s", strings.Join(names, ", "))
	}
	s.Scenarios = kept
	return nil
}

func (a *App) checkScenarios(s *config.Suite) error {
	var unknown []string
	for _, sc := range s.Scenarios {
		if _, ok := a.lookup(sc.Name); !ok {
			unknown = append(unknown, sc.Name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown scenarios %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(scenario.Names(), ", "))
	}
	return nil
}

func (a *App) run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("run: exactly one suite file is required", ExitError)
	}
	output := c.String("output")
	if output != "text" && output != "json" {
		return cli.Exit(fmt.Sprintf("--output must be 'text' or 'json', got %q", output), ExitError)
	}
	quiet := c.Bool("quiet")

	suite, err := config.LoadFile(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), ExitError)
	}
	applyOverrides(c, suite)
	if err := selectScenarios(suite, c.StringSlice("scenario")); err != nil {
		return cli.Exit(err.Error(), ExitError)
	}
	if err := suite.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid suite: %v", err), ExitError)
	}
	if err := a.checkScenarios(suite); err != nil {
		return cli.Exit(err.Error(), ExitError)
	}
	jobs, err := suite.Jobs(a.lookup)
	if err != nil {
		return cli.Exit(err.Error(), ExitError)
	}
	driver, err := a.newDriver(suite.Browser.Backend)
	if err != nil {
		return cli.Exit(err.Error(), ExitError)
	}

	level := a.level
	if quiet && level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}

	coll := collector.NewCollector()
	prog := progress.NewProgress(coll, 0, quiet)
	prog.SetOutput(a.stderr)

	opts := suite.Options()
	opts.Driver = driver
	opts.Reporter = collector.Fanout(coll, prog)
	opts.Console = orchestrator.ConsoleWriter(a.stderr)
	opts.Level = level
	orch := orchestrator.New(opts)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := suite.Name
	if name == "" {
		name = filepath.Base(c.Args().First())
	}
	prog.Printf("pageflow starting: suite %q, %d scenario entries, backend %s, concurrency %d",
		name, len(jobs), suite.Browser.Backend, suite.Execution.Concurrency)
	prog.Start()
	outcomes := orch.Run(ctx, jobs...)
	prog.Stop()
	coll.Close()
	interrupted := ctx.Err() != nil

	summary := coll.Summarize()
	var thresholds *collector.ThresholdResults
	if suite.Thresholds != nil {
		thresholds = suite.Thresholds.Check(summary)
	}

	if output == "json" {
		collector.FormatJSON(a.stdout, summary, thresholds)
	} else {
		collector.FormatText(a.stdout, summary, thresholds)
	}

	if path := c.String("junit"); path != "" {
		if err := writeJUnit(path, outcomes, summary); err != nil {
			return cli.Exit(err.Error(), ExitError)
		}
		a.logger.Debug().Str("path", path).Msg("junit report written")
	}

	if interrupted {
		return cli.Exit("run interrupted", ExitError)
	}
	if !passed(summary, thresholds) {
		if thresholds != nil && !thresholds.Passed && output == "text" {
			fmt.Fprintln(a.stderr, "\nThreshold check failed!")
		}
		return cli.Exit("", ExitFailed)
	}
	return nil
}

// passed decides the suite verdict. Without thresholds every invocation must
// pass; with thresholds failures within the limits are tolerated. Suite
// errors always fail.
func passed(s *collector.Summary, th *collector.ThresholdResults) bool {
	if s.SuiteErrors > 0 {
		return false
	}
	if th != nil {
		return th.Passed
	}
	return s.OK()
}

func writeJUnit(path string, outcomes []core.Outcome, s *collector.Summary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("junit report: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("junit report: %w", err)
	}
	if err := collector.FormatJUnit(f, outcomes, s); err != nil {
		f.Close()
		return fmt.Errorf("junit report: %w", err)
	}
	return f.Close()
}
