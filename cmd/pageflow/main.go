// Command pageflow runs data-driven browser scenarios described by a suite file.
//
// Usage:
//
//	pageflow [--verbose] run [flags] suite.yaml
//	pageflow records [flags] data.csv
//	pageflow scenarios
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"pageflow/internal/browser"
	"pageflow/internal/config"
	"pageflow/internal/orchestrator"
	"pageflow/internal/scenario"
)

const AppName = "pageflow"

const (
	ExitSuccess = 0
	ExitFailed  = 1
	ExitError   = 2
)

var version = "dev"

// DriverFactory returns the browser driver registered under a backend name.
type DriverFactory func(name string) (browser.Driver, error)

type App struct {
	cli    *cli.App
	stdout io.Writer
	stderr io.Writer
	level  zerolog.Level
	logger zerolog.Logger

	newDriver DriverFactory
	lookup    config.Lookup
}

func New() *App {
	return newApp(os.Stdout, os.Stderr, browser.New)
}

func newApp(stdout, stderr io.Writer, newDriver DriverFactory) *App {
	app := &App{
		stdout:    stdout,
		stderr:    stderr,
		level:     zerolog.InfoLevel,
		newDriver: newDriver,
		lookup:    scenario.Lookup,
	}
	app.logger = zerolog.New(orchestrator.ConsoleWriter(stderr)).With().Timestamp().Logger()

	app.cli = &cli.App{
		Name:      AppName,
		Usage:     "run data-driven end-to-end browser scenarios",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				app.level = zerolog.DebugLevel
			}
			app.logger = app.logger.Level(app.level)
			return nil
		},
		// Exit codes are mapped by Run's caller.
		ExitErrHandler: func(*cli.Context, error) {},
	}
	app.cli.Commands = []*cli.Command{
		app.runCommand(),
		app.recordsCommand(),
		app.scenariosCommand(),
	}
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitError
}

func main() {
	err := New().Run(os.Args)
	if err != nil && err.Error() != "" {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
