package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"pageflow/internal/core"
	"pageflow/internal/interact"
	"pageflow/internal/pages"
)

// initialCheckpoint names the failure point of a scenario that never
// reported progress.
const initialCheckpoint = "start"

// Env is the invocation-scoped value handed to a scenario. It is created for
// one invocation, bound to that invocation's session, and never shared.
type Env struct {
	Record  core.Record
	BaseURL string
	UI      *interact.Interactor
	Login   *pages.LoginPage
	Account *pages.AccountPage
	Logger  zerolog.Logger

	checkpoint string
	capture    bool
}

func newEnv(rec core.Record, baseURL string, ui *interact.Interactor, logger zerolog.Logger, capture bool) *Env {
	return &Env{
		Record:     rec,
		BaseURL:    baseURL,
		UI:         ui,
		Login:      pages.NewLoginPage(ui),
		Account:    pages.NewAccountPage(ui, baseURL),
		Logger:     logger,
		checkpoint: initialCheckpoint,
		capture:    capture,
	}
}

// Checkpoint marks progress. A failure after this call is documented under
// name. With checkpoint screenshots enabled the page is captured as well.
func (e *Env) Checkpoint(ctx context.Context, name string) {
	e.checkpoint = name
	e.Logger.Debug().Str("checkpoint", name).Msg("checkpoint")
	if e.capture {
		e.Screenshot(ctx, name)
	}
}

// LastCheckpoint returns the most recent checkpoint name.
func (e *Env) LastCheckpoint() string { return e.checkpoint }

// Screenshot captures the page under name without affecting the outcome.
func (e *Env) Screenshot(ctx context.Context, name string) string {
	path, _ := e.UI.CaptureArtifact(ctx, name)
	return path
}

// Field returns the record's value for name, or "".
func (e *Env) Field(name string) string { return e.Record.Value(name) }
