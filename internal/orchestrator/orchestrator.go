// Package orchestrator binds data records to isolated browser sessions, runs
// a scenario per record and guarantees teardown on every path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pageflow/internal/artifact"
	"pageflow/internal/browser"
	"pageflow/internal/core"
	"pageflow/internal/data"
	"pageflow/internal/interact"
	"pageflow/internal/ratelimit"
	"pageflow/internal/session"
	"pageflow/internal/template"
)

// Func is scenario logic. A nil return passes the invocation; any error fails it.
type Func func(ctx context.Context, env *Env) error

// Job runs one scenario once per record of Source.
type Job struct {
	Scenario string
	Run      Func
	Source   data.DataSource
	// FilterField and FilterValue keep only matching records when set.
	FilterField string
	FilterValue string
	// Params are expanded against each record and added to it as fields.
	Params map[string]string
	// BaseURL is the application root; when empty the record's URL field is used.
	BaseURL string
}

// Options configures an Orchestrator. Driver is required.
type Options struct {
	Driver        browser.Driver
	Launch        browser.LaunchOptions
	Context       browser.ContextOptions
	TeardownGrace time.Duration

	// Timeout and PollInterval configure the interaction layer.
	Timeout      time.Duration
	PollInterval time.Duration
	// InvocationTimeout bounds one attempt's scenario call; 0 means no bound.
	InvocationTimeout time.Duration

	Concurrency int
	Retries     int
	Limiter     *ratelimit.Limiter

	RowPolicy data.RowPolicy
	Store     *artifact.Store
	// CheckpointScreenshots captures the page at every checkpoint, not only
	// on failure.
	CheckpointScreenshots bool
	Reporter  core.Reporter

	// Console receives log lines at Level and above. Every invocation also
	// keeps a full debug trail that is persisted when it fails.
	Console io.Writer
	Level   zerolog.Level

	Clock        core.Clock
	OnTransition TransitionFunc
}

type Orchestrator struct {
	opts   Options
	driver browser.Driver
	logger zerolog.Logger
}

func New(opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Store == nil {
		opts.Store = artifact.NewStore(artifact.DefaultDir)
	}
	if opts.Reporter == nil {
		opts.Reporter = core.NullReporter
	}
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	if opts.Clock == nil {
		opts.Clock = core.RealClock{}
	}
	o := &Orchestrator{
		opts:   opts,
		driver: opts.Limiter.Driver(opts.Driver),
	}
	o.logger = zerolog.New(o.console()).With().Timestamp().Logger()
	return o
}

func (o *Orchestrator) console() zerolog.LevelWriter {
	return &zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: o.opts.Console},
		Level:  o.opts.Level,
	}
}

// work is one (job, record) pair.
type work struct {
	seq    int
	job    *Job
	record core.Record
}

// Run loads every job's records, then runs one invocation per record and
// returns the outcomes in record order. If any source fails to load, no
// session is opened and each failing source yields one StatusError outcome.
// Cancelling ctx stops new invocations from starting; running ones still
// tear down and report.
func (o *Orchestrator) Run(ctx context.Context, jobs ...Job) []core.Outcome {
	items, failures := o.plan(jobs)
	if len(failures) > 0 {
		for _, f := range failures {
			o.opts.Reporter.Report(f)
		}
		return failures
	}

	o.logger.Info().Int("invocations", len(items)).Int("workers", o.opts.Concurrency).Msg("suite started")

	results := make([]core.Outcome, len(items))
	done := make([]bool, len(items))
	queue := make(chan work)

	var wg sync.WaitGroup
	for w := 0; w < o.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range queue {
				if ctx.Err() != nil {
					continue
				}
				results[it.seq] = o.invoke(ctx, it)
				done[it.seq] = true
			}
		}()
	}

dispatch:
	for _, it := range items {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- it:
		}
	}
	close(queue)
	wg.Wait()

	out := make([]core.Outcome, 0, len(items))
	for i, r := range results {
		if done[i] {
			out = append(out, r)
		}
	}
	if skipped := len(items) - len(out); skipped > 0 {
		o.logger.Warn().Int("skipped", skipped).Err(ctx.Err()).Msg("suite cancelled")
	}
	return out
}

func (o *Orchestrator) plan(jobs []Job) ([]work, []core.Outcome) {
	var items []work
	var failures []core.Outcome
	for i := range jobs {
		job := &jobs[i]
		records, err := o.load(job)
		if err != nil {
			o.logger.Error().Err(err).Str("scenario", job.Scenario).Msg("data source failed")
			failures = append(failures, core.Outcome{
				Scenario: job.Scenario,
				Status:   core.StatusError,
				Reason:   err.Error(),
				Started:  o.opts.Clock.Now(),
			})
			continue
		}
		for _, rec := range records {
			items = append(items, work{seq: len(items), job: job, record: rec})
		}
	}
	return items, failures
}

func (o *Orchestrator) load(job *Job) ([]core.Record, error) {
	if job.Run == nil {
		return nil, fmt.Errorf("scenario %q has no implementation", job.Scenario)
	}
	warn := func(w data.RowDecodeWarning) {
		o.logger.Warn().Str("scenario", job.Scenario).Str("source", w.Source).Int("line", w.Line).Msg(w.String())
	}
	records, err := data.Load(job.Source, data.WithRowPolicy(o.opts.RowPolicy), data.WithWarnFunc(warn))
	if err != nil {
		return nil, err
	}
	if job.FilterField != "" {
		records = data.Filter(records, job.FilterField, job.FilterValue)
	}
	for i, rec := range records {
		if records[i], err = template.Apply(rec, job.Params); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.Index(), err)
		}
	}
	return records, nil
}

// invoke runs it until it passes or its retries are spent, then reports the
// final attempt.
func (o *Orchestrator) invoke(ctx context.Context, it work) core.Outcome {
	var out core.Outcome
	for attempt := 1; ; attempt++ {
		out = o.attempt(ctx, it)
		out.Attempts = attempt
		if out.Passed() || attempt > o.opts.Retries || ctx.Err() != nil {
			break
		}
		o.logger.Warn().
			Str("invocation", out.InvocationID).
			Int("attempt", attempt).
			Str("reason", out.Reason).
			Msg("retrying in a fresh session")
	}
	o.opts.Reporter.Report(out)
	return out
}

func (o *Orchestrator) invocationID(it work) string {
	return fmt.Sprintf("%s-%03d-%s", it.job.Scenario, it.record.Index(), uuid.NewString()[:8])
}

// attempt drives one invocation through its lifecycle in a fresh session.
func (o *Orchestrator) attempt(parent context.Context, it work) (out core.Outcome) {
	id := o.invocationID(it)
	trail := &core.SyncBuffer{}
	logger := zerolog.New(zerolog.MultiLevelWriter(o.console(), trail)).
		Level(zerolog.DebugLevel).
		With().Timestamp().
		Str("invocation", id).
		Str("scenario", it.job.Scenario).
		Int("record", it.record.Index()).
		Logger()

	ctx := core.ContextWithInvocationID(parent, id)
	lc := newLifecycle(id, o.opts.OnTransition)
	mustTransition := func(from, to State) {
		if err := lc.transition(from, to); err != nil {
			logger.Error().Err(err).Msg("lifecycle violation")
		}
	}

	start := o.opts.Clock.Now()
	out = core.Outcome{
		InvocationID: id,
		Scenario:     it.job.Scenario,
		RecordIndex:  it.record.Index(),
		TestCase:     it.record.Value("TestCase"),
		Started:      start,
	}
	logger.Info().Str("test_case", out.TestCase).Msg("invocation started")

	sess, err := session.Open(ctx, o.driver, session.Options{
		Launch:        o.opts.Launch,
		Context:       o.opts.Context,
		TeardownGrace: o.opts.TeardownGrace,
		Logger:        logger,
	})
	if err != nil {
		mustTransition(StateCreated, StateFailed)
		out.Status = core.StatusFailed
		out.Reason = err.Error()
		logger.Error().Err(err).Msg("session open failed")
		out.Artifact = o.reserveTrail(id, "session_open", logger)
		mustTransition(StateFailed, StateTornDown)
		out.Duration = o.opts.Clock.Since(start)
		o.flushTrail(out.Artifact, trail, logger)
		return out
	}
	mustTransition(StateCreated, StateSessionOpen)

	ui := interact.New(sess.Page(),
		interact.WithTimeout(o.opts.Timeout),
		interact.WithPollInterval(o.opts.PollInterval),
		interact.WithLogger(logger),
		interact.WithArtifactStore(o.opts.Store),
	)
	baseURL := it.job.BaseURL
	if baseURL == "" {
		baseURL = it.record.Value("URL")
	}
	env := newEnv(it.record, baseURL, ui, logger, o.opts.CheckpointScreenshots)

	final := StateFailed
	defer func() {
		sess.Close()
		mustTransition(final, StateTornDown)
		out.Duration = o.opts.Clock.Since(start)
		logger.Info().Str("status", string(out.Status)).Dur("duration", out.Duration).Msg("invocation finished")
		// Written after teardown so the trail carries close and kill messages.
		o.flushTrail(out.Artifact, trail, logger)
	}()

	mustTransition(StateSessionOpen, StateRunning)
	err = o.call(ctx, it.job.Run, env)
	if err == nil {
		final = StatePassed
		mustTransition(StateRunning, StatePassed)
		out.Status = core.StatusPassed
		return out
	}

	mustTransition(StateRunning, StateFailed)
	out.Status = core.StatusFailed
	out.Reason = err.Error()
	logger.Error().Err(err).Str("checkpoint", env.LastCheckpoint()).Msg("invocation failed")
	out.Artifact = o.captureFailure(ctx, env, logger)
	return out
}

// call runs the scenario, converting a panic into an error.
func (o *Orchestrator) call(ctx context.Context, fn Func, env *Env) (err error) {
	if o.opts.InvocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.InvocationTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, env)
}

// captureFailure records a screenshot and reserves the log trail under the
// last checkpoint. Capture problems are logged and never replace the failure.
func (o *Orchestrator) captureFailure(ctx context.Context, env *Env, logger zerolog.Logger) *core.Artifact {
	checkpoint := env.LastCheckpoint()
	name := "failed_" + checkpoint

	// The scenario's context may be cancelled or past its deadline; capture
	// still gets a bounded window of its own.
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), env.UI.Timeout())
	defer cancel()

	shot, err := env.UI.CaptureArtifact(captureCtx, name)
	if err != nil && !errors.Is(err, interact.ErrArtifactCapture) {
		logger.Warn().Err(err).Msg("unexpected capture error")
	}
	a := o.reserveTrail(core.InvocationIDFromContext(ctx), name, logger)
	a.Checkpoint = checkpoint
	a.Screenshot = shot
	return a
}

// reserveTrail claims the trail path now; flushTrail writes it once the
// invocation is over.
func (o *Orchestrator) reserveTrail(id, name string, logger zerolog.Logger) *core.Artifact {
	a := &core.Artifact{Checkpoint: name}
	path, err := o.opts.Store.Reserve(id, name, "log")
	if err != nil {
		logger.Warn().Err(err).Msg("log trail not saved")
		return a
	}
	a.Trail = path
	return a
}

func (o *Orchestrator) flushTrail(a *core.Artifact, trail *core.SyncBuffer, logger zerolog.Logger) {
	if a == nil || a.Trail == "" {
		return
	}
	if err := o.opts.Store.Write(a.Trail, trail.Bytes()); err != nil {
		logger.Warn().Err(err).Str("path", a.Trail).Msg("log trail not saved")
		a.Trail = ""
	}
}

// ConsoleWriter formats log lines for a terminal. A nil out means stderr.
func ConsoleWriter(out io.Writer) io.Writer {
	if out == nil {
		out = os.Stderr
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339Nano}
}
