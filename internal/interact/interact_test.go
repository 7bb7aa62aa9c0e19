package interact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/internal/artifact"
	"pageflow/internal/browser"
	"pageflow/internal/browser/browsertest"
	"pageflow/internal/core"
)

const loginURL = "https://app.test/login"

func newPage(t *testing.T, d *browsertest.Driver) *browsertest.Page {
	t.Helper()
	if d.Routes == nil {
		d.Routes = map[string]browsertest.DOM{}
	}
	ctx := context.Background()
	b, err := d.Launch(ctx, browser.LaunchOptions{Headless: true})
	require.NoError(t, err)
	bc, err := b.NewContext(ctx, browser.ContextOptions{})
	require.NoError(t, err)
	p, err := bc.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, loginURL))
	return p.(*browsertest.Page)
}

func fast(opts ...Option) []Option {
	return append([]Option{WithTimeout(200 * time.Millisecond), WithPollInterval(time.Millisecond)}, opts...)
}

func TestWaitUntilVisible_PollsUntilRendered(t *testing.T) {
	d := &browsertest.Driver{Routes: map[string]browsertest.DOM{
		loginURL: {"#username": {AppearAfter: 5}},
	}}
	ui := New(newPage(t, d), fast()...)

	require.NoError(t, ui.WaitUntilVisible(context.Background(), "#username", 0))
}

func TestWaitUntilVisible_Timeout(t *testing.T) {
	d := &browsertest.Driver{Routes: map[string]browsertest.DOM{
		loginURL: {"#hidden": {Hidden: true}},
	}}
	ui := New(newPage(t, d), fast()...)

	start := time.Now()
	err := ui.WaitUntilVisible(context.Background(), "#hidden", 30*time.Millisecond)
	elapsed := time.Since(start)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, Target("#hidden"), te.Target)
	assert.Equal(t, 30*time.Millisecond, te.Timeout)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestWaitUntilVisible_ContextCancel(t *testing.T) {
	d := &browsertest.Driver{}
	ui := New(newPage(t, d), fast(WithTimeout(time.Minute))...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ui.WaitUntilVisible(ctx, "#never", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClick_NeverActsWhenWaitFails(t *testing.T) {
	clicked := false
	d := &browsertest.Driver{Routes: map[string]browsertest.DOM{
		loginURL: {"#login": {Hidden: true, OnClick: func(*browsertest.Page) { clicked = true }}},
	}}
	page := newPage(t, d)
	ui := New(page, fast()...)

	err := ui.Click(context.Background(), "#login", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, clicked)

	err = ui.Fill(context.Background(), "#login", "x", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []string{"navigate " + loginURL}, page.Actions())
}

func TestClickAndFill(t *testing.T) {
	d := &browsertest.Driver{Routes: map[string]browsertest.DOM{
		loginURL: {
			"#username": {AppearAfter: 2},
			"#login": {OnClick: func(p *browsertest.Page) {
				p.Set("#welcome", &browsertest.Element{Text: "Hello " + p.Value("#username")})
			}},
		},
	}}
	page := newPage(t, d)
	ui := New(page, fast()...)
	ctx := context.Background()

	require.NoError(t, ui.Fill(ctx, "#username", "alice", 0))
	require.NoError(t, ui.Click(ctx, "#login", 0))

	text, err := ui.ReadText(ctx, "#welcome", 0)
	require.NoError(t, err)
	assert.Equal(t, "Hello alice", text)
}

func TestClick_DriverFailureIsInteractionError(t *testing.T) {
	boom := errors.New("element is covered")
	d := &browsertest.Driver{Routes: map[string]browsertest.DOM{
		loginURL: {"#login": {ClickErr: boom}, "#user": {FillErr: boom}},
	}}
	ui := New(newPage(t, d), fast()...)

	err := ui.Click(context.Background(), "#login", 0)
	var ie *InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "click", ie.Op)
	assert.ErrorIs(t, err, ErrInteraction)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTimeout)

	err = ui.Fill(context.Background(), "#user", "secret", 0)
	assert.ErrorIs(t, err, ErrInteraction)
	assert.NotContains(t, err.Error(), "secret")
}

func TestIsVisible_Tolerant(t *testing.T) {
	d := &browsertest.Driver{Routes: map[string]browsertest.DOM{
		loginURL: {"#launcher": {}, "#hidden": {Hidden: true}},
	}}
	ui := New(newPage(t, d), fast()...)
	ctx := context.Background()

	assert.True(t, ui.IsVisible(ctx, "#launcher"))
	assert.False(t, ui.IsVisible(ctx, "#hidden"))
	assert.False(t, ui.IsVisible(ctx, "#missing"))

	d.IsVisibleErr = errors.New("execution context destroyed")
	assert.False(t, ui.IsVisible(ctx, "#launcher"))
}

func TestNavigate(t *testing.T) {
	d := &browsertest.Driver{Routes: map[string]browsertest.DOM{
		"https://app.test/home": {"#menu": {}},
	}}
	page := newPage(t, d)
	ui := New(page, fast()...)

	require.NoError(t, ui.Navigate(context.Background(), "https://app.test/home"))
	assert.Equal(t, "https://app.test/home", page.URL())
	assert.True(t, ui.IsVisible(context.Background(), "#menu"))

	d.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := ui.Navigate(context.Background(), "https://nowhere.test")
	assert.ErrorIs(t, err, ErrInteraction)
}

func TestCaptureArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "screenshots")
	d := &browsertest.Driver{}
	ui := New(newPage(t, d), fast(WithArtifactStore(artifact.NewStore(dir)))...)
	ctx := core.ContextWithInvocationID(context.Background(), "login-001-abcd1234")

	path, err := ui.CaptureArtifact(ctx, "after_submit")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "login-001-abcd1234_after_submit.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, browsertest.PNG, data)

	_, err = ui.CaptureArtifact(ctx, "after_submit")
	var ce *ArtifactCaptureError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, artifact.ErrExists)
}

func TestCaptureArtifact_FailureIsLogged(t *testing.T) {
	var logs core.SyncBuffer
	d := &browsertest.Driver{ScreenshotErr: errors.New("target crashed")}
	ui := New(newPage(t, d), fast(
		WithArtifactStore(artifact.NewStore(t.TempDir())),
		WithLogger(zerolog.New(&logs)),
	)...)

	path, err := ui.CaptureArtifact(context.Background(), "start")
	assert.Empty(t, path)
	assert.ErrorIs(t, err, ErrArtifactCapture)
	assert.Contains(t, logs.String(), "artifact capture failed")

	_, err = New(newPage(t, d)).CaptureArtifact(context.Background(), "start")
	assert.ErrorIs(t, err, ErrArtifactCapture)
}
