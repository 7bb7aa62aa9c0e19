package browsertest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/internal/browser"
)

func TestDriver_PagesHavePrivateDOMs(t *testing.T) {
	d := &Driver{Routes: map[string]DOM{
		"https://app.test/login": {"#user": {}, "#banner": {Text: "Welcome", AppearAfter: 1}},
	}}
	ctx := context.Background()

	b, err := d.Launch(ctx, browser.LaunchOptions{})
	require.NoError(t, err)
	bc, err := b.NewContext(ctx, browser.ContextOptions{})
	require.NoError(t, err)
	p1, err := bc.NewPage(ctx)
	require.NoError(t, err)
	p2, err := bc.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, p1.Navigate(ctx, "https://app.test/login"))
	require.NoError(t, p2.Navigate(ctx, "https://app.test/login"))
	require.NoError(t, p1.Fill(ctx, "#user", "alice"))

	assert.Equal(t, "alice", p1.(*Page).Value("#user"))
	assert.Equal(t, "", p2.(*Page).Value("#user"))

	err = p1.WaitForSelector(ctx, "#banner", 0)
	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.NoError(t, p1.WaitForSelector(ctx, "#banner", 0))

	text, err := p1.TextContent(ctx, "#banner")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", text)

	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, p1.Screenshot(ctx, path))
	assert.FileExists(t, path)
}

func TestDriver_RecordsLifecycle(t *testing.T) {
	d := &Driver{}
	ctx := context.Background()

	b, _ := d.Launch(ctx, browser.LaunchOptions{})
	bc, _ := b.NewContext(ctx, browser.ContextOptions{})
	p, _ := bc.NewPage(ctx)
	assert.Equal(t, 1, d.Live())

	require.NoError(t, p.Close(ctx))
	require.NoError(t, bc.Close(ctx))
	require.NoError(t, b.Close(ctx))

	assert.Equal(t, []string{"browser.launch", "context.new", "page.new", "page.close", "context.close", "browser.close"},
		d.Browsers()[0].Events())
	assert.Equal(t, 0, d.Live())

	assert.Error(t, p.Click(ctx, "#x"))
}

func TestDriver_Failures(t *testing.T) {
	boom := errors.New("boom")
	d := &Driver{LaunchErr: boom}
	_, err := d.Launch(context.Background(), browser.LaunchOptions{})
	assert.ErrorIs(t, err, boom)

	d = &Driver{Wedge: map[string]bool{"browser": true}}
	b, _ := d.Launch(context.Background(), browser.LaunchOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Close(ctx), context.Canceled)
	require.NoError(t, b.Kill())
	assert.True(t, d.Browsers()[0].Killed())
}
