package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageflow/internal/browser"
	"pageflow/internal/browser/browsertest"
)

func TestOpenClose_ReverseOrder(t *testing.T) {
	d := &browsertest.Driver{}
	s, err := Open(context.Background(), d, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NotNil(t, s.Page())

	s.Close()
	s.Close()

	assert.Equal(t, []string{
		"browser.launch", "context.new", "page.new",
		"page.close", "context.close", "browser.close",
	}, d.Browsers()[0].Events())
	assert.Equal(t, 0, d.Live())
}

func TestOpen_PassesOptions(t *testing.T) {
	d := &browsertest.Driver{}
	opts := Options{
		Launch:  browser.LaunchOptions{Headless: true, SlowMo: time.Second},
		Context: browser.ContextOptions{UserAgent: "ua"},
	}
	s, err := Open(context.Background(), d, opts)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, d.Browsers()[0].Options.Headless)
	assert.Equal(t, time.Second, d.Browsers()[0].Options.SlowMo)
}

func TestOpen_ReleasesPartialSession(t *testing.T) {
	boom := errors.New("boom")

	t.Run("launch fails", func(t *testing.T) {
		d := &browsertest.Driver{LaunchErr: boom}
		s, err := Open(context.Background(), d, Options{})
		assert.Nil(t, s)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, d.Browsers())
	})

	t.Run("context fails", func(t *testing.T) {
		d := &browsertest.Driver{NewContextErr: boom}
		s, err := Open(context.Background(), d, Options{})
		assert.Nil(t, s)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"browser.launch", "browser.close"}, d.Browsers()[0].Events())
		assert.Equal(t, 0, d.Live())
	})

	t.Run("page fails", func(t *testing.T) {
		d := &browsertest.Driver{NewPageErr: boom}
		s, err := Open(context.Background(), d, Options{})
		assert.Nil(t, s)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"browser.launch", "context.new", "context.close", "browser.close"}, d.Browsers()[0].Events())
		assert.Equal(t, 0, d.Live())
	})
}

func TestClose_KillsWedgedBrowser(t *testing.T) {
	d := &browsertest.Driver{Wedge: map[string]bool{"page": true}}
	s, err := Open(context.Background(), d, Options{TeardownGrace: 20 * time.Millisecond})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a wedged page")
	}

	b := d.Browsers()[0]
	assert.True(t, b.Killed())
	assert.NotContains(t, b.Events(), "context.close")
	assert.Equal(t, 0, d.Live())
}

func TestClose_FailedStepContinuesThenKills(t *testing.T) {
	d := &browsertest.Driver{CloseErr: map[string]error{"page": errors.New("detached")}}
	s, err := Open(context.Background(), d, Options{})
	require.NoError(t, err)

	s.Close()

	b := d.Browsers()[0]
	assert.Equal(t, []string{
		"browser.launch", "context.new", "page.new",
		"context.close", "browser.close", "browser.kill",
	}, b.Events())
}
