package session

import (
	"bytes"
	"context"
	"io"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunnel/internal/auth"
	"tunnel/internal/config"
	"tunnel/internal/ports"
	"tunnel/internal/scrape"
)

type fakeAuth struct {
	open   func() (io.WriteCloser, error)
	output string
	delay  time.Duration
	block  bool // wait for ctx like a live ssh session
	panics bool
}

func (f *fakeAuth) Run(ctx context.Context, localPort int) (auth.Outcome, error) {
	if f.panics {
		panic("boom")
	}
	time.Sleep(f.delay)
	if f.output != "" {
		w, err := f.open()
		if err != nil {
			return auth.Outcome{}, err
		}
		_, _ = io.WriteString(w, f.output)
		_ = w.Close()
	}
	if f.block {
		<-ctx.Done()
		return auth.Outcome{}, ctx.Err()
	}
	return auth.Outcome{Kind: auth.NoAuth, Tried: []auth.Kind{auth.NoAuth}}, nil
}

type reporter struct {
	mu       sync.Mutex
	urls     []string
	timedOut bool
}

func (r *reporter) Found(urls []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = urls
}

func (r *reporter) TimedOut(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timedOut = true
}

func newTestCoordinator(t *testing.T, command string, fa *fakeAuth) (*Coordinator, *reporter) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell commands")
	}
	port, err := ports.FindFreePort()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.Command = command
	cfg.LocalPort = port
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Timeout = 300 * time.Millisecond

	rep := &reporter{}
	c := NewCoordinator(cfg, hclog.NewNullLogger(), rep)
	fa.open = c.Session.OpenSink
	c.Auth = fa
	c.AppOut = &bytes.Buffer{}
	c.Out = &bytes.Buffer{}
	return c, rep
}

func assertSinkGone(t *testing.T, c *Coordinator) {
	t.Helper()
	_, err := os.Stat(c.Session.SinkPath)
	assert.True(t, os.IsNotExist(err), "sink should be removed, stat err = %v", err)
}

func TestRunFindsURLAndCleansUp(t *testing.T) {
	fa := &fakeAuth{output: "\x1b[32mhttps://abc123.a.free.pinggy.link\x1b[0m\nhttps://dashboard.pinggy.io/x\n"}
	c, rep := newTestCoordinator(t, "true", fa)

	var mu sync.Mutex
	var events []Event
	c.Notify = func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}

	sum := c.Run(context.Background())
	require.NoError(t, sum.ScrapeErr)
	assert.True(t, sum.App.OK())
	assert.NoError(t, sum.AuthErr)
	assert.Equal(t, scrape.Found, sum.Discovery.State)
	assert.Equal(t, []string{"https://abc123.a.free.pinggy.link"}, rep.urls)
	assert.False(t, sum.Interrupted)
	assertSinkGone(t, c)

	final := map[Unit]Status{}
	for _, ev := range events {
		final[ev.Unit] = ev.Status
	}
	assert.Equal(t, map[Unit]Status{UnitApp: Succeeded, UnitTunnel: Succeeded, UnitScrape: Succeeded}, final)
}

func TestRunTimesOutWithoutAbortingOthers(t *testing.T) {
	c, rep := newTestCoordinator(t, "true", &fakeAuth{output: "Permission denied\n"})

	sum := c.Run(context.Background())
	assert.ErrorIs(t, sum.ScrapeErr, scrape.ErrTimeout)
	assert.Equal(t, scrape.TimedOut, sum.Discovery.State)
	assert.True(t, rep.timedOut)
	assert.Empty(t, rep.urls)
	assert.True(t, sum.App.OK())
	assertSinkGone(t, c)
}

func TestRunIgnoresStaleSink(t *testing.T) {
	c, rep := newTestCoordinator(t, "true", &fakeAuth{})
	require.NoError(t, os.WriteFile(c.Session.SinkPath, []byte("https://stale.a.pinggy.link\n"), 0o644))

	sum := c.Run(context.Background())
	assert.ErrorIs(t, sum.ScrapeErr, scrape.ErrTimeout)
	assert.Empty(t, rep.urls)
	assertSinkGone(t, c)
}

func TestRunAppFailureIsNotFatal(t *testing.T) {
	fa := &fakeAuth{output: "https://x.a.pinggy.link\n"}
	c, rep := newTestCoordinator(t, "exit 7", fa)

	sum := c.Run(context.Background())
	assert.False(t, sum.App.OK())
	assert.Equal(t, 7, sum.App.ExitCode)
	assert.Equal(t, []string{"https://x.a.pinggy.link"}, rep.urls)
	assertSinkGone(t, c)
}

func TestRunAppShellMissing(t *testing.T) {
	c, _ := newTestCoordinator(t, "true", &fakeAuth{})
	t.Setenv("PATH", t.TempDir())

	var mu sync.Mutex
	var detail string
	c.Notify = func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Unit == UnitApp && ev.Status == Failed {
			detail = ev.Detail
		}
	}

	sum := c.Run(context.Background())
	assert.True(t, sum.App.NotFound())
	assert.Equal(t, "executable not found", detail)
	assertSinkGone(t, c)
}

func TestRunInterrupted(t *testing.T) {
	fa := &fakeAuth{output: "Allocated port\n", block: true}
	c, _ := newTestCoordinator(t, "sleep 30", fa)
	c.Session.Timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	sum := c.Run(ctx)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, sum.Interrupted)
	assert.False(t, sum.App.OK())
	assert.ErrorIs(t, sum.AuthErr, context.Canceled)
	assert.ErrorIs(t, sum.ScrapeErr, context.Canceled)
	assert.Contains(t, c.Out.(*bytes.Buffer).String(), "^C")
	assert.Empty(t, c.Supervisor.Running())
	assertSinkGone(t, c)
}

func TestRunContainsUnitPanic(t *testing.T) {
	c, _ := newTestCoordinator(t, "true", &fakeAuth{panics: true})

	sum := c.Run(context.Background())
	assert.True(t, sum.App.OK())
	assert.ErrorIs(t, sum.ScrapeErr, scrape.ErrTimeout)
	assertSinkGone(t, c)
}

func TestRunWithFileWatch(t *testing.T) {
	fa := &fakeAuth{output: "https://w.a.free.pinggy.link\n", delay: 200 * time.Millisecond}
	c, rep := newTestCoordinator(t, "true", fa)
	c.Watch = true
	c.Interval = time.Hour // only the watcher or the deadline can trigger a poll
	c.Session.Timeout = 5 * time.Second

	start := time.Now()
	sum := c.Run(context.Background())
	require.NoError(t, sum.ScrapeErr)
	assert.Equal(t, []string{"https://w.a.free.pinggy.link"}, rep.urls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, Pending.Terminal())
	assert.False(t, Running.Terminal())
	assert.True(t, Succeeded.Terminal())
	assert.True(t, Failed.Terminal())
	assert.True(t, Stopped.Terminal())
	assert.Equal(t, "done", Succeeded.String())
}
