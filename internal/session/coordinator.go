package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"tunnel/internal/auth"
	"tunnel/internal/config"
	"tunnel/internal/ports"
	"tunnel/internal/proc"
	"tunnel/internal/scrape"
)

// stopRetry is how often an interrupted coordinator re-sweeps children that
// may have been started after the previous sweep.
var stopRetry = 500 * time.Millisecond

// Authenticator establishes the tunnel. *auth.Selector implements it.
type Authenticator interface {
	Run(ctx context.Context, localPort int) (auth.Outcome, error)
}

// Summary collects what each unit ended with.
type Summary struct {
	App         proc.Result
	Auth        auth.Outcome
	AuthErr     error
	Discovery   scrape.Discovery
	ScrapeErr   error
	Interrupted bool
}

type Coordinator struct {
	Session    *Session
	Log        hclog.Logger
	Supervisor *proc.Supervisor
	Auth       Authenticator
	Matcher    scrape.Matcher
	Interval   time.Duration
	Watch      bool
	Reporter   scrape.Reporter
	// AppOut receives the app's merged output; defaults to os.Stdout.
	AppOut io.Writer
	// Out receives the interrupt notice; defaults to os.Stdout.
	Out io.Writer
	// Notify, when set, is called on every unit status change.
	Notify func(Event)
}

// NewCoordinator wires a session from cfg: a supervisor for child processes,
// the auth selector writing into the session sink, and the pinggy matcher.
func NewCoordinator(cfg *config.Config, log hclog.Logger, rep scrape.Reporter) *Coordinator {
	s := New(cfg)
	log = log.With("session", s.ID)
	sup := proc.NewSupervisor(log.Named("proc"))
	sel := &auth.Selector{
		Relay: auth.Relay{
			Host:       cfg.RelayHost,
			Port:       cfg.RelayPort,
			User:       cfg.RelayUser,
			RemotePort: cfg.RemotePort,
		},
		Credential: cfg.Credential,
		Probe:      auth.SystemProbe,
		Runner:     sup,
		Sink:       s.OpenSink,
		Log:        log.Named("auth"),
	}
	return &Coordinator{
		Session:    s,
		Log:        log,
		Supervisor: sup,
		Auth:       sel,
		Matcher:    scrape.Pinggy(),
		Interval:   cfg.PollInterval,
		Watch:      cfg.Watch,
		Reporter:   rep,
	}
}

// Run starts the app, the tunnel and the scraper concurrently and waits for
// all three. If ctx is canceled the children are stopped. The scratch sink is
// removed on every return path.
func (c *Coordinator) Run(ctx context.Context) (sum Summary) {
	s := c.Session
	defer c.cleanup()

	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		c.Log.Error("create cache dir", "dir", s.CacheDir, "error", err)
	}
	// A sink left behind by a crashed run must not be mistaken for ours.
	if err := s.RemoveSink(); err != nil {
		c.Log.Warn("stale sink", "error", err)
	}

	var wg sync.WaitGroup
	c.unit(&wg, UnitApp, func() { sum.App = c.runApp(ctx) })
	c.unit(&wg, UnitTunnel, func() { sum.Auth, sum.AuthErr = c.runTunnel(ctx) })
	c.unit(&wg, UnitScrape, func() { sum.Discovery, sum.ScrapeErr = c.runScrape(ctx) })

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sum.Interrupted = true
		c.Log.Info("^C")
		fmt.Fprintln(c.out(), "^C")
		c.stopUntil(done)
	}
	return sum
}

func (c *Coordinator) stopUntil(done <-chan struct{}) {
	for {
		if err := c.Supervisor.StopAll(context.Background()); err != nil {
			c.Log.Warn("stop children", "error", err)
		}
		select {
		case <-done:
			return
		case <-time.After(stopRetry):
		}
	}
}

func (c *Coordinator) cleanup() {
	if err := c.Session.RemoveSink(); err != nil {
		c.Log.Error("cleanup", "error", err)
		return
	}
	c.Log.Debug("removed sink", "path", c.Session.SinkPath)
}

// unit runs fn on its own goroutine. A panic is contained to that unit.
func (c *Coordinator) unit(wg *sync.WaitGroup, u Unit, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.Log.Error("unit crashed", "unit", u, "panic", r)
				c.emit(Event{Unit: u, Status: Failed, Detail: fmt.Sprint(r)})
			}
		}()
		c.emit(Event{Unit: u, Status: Running})
		fn()
	}()
}

func (c *Coordinator) runApp(ctx context.Context) proc.Result {
	log := c.Log.Named("app")
	log.Info("starting webui", "command", c.Session.Command)
	out := c.AppOut
	if out == nil {
		out = os.Stdout
	}
	res := c.Supervisor.Run(ctx, string(UnitApp), proc.Shell(c.Session.Command), out)
	switch {
	case res.OK():
		log.Info("webui exited")
		c.emit(Event{Unit: UnitApp, Status: Succeeded})
	case ctx.Err() != nil:
		log.Info("webui stopped", "exit_code", res.ExitCode)
		c.emit(Event{Unit: UnitApp, Status: Stopped})
	case res.NotFound():
		log.Error("executable not found", "command", c.Session.Command, "error", res.Err)
		c.emit(Event{Unit: UnitApp, Status: Failed, Detail: "executable not found"})
	default:
		log.Error("error starting webui", "exit_code", res.ExitCode, "error", res.Err)
		c.emit(Event{Unit: UnitApp, Status: Failed, Detail: res.Err.Error()})
	}
	return res
}

func (c *Coordinator) runTunnel(ctx context.Context) (auth.Outcome, error) {
	out, err := c.Auth.Run(ctx, c.Session.LocalPort)
	switch {
	case err == nil:
		c.emit(Event{Unit: UnitTunnel, Status: Succeeded, Detail: out.Kind.String()})
	case ctx.Err() != nil:
		c.emit(Event{Unit: UnitTunnel, Status: Stopped})
	default:
		c.Log.Named("auth").Error("establishing SSH tunnel", "error", err)
		c.emit(Event{Unit: UnitTunnel, Status: Failed, Detail: err.Error()})
	}
	return out, err
}

func (c *Coordinator) runScrape(ctx context.Context) (scrape.Discovery, error) {
	log := c.Log.Named("scrape")
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := &scrape.Poller{
		Path:     c.Session.SinkPath,
		Interval: c.Interval,
		Timeout:  c.Session.Timeout,
		Matcher:  c.Matcher,
		Log:      log,
		Report:   c.Reporter,
	}
	if c.Watch {
		trigger, err := scrape.Watch(watchCtx, c.Session.SinkPath, log)
		if err != nil {
			log.Warn("file watch unavailable, polling only", "error", err)
		} else {
			p.Trigger = trigger
		}
	}

	d, err := p.Run(ctx)
	switch {
	case err == nil:
		c.emit(Event{Unit: UnitScrape, Status: Succeeded, URLs: d.URLs})
		if !ports.Listening(c.Session.LocalPort, 300*time.Millisecond) {
			log.Warn("nothing is listening on the local port yet", "port", c.Session.LocalPort)
		}
	case errors.Is(err, scrape.ErrTimeout):
		c.emit(Event{Unit: UnitScrape, Status: Failed, Detail: err.Error()})
	default:
		c.emit(Event{Unit: UnitScrape, Status: Stopped})
	}
	return d, err
}

func (c *Coordinator) emit(ev Event) {
	if c.Notify == nil {
		return
	}
	ev.At = time.Now()
	c.Notify(ev)
}

func (c *Coordinator) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}
