package scrape

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

var ErrTimeout = errors.New("timeout reached, URL not found")

// State is the poller's position in POLLING -> FOUND | TIMED_OUT.
type State int

const (
	Polling State = iota
	Found
	TimedOut
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Found:
		return "found"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reporter receives the poller's terminal result.
type Reporter interface {
	Found(urls []string)
	TimedOut(after time.Duration)
}

// Discovery is the poller's final answer.
type Discovery struct {
	State State
	URLs  []string
	Polls int
}

// Poller re-reads a growing output file until a tunnel URL shows up or the
// timeout passes. Each poll reads the whole file, so a half-written sink is
// simply picked up again on the next round.
type Poller struct {
	Path     string
	Interval time.Duration
	Timeout  time.Duration
	Matcher  Matcher
	Log      hclog.Logger
	Report   Reporter
	// Trigger, when set, causes an extra poll on every receive (file-watch events).
	Trigger <-chan struct{}

	last string
}

// Poll performs one read-clean-extract step.
func (p *Poller) Poll() ([]string, error) {
	log := p.logger()
	log.Info("checking for URL")
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	content := string(raw)
	log.Info("read sink", "raw_length", len(content))

	cleaned := Strip(content)
	if d := delta(p.last, cleaned); d != "" {
		log.Debug("cleaned content", "delta", d)
	}
	p.last = cleaned

	urls, fallback := p.Matcher.Extract(cleaned)
	if len(urls) > 0 {
		if fallback {
			log.Info("found URLs (fallback)", "urls", urls)
		} else {
			log.Info("found tunnel URLs", "urls", urls)
		}
	}
	return urls, nil
}

// Run polls every Interval until a URL is found (Found), Timeout elapses
// (TimedOut, ErrTimeout) or ctx is canceled (Polling, ctx.Err()).
func (p *Poller) Run(ctx context.Context) (Discovery, error) {
	log := p.logger()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()

	d := Discovery{State: Polling}
	check := func() bool {
		d.Polls++
		urls, err := p.Poll()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn("file not found", "path", p.Path)
		case err != nil:
			log.Error("unexpected error reading file", "path", p.Path, "error", err)
		case len(urls) > 0:
			d.State = Found
			d.URLs = urls
			if p.Report != nil {
				p.Report.Found(urls)
			}
			return true
		}
		return false
	}

	for {
		select {
		case <-ctx.Done():
			return d, ctx.Err()
		case <-ticker.C:
			if check() {
				return d, nil
			}
		case <-p.Trigger:
			if check() {
				return d, nil
			}
		case <-deadline.C:
			if check() {
				return d, nil
			}
			d.State = TimedOut
			log.Error("timeout reached, URL not found", "timeout", p.Timeout)
			if p.Report != nil {
				p.Report.TimedOut(p.Timeout)
			}
			return d, ErrTimeout
		}
	}
}

func (p *Poller) logger() hclog.Logger {
	if p.Log == nil {
		return hclog.NewNullLogger()
	}
	return p.Log
}
