package auth

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"tunnel/internal/proc"
)

var ErrAllMechanismsFailed = errors.New("all authentication mechanisms failed")

// Runner launches attempt processes. *proc.Supervisor implements it.
type Runner interface {
	Run(ctx context.Context, name string, c proc.Command, out io.Writer) proc.Result
	RunPipeline(ctx context.Context, name string, producer, consumer proc.Command, out io.Writer) proc.Result
}

// ProbeFunc reports whether an optional helper utility is installed.
type ProbeFunc func(name string) bool

// SystemProbe looks the helper up on PATH.
func SystemProbe(name string) bool {
	_, ok := proc.Available(name)
	return ok
}

// SinkOpener returns a fresh writer for one attempt's output. Each attempt
// replaces what the previous one wrote, like a shell `>` redirect.
type SinkOpener func() (io.WriteCloser, error)

// Outcome records which mechanism the selector settled on.
type Outcome struct {
	Kind   Kind
	Result proc.Result
	Tried  []Kind
}

type Selector struct {
	Relay      Relay
	Credential string
	Probe      ProbeFunc
	Runner     Runner
	Sink       SinkOpener
	Log        hclog.Logger
}

// Plan returns the attempts that would actually be launched: optional
// mechanisms whose helper is missing are left out.
func (s *Selector) Plan(localPort int) []Attempt {
	var plan []Attempt
	for _, a := range Attempts(s.Relay, s.Credential, localPort) {
		if a.Helper != "" && !s.probe(a.Helper) {
			continue
		}
		plan = append(plan, a)
	}
	return plan
}

func (s *Selector) probe(name string) bool {
	if s.Probe == nil {
		return SystemProbe(name)
	}
	return s.Probe(name)
}

func (s *Selector) logger() hclog.Logger {
	if s.Log == nil {
		return hclog.NewNullLogger()
	}
	return s.Log
}

// Run tries each mechanism in order and stops at the first whose process
// exits cleanly. The unauthenticated fallback counts as success on the same
// terms; whether the relay actually accepted it is not checked.
func (s *Selector) Run(ctx context.Context, localPort int) (Outcome, error) {
	log := s.logger()
	log.Info(fmt.Sprintf("starting SSH tunnel on port %d and forwarding to localhost:%d", s.Relay.Port, localPort))

	var out Outcome
	for _, a := range Attempts(s.Relay, s.Credential, localPort) {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("authentication interrupted: %w", err)
		}
		if a.Helper != "" && !s.probe(a.Helper) {
			log.Info(a.Helper+" not available, trying next method", "mechanism", a.Kind)
			continue
		}
		log.Info("trying authentication mechanism", "mechanism", a.Kind)
		out.Tried = append(out.Tried, a.Kind)

		res := s.attempt(ctx, a)
		out.Kind = a.Kind
		out.Result = res
		if res.OK() {
			log.Info("authentication mechanism finished", "mechanism", a.Kind)
			return out, nil
		}
		if res.NotFound() {
			log.Error("executable not found", "mechanism", a.Kind, "program", a.Command.Program)
			continue
		}
		log.Error("authentication mechanism failed", "mechanism", a.Kind, "exit_code", res.ExitCode, "error", res.Err)
	}
	log.Error("all methods failed")
	return out, ErrAllMechanismsFailed
}

func (s *Selector) attempt(ctx context.Context, a Attempt) proc.Result {
	name := "tunnel-" + a.Kind.String()
	sink, err := s.Sink()
	if err != nil {
		return proc.Result{Name: name, ExitCode: -1, Err: fmt.Errorf("open sink: %w", err)}
	}
	defer sink.Close()

	if a.Stdin != nil {
		return s.Runner.RunPipeline(ctx, name, *a.Stdin, a.Command, sink)
	}
	return s.Runner.Run(ctx, name, a.Command, sink)
}
