package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// StopGrace is how long StopAll waits after interrupting children before killing them.
var StopGrace = 6 * time.Second

// ErrNotFound marks a launch failure caused by a missing executable.
var ErrNotFound = errors.New("executable not found")

var errNoProcess = errors.New("no process")

// Command is a program and its argument list. Nothing is interpreted by a shell.
type Command struct {
	Program string
	Args    []string
	Stdin   io.Reader // optional; nil means the null device
	Env     []string  // optional additions to the parent environment
	// NoTTY starts the child in a new session without a controlling terminal,
	// so a prompt on /dev/tty fails instead of stopping the child.
	NoTTY bool
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

func (c Command) build() *exec.Cmd {
	cmd := exec.Command(c.Program, c.Args...)
	cmd.Stdin = c.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.NoTTY {
		cmd.SysProcAttr = detachedAttr()
	} else {
		cmd.SysProcAttr = groupAttr()
	}
	return cmd
}

// Result is the outcome of one supervised run.
type Result struct {
	Name     string
	ExitCode int // -1 when the process never ran or was killed by a signal
	Err      error
}

// OK reports a zero exit status.
func (r Result) OK() bool { return r.Err == nil }

// NotFound reports whether the run failed because the executable was missing.
func (r Result) NotFound() bool { return errors.Is(r.Err, ErrNotFound) }

type Child struct {
	Cmd  *exec.Cmd
	Name string
	done chan struct{}
}

// Supervisor tracks named child processes so they can all be stopped on interrupt.
type Supervisor struct {
	mu     sync.Mutex
	childs map[string]*Child
	log    hclog.Logger
}

func NewSupervisor(logger hclog.Logger) *Supervisor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Supervisor{childs: map[string]*Child{}, log: logger}
}

// Start launches cmd under name. If the caller did not set Stdout/Stderr,
// the child's output lines are forwarded to the log.
func (s *Supervisor) Start(name string, cmd *exec.Cmd) (*Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.childs[name]; ok {
		return nil, fmt.Errorf("%s already started", name)
	}
	var pipes []io.ReadCloser
	if cmd.Stdout == nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		pipes = append(pipes, stdout)
	}
	if cmd.Stderr == nil {
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
		pipes = append(pipes, stderr)
	}
	if err := cmd.Start(); err != nil {
		for _, p := range pipes {
			p.Close()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	ch := &Child{Cmd: cmd, Name: name, done: make(chan struct{})}
	s.childs[name] = ch
	s.log.Debug("started child", "name", name, "pid", cmd.Process.Pid)
	for _, p := range pipes {
		go s.pipeLogs(name, p)
	}
	return ch, nil
}

func (s *Supervisor) pipeLogs(name string, r io.ReadCloser) {
	defer r.Close()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.log.Info(line, "child", name)
	}
}

// Wait blocks until the child exits and unregisters it.
func (s *Supervisor) Wait(ch *Child) Result {
	err := ch.Cmd.Wait()
	close(ch.done)

	s.mu.Lock()
	if s.childs[ch.Name] == ch {
		delete(s.childs, ch.Name)
	}
	s.mu.Unlock()

	res := Result{Name: ch.Name, ExitCode: ch.Cmd.ProcessState.ExitCode()}
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", ch.Name, err)
	}
	return res
}

// Run executes c to completion with stdout and stderr merged into out.
func (s *Supervisor) Run(ctx context.Context, name string, c Command, out io.Writer) Result {
	if err := ctx.Err(); err != nil {
		return Result{Name: name, ExitCode: -1, Err: fmt.Errorf("%s: %w", name, err)}
	}
	cmd := c.build()
	cmd.Stdout = out
	cmd.Stderr = out
	ch, err := s.Start(name, cmd)
	if err != nil {
		return Result{Name: name, ExitCode: -1, Err: fmt.Errorf("start %s: %w", name, err)}
	}
	return s.Wait(ch)
}

// RunPipeline connects producer's stdout to consumer's stdin, like `producer | consumer`
// in a shell. Both processes' stderr and the consumer's stdout go to out. The result is
// the consumer's; a producer failure is only logged.
func (s *Supervisor) RunPipeline(ctx context.Context, name string, producer, consumer Command, out io.Writer) Result {
	if err := ctx.Err(); err != nil {
		return Result{Name: name, ExitCode: -1, Err: fmt.Errorf("%s: %w", name, err)}
	}
	out = syncWriter(out)
	pr, pw, err := os.Pipe()
	if err != nil {
		return Result{Name: name, ExitCode: -1, Err: fmt.Errorf("pipe %s: %w", name, err)}
	}

	cons := consumer.build()
	cons.Stdin = pr
	cons.Stdout = out
	cons.Stderr = out
	consChild, err := s.Start(name, cons)
	pr.Close()
	if err != nil {
		pw.Close()
		return Result{Name: name, ExitCode: -1, Err: fmt.Errorf("start %s: %w", name, err)}
	}

	prod := producer.build()
	prod.Stdout = pw
	prod.Stderr = out
	prodChild, err := s.Start(name+".stdin", prod)
	pw.Close()
	if err != nil {
		s.log.Warn("pipeline producer failed to start", "name", name, "error", err)
	} else if res := s.Wait(prodChild); !res.OK() {
		s.log.Warn("pipeline producer exited with error", "name", name, "error", res.Err)
	}
	return s.Wait(consChild)
}

// lockedWriter serializes writes from the copy goroutines of several
// commands sharing one sink.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// syncWriter returns w unchanged when exec hands it to children as a file
// descriptor; any other writer is wrapped in a lockedWriter.
func syncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*os.File); ok || w == nil {
		return w
	}
	return &lockedWriter{w: w}
}

// StopAll interrupts every running child (and its process group) and kills
// whatever is still alive once StopGrace or ctx runs out.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	children := make([]*Child, 0, len(s.childs))
	for _, ch := range s.childs {
		children = append(children, ch)
	}
	s.mu.Unlock()

	var first error
	for _, ch := range children {
		if ch.Cmd.Process == nil {
			continue
		}
		s.log.Info("stopping child", "name", ch.Name, "pid", ch.Cmd.Process.Pid)
		if err := terminate(ch.Cmd); err != nil && first == nil {
			first = fmt.Errorf("%s: %w", ch.Name, err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, StopGrace)
	defer cancel()
	for _, ch := range children {
		select {
		case <-ch.done:
		case <-waitCtx.Done():
			s.log.Warn("child did not exit in time, killing", "name", ch.Name)
			_ = kill(ch.Cmd)
		}
		s.log.Info("stopped child", "name", ch.Name)
	}
	return first
}

// Available is a capability probe: it reports whether name resolves to an
// executable on PATH, and where.
func Available(name string) (string, bool) {
	if p, err := exec.LookPath(name); err == nil {
		return p, true
	}
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		if p, err := exec.LookPath(name + ".exe"); err == nil {
			return p, true
		}
	}
	return "", false
}

// Shell wraps an opaque user command line for the platform shell.
func Shell(line string) Command {
	if runtime.GOOS == "windows" {
		return Command{Program: "cmd", Args: []string{"/C", line}}
	}
	return Command{Program: "sh", Args: []string{"-c", line}}
}
