package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Options controls where the session log goes and how chatty it is.
type Options struct {
	Path      string    // append-only log file; created if missing
	Version   string    // written into the start banner
	Verbosity int       // 0 = INFO to file, 1 = also tee to Console, 2 = DEBUG
	Console   io.Writer // defaults to os.Stderr
}

// New opens (or creates) the log file and returns a logger writing to it.
// The returned closer must be closed once the process is done logging.
func New(opts Options) (hclog.Logger, io.Closer, error) {
	if opts.Path == "" {
		return nil, nil, fmt.Errorf("log path is empty")
	}
	if dir := filepath.Dir(opts.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	_, _ = fmt.Fprintf(f, "=== tunnel %s started at %s ===\n", opts.Version, time.Now().Format(time.RFC3339))

	var out io.Writer = f
	if opts.Verbosity > 0 {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		out = io.MultiWriter(f, console)
	}
	level := hclog.Info
	if opts.Verbosity > 1 {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "tunnel",
		Level:      level,
		Output:     out,
		TimeFormat: "2006-01-02 15:04:05,000",
		Color:      hclog.ColorOff,
	})
	return logger, f, nil
}

// Discard returns a logger that drops everything; used when no log file is wanted.
func Discard() hclog.Logger { return hclog.NewNullLogger() }
