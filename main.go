// Copyright
// SPDX-License-Identifier: MIT
// tunnel: run a local web UI and expose it through a pinggy SSH reverse tunnel
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"tunnel/internal/auth"
	"tunnel/internal/config"
	"tunnel/internal/logging"
	"tunnel/internal/proc"
	"tunnel/internal/scrape"
	"tunnel/internal/session"
	"tunnel/internal/tui"
	"tunnel/internal/tui/util"
)

const Version = "4.1.0"

const exitUsage = 2

/* ---------- CLI ---------- */

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(exitUsage)
	}
	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
	case "version", "--version":
		fmt.Println("tunnel", Version)
	case "doctor":
		cmdDoctor(os.Args[2:])
	default:
		os.Exit(cmdRun(os.Args[1:]))
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `tunnel `+Version+`
Start a local web UI and publish it through a pinggy.io SSH reverse tunnel.
USAGE
  tunnel [options] <webui_command> <local_port>
  tunnel <command>
COMMANDS
  doctor       Check for ssh, sshpass, expect and sh; print the auth attempts that would run
  help         Show this help
  version      Print version
OPTIONS
  --timeout D      Give up looking for the public URL after D (default: 30s)
  --interval D     Re-read the tunnel output every D (default: 2s)
  --cache-dir DIR  Scratch directory for the log and tunnel output (default: .cache)
  --watch          Also re-read the tunnel output whenever it changes on disk
  --tui            Live status view (q or Ctrl+C stops, c copies the selected URL)
  --copy           Copy the first public URL to the clipboard
  --no-color       Plain output (NO_COLOR is honored too)
  -v               Also print log lines to stderr
  -vv              DEBUG logs (implies -v)
ENVIRONMENT
  TUNNEL_TIMEOUT, TUNNEL_POLL_INTERVAL, TUNNEL_CACHE_DIR, TUNNEL_RELAY_HOST, ...
  A .env file in the working directory is read first if present.
NOTES
  • Ctrl-C stops the web UI and the tunnel and removes the scratch output file.
  • Authentication tries sshpass, then expect, then a piped password, then no password.`)
}

// parseInterleaved lets options appear before, between or after the
// positional arguments.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return pos, nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

type runFlags struct {
	timeout  time.Duration
	interval time.Duration
	cacheDir string
	watch    bool
	useTUI   bool
	copyURL  bool
	noColor  bool
	verbose  bool
	debug    bool
}

func newRunFlagSet(rf *runFlags, errOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("tunnel", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { usage(errOut) }
	fs.DurationVar(&rf.timeout, "timeout", 0, "URL discovery timeout")
	fs.DurationVar(&rf.interval, "interval", 0, "Poll interval")
	fs.StringVar(&rf.cacheDir, "cache-dir", "", "Scratch directory")
	fs.BoolVar(&rf.watch, "watch", false, "Re-read tunnel output on file change")
	fs.BoolVar(&rf.useTUI, "tui", false, "Live status view")
	fs.BoolVar(&rf.copyURL, "copy", false, "Copy the first URL to the clipboard")
	fs.BoolVar(&rf.noColor, "no-color", false, "Disable color")
	fs.BoolVar(&rf.verbose, "v", false, "Verbose logs (INFO) on stderr")
	fs.BoolVar(&rf.debug, "vv", false, "Debug logs (DEBUG)")
	return fs
}

// buildConfig layers flags over the environment over the defaults and
// validates the result.
func buildConfig(args []string, errOut io.Writer) (*config.Config, error) {
	var rf runFlags
	fs := newRunFlagSet(&rf, errOut)
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}
	if len(pos) != 2 {
		return nil, fmt.Errorf("expected <webui_command> <local_port>, got %d argument(s)", len(pos))
	}

	c, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.Command = pos[0]
	if c.LocalPort, err = config.ParsePort(pos[1]); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "timeout":
			c.Timeout = rf.timeout
		case "interval":
			c.PollInterval = rf.interval
		case "cache-dir":
			c.CacheDir = rf.cacheDir
		case "watch":
			c.Watch = rf.watch
		case "tui":
			c.TUI = rf.useTUI
		case "copy":
			c.Copy = rf.copyURL
		case "no-color":
			c.NoColor = rf.noColor
		}
	})
	switch {
	case rf.debug:
		c.Verbosity = 2
	case rf.verbose && c.Verbosity < 1:
		c.Verbosity = 1
	}
	c.NoColor = util.NoColor(c.NoColor)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func cmdRun(args []string) int {
	c, err := buildConfig(args, os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "tunnel:", err)
			fmt.Fprintln(os.Stderr, "usage: tunnel [options] <webui_command> <local_port>  (see: tunnel help)")
		}
		return exitUsage
	}

	logger, closer, err := logging.New(logging.Options{
		Path:      c.LogPath(),
		Version:   Version,
		Verbosity: c.Verbosity,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Could not open log file:", err)
		logger = logging.Discard()
	} else {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.TUI {
		runWatch(ctx, stop, c, logger)
		return 0
	}

	var rep scrape.Reporter = tui.NewConsole(os.Stdout, c.NoColor)
	if c.Copy {
		rep = tui.NewCopier(rep, logger.Named("clipboard"))
	}
	co := session.NewCoordinator(c, logger, rep)
	logSummary(logger, co.Run(ctx))
	return 0
}

// runWatch drives the session behind the live view. The app's own output
// would tear the view, so it goes to the log instead of the terminal.
func runWatch(ctx context.Context, stop context.CancelFunc, c *config.Config, logger hclog.Logger) {
	feed := tui.NewFeed()
	var rep scrape.Reporter = feed
	if c.Copy {
		rep = tui.NewCopier(rep, logger.Named("clipboard"))
	}
	co := session.NewCoordinator(c, logger, rep)
	co.Notify = feed.Notify
	co.AppOut = logger.Named("webui").StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Info})
	co.Out = io.Discard

	done := make(chan session.Summary, 1)
	go func() {
		sum := co.Run(ctx)
		feed.Close()
		done <- sum
	}()

	title := fmt.Sprintf("tunnel %s  ·  %s  →  localhost:%d", Version, c.Command, c.LocalPort)
	if err := tui.Watch(feed, title, stop, c.NoColor); err != nil {
		logger.Error("live view", "error", err)
		fmt.Fprintln(os.Stderr, "live view failed, stopping:", err)
		stop()
	}
	logSummary(logger, <-done)
}

func logSummary(logger hclog.Logger, sum session.Summary) {
	args := []interface{}{"interrupted", sum.Interrupted, "app_exit", sum.App.ExitCode}
	if sum.AuthErr == nil {
		args = append(args, "auth", sum.Auth.Kind.String())
	}
	if len(sum.Discovery.URLs) > 0 {
		args = append(args, "url", sum.Discovery.URLs[0])
	}
	logger.Info("session finished", args...)
}

/* ---------- doctor ---------- */

func cmdDoctor(args []string) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	port := fs.Int("port", 8080, "Local port used when printing the auth plan")
	_ = fs.Parse(args)

	c, err := config.Load()
	if err != nil {
		fmt.Println("Config error:", err)
		c = config.Default()
	}

	fmt.Println("Dependency checks:")
	ok := true
	for _, bin := range []string{"ssh", "sh", "sshpass", "expect"} {
		required := bin == "ssh" || bin == "sh"
		if path, found := proc.Available(bin); found {
			fmt.Printf("  ✓ %s found (%s)\n", bin, path)
		} else if required {
			fmt.Printf("  ✗ %s not found in PATH\n", bin)
			ok = false
		} else {
			fmt.Printf("  - %s not found (optional, that attempt is skipped)\n", bin)
		}
	}

	sel := &auth.Selector{
		Relay: auth.Relay{
			Host:       c.RelayHost,
			Port:       c.RelayPort,
			User:       c.RelayUser,
			RemotePort: c.RemotePort,
		},
		Credential: c.Credential,
		Probe:      auth.SystemProbe,
	}
	fmt.Printf("\nAuth attempts for local port %d:\n", *port)
	for i, a := range sel.Plan(*port) {
		fmt.Printf("  %d. %-8s %s\n", i+1, a.Kind, a)
	}

	if ok {
		fmt.Println("\nAll required executables found.")
	} else {
		fmt.Println("\nMissing executables detected. Install the items marked ✗ and retry.")
	}
}
