package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"tunnel/internal/tui/util"
)

// Console prints discovery results to a terminal.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	styles util.Styles
}

func NewConsole(out io.Writer, noColor bool) *Console {
	return &Console{out: out, styles: util.NewStyles(noColor)}
}

func (c *Console) Found(urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.styles.Title("Tunnel URLs:"))
	for _, u := range urls {
		fmt.Fprintf(c.out, "  %s\n", c.styles.URL(u))
	}
	fmt.Fprintln(c.out)
}

func (c *Console) TimedOut(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\n%s\n\n", c.styles.Warn("Timeout reached, URL not found."))
}
