package tui

import (
	"errors"
	"time"

	"github.com/atotto/clipboard"
	"github.com/hashicorp/go-hclog"

	"tunnel/internal/scrape"
)

var errNoClipboard = errors.New("clipboard unsupported on this system")

// CopyURL puts u on the system clipboard.
func CopyURL(u string) error {
	if clipboard.Unsupported {
		return errNoClipboard
	}
	return clipboard.WriteAll(u)
}

// Copier forwards results to Next and copies the first URL to the clipboard.
type Copier struct {
	Next  scrape.Reporter
	Log   hclog.Logger
	write func(string) error
}

func NewCopier(next scrape.Reporter, log hclog.Logger) *Copier {
	return &Copier{Next: next, Log: log, write: CopyURL}
}

func (c *Copier) Found(urls []string) {
	c.Next.Found(urls)
	if len(urls) == 0 {
		return
	}
	if err := c.write(urls[0]); err != nil {
		c.Log.Warn("could not copy URL to clipboard", "error", err)
		return
	}
	c.Log.Info("copied URL to clipboard", "url", urls[0])
}

func (c *Copier) TimedOut(after time.Duration) { c.Next.TimedOut(after) }
