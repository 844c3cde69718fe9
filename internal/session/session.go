// Package session runs one tunnel session: the user's app, the SSH tunnel and
// the URL scraper side by side, and removes the scratch sink afterwards.
package session

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"

	"tunnel/internal/config"
)

// Session is one invocation of the tool.
type Session struct {
	ID        string
	Command   string
	LocalPort int
	CacheDir  string
	SinkPath  string
	Timeout   time.Duration
}

func New(cfg *config.Config) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Command:   cfg.Command,
		LocalPort: cfg.LocalPort,
		CacheDir:  cfg.CacheDir,
		SinkPath:  cfg.SinkPath(),
		Timeout:   cfg.Timeout,
	}
}

// OpenSink truncates (or creates) the scratch sink for a fresh writer.
func (s *Session) OpenSink() (io.WriteCloser, error) {
	f, err := os.OpenFile(s.SinkPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return f, nil
}

// RemoveSink deletes the scratch sink. A sink that was never created is fine.
func (s *Session) RemoveSink() error {
	if err := os.Remove(s.SinkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove sink: %w", err)
	}
	return nil
}
