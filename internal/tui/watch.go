package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"tunnel/internal/session"
	"tunnel/internal/tui/state"
	"tunnel/internal/tui/util"
	help "tunnel/internal/tui/widgets/helpoverlay"
	"tunnel/internal/tui/widgets/statusbar"
)

type (
	eventMsg    session.Event
	foundMsg    []string
	timedOutMsg time.Duration
	doneMsg     struct{}
)

// Feed carries coordinator callbacks into a running watch view. It
// implements scrape.Reporter, and Notify fits Coordinator.Notify.
type Feed struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan tea.Msg, 64), done: make(chan struct{})}
}

func (f *Feed) send(msg tea.Msg) {
	select {
	case f.ch <- msg:
	case <-f.done:
	}
}

func (f *Feed) Notify(ev session.Event)     { f.send(eventMsg(ev)) }
func (f *Feed) Found(urls []string)          { f.send(foundMsg(urls)) }
func (f *Feed) TimedOut(after time.Duration) { f.send(timedOutMsg(after)) }

// Close tells the view the session is over. Safe to call more than once.
func (f *Feed) Close() { f.once.Do(func() { close(f.done) }) }

func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.ch:
			return msg
		case <-f.done:
			select {
			case msg := <-f.ch:
				return msg
			default:
				return doneMsg{}
			}
		}
	}
}

type watchModel struct {
	st      state.UIState
	spin    spinner.Model
	feed    *Feed
	stop    func()
	copyURL func(string) error
	styles  util.Styles
	bar     statusbar.StatusBar
	help    help.HelpOverlay
	title   string
}

func newWatchModel(feed *Feed, title string, stop func(), noColor bool) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return watchModel{
		st:      state.New(),
		spin:    sp,
		feed:    feed,
		stop:    stop,
		copyURL: CopyURL,
		styles:  util.NewStyles(noColor),
		bar:     statusbar.NewStatusBar(),
		help:    help.NewHelpOverlay(),
		title:   title,
	}
}

// Watch shows live unit status and discovered URLs until feed is closed.
// q or Ctrl+C calls stop, which should cancel the session; the view keeps
// running until the session has wound down.
func Watch(feed *Feed, title string, stop func(), noColor bool) error {
	m := newWatchModel(feed, title, stop, noColor)
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.feed.wait())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		switch strings.ToLower(v.String()) {
		case "q", "ctrl+c":
			if !m.st.Stopping {
				m.st = state.RequestStop(m.st)
				if m.stop != nil {
					m.stop()
				}
			}
		case "up", "k":
			m.st = state.SelectPrev(m.st)
		case "down", "j":
			m.st = state.SelectNext(m.st)
		case "c":
			if u, ok := state.SelectedURL(m.st); ok {
				if err := m.copyURL(u); err != nil {
					m.st = state.SetNotice(m.st, "copy failed: "+err.Error())
				} else {
					m.st = state.SetNotice(m.st, "copied "+u)
				}
			}
		case "?":
			m.st = state.ToggleHelp(m.st)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.st = state.Resize(m.st, v.Width)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(v)
		return m, cmd
	case eventMsg:
		m.st = state.ApplyEvent(m.st, session.Event(v))
		return m, m.feed.wait()
	case foundMsg:
		m.st = state.AddURLs(m.st, v)
		return m, m.feed.wait()
	case timedOutMsg:
		m.st = state.MarkTimedOut(m.st)
		return m, m.feed.wait()
	case doneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title(m.title))
	b.WriteString("\n\n")
	for _, u := range m.st.Units {
		fmt.Fprintf(&b, "  %s %-7s %s", m.marker(u.Status), u.Unit, u.Status)
		if u.Detail != "" {
			b.WriteString(m.styles.Muted("  " + u.Detail))
		}
		b.WriteString("\n")
	}
	if len(m.st.URLs) > 0 {
		b.WriteString("\n" + m.styles.Title("Tunnel URLs:") + "\n")
		for i, u := range m.st.URLs {
			cursor := "  "
			if i == m.st.Selected {
				cursor = "> "
			}
			b.WriteString("  " + cursor + m.styles.URL(u) + "\n")
		}
	} else if m.st.TimedOut {
		b.WriteString("\n" + m.styles.Warn("Timeout reached, URL not found.") + "\n")
	}
	if state.Done(m.st) {
		b.WriteString("\n" + m.styles.Muted("Session finished.") + "\n")
	}
	b.WriteString("\n" + m.styles.Muted(m.bar.View(m.st)) + "\n")
	if m.st.ShowHelp {
		b.WriteString("\n" + m.help.View(m.st))
	} else {
		b.WriteString(m.styles.Muted("? help  c copy  q stop") + "\n")
	}
	return b.String()
}

func (m watchModel) marker(s session.Status) string {
	switch s {
	case session.Running:
		return m.spin.View()
	case session.Succeeded:
		return m.styles.OK("✓")
	case session.Failed:
		return m.styles.Err("✗")
	case session.Stopped:
		return m.styles.Warn("■")
	default:
		return m.styles.Muted("·")
	}
}
