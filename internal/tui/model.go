// Package tui implements the interactive user browser: a Bubble Tea list that
// loads the next page whenever the viewport nears the end of the loaded rows.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/logging"
	"github.com/Sternrassler/userlist/pkg/pagination"
	"github.com/Sternrassler/userlist/pkg/scroll"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

const (
	// chromeHeight is the number of rows used by the header and footer.
	chromeHeight = 3

	// wheelStep is the number of rows one mouse wheel notch scrolls.
	wheelStep = 3

	defaultLoadTimeout = 30 * time.Second
)

// Options configures the browser.
type Options struct {
	Title     string
	Sort      string
	Threshold int           // rows from the bottom that trigger a load
	Timeout   time.Duration // per page load
}

// inflight holds the cancel function of the outstanding load. It is shared by
// all copies of a Model.
type inflight struct {
	cancel context.CancelFunc
}

func (f *inflight) stop() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Model is the browser state.
type Model struct {
	fetcher *pagination.PagedFetcher[user.User]
	gate    *scroll.Gate
	hasMore *scroll.Flag

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	logger  zerolog.Logger

	title   string
	timeout time.Duration

	items  []user.User
	total  int
	cursor int
	offset int
	width  int
	height int

	sort          string
	gen           int
	pendingReload bool
	inflight      *inflight

	err         error
	failedFirst bool
}

// New creates a browser over fetcher. The fetcher must not be used elsewhere
// while the program runs.
func New(fetcher *pagination.PagedFetcher[user.User], opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Users"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLoadTimeout
	}

	hasMore := scroll.NewFlag(fetcher.HasMore())

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return Model{
		fetcher:  fetcher,
		gate:     scroll.NewGate(hasMore, opts.Threshold),
		hasMore:  hasMore,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  s,
		logger:   logging.NewLogger("tui"),
		title:    opts.Title,
		timeout:  opts.Timeout,
		sort:     opts.Sort,
		inflight: &inflight{},
	}
}

// Init starts the initial fill, regardless of scroll position.
func (m Model) Init() tea.Cmd {
	if !m.gate.Begin() {
		return nil
	}
	return m.startLoad(false)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampOffset()
		cmd := m.observe()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.moveCursor(-wheelStep)
		case tea.MouseButtonWheelDown:
			m.moveCursor(wheelStep)
		default:
			return m, nil
		}
		cmd := m.observe()
		return m, cmd

	case pageLoadedMsg:
		return m.handleLoaded(msg)

	case spinner.TickMsg:
		if !m.gate.Busy().Get() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.inflight.stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.listHeight())
	case key.Matches(msg, m.keys.Home):
		m.moveCursor(-len(m.items))
	case key.Matches(msg, m.keys.End):
		m.moveCursor(len(m.items))
	case key.Matches(msg, m.keys.Sort):
		cmd := m.changeSort(user.NextSortKey(m.sort))
		return m, cmd
	case key.Matches(msg, m.keys.Retry):
		cmd := m.retry()
		return m, cmd
	default:
		return m, nil
	}
	cmd := m.observe()
	return m, cmd
}

func (m Model) handleLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	m.gate.Settle()
	m.inflight.cancel = nil

	if msg.gen != m.gen {
		// results for a sort that is no longer shown
		if m.pendingReload {
			m.pendingReload = false
			m.gate.Begin()
			cmd := m.startLoad(true)
			return m, cmd
		}
		return m, nil
	}

	if msg.err != nil && !errors.Is(msg.err, pagination.ErrNoMorePages) {
		m.logger.Debug().Err(msg.err).Bool("first", msg.first).Str("sort", m.sort).Msg("Page load failed")
		m.err = msg.err
		m.failedFirst = msg.first
		return m, nil
	}

	m.err = nil
	m.items = m.fetcher.Items()
	m.total = m.fetcher.Total()
	m.hasMore.Set(m.fetcher.HasMore())
	if msg.first {
		m.cursor = 0
		m.offset = 0
	}
	m.logger.Debug().
		Int("received", msg.received).
		Int("items", len(m.items)).
		Int("total", m.total).
		Str("sort", m.sort).
		Msg("Page loaded")

	cmd := m.observe()
	return m, cmd
}

// changeSort switches the sort key and reloads from page 0. A load in flight is
// cancelled and the reload starts once it settles.
func (m *Model) changeSort(sort string) tea.Cmd {
	m.sort = sort
	m.gen++
	m.err = nil

	if !m.gate.Begin() {
		m.pendingReload = true
		m.inflight.stop()
		return nil
	}
	return m.startLoad(true)
}

// retry repeats the failed call after an error.
func (m *Model) retry() tea.Cmd {
	if m.err == nil || !m.gate.Begin() {
		return nil
	}
	m.err = nil
	return m.startLoad(m.failedFirst)
}

// observe feeds the current viewport to the gate and starts a load when it
// fires. Nothing loads automatically while an error is shown.
func (m *Model) observe() tea.Cmd {
	if m.err != nil {
		return nil
	}
	sample := scroll.Sample{
		ScrollTop:      m.offset,
		ViewportHeight: m.listHeight(),
		ContentHeight:  len(m.items),
	}
	if !m.gate.Observe(sample) {
		return nil
	}
	return m.startLoad(false)
}

// startLoad issues one fetcher call. The gate must already be Loading.
func (m *Model) startLoad(first bool) tea.Cmd {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	m.inflight.cancel = cancel
	return tea.Batch(
		m.spinner.Tick,
		loadPageCmd(ctx, cancel, m.fetcher, m.sort, m.gen, first),
	)
}

func (m *Model) moveCursor(delta int) {
	if len(m.items) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.items)-1)

	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

func (m *Model) clampOffset() {
	h := m.listHeight()
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = max(m.offset, 0)
}

// listHeight is the number of item rows that fit on screen.
func (m Model) listHeight() int {
	return max(m.height-chromeHeight, 1)
}

// Items returns the rows currently shown.
func (m Model) Items() []user.User {
	return m.items
}

// Sort returns the active sort key.
func (m Model) Sort() string {
	return m.sort
}

// Err returns the last load error, or nil.
func (m Model) Err() error {
	return m.err
}
