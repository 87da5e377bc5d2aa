package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/muse/internal/recommend"
	"github.com/desertthunder/muse/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	TrackListView
	ErrorView
)

// builtMsg carries the pipeline outcome.
type builtMsg struct {
	result *recommend.Result
	err    error
}

// eventMsg carries one pipeline lifecycle event.
type eventMsg recommend.Event

// openedMsg reports the outcome of opening a track in the browser.
type openedMsg struct {
	err error
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	engine      *recommend.Engine
	opts        recommend.Options
	width       int
	height      int
	trackList   list.Model
	result      *recommend.Result
	status      string
	err         error
	events      chan recommend.Event
	unsubscribe func()
	help        help.Model
	keys        keyMap
}

// NewModel creates a new TUI model over the recommendation engine. The model
// subscribes to the engine's event broker so the loading view can narrate
// pipeline progress.
func NewModel(ctx context.Context, engine *recommend.Engine, opts recommend.Options) *Model {
	m := &Model{
		ctx:    ctx,
		view:   LoadingView,
		engine: engine,
		opts:   opts,
		status: "Building recommendations...",
		events: make(chan recommend.Event, 16),
		help:   help.New(),
		keys:   newKeyMap(),
	}
	m.unsubscribe = engine.Broker().Subscribe(func(event recommend.Event) {
		select {
		case m.events <- event:
		default:
		}
	})
	return m
}

// Init starts the pipeline and the event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.build(), m.waitForEvent())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.trackList.Width() != 0 {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LoadingView:
			return m.handleLoadingKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ErrorView:
			return m.handleErrorKeys(msg)
		}

	case builtMsg:
		m.unsubscribe()
		if msg.err != nil {
			m.err = msg.err
			m.view = ErrorView
			return m, nil
		}
		m.result = msg.result
		items := make([]list.Item, len(msg.result.Tracks))
		for i, track := range msg.result.Tracks {
			items[i] = trackItem{track: track}
		}
		m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = fmt.Sprintf("Recommended Tracks (%d)", len(items))
		m.trackList.SetSize(m.width-4, m.height-8)
		m.view = TrackListView
		return m, nil

	case eventMsg:
		if msg.Detail != "" {
			m.status = msg.Detail
		}
		return m, m.waitForEvent()

	case openedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Could not open browser: %v", msg.err)
		}
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return m.renderLoading()
	case TrackListView:
		return m.renderTrackList()
	case ErrorView:
		return m.renderError()
	default:
		return ""
	}
}

func (m *Model) handleLoadingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter", "o":
		selected := m.trackList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(trackItem); ok && item.track.ExternalURL != "" {
				return m, openTrack(item.track.ExternalURL)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.err = nil
		m.view = LoadingView
		m.status = "Building recommendations..."
		m.unsubscribe = m.engine.Broker().Subscribe(func(event recommend.Event) {
			select {
			case m.events <- event:
			default:
			}
		})
		return m, tea.Batch(m.build(), m.waitForEvent())
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != TrackListView {
		return m, nil
	}
	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) build() tea.Cmd {
	return func() tea.Msg {
		result, err := m.engine.Build(m.ctx, m.opts)
		return builtMsg{result: result, err: err}
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.events)
	}
}

func openTrack(url string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{err: shared.OpenBrowser(url)}
	}
}

func (m *Model) renderLoading() string {
	title := styles.title.Render("muse")
	status := styles.warn.Render(m.status)
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n%s\n\n%s", title, status, helpView)
}

func (m *Model) renderTrackList() string {
	if m.result != nil && len(m.result.Tracks) == 0 {
		title := styles.title.Render("muse")
		empty := "No recommendations for this context.\n\nTry a different seed or time range."
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
		return fmt.Sprintf("%s\n%s\n\n%s", title, empty, helpView)
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	status := ""
	if m.status != "" && m.view == TrackListView {
		status = styles.help.Render(m.status) + "\n"
	}
	return fmt.Sprintf("%s\n%s%s", m.trackList.View(), status, helpView)
}

func (m *Model) renderError() string {
	return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
}
