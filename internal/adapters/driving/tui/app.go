package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/views/jobs"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/views/timeline"
)

// PollInterval is how often job progress is refreshed.
const PollInterval = 250 * time.Millisecond

// Option configures an App.
type Option func(*App)

// WithWatch limits the jobs view to the given FileIDs.
func WithWatch(fileIDs ...string) Option {
	return func(a *App) {
		a.watch = fileIDs
	}
}

// WithExitWhenDone quits once every watched job is terminal.
func WithExitWhenDone() Option {
	return func(a *App) {
		a.exitWhenDone = true
	}
}

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model

	jobsView     *jobs.View
	timelineView *timeline.View
	statusBar    *status.Bar

	watch        []string
	exitWhenDone bool

	// currentView tracks which view is active; previousView is restored
	// when leaving help.
	currentView  messages.ViewType
	previousView messages.ViewType

	err    error
	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports, opts ...Option) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	a := &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		help:        help.New(),
		statusBar:   status.NewBar(s, km),
		currentView: messages.ViewJobs,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.jobsView = jobs.NewView(s, ports.Ingestion, a.watch)
	a.timelineView = timeline.NewView(s, ports.Timeline)
	a.statusBar.SetBindings(km.JobsHelp())
	return a, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.jobsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("clinitrace"),
		a.jobsView.Poll(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(PollInterval, func(t time.Time) tea.Msg {
		return messages.Tick{At: t}
	})
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.Tick:
		return a, a.jobsView.Poll()

	case messages.JobsPolled:
		a.jobsView, cmd = a.jobsView.Update(msg)
		a.statusBar.SetJobs(msg.Jobs)
		if a.exitWhenDone && a.jobsView.Settled() {
			return a, tea.Quit
		}
		return a, tea.Batch(cmd, tick())

	case messages.JobCancelled:
		if msg.Err != nil {
			return a.Update(messages.ErrorOccurred{Err: msg.Err})
		}
		return a, a.jobsView.Poll()

	case messages.TimelineMoved:
		a.timelineView, cmd = a.timelineView.Update(msg)
		return a, cmd

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.ErrorOccurred:
		a.err = msg.Err
		a.statusBar.SetState(status.StateError)
		a.statusBar.SetMessage(msg.Err.Error())
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, a.keymap.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keymap.Help):
		if a.currentView == messages.ViewHelp {
			return a, a.switchTo(a.previousView)
		}
		return a, a.switchTo(messages.ViewHelp)
	case key.Matches(msg, a.keymap.Back):
		if a.currentView == messages.ViewHelp {
			return a, a.switchTo(a.previousView)
		}
		return a, nil
	case key.Matches(msg, a.keymap.SwitchView):
		if a.currentView == messages.ViewJobs {
			return a, a.switchTo(messages.ViewTimeline)
		}
		return a, a.switchTo(messages.ViewJobs)
	}

	switch a.currentView {
	case messages.ViewJobs:
		a.jobsView, cmd = a.jobsView.Update(msg)
	case messages.ViewTimeline:
		a.timelineView, cmd = a.timelineView.Update(msg)
	case messages.ViewHelp:
	}
	return a, cmd
}

func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	if view == messages.ViewHelp {
		a.previousView = a.currentView
		a.statusBar.SetState(status.StateHelp)
	} else if a.statusBar.State() == status.StateHelp {
		a.statusBar.SetState(status.StateReady)
	}
	a.currentView = view

	switch view {
	case messages.ViewJobs:
		a.statusBar.SetBindings(a.keymap.JobsHelp())
	case messages.ViewTimeline:
		a.statusBar.SetBindings(a.keymap.TimelineHelp())
		return a.timelineView.Init()
	case messages.ViewHelp:
		a.statusBar.SetBindings(a.keymap.ShortHelp())
	}
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewTimeline:
		body = a.timelineView.View()
	case messages.ViewHelp:
		body = a.help.FullHelpView(a.keymap.FullHelp())
	default:
		body = a.jobsView.View()
	}

	header := a.styles.Title.Render("clinitrace") + " " + a.styles.Subtitle.Render(a.currentView.String())
	return strings.Join([]string{header, "", body, a.statusBar.View()}, "\n")
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Jobs returns the jobs view.
func (a *App) Jobs() *jobs.View {
	return a.jobsView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.help.Width = width
	a.statusBar.SetWidth(width)
	a.jobsView.SetDimensions(width, height)
	a.timelineView.SetDimensions(width, height)
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}
