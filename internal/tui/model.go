// Package tui is the interactive Jarvis console: the main console, the popup
// windows spawned from its replies and the taskbar of minimized windows.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/api"
	"github.com/iksnae/jarvis-console/internal/dispatch"
	"github.com/iksnae/jarvis-console/internal/session"
	"github.com/iksnae/jarvis-console/internal/speech"
	"github.com/iksnae/jarvis-console/internal/windows"
)

const (
	refreshInterval = 50 * time.Millisecond
	toastDuration   = 3 * time.Second
)

// Backend is the part of the API the console calls directly; commands go
// through the dispatcher.
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	History(ctx context.Context, token string) ([]internal.Conversation, error)
}

// Deps wires the console to the rest of the application
type Deps struct {
	Context    context.Context
	Dispatcher *dispatch.Dispatcher
	Windows    *windows.Manager
	Store      *session.Store
	Auth       *session.Auth
	Backend    Backend
	Recognizer speech.Recognizer     // nil means speech input is unsupported
	Cache      *internal.HistoryCache // optional
	TaskbarCap int
	Notice     string // shown once when the console opens
}

// inputMode says what the next enter in the input line does
type inputMode int

const (
	modeCommand inputMode = iota
	modePassword
)

// Model is the console's bubbletea model. Shared state lives in the
// dispatcher, window manager and session store; the model keeps snapshots
// of it refreshed on every tick.
type Model struct {
	deps Deps
	ctx  context.Context

	input   textinput.Model
	spinner spinner.Model
	width   int
	height  int

	// snapshots
	status      dispatch.Status
	restricted  bool
	lastCommand string
	reply       string
	revision    uint64
	auth        session.AuthState
	windows     []windows.Window

	// main console reply that ctrl+o promotes into a window
	promoteTrigger string
	promoteReply   string

	focus  string            // "" is the main console, otherwise a window id
	drafts map[string]string // unsent input per focus target

	mode         inputMode
	pendingEmail string

	taskbarMode  bool
	taskbarIndex int
	overflowOpen bool

	overlayTitle string
	overlay      []string

	toast      string
	toastUntil time.Time

	quitting bool
}

// Messages
type tickMsg time.Time

type dispatchDoneMsg struct {
	text   string
	target internal.ReplyTarget
	result *internal.DispatchResult
	err    error
}

type listenDoneMsg struct {
	text string
	err  error
}

type loginDoneMsg struct {
	resp *api.LoginResponse
	err  error
}

type historyMsg struct {
	convs []internal.Conversation
	err   error
}

// New creates the console model
func New(deps Deps) Model {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.TaskbarCap <= 0 {
		deps.TaskbarCap = windows.DefaultTaskbarCap
	}
	if deps.Recognizer == nil {
		deps.Recognizer = speech.UnsupportedRecognizer{}
	}

	ti := textinput.New()
	ti.Placeholder = "Type a command, or /help"
	ti.Prompt = "> "
	ti.CharLimit = 500
	ti.Width = 60
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		deps:    deps,
		ctx:     deps.Context,
		input:   ti,
		spinner: s,
		drafts:  make(map[string]string),
		width:   80,
		height:  24,
	}
	m.refresh()
	if deps.Notice != "" {
		m.showToast(deps.Notice)
	}
	return m
}

// Init starts the refresh loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh copies the shared state into the model
func (m *Model) refresh() {
	d := m.deps.Dispatcher
	m.status = d.Status().Get()
	m.restricted = d.Notice().Active()
	if rev := d.Console().Revision(); rev != m.revision {
		m.revision = rev
		m.lastCommand = d.Console().LastCommand()
		m.reply = d.Console().Reply()
	}
	if m.deps.Auth != nil {
		m.auth = m.deps.Auth.State()
	}
	m.windows = m.deps.Windows.Windows()

	if m.focus != "" && !m.isVisible(m.focus) {
		m.setFocus("")
	}
	if m.taskbarMode {
		if n := len(m.taskbarItems()); n == 0 {
			m.taskbarMode = false
		} else if m.taskbarIndex >= n {
			m.taskbarIndex = n - 1
		}
	}
}

func (m *Model) isVisible(id string) bool {
	for _, w := range m.windows {
		if w.ID == id {
			return !w.Minimized
		}
	}
	return false
}

func (m *Model) window(id string) (windows.Window, bool) {
	for _, w := range m.windows {
		if w.ID == id {
			return w, true
		}
	}
	return windows.Window{}, false
}

// visibleWindows returns the open windows in z-order, bottom first
func (m *Model) visibleWindows() []windows.Window {
	var out []windows.Window
	for _, w := range m.windows {
		if !w.Minimized {
			out = append(out, w)
		}
	}
	return out
}

// setFocus moves the input line to target, keeping the draft of each target
func (m *Model) setFocus(target string) {
	if target == m.focus {
		return
	}
	m.drafts[m.focus] = m.input.Value()
	m.focus = target
	m.input.SetValue(m.drafts[target])
	m.input.CursorEnd()
	if target == "" {
		m.input.Prompt = "> "
		return
	}
	title := "window"
	if w, ok := m.window(target); ok {
		title = truncate(w.Title, 20)
	}
	m.input.Prompt = "[" + title + "] > "
}

func (m *Model) showToast(text string) {
	m.toast = text
	m.toastUntil = time.Now().Add(toastDuration)
}

func (m *Model) showOverlay(title string, lines []string) {
	m.overlayTitle = title
	m.overlay = lines
}

func (m *Model) clearOverlay() {
	m.overlayTitle = ""
	m.overlay = nil
}

// Focus returns the id of the focused window, "" for the main console
func (m Model) Focus() string {
	return m.focus
}

func dispatchCmd(ctx context.Context, d *dispatch.Dispatcher, text string, target internal.ReplyTarget) tea.Cmd {
	return func() tea.Msg {
		res, err := d.Dispatch(ctx, text, target)
		return dispatchDoneMsg{text: text, target: target, result: res, err: err}
	}
}

func windowSendCmd(ctx context.Context, wm *windows.Manager, id, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := wm.SendMessage(ctx, id, text)
		return dispatchDoneMsg{text: text, target: internal.WindowTarget(id), result: res, err: err}
	}
}

func listenCmd(ctx context.Context, r speech.Recognizer) tea.Cmd {
	return func() tea.Msg {
		text, err := r.Listen(ctx)
		return listenDoneMsg{text: text, err: err}
	}
}

func loginCmd(ctx context.Context, b Backend, store *session.Store, email, password string) tea.Cmd {
	return func() tea.Msg {
		resp, err := b.Login(ctx, email, password)
		if err == nil {
			// the token write refreshes AuthState before the message arrives
			store.SetToken(resp.AccessToken)
		}
		return loginDoneMsg{resp: resp, err: err}
	}
}

func historyCmd(ctx context.Context, b Backend, cache *internal.HistoryCache, token, owner string) tea.Cmd {
	return func() tea.Msg {
		convs, err := b.History(ctx, token)
		if err == nil && cache != nil && owner != "" {
			if cerr := cache.Replace(owner, convs); cerr != nil {
				internal.LogWarn("history cache update failed: %v", cerr)
			}
		}
		return historyMsg{convs: convs, err: err}
	}
}

// Run starts the console on the terminal and blocks until the user quits
func Run(deps Deps) error {
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if deps.Context != nil {
		opts = append(opts, tea.WithContext(deps.Context))
	}
	_, err := tea.NewProgram(New(deps), opts...).Run()
	return err
}
