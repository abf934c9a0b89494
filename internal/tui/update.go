package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/dispatch"
	"github.com/iksnae/jarvis-console/internal/speech"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(20, msg.Width-30)
		return m, nil

	case tickMsg:
		m.refresh()
		if m.toast != "" && time.Time(msg).After(m.toastUntil) {
			m.toast = ""
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case dispatchDoneMsg:
		return m.handleDispatchDone(msg), nil

	case listenDoneMsg:
		return m.handleListenDone(msg)

	case loginDoneMsg:
		m.refresh()
		if msg.err != nil {
			m.showToast("Login failed: " + internal.UserMessage(msg.err))
			return m, nil
		}
		m.showToast("Signed in as " + m.auth.DisplayName())
		return m, nil

	case historyMsg:
		return m.handleHistory(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.taskbarMode {
		return m.handleTaskbarKey(msg)
	}

	switch msg.String() {
	case "esc":
		switch {
		case m.mode == modePassword:
			m.leavePasswordMode()
			m.showToast("Login cancelled")
		case m.overlay != nil:
			m.clearOverlay()
		case m.focus != "":
			m.setFocus("")
		}
		return m, nil

	case "enter":
		return m.submit()

	case "tab":
		m.cycleFocus()
		return m, nil

	case "ctrl+o":
		return m.promote(), nil

	case "ctrl+w":
		if m.focus != "" {
			id := m.focus
			m.setFocus("")
			if err := m.deps.Windows.Close(id); err != nil {
				m.showToast(err.Error())
			}
			m.refresh()
		}
		return m, nil

	case "ctrl+n":
		if m.focus != "" {
			id := m.focus
			m.setFocus("")
			if err := m.deps.Windows.Minimize(id); err != nil {
				m.showToast(err.Error())
			}
			m.refresh()
		}
		return m, nil

	case "ctrl+t":
		if len(m.taskbarItems()) == 0 {
			m.showToast("No minimized windows")
			return m, nil
		}
		m.taskbarMode = true
		m.taskbarIndex = 0
		return m, nil

	case "ctrl+l":
		return m.listen()

	case "alt+up", "alt+down", "alt+left", "alt+right":
		if m.focus != "" {
			dx, dy := arrowDelta(msg.String())
			_ = m.deps.Windows.MoveBy(m.focus, dx, dy)
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func arrowDelta(key string) (int, int) {
	switch key {
	case "alt+up":
		return 0, -1
	case "alt+down":
		return 0, 1
	case "alt+left":
		return -2, 0
	default:
		return 2, 0
	}
}

// submit sends the input line to the focused target
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if m.mode == modePassword {
		email := m.pendingEmail
		m.leavePasswordMode()
		if text == "" {
			m.showToast("Login cancelled")
			return m, nil
		}
		m.showToast("Signing in…")
		return m, loginCmd(m.ctx, m.deps.Backend, m.deps.Store, email, text)
	}

	if text == "" {
		return m, nil
	}

	if m.focus != "" {
		return m, windowSendCmd(m.ctx, m.deps.Windows, m.focus, text)
	}

	if strings.HasPrefix(text, "/") {
		return m.runSlash(text)
	}

	m.clearOverlay()
	return m, dispatchCmd(m.ctx, m.deps.Dispatcher, text, internal.MainTarget())
}

func (m Model) handleDispatchDone(msg dispatchDoneMsg) Model {
	m.refresh()
	if msg.err != nil {
		m.showToast(internal.UserMessage(msg.err))
		return m
	}
	res := msg.result
	if res == nil || res.Skipped || res.Dropped {
		return m
	}
	if msg.target.IsMain() {
		m.promoteTrigger = msg.text
		m.promoteReply = res.Reply
	}
	return m
}

// promote opens the last main console reply in a new window
func (m Model) promote() Model {
	if m.promoteReply == "" {
		m.showToast("No reply to open")
		return m
	}
	w := m.deps.Windows.Spawn(m.promoteTrigger, m.promoteReply)
	m.refresh()
	m.setFocus(w.ID)
	return m
}

// cycleFocus moves from the main console through the visible windows,
// topmost first, and back.
func (m *Model) cycleFocus() {
	visible := m.visibleWindows()
	if len(visible) == 0 {
		m.setFocus("")
		return
	}
	order := []string{""}
	for i := len(visible) - 1; i >= 0; i-- {
		order = append(order, visible[i].ID)
	}
	next := 0
	for i, id := range order {
		if id == m.focus {
			next = (i + 1) % len(order)
			break
		}
	}
	m.setFocus(order[next])
	if order[next] != "" {
		_ = m.deps.Windows.Raise(order[next])
		m.refresh()
	}
}

func (m Model) listen() (tea.Model, tea.Cmd) {
	if m.focus != "" {
		m.setFocus("")
	}
	m.deps.Dispatcher.Status().Set(dispatch.StatusListening)
	m.refresh()
	return m, listenCmd(m.ctx, m.deps.Recognizer)
}

func (m Model) handleListenDone(msg listenDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.deps.Dispatcher.Status().Set(dispatch.StatusIdle)
		m.refresh()
		switch {
		case errors.Is(msg.err, speech.ErrNothingHeard):
			m.showToast("Didn't catch that")
		case errors.Is(msg.err, internal.ErrSpeechUnsupported):
			m.showToast("Speech input is not configured")
		default:
			m.showToast("Speech input failed: " + internal.UserMessage(msg.err))
		}
		return m, nil
	}
	return m, dispatchCmd(m.ctx, m.deps.Dispatcher, msg.text, internal.MainTarget())
}

func (m *Model) enterPasswordMode(email string) {
	m.mode = modePassword
	m.pendingEmail = email
	m.drafts[m.focus] = m.input.Value()
	m.input.SetValue("")
	m.input.Prompt = "password: "
	m.input.EchoMode = textinput.EchoPassword
}

func (m *Model) leavePasswordMode() {
	m.mode = modeCommand
	m.pendingEmail = ""
	m.input.EchoMode = textinput.EchoNormal
	m.input.Prompt = "> "
	m.input.SetValue(m.drafts[m.focus])
}

// taskbar items: the tabs, then the overflow control, then the expanded
// overflow entries
type taskbarItem struct {
	id       string
	title    string
	overflow bool // the "+N" control
}

func (m *Model) taskbarItems() []taskbarItem {
	tb := m.taskbar()
	var items []taskbarItem
	for _, t := range tb.Tabs {
		items = append(items, taskbarItem{id: t.ID, title: t.Title})
	}
	if label := tb.OverflowLabel(); label != "" {
		items = append(items, taskbarItem{title: label, overflow: true})
		if m.overflowOpen {
			for _, t := range tb.Overflow {
				items = append(items, taskbarItem{id: t.ID, title: t.Title})
			}
		}
	}
	return items
}

func (m Model) handleTaskbarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.taskbarItems()
	switch msg.String() {
	case "esc", "ctrl+t":
		m.taskbarMode = false
	case "left", "up", "shift+tab":
		if m.taskbarIndex > 0 {
			m.taskbarIndex--
		}
	case "right", "down", "tab":
		if m.taskbarIndex < len(items)-1 {
			m.taskbarIndex++
		}
	case "enter":
		if m.taskbarIndex >= len(items) {
			break
		}
		item := items[m.taskbarIndex]
		if item.overflow {
			m.overflowOpen = !m.overflowOpen
			break
		}
		if err := m.deps.Windows.Restore(item.id); err != nil {
			m.showToast(err.Error())
			break
		}
		m.taskbarMode = false
		m.refresh()
		m.setFocus(item.id)
	case "x", "ctrl+w":
		if m.taskbarIndex >= len(items) || items[m.taskbarIndex].overflow {
			break
		}
		if err := m.deps.Windows.Close(items[m.taskbarIndex].id); err != nil {
			m.showToast(err.Error())
			break
		}
		m.refresh()
		if !m.taskbarMode {
			m.overflowOpen = false
		}
	}
	return m, nil
}
