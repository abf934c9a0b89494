package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/iksnae/jarvis-console/internal"
)

var helpLines = []string{
	"enter      send the input line to the focused target",
	"ctrl+o     open the last reply in a new window",
	"tab        cycle focus: console, then windows topmost first",
	"ctrl+n     minimize the focused window",
	"ctrl+w     close the focused window",
	"alt+arrows move the focused window",
	"ctrl+t     select a minimized window (enter restores, x closes, +N expands)",
	"ctrl+l     speak a command",
	"esc        back to the console / dismiss",
	"ctrl+c     quit",
	"",
	"/login <email>  /logout  /whoami",
	"/history  /resume <chat id>  /new  /help",
}

// runSlash executes a console command typed as /name args
func (m Model) runSlash(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	name, args := fields[0], fields[1:]

	switch name {
	case "/help":
		m.showOverlay("Help", helpLines)

	case "/login":
		if len(args) != 1 {
			m.showToast("Usage: /login <email or name>")
			break
		}
		if m.deps.Backend == nil {
			m.showToast("Login is not available")
			break
		}
		m.enterPasswordMode(args[0])

	case "/logout":
		if m.auth.IsGuest() {
			m.showToast("Not signed in")
			break
		}
		if m.deps.Cache != nil && m.auth.User != nil && !m.auth.Degraded {
			if err := m.deps.Cache.Clear(m.auth.User.Email); err != nil {
				internal.LogWarn("Failed to clear cached history: %v", err)
			}
		}
		m.deps.Auth.Logout()
		m.refresh()
		m.promoteReply = ""
		m.showToast("Signed out")

	case "/whoami":
		m.showOverlay("Who am I", whoamiLines(m))

	case "/history":
		if m.auth.IsGuest() {
			m.showToast(internal.ErrNotAuthenticated.Error())
			break
		}
		owner := ""
		if m.auth.User != nil {
			owner = m.auth.User.Email
		}
		m.showToast("Fetching history…")
		return m, historyCmd(m.ctx, m.deps.Backend, m.deps.Cache, m.deps.Store.Token(), owner)

	case "/resume":
		if len(args) != 1 {
			m.showToast("Usage: /resume <chat id>")
			break
		}
		if m.auth.IsGuest() {
			m.showToast(internal.ErrNotAuthenticated.Error())
			break
		}
		m.deps.Store.SetActiveChatID(args[0])
		m.clearOverlay()
		m.showToast("Resumed chat " + args[0])

	case "/new":
		m.deps.Store.SetActiveChatID("")
		m.showToast("Next command starts a new chat")

	default:
		m.showToast(fmt.Sprintf("Unknown command %s, try /help", name))
	}
	return m, nil
}

func whoamiLines(m Model) []string {
	if m.auth.IsGuest() {
		return []string{"GUEST", "System commands are restricted."}
	}
	lines := []string{m.auth.DisplayName()}
	if u := m.auth.User; u != nil {
		if u.Email != "" {
			lines = append(lines, u.Email)
		}
		if u.Role != "" {
			lines = append(lines, "role: "+u.Role)
		}
	}
	if m.auth.Degraded {
		lines = append(lines, "(profile unavailable)")
	}
	if id := m.deps.Store.ActiveChatID(); id != "" {
		lines = append(lines, "chat: "+id)
	}
	return lines
}

func (m Model) handleHistory(msg historyMsg) Model {
	m.toast = ""
	if msg.err != nil {
		m.showToast("History unavailable: " + internal.UserMessage(msg.err))
		return m
	}
	var lines []string
	for _, conv := range msg.convs {
		title, ok := conv.Title()
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-12s %s", conv.ID, truncate(title, 50)))
	}
	if len(lines) == 0 {
		lines = []string{"No conversations yet."}
	} else {
		lines = append(lines, "", "/resume <chat id> continues a conversation")
	}
	m.showOverlay("History", lines)
	return m
}
