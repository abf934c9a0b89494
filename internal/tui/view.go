package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/dispatch"
	"github.com/iksnae/jarvis-console/internal/windows"
)

const (
	windowWidth    = 40
	windowMessages = 6
)

func (m *Model) taskbar() windows.Taskbar {
	return windows.ProjectTaskbar(m.windows, m.deps.TaskbarCap)
}

// View renders the console
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	footer := m.renderFooter()
	deskHeight := max(1, m.height-lipgloss.Height(footer))

	desk := m.renderConsole()
	desk = fitHeight(desk, deskHeight)
	for _, w := range m.visibleWindows() {
		box := m.renderWindow(w)
		x := clamp(w.Position.X, 0, max(0, m.width-lipgloss.Width(box)))
		y := clamp(w.Position.Y, 0, max(0, deskHeight-lipgloss.Height(box)))
		desk = overlay(desk, box, x, y)
	}

	return desk + "\n" + footer
}

func (m Model) renderConsole() string {
	var b strings.Builder

	who := guestStyle.Render("GUEST")
	if !m.auth.IsGuest() {
		who = userStyle.Render(m.auth.DisplayName())
	}
	status := string(m.status)
	if m.status == dispatch.StatusProcessing || m.status == dispatch.StatusListening {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(titleStyle.Render("JARVIS") + "  " + who + "  " + statusStyle.Render(status))
	b.WriteString("\n")

	if m.restricted {
		b.WriteString(restrictedStyle.Render("Guest users cannot execute system commands"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.lastCommand != "" {
		b.WriteString(commandStyle.Render("› " + m.lastCommand))
		b.WriteString("\n")
	}
	if m.reply != "" {
		b.WriteString(replyStyle.Width(max(20, m.width-2)).Render(m.reply))
		b.WriteString("\n")
	}

	if m.overlay != nil {
		body := windowTitleStyle.Render(m.overlayTitle) + "\n" + strings.Join(m.overlay, "\n")
		b.WriteString("\n")
		b.WriteString(overlayStyle.Render(body))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderWindow(w windows.Window) string {
	inner := windowWidth - 4
	var lines []string

	title := truncate(w.Title, inner)
	if w.Pending > 0 {
		title = truncate(w.Title, inner-2) + " " + m.spinner.View()
	}
	lines = append(lines, windowTitleStyle.Render(title))

	msgs := w.Messages
	if len(msgs) > windowMessages {
		msgs = msgs[len(msgs)-windowMessages:]
	}
	for _, msg := range msgs {
		text := lipgloss.NewStyle().Width(inner).Render(msg.Text)
		if msg.Role == internal.RoleUser {
			text = windowUserStyle.Render(lipgloss.NewStyle().Width(inner).Render("› " + msg.Text))
		}
		lines = append(lines, text)
	}

	style := windowStyle
	if w.ID == m.focus {
		style = focusedWindowStyle
	}
	return style.Width(windowWidth - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	var b strings.Builder

	if m.overflowOpen {
		tb := m.taskbar()
		for _, t := range tb.Overflow {
			b.WriteString(m.renderTab(t.ID, t.Title, false))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.renderTaskbar())
	b.WriteString("\n")

	if m.toast != "" {
		b.WriteString(toastStyle.Render(m.toast))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.taskbarMode {
		b.WriteString(helpStyle.Render("←/→ select · enter restore · x close · esc back"))
	} else {
		b.WriteString(helpStyle.Render("ctrl+o open reply · tab focus · ctrl+t taskbar · /help"))
	}
	return b.String()
}

func (m Model) renderTaskbar() string {
	tb := m.taskbar()
	if tb.Len() == 0 {
		return helpStyle.Render("no minimized windows")
	}
	var tabs []string
	for _, t := range tb.Tabs {
		tabs = append(tabs, m.renderTab(t.ID, t.Title, false))
	}
	if label := tb.OverflowLabel(); label != "" {
		tabs = append(tabs, m.renderTab("", label, true))
	}
	return strings.Join(tabs, " ")
}

func (m Model) renderTab(id, title string, overflow bool) string {
	style := tabStyle
	if m.taskbarMode {
		items := m.taskbarItems()
		if m.taskbarIndex < len(items) {
			sel := items[m.taskbarIndex]
			if sel.overflow == overflow && sel.id == id {
				style = selectedTabStyle
			}
		}
	}
	return style.Render(truncate(title, 18))
}

// overlay draws fg on top of bg with its top-left corner at column x, row y
func overlay(bg, fg string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	fgLines := strings.Split(fg, "\n")
	for len(bgLines) < y+len(fgLines) {
		bgLines = append(bgLines, "")
	}
	for i, line := range fgLines {
		row := bgLines[y+i]
		if w := ansi.StringWidth(row); w < x {
			row += strings.Repeat(" ", x-w)
		}
		left := ansi.Truncate(row, x, "")
		right := ansi.TruncateLeft(row, x+ansi.StringWidth(line), "")
		bgLines[y+i] = left + line + right
	}
	return strings.Join(bgLines, "\n")
}

// fitHeight pads or cuts s to exactly n lines
func fitHeight(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if n <= 1 {
		return "…"
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
