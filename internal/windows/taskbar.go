package windows

import "fmt"

// DefaultTaskbarCap is how many minimized windows get their own tab
const DefaultTaskbarCap = 5

// Tab is one taskbar entry
type Tab struct {
	ID    string
	Title string
}

// Taskbar is derived from the window collection; it holds no state of its own
type Taskbar struct {
	Tabs     []Tab
	Overflow []Tab
}

// OverflowLabel returns "+N" for N collapsed windows, or "" when none
func (t Taskbar) OverflowLabel() string {
	if len(t.Overflow) == 0 {
		return ""
	}
	return fmt.Sprintf("+%d", len(t.Overflow))
}

// Len returns the number of minimized windows
func (t Taskbar) Len() int {
	return len(t.Tabs) + len(t.Overflow)
}

// ProjectTaskbar lists the minimized windows of ws: the first limit as tabs,
// the rest collapsed into the overflow.
func ProjectTaskbar(ws []Window, limit int) Taskbar {
	if limit <= 0 {
		limit = DefaultTaskbarCap
	}
	var tb Taskbar
	for _, w := range ws {
		if !w.Minimized {
			continue
		}
		tab := Tab{ID: w.ID, Title: w.Title}
		if len(tb.Tabs) < limit {
			tb.Tabs = append(tb.Tabs, tab)
		} else {
			tb.Overflow = append(tb.Overflow, tab)
		}
	}
	return tb
}

// Taskbar projects the manager's current windows
func (m *Manager) Taskbar(limit int) Taskbar {
	return ProjectTaskbar(m.Windows(), limit)
}
