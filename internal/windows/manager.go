// Package windows manages the popup windows spawned from main console
// replies. Each window is an independent, silent sub-conversation.
package windows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iksnae/jarvis-console/internal"
)

var (
	// ErrWindowNotFound is returned for an id that never existed
	ErrWindowNotFound = errors.New("window not found")
	// ErrWindowClosed is returned for an id whose window was closed
	ErrWindowClosed = errors.New("window closed")
)

// Point is a window position in terminal cells
type Point struct {
	X int
	Y int
}

// Window is a snapshot of one popup window. Messages is a copy; changing it
// does not affect the manager.
type Window struct {
	ID        string
	Title     string
	Minimized bool
	Messages  []internal.ChatMessage
	Position  Point
	Pending   int // silent calls in flight
}

func (w Window) clone() Window {
	w.Messages = append([]internal.ChatMessage(nil), w.Messages...)
	return w
}

// Router sends a window's command to the backend; implemented by the dispatcher
type Router interface {
	Dispatch(ctx context.Context, text string, target internal.ReplyTarget) (*internal.DispatchResult, error)
}

// Options configures a Manager
type Options struct {
	NewID  func() string
	Origin Point // position of the first window
	Step   Point // cascade offset of each following window
}

// Manager owns the window collection. Every change replaces the whole
// slice, so snapshots handed out earlier stay valid.
type Manager struct {
	newID  func() string
	origin Point
	step   Point

	mu       sync.Mutex
	windows  []Window
	closed   map[string]bool
	spawned  int
	router   Router
	onChange func([]Window)
}

// NewManager creates an empty manager
func NewManager(opts Options) *Manager {
	m := &Manager{
		newID:  opts.NewID,
		origin: opts.Origin,
		step:   opts.Step,
		closed: make(map[string]bool),
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.origin == (Point{}) {
		m.origin = Point{X: 4, Y: 2}
	}
	if m.step == (Point{}) {
		m.step = Point{X: 3, Y: 1}
	}
	return m
}

// SetRouter connects the dispatcher used by SendMessage
func (m *Manager) SetRouter(r Router) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.router = r
}

// OnChange registers a listener called with every new collection. It runs
// with the manager locked and must not call back into it.
func (m *Manager) OnChange(fn func([]Window)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Windows returns all open windows in z-order, bottom first
func (m *Manager) Windows() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.windows)
}

// Visible returns the open windows that are not minimized
func (m *Manager) Visible() []Window {
	return filter(m.Windows(), func(w Window) bool { return !w.Minimized })
}

// Minimized returns the minimized windows in z-order
func (m *Manager) Minimized() []Window {
	return filter(m.Windows(), func(w Window) bool { return w.Minimized })
}

// Get returns one window
func (m *Manager) Get(id string) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.indexLocked(id)
	if err != nil {
		return Window{}, err
	}
	return m.windows[i].clone(), nil
}

// Spawn promotes a main console reply into a new visible window titled
// with the command that produced it.
func (m *Manager) Spawn(trigger, reply string) Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	title := strings.TrimSpace(trigger)
	if title == "" {
		title = "Jarvis"
	}
	w := Window{
		ID:       m.newID(),
		Title:    title,
		Messages: []internal.ChatMessage{internal.NewChatMessage(internal.RoleAssistant, reply)},
		Position: Point{
			X: m.origin.X + m.step.X*(m.spawned%8),
			Y: m.origin.Y + m.step.Y*(m.spawned%8),
		},
	}
	m.spawned++

	next := append(cloneAll(m.windows), w)
	ret := w.clone()
	m.commitLocked(next)
	internal.LogDebug("Spawned window %s (%q)", w.ID, w.Title)
	return ret
}

// Minimize hides a window in the taskbar. Minimizing a minimized window is a no-op.
func (m *Manager) Minimize(id string) error {
	return m.update(id, func(w *Window) bool {
		if w.Minimized {
			return false
		}
		w.Minimized = true
		return true
	})
}

// Restore shows a minimized window again and raises it
func (m *Manager) Restore(id string) error {
	if err := m.update(id, func(w *Window) bool {
		if !w.Minimized {
			return false
		}
		w.Minimized = false
		return true
	}); err != nil {
		return err
	}
	return m.Raise(id)
}

// Move places a window at p
func (m *Manager) Move(id string, p Point) error {
	return m.update(id, func(w *Window) bool {
		if w.Position == p {
			return false
		}
		w.Position = p
		return true
	})
}

// MoveBy shifts a window by dx, dy, never past the top-left corner
func (m *Manager) MoveBy(id string, dx, dy int) error {
	return m.update(id, func(w *Window) bool {
		p := Point{X: max(0, w.Position.X+dx), Y: max(0, w.Position.Y+dy)}
		if p == w.Position {
			return false
		}
		w.Position = p
		return true
	})
}

// Raise moves a window to the top of the z-order
func (m *Manager) Raise(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.indexLocked(id)
	if err != nil {
		return err
	}
	if i == len(m.windows)-1 {
		return nil
	}
	next := make([]Window, 0, len(m.windows))
	for j, w := range m.windows {
		if j != i {
			next = append(next, w.clone())
		}
	}
	next = append(next, m.windows[i].clone())
	m.commitLocked(next)
	return nil
}

// Close removes a window for good. Later operations on id fail with
// ErrWindowClosed and replies still in flight for it are dropped.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.indexLocked(id)
	if err != nil {
		return err
	}
	next := make([]Window, 0, len(m.windows)-1)
	for j, w := range m.windows {
		if j != i {
			next = append(next, w.clone())
		}
	}
	m.closed[id] = true
	m.commitLocked(next)
	internal.LogDebug("Closed window %s", id)
	return nil
}

// AppendReply adds an assistant message to window id only
func (m *Manager) AppendReply(id, text string) error {
	return m.update(id, func(w *Window) bool {
		w.Messages = append(w.Messages, internal.NewChatMessage(internal.RoleAssistant, text))
		return true
	})
}

// SendMessage appends text as a user message right away, then sends it as a
// silent command whose reply lands in this window alone. It works whether
// the window is minimized or not and never changes that.
func (m *Manager) SendMessage(ctx context.Context, id, text string) (*internal.DispatchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &internal.DispatchResult{Target: internal.WindowTarget(id), Skipped: true}, nil
	}

	m.mu.Lock()
	router := m.router
	m.mu.Unlock()
	if router == nil {
		return nil, fmt.Errorf("window %s: no router configured", id)
	}

	if err := m.update(id, func(w *Window) bool {
		w.Messages = append(w.Messages, internal.NewChatMessage(internal.RoleUser, text))
		w.Pending++
		return true
	}); err != nil {
		return nil, err
	}
	defer func() {
		_ = m.update(id, func(w *Window) bool {
			w.Pending--
			return true
		})
	}()

	return router.Dispatch(ctx, text, internal.WindowTarget(id))
}

// update applies fn to a copy of window id and commits the new collection
// when fn reports a change.
func (m *Manager) update(id string, fn func(w *Window) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.indexLocked(id)
	if err != nil {
		return err
	}
	next := cloneAll(m.windows)
	if !fn(&next[i]) {
		return nil
	}
	m.commitLocked(next)
	return nil
}

func (m *Manager) indexLocked(id string) (int, error) {
	if m.closed[id] {
		return -1, fmt.Errorf("%w: %s", ErrWindowClosed, id)
	}
	for i, w := range m.windows {
		if w.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrWindowNotFound, id)
}

func (m *Manager) commitLocked(next []Window) {
	m.windows = next
	if m.onChange != nil {
		m.onChange(cloneAll(next))
	}
}

func cloneAll(ws []Window) []Window {
	out := make([]Window, len(ws))
	for i, w := range ws {
		out[i] = w.clone()
	}
	return out
}

func filter(ws []Window, keep func(Window) bool) []Window {
	var out []Window
	for _, w := range ws {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}
