package dispatch

import (
	"sync"
	"time"
)

// Status is the one-line state shown above the main console
type Status string

const (
	StatusIdle       Status = "Awaiting command"
	StatusListening  Status = "Listening…"
	StatusProcessing Status = "Processing…"
	StatusResponding Status = "Responding…"
	StatusRestricted Status = "Restricted"
)

// StatusBoard holds the current Status and notifies a listener on change
type StatusBoard struct {
	mu       sync.RWMutex
	status   Status
	onChange func(Status)
}

// NewStatusBoard starts idle
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{status: StatusIdle}
}

// OnChange sets the change listener
func (b *StatusBoard) OnChange(fn func(Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Set updates the status
func (b *StatusBoard) Set(s Status) {
	b.mu.Lock()
	b.status = s
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Get returns the current status
func (b *StatusBoard) Get() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// DefaultNoticeDuration is how long the restriction banner stays up
const DefaultNoticeDuration = 3 * time.Second

// RestrictionNotice is the transient "guest restricted" banner. Raising it
// again restarts its timer.
type RestrictionNotice struct {
	duration time.Duration

	mu       sync.Mutex
	active   bool
	timer    *time.Timer
	gen      uint64
	onChange func(bool)
}

// NewRestrictionNotice creates a notice that clears itself after d
func NewRestrictionNotice(d time.Duration) *RestrictionNotice {
	if d <= 0 {
		d = DefaultNoticeDuration
	}
	return &RestrictionNotice{duration: d}
}

// OnChange sets the listener for raise and clear
func (n *RestrictionNotice) OnChange(fn func(active bool)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = fn
}

// Raise shows the notice and schedules its removal
func (n *RestrictionNotice) Raise() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.active = true
	n.timer = time.AfterFunc(n.duration, func() { n.clear(gen) })
	fn := n.onChange
	n.mu.Unlock()

	if fn != nil {
		fn(true)
	}
}

func (n *RestrictionNotice) clear(gen uint64) {
	n.mu.Lock()
	if gen != n.gen || !n.active {
		n.mu.Unlock()
		return
	}
	n.active = false
	n.timer = nil
	fn := n.onChange
	n.mu.Unlock()

	if fn != nil {
		fn(false)
	}
}

// Active reports whether the notice is showing
func (n *RestrictionNotice) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Stop hides the notice and cancels its timer
func (n *RestrictionNotice) Stop() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
	wasActive := n.active
	n.active = false
	fn := n.onChange
	n.mu.Unlock()

	if wasActive && fn != nil {
		fn(false)
	}
}
