package dispatch

import "sync"

// Console is the main console's display state: the last command issued from
// it and the reply being revealed. Window traffic never touches it.
type Console struct {
	mu          sync.RWMutex
	lastCommand string
	reply       string
	revision    uint64
}

// NewConsole creates an empty console
func NewConsole() *Console {
	return &Console{}
}

// SetLastCommand records the command shown under the status line
func (c *Console) SetLastCommand(cmd string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCommand = cmd
	c.revision++
}

// LastCommand returns the last main console command
func (c *Console) LastCommand() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCommand
}

// SetReply replaces the visible reply; used as the Presenter sink
func (c *Console) SetReply(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = text
	c.revision++
}

// Reply returns the visible reply
func (c *Console) Reply() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reply
}

// Revision increases on every change so renderers can skip redraws
func (c *Console) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}
