package speech

import (
	"context"
	"sync"
)

// Gate wraps a Speaker with a suppression counter. While any window round
// trip holds the gate, Cancel is ignored so that a reply arriving from a
// window never cuts off what the main console is saying.
type Gate struct {
	speaker Speaker

	mu         sync.Mutex
	suppressed int
}

// NewGate wraps speaker
func NewGate(speaker Speaker) *Gate {
	if speaker == nil {
		speaker = NopSpeaker{}
	}
	return &Gate{speaker: speaker}
}

// Suppress marks one silent call in flight. The returned release must be
// called exactly once when the call ends; extra calls are ignored.
func (g *Gate) Suppress() (release func()) {
	g.mu.Lock()
	g.suppressed++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.suppressed--
			g.mu.Unlock()
		})
	}
}

// Suppressed reports whether any silent call is in flight
func (g *Gate) Suppressed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suppressed > 0
}

// Speak forwards to the speaker
func (g *Gate) Speak(ctx context.Context, text string) error {
	return g.speaker.Speak(ctx, text)
}

// Cancel stops the current utterance unless a silent call holds the gate
func (g *Gate) Cancel() {
	if g.Suppressed() {
		return
	}
	g.speaker.Cancel()
}
