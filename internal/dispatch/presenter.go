package dispatch

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// InvalidReplyPlaceholder is shown instead of a reply that is not text
const InvalidReplyPlaceholder = "⚠️ Invalid response from Jarvis"

// PresenterConfig sets the typing cadence. The reveal is paced to roughly
// match how long the reply takes to speak.
type PresenterConfig struct {
	CharsPerSecond float64
	MinDuration    time.Duration // floor of the estimated speaking time
	LeadTrim       time.Duration // subtracted so typing finishes before speech
	MinCharDelay   time.Duration
}

// DefaultPresenterConfig returns the standard cadence
func DefaultPresenterConfig() PresenterConfig {
	return PresenterConfig{
		CharsPerSecond: 13.5,
		MinDuration:    500 * time.Millisecond,
		LeadTrim:       1000 * time.Millisecond,
		MinCharDelay:   18 * time.Millisecond,
	}
}

func (c PresenterConfig) withDefaults() PresenterConfig {
	d := DefaultPresenterConfig()
	if c.CharsPerSecond <= 0 {
		c.CharsPerSecond = d.CharsPerSecond
	}
	if c.MinDuration <= 0 {
		c.MinDuration = d.MinDuration
	}
	if c.LeadTrim < 0 {
		c.LeadTrim = 0
	}
	if c.MinCharDelay <= 0 {
		c.MinCharDelay = d.MinCharDelay
	}
	return c
}

// EstimatedDuration is the expected speaking time of text
func (c PresenterConfig) EstimatedDuration(text string) time.Duration {
	c = c.withDefaults()
	n := utf8.RuneCountInString(text)
	spoken := time.Duration(float64(n) / c.CharsPerSecond * float64(time.Second))
	return max(c.MinDuration, spoken-c.LeadTrim)
}

// CharDelay is the pause between two revealed characters of text,
// truncated to whole milliseconds.
func (c PresenterConfig) CharDelay(text string) time.Duration {
	c = c.withDefaults()
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return c.MinCharDelay
	}
	perChar := (c.EstimatedDuration(text) / time.Duration(n)).Truncate(time.Millisecond)
	return max(c.MinCharDelay, perChar)
}

// Presenter types a reply into its sink one character at a time. Each Reveal
// cancels the one before it; the sink never sees output from a superseded
// reveal once the next one has started. The sink is called with the
// presenter's lock held and must not block or call back into it.
type Presenter struct {
	cfg  PresenterConfig
	sink func(string)

	mu   sync.Mutex
	gen  uint64
	stop chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewPresenter creates a presenter writing successive prefixes to sink
func NewPresenter(cfg PresenterConfig, sink func(string)) *Presenter {
	done := make(chan struct{})
	close(done)
	return &Presenter{cfg: cfg.withDefaults(), sink: sink, done: done}
}

// Config returns the cadence in use
func (p *Presenter) Config() PresenterConfig {
	return p.cfg
}

// Reveal starts typing reply. A non-string reply shows InvalidReplyPlaceholder.
func (p *Presenter) Reveal(reply any) {
	text, ok := reply.(string)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	p.gen++
	gen := p.gen
	done := make(chan struct{})
	p.done = done

	if !ok {
		p.sink(InvalidReplyPlaceholder)
		close(done)
		return
	}

	runes := []rune(strings.TrimSpace(text))
	p.sink("")
	if len(runes) == 0 {
		close(done)
		return
	}

	stop := make(chan struct{})
	p.stop = stop
	delay := p.cfg.CharDelay(string(runes))

	p.wg.Add(1)
	go p.run(gen, runes, delay, stop, done)
}

func (p *Presenter) run(gen uint64, runes []rune, delay time.Duration, stop, done chan struct{}) {
	defer p.wg.Done()
	defer close(done)

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for i := 1; i <= len(runes); i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		p.sink(string(runes[:i]))
		p.mu.Unlock()
	}
}

func (p *Presenter) cancelLocked() {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

// Stop cancels the current reveal and waits for its goroutine to exit
func (p *Presenter) Stop() {
	p.mu.Lock()
	p.cancelLocked()
	p.gen++
	p.mu.Unlock()
	p.wg.Wait()
}

// Done is closed when the current reveal has finished or was cancelled
func (p *Presenter) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
