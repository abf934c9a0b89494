// Package speech wraps the platform text-to-speech and speech-to-text
// commands used for voice output and the microphone.
package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/iksnae/jarvis-console/internal"
)

// Speaker speaks text aloud. Speak returns once the utterance has started;
// starting a new one cancels the previous one.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Cancel()
}

// engines are tried in order when no engine is configured
var engines = []string{"say", "espeak-ng", "espeak", "spd-say"}

// DetectEngine returns the first speech engine found on PATH
func DetectEngine() (string, error) {
	for _, name := range engines {
		if _, err := exec.LookPath(name); err == nil {
			return name, nil
		}
	}
	return "", internal.ErrSpeechUnsupported
}

// engineArgs builds the command line for an engine. rate is words per
// minute; 0 keeps the engine default.
func engineArgs(engine string, rate int, text string) []string {
	var args []string
	switch engine {
	case "say":
		if rate > 0 {
			args = append(args, "-r", strconv.Itoa(rate))
		}
	case "espeak", "espeak-ng":
		if rate > 0 {
			args = append(args, "-s", strconv.Itoa(rate))
		}
	case "spd-say":
		args = append(args, "--wait")
	}
	return append(args, text)
}

// CommandSpeaker speaks through an external command such as say or espeak
type CommandSpeaker struct {
	engine string
	rate   int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCommandSpeaker creates a speaker for engine; "" or "auto" detects one
func NewCommandSpeaker(engine string, rate int) (*CommandSpeaker, error) {
	if engine == "" || engine == "auto" {
		detected, err := DetectEngine()
		if err != nil {
			return nil, err
		}
		engine = detected
	} else if _, err := exec.LookPath(engine); err != nil {
		return nil, fmt.Errorf("%w: %s not found", internal.ErrSpeechUnsupported, engine)
	}
	return &CommandSpeaker{engine: engine, rate: rate}, nil
}

// Engine returns the command used for speech
func (s *CommandSpeaker) Engine() string {
	return s.engine
}

// Speak cancels any running utterance and starts text in the background
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	cmd := exec.CommandContext(runCtx, s.engine, engineArgs(s.engine, s.rate, text)...)
	if err := cmd.Start(); err != nil {
		cancel()
		s.cancel = nil
		return fmt.Errorf("start %s: %w", s.engine, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := cmd.Wait(); err != nil && runCtx.Err() == nil {
			internal.LogDebug("speech engine %s exited: %v", s.engine, err)
		}
	}()
	return nil
}

// Cancel stops the current utterance
func (s *CommandSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Wait blocks until every started utterance has finished
func (s *CommandSpeaker) Wait() {
	s.wg.Wait()
}

// NopSpeaker discards speech; used when speech is disabled or unsupported
type NopSpeaker struct{}

// Speak does nothing
func (NopSpeaker) Speak(context.Context, string) error { return nil }

// Cancel does nothing
func (NopSpeaker) Cancel() {}
