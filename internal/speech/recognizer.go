package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/iksnae/jarvis-console/internal"
)

// Recognizer turns one spoken phrase into text
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// ErrNothingHeard is returned when the recognizer produced no text
var ErrNothingHeard = errors.New("nothing heard")

// CommandRecognizer runs a configured speech-to-text command and reads the
// transcript from its standard output.
type CommandRecognizer struct {
	name string
	args []string
}

// NewCommandRecognizer parses commandLine ("whisper-listen --lang en").
// An empty command line means speech input is unsupported.
func NewCommandRecognizer(commandLine string) (*CommandRecognizer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, internal.ErrSpeechUnsupported
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found", internal.ErrSpeechUnsupported, fields[0])
	}
	return &CommandRecognizer{name: fields[0], args: fields[1:]}, nil
}

// Listen runs the command once and returns the trimmed transcript
func (r *CommandRecognizer) Listen(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.name, r.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("speech recognizer failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", ErrNothingHeard
	}
	return text, nil
}

// UnsupportedRecognizer always reports internal.ErrSpeechUnsupported
type UnsupportedRecognizer struct{}

// Listen returns internal.ErrSpeechUnsupported
func (UnsupportedRecognizer) Listen(context.Context) (string, error) {
	return "", internal.ErrSpeechUnsupported
}
