package internal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestShowProgress(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		message string
		fn      func() error
		wantErr bool
	}{
		{
			name:    "successful function",
			message: "Testing",
			fn: func() error {
				return nil
			},
			wantErr: false,
		},
		{
			name:    "function with error",
			message: "Testing error",
			fn: func() error {
				return errors.New("test error")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ShowProgress(ctx, tt.message, tt.fn)
			if (err != nil) != tt.wantErr {
				t.Errorf("ShowProgress() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestShowProgress_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := ShowProgress(ctx, "Testing", func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	// Should handle context cancellation gracefully
	_ = err
}

func TestShowProgressWithSteps(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		steps   []ProgressStep
		wantErr bool
	}{
		{
			name: "successful steps",
			steps: []ProgressStep{
				{Message: "Step 1", Fn: func() error { return nil }},
				{Message: "Step 2", Fn: func() error { return nil }},
			},
			wantErr: false,
		},
		{
			name: "step with error",
			steps: []ProgressStep{
				{Message: "Step 1", Fn: func() error { return nil }},
				{Message: "Step 2", Fn: func() error { return errors.New("step error") }},
			},
			wantErr: true,
		},
		{
			name:    "empty steps",
			steps:   []ProgressStep{},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ShowProgressWithSteps(ctx, tt.steps)
			if (err != nil) != tt.wantErr {
				t.Errorf("ShowProgressWithSteps() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpinWritesOutcome(t *testing.T) {
	var buf bytes.Buffer
	if err := spin(context.Background(), &buf, "Fetching history", func() error {
		time.Sleep(150 * time.Millisecond)
		return nil
	}); err != nil {
		t.Fatalf("spin() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "✓") || !strings.Contains(out, "Fetching history") {
		t.Errorf("spin() output = %q, want success mark and message", out)
	}

	buf.Reset()
	wantErr := errors.New("backend down")
	if err := spin(context.Background(), &buf, "Fetching history", func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("spin() error = %v, want %v", err, wantErr)
	}
	if !strings.Contains(buf.String(), "✗") {
		t.Errorf("spin() output = %q, want failure mark", buf.String())
	}
}

func TestSpinCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	release := make(chan struct{})
	defer close(release)
	err := spin(ctx, &buf, "Waiting", func() error {
		<-release
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("spin() error = %v, want context.Canceled", err)
	}
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	if IsTerminal(&buf) {
		t.Error("a buffer is not a terminal")
	}
}

func TestPrintHelpersWithoutTerminal(t *testing.T) {
	tests := []struct {
		name  string
		print func(w *bytes.Buffer)
		want  string
	}{
		{"success", func(w *bytes.Buffer) { PrintSuccess(w, "Deleted chat-1") }, "Deleted chat-1\n"},
		{"error", func(w *bytes.Buffer) { PrintError(w, "Error: boom") }, "Error: boom\n"},
		{"info", func(w *bytes.Buffer) { PrintInfo(w, "Signed in") }, "Signed in\n"},
		{"warning", func(w *bytes.Buffer) { PrintWarning(w, "Cancelled") }, "WARNING: Cancelled\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
