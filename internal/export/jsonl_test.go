package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/jarvis-console/internal"
)

func TestJSONLExporter_Export(t *testing.T) {
	tests := []struct {
		name      string
		conv      *internal.Conversation
		wantLines int
		want      []string
	}{
		{
			name:      "empty conversation",
			conv:      internal.CreateTestConversationWithMessages("chat-1", []internal.ChatMessage{}),
			wantLines: 0,
		},
		{
			name:      "conversation with messages",
			conv:      internal.CreateTestConversation("chat-2"),
			wantLines: 2,
			want: []string{
				`"role":"user"`,
				`"role":"assistant"`,
				`"chat_id":"chat-2"`,
				`"time":"2024-05-01T10:00:00Z"`,
			},
		},
		{
			name: "message without time",
			conv: internal.CreateTestConversationWithMessages("chat-3", []internal.ChatMessage{
				{Role: internal.RoleUser, Text: "Hello"},
			}),
			wantLines: 1,
			want: []string{
				`"text":"Hello"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONLExporter{}

			if err := exporter.Export(tt.conv, &buf); err != nil {
				t.Fatalf("JSONLExporter.Export() error = %v", err)
			}

			output := buf.String()
			if tt.wantLines == 0 {
				if output != "" {
					t.Errorf("Empty conversation should produce empty output, got: %q", output)
				}
				return
			}

			lines := strings.Split(strings.TrimSpace(output), "\n")
			if len(lines) != tt.wantLines {
				t.Fatalf("got %d lines, want %d", len(lines), tt.wantLines)
			}
			for i, line := range lines {
				var msg map[string]interface{}
				if err := json.Unmarshal([]byte(line), &msg); err != nil {
					t.Errorf("Line %d is not valid JSON: %v", i, err)
					continue
				}
				for _, field := range []string{"chat_id", "role", "text"} {
					if _, ok := msg[field]; !ok {
						t.Errorf("Line %d missing %q field", i, field)
					}
				}
			}

			for _, wantStr := range tt.want {
				if !strings.Contains(output, wantStr) {
					t.Errorf("Output should contain %q, got:\n%s", wantStr, output)
				}
			}
		})
	}
}

func TestJSONLExporter_OmitsMissingTime(t *testing.T) {
	var buf bytes.Buffer
	conv := internal.CreateTestConversationWithMessages("chat-4", []internal.ChatMessage{
		{Role: internal.RoleAssistant, Text: "Hi"},
	})
	if err := (&JSONLExporter{}).Export(conv, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if strings.Contains(buf.String(), `"time"`) {
		t.Errorf("Output should not contain a time field, got: %s", buf.String())
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	exporter := &JSONLExporter{}
	if got := exporter.Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}
