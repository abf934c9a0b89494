package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/jarvis-console/internal"
)

func TestJSONExporter_Export(t *testing.T) {
	tests := []struct {
		name string
		conv *internal.Conversation
	}{
		{
			name: "basic conversation",
			conv: internal.CreateTestConversation("chat-1"),
		},
		{
			name: "empty conversation",
			conv: internal.CreateTestConversationWithMessages("chat-2", []internal.ChatMessage{}),
		},
		{
			name: "conversation without times",
			conv: &internal.Conversation{
				ID: "chat-3",
				Messages: []internal.ChatMessage{
					{Role: internal.RoleUser, Text: "Hello"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONExporter{}

			if err := exporter.Export(tt.conv, &buf); err != nil {
				t.Fatalf("JSONExporter.Export() error = %v", err)
			}

			output := buf.String()
			var got internal.Conversation
			if err := json.Unmarshal([]byte(output), &got); err != nil {
				t.Fatalf("Output is not valid JSON: %v\nOutput: %s", err, output)
			}

			if got.ID != tt.conv.ID {
				t.Errorf("ID = %q, want %q", got.ID, tt.conv.ID)
			}
			if len(got.Messages) != len(tt.conv.Messages) {
				t.Errorf("got %d messages, want %d", len(got.Messages), len(tt.conv.Messages))
			}
			if !got.StartedAt.Equal(tt.conv.StartedAt.Time) {
				t.Errorf("StartedAt = %v, want %v", got.StartedAt, tt.conv.StartedAt)
			}

			if !strings.Contains(output, "\n  ") {
				t.Errorf("Output should be pretty-printed with indentation")
			}
		})
	}
}

func TestJSONExporter_Extension(t *testing.T) {
	exporter := &JSONExporter{}
	if got := exporter.Extension(); got != "json" {
		t.Errorf("JSONExporter.Extension() = %v, want json", got)
	}
}
