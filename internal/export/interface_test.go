package export

import (
	"fmt"
	"testing"

	"github.com/iksnae/jarvis-console/internal"
)

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format string
		want   Exporter
		ext    string
	}{
		{"json", &JSONExporter{}, "json"},
		{"jsonl", &JSONLExporter{}, "jsonl"},
		{"md", &MarkdownExporter{}, "md"},
		{"markdown", &MarkdownExporter{}, "md"},
		{"yaml", &YAMLExporter{}, "yaml"},
		{"yml", &YAMLExporter{}, "yaml"},
		{"JSON", &JSONExporter{}, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := NewExporter(tt.format)
			if err != nil {
				t.Fatalf("NewExporter(%q) error = %v", tt.format, err)
			}
			if fmt.Sprintf("%T", got) != fmt.Sprintf("%T", tt.want) {
				t.Errorf("NewExporter(%q) = %T, want %T", tt.format, got, tt.want)
			}
			if got.Extension() != tt.ext {
				t.Errorf("Extension() = %q, want %q", got.Extension(), tt.ext)
			}
		})
	}
}

func TestNewExporterRejectsUnknownFormats(t *testing.T) {
	for _, format := range []string{"", "xml", "pdf"} {
		exporter, err := NewExporter(format)
		if err == nil {
			t.Errorf("NewExporter(%q) succeeded with %T", format, exporter)
		}
		if exporter != nil {
			t.Errorf("NewExporter(%q) returned %T alongside an error", format, exporter)
		}
	}
}

func TestFileName(t *testing.T) {
	conv := internal.CreateTestConversation("chat-7")
	for _, format := range Formats {
		exporter, err := NewExporter(format)
		if err != nil {
			t.Fatalf("NewExporter(%q) error = %v", format, err)
		}
		want := "jarvis-chat-7." + exporter.Extension()
		if got := FileName(conv, exporter); got != want {
			t.Errorf("FileName() = %q, want %q", got, want)
		}
	}
}
