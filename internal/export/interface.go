// Package export writes chat history conversations to files.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/jarvis-console/internal"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(conv *internal.Conversation, w io.Writer) error
	Extension() string
}

// Formats lists the accepted format names
var Formats = []string{"json", "jsonl", "md", "yaml"}

// NewExporter returns the exporter for a format name; names are case-insensitive
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats, ", "))
	}
}

// FileName is the file a conversation is exported to
func FileName(conv *internal.Conversation, e Exporter) string {
	return fmt.Sprintf("jarvis-%s.%s", conv.ID, e.Extension())
}
