package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/jarvis-console/internal"
)

// JSONLExporter exports conversations in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a conversation to JSONL format
func (e *JSONLExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range conv.Messages {
		obj := map[string]interface{}{
			"chat_id": conv.ID,
			"role":    msg.Role,
			"text":    msg.Text,
		}
		if !msg.Time.IsZero() {
			obj["time"] = msg.Time.String()
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
