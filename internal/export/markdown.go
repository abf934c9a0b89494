package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/jarvis-console/internal"
)

// MarkdownExporter exports conversations in Markdown format
type MarkdownExporter struct{}

// Export exports a conversation to Markdown format
func (e *MarkdownExporter) Export(conv *internal.Conversation, w io.Writer) error {
	title, ok := conv.Title()
	if !ok {
		title = "Untitled"
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", escapeMarkdown(title))
	_, _ = fmt.Fprintf(w, "**Chat:** %s  \n", conv.ID)
	if !conv.StartedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Started:** %s  \n", conv.StartedAt)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(conv.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range conv.Messages {
		timestamp := ""
		if !msg.Time.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Time)
		}

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", speaker(msg.Role), timestamp, escapeMarkdown(msg.Text))

		if i < len(conv.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func speaker(r internal.Role) string {
	if r == internal.RoleAssistant {
		return "Jarvis"
	}
	return "You"
}

// escapeMarkdown escapes bold and underline markers outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
