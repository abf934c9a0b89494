package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Role identifies who authored a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single entry of a conversation log.
// Messages are immutable once appended; slice order is display order.
type ChatMessage struct {
	Role Role      `json:"role" yaml:"role"`
	Text string    `json:"text" yaml:"text"`
	Time Timestamp `json:"time,omitempty" yaml:"time,omitempty"`
}

// NewChatMessage creates a message stamped with the current time
func NewChatMessage(role Role, text string) ChatMessage {
	return ChatMessage{Role: role, Text: text, Time: Now()}
}

// Conversation is a chat as returned by GET /auth/history
type Conversation struct {
	ID        string        `json:"id" yaml:"id"`
	StartedAt Timestamp     `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Messages  []ChatMessage `json:"messages" yaml:"messages"`
}

// Title returns the first user message, which is what the history drawer shows.
// Conversations without a user message have no title and are hidden from listings.
func (c *Conversation) Title() (string, bool) {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			return msg.Text, true
		}
	}
	return "", false
}

// Profile is the account returned by GET /auth/me
type Profile struct {
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	Role       string `json:"role,omitempty" yaml:"role,omitempty"`
	SecureMode bool   `json:"secure_mode,omitempty" yaml:"secure_mode,omitempty"`
	Avatar     string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
}

// FallbackProfile is the identity shown when a token is present but the
// profile could not be fetched.
func FallbackProfile() *Profile {
	return &Profile{Name: "User", Role: "user"}
}

// TargetKind discriminates ReplyTarget
type TargetKind int

const (
	TargetMain TargetKind = iota
	TargetWindow
)

// ReplyTarget says where the reply of a dispatch is delivered: the main
// console or one specific popup window.
type ReplyTarget struct {
	Kind     TargetKind
	WindowID string
}

// MainTarget addresses the main console
func MainTarget() ReplyTarget {
	return ReplyTarget{Kind: TargetMain}
}

// WindowTarget addresses the popup window with the given id
func WindowTarget(id string) ReplyTarget {
	return ReplyTarget{Kind: TargetWindow, WindowID: id}
}

// IsMain reports whether the target is the main console
func (t ReplyTarget) IsMain() bool { return t.Kind == TargetMain }

// IsWindow reports whether the target is a popup window
func (t ReplyTarget) IsWindow() bool { return t.Kind == TargetWindow }

func (t ReplyTarget) String() string {
	if t.IsWindow() {
		return "window:" + t.WindowID
	}
	return "main"
}

// DispatchResult describes what a single command dispatch did
type DispatchResult struct {
	Target     ReplyTarget
	Reply      string
	Intent     string
	Confidence float64
	Skipped    bool // empty input, nothing happened
	Restricted bool // guest tried a system command
	Failed     bool // backend rejected or unreachable; Reply holds the user-facing message
	Dropped    bool // reply arrived for a superseded dispatch or a closed window
	Spoken     bool
}

// Timestamp is a time that tolerates the backend's naive ISO-8601 strings
type Timestamp struct {
	time.Time
}

// layouts accepted when decoding; the backend emits datetime.utcnow().isoformat()
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Now returns the current time as a Timestamp
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

// ParseTimestamp parses any of the supported layouts; zone-less values are UTC
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// String formats the timestamp as RFC 3339, or "" when unset
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Time.Format(time.RFC3339)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (t Timestamp) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (t *Timestamp) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseTimestamp(node.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsZero reports whether the timestamp is unset
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero()
}
